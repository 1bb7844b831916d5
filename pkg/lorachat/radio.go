package lorachat

import (
	"fmt"
	"strings"
)

// RadioPreset describes basic information about LoRa radio preset.
type RadioPreset struct {
	Name string
}

var (
	PresetShortTurbo   = RadioPreset{Name: "ShortTurbo"}
	PresetShortFast    = RadioPreset{Name: "ShortFast"}
	PresetShortSlow    = RadioPreset{Name: "ShortSlow"}
	PresetMediumFast   = RadioPreset{Name: "MediumFast"}
	PresetMediumSlow   = RadioPreset{Name: "MediumSlow"}
	PresetLongFast     = RadioPreset{Name: "LongFast"}
	PresetLongModerate = RadioPreset{Name: "LongModerate"}
	PresetLongSlow     = RadioPreset{Name: "LongSlow"}
)

var presets = []RadioPreset{
	PresetShortTurbo, PresetShortFast, PresetShortSlow,
	PresetMediumFast, PresetMediumSlow,
	PresetLongFast, PresetLongModerate, PresetLongSlow,
}

// LookupPreset finds a preset by case-insensitive name.
func LookupPreset(name string) (RadioPreset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return RadioPreset{}, false
}

// RadioSettings are pushed to a hardware modem during bring-up.
type RadioSettings struct {
	// FrequencyMHz is the carrier frequency.
	FrequencyMHz float64
	Preset       RadioPreset
}

// DefaultRadioSettings matches a 915 MHz module on the LongFast preset.
func DefaultRadioSettings() RadioSettings {
	return RadioSettings{FrequencyMHz: 915.0, Preset: PresetLongFast}
}

// Validate checks the settings against the tuning range of common LoRa transceivers.
func (s RadioSettings) Validate() error {
	if s.FrequencyMHz < 137 || s.FrequencyMHz > 1020 {
		return fmt.Errorf("frequency %.3f MHz is outside the 137-1020 MHz range", s.FrequencyMHz)
	}
	if _, ok := LookupPreset(s.Preset.Name); !ok {
		return fmt.Errorf("unknown radio preset %q", s.Preset.Name)
	}
	return nil
}
