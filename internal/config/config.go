// Package config loads the node configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

// Link kinds.
const (
	LinkSim    = "sim"
	LinkSerial = "serial"
	LinkMQTT   = "mqtt"
	LinkHTTP   = "http"
	LinkUDP    = "udp"
)

// Config is the complete node configuration. It is read once at start and not changed afterwards.
type Config struct {
	NodeID            string        `yaml:"node_id"`
	MaxMessageLength  int           `yaml:"max_message_length"`
	MaxFrameSize      int           `yaml:"max_frame_size"`
	ReceiveBufferSize int           `yaml:"receive_buffer_size"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	// AckTimeout is reserved for links with acknowledgements. Nothing waits on it yet.
	AckTimeout time.Duration `yaml:"ack_timeout"`

	Retry      RetryConfig      `yaml:"retry"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Radio      RadioConfig      `yaml:"radio"`
	Link       LinkConfig       `yaml:"link"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Store      StoreConfig      `yaml:"store"`
	Log        LogConfig        `yaml:"log"`
}

type RetryConfig struct {
	// Count is the number of retransmissions after the first attempt. It only applies when Bounded is set.
	Count   int           `yaml:"count"`
	Bounded bool          `yaml:"bounded"`
	Backoff time.Duration `yaml:"backoff"`
}

// Policy converts the settings into the pipeline retry policy.
func (c RetryConfig) Policy() lorachat.RetryPolicy {
	policy := lorachat.RetryPolicy{Backoff: c.Backoff}
	if c.Bounded {
		policy.MaxAttempts = c.Count + 1
	}
	return policy
}

type ChannelsConfig struct {
	Default string   `yaml:"default"`
	Allowed []string `yaml:"allowed"`
}

type EncryptionConfig struct {
	Enabled bool `yaml:"enabled"`
	// Key is a base64-encoded 32-byte key.
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"`
	// Passphrase derives the key when neither Key nor KeyFile is set.
	Passphrase string `yaml:"passphrase"`
}

type RadioConfig struct {
	Frequency float64 `yaml:"frequency"`
	Preset    string  `yaml:"preset"`
}

type LinkConfig struct {
	Kind   string       `yaml:"kind"`
	Sim    SimConfig    `yaml:"sim"`
	Serial SerialConfig `yaml:"serial"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
	UDP    UDPConfig    `yaml:"udp"`
}

type SimConfig struct {
	ArrivalProbability float64       `yaml:"arrival_probability"`
	MinInterval        time.Duration `yaml:"min_interval"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type MQTTConfig struct {
	Broker    string `yaml:"broker"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	RootTopic string `yaml:"root_topic"`
	Channel   string `yaml:"channel"`
}

type HTTPConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type UDPConfig struct {
	Group     string `yaml:"group"`
	Interface string `yaml:"interface"`
}

type BridgeConfig struct {
	Listen      string `yaml:"listen"`
	MailboxSize int    `yaml:"mailbox_size"`
}

type StoreConfig struct {
	// Path of the SQLite database. Empty disables persistence.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File receives the log. When empty, logs go to stderr in plain mode and are discarded in the TUI.
	File string `yaml:"file"`
	// Transcript is a file every displayed message is appended to. Empty disables it.
	Transcript string `yaml:"transcript"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	radio := lorachat.DefaultRadioSettings()
	return Config{
		NodeID:            "PI_NODE_1",
		MaxMessageLength:  lorachat.DefaultMaxMessageLength,
		ReceiveBufferSize: lorachat.DefaultReceiveBufferSize,
		PollInterval:      lorachat.DefaultPollInterval,
		AckTimeout:        2 * time.Second,
		Retry: RetryConfig{
			Count: 3,
		},
		Channels: ChannelsConfig{
			Default: "general",
			Allowed: []string{"general"},
		},
		Radio: RadioConfig{
			Frequency: radio.FrequencyMHz,
			Preset:    radio.Preset.Name,
		},
		Link: LinkConfig{
			Kind: LinkSim,
			Sim: SimConfig{
				ArrivalProbability: 0.1,
				MinInterval:        10 * time.Second,
			},
			Serial: SerialConfig{
				Port: "/dev/ttyUSB0",
				Baud: 115200,
			},
			MQTT: MQTTConfig{
				Broker:    "tcp://localhost:1883",
				RootTopic: "lorachat",
				Channel:   "LongFast",
			},
			HTTP: HTTPConfig{
				URL:     "http://localhost:4403",
				Timeout: 2 * time.Second,
			},
			UDP: UDPConfig{
				Group: "224.0.0.69:4403",
			},
		},
		Bridge: BridgeConfig{
			Listen:      ":4403",
			MailboxSize: 64,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the location of the configuration file in the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "lorachat.yaml"
	}
	return filepath.Join(dir, "lorachat", "config.yaml")
}

// Load reads the file at path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	var errs []error
	if c.NodeID == "" {
		errs = append(errs, errors.New("node_id is empty"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("max_message_length must be positive"))
	}
	if c.ReceiveBufferSize <= 0 {
		errs = append(errs, errors.New("receive_buffer_size must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if c.Retry.Bounded && c.Retry.Count < 0 {
		errs = append(errs, errors.New("retry.count must not be negative"))
	}
	if _, err := c.ChannelRegistry(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RadioSettings(); err != nil {
		errs = append(errs, err)
	}
	switch c.Link.Kind {
	case LinkSim, LinkSerial, LinkMQTT, LinkHTTP, LinkUDP:
	default:
		errs = append(errs, fmt.Errorf("unknown link kind %q", c.Link.Kind))
	}
	if p := c.Link.Sim.ArrivalProbability; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("link.sim.arrival_probability %v is out of [0, 1]", p))
	}
	return errors.Join(errs...)
}

// ChannelRegistry builds the registry of allowed channels.
func (c Config) ChannelRegistry() (*lorachat.ChannelRegistry, error) {
	return lorachat.NewChannelRegistry(c.Channels.Allowed, c.Channels.Default)
}

// RadioSettings resolves the radio preset by name.
func (c Config) RadioSettings() (lorachat.RadioSettings, error) {
	preset, ok := lorachat.LookupPreset(c.Radio.Preset)
	if !ok {
		return lorachat.RadioSettings{}, fmt.Errorf("unknown radio preset %q", c.Radio.Preset)
	}
	settings := lorachat.RadioSettings{FrequencyMHz: c.Radio.Frequency, Preset: preset}
	if err := settings.Validate(); err != nil {
		return lorachat.RadioSettings{}, err
	}
	return settings, nil
}

// Cipher builds the pre-shared key cipher. It returns nil when encryption is disabled.
func (c Config) Cipher() (lorachat.Cipher, error) {
	enc := c.Encryption
	if !enc.Enabled {
		return nil, nil
	}

	var (
		key []byte
		err error
	)
	switch {
	case enc.Key != "":
		key, err = lorachat.DecodeKeyBase64(enc.Key)
	case enc.KeyFile != "":
		key, err = lorachat.ReadKeyFile(enc.KeyFile)
	case enc.Passphrase != "":
		key = lorachat.DeriveKey(enc.Passphrase)
	default:
		err = errors.New("encryption is enabled but no key, key_file or passphrase is set")
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load pre-shared key: %w", err)
	}
	psk, err := lorachat.NewPSK(key)
	if err != nil {
		return nil, err
	}
	return psk, nil
}
