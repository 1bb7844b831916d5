package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

const displayBuffer = 64

var _ lorachat.Display = &ProgramDisplay{}

// Sender accepts messages for a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramDisplay hands envelopes to a bubbletea program without blocking the notifier.
// When the program falls behind, the oldest pending envelope is dropped.
type ProgramDisplay struct {
	envs chan lorachat.Envelope
}

func NewProgramDisplay() *ProgramDisplay {
	return &ProgramDisplay{envs: make(chan lorachat.Envelope, displayBuffer)}
}

func (d *ProgramDisplay) Notify(env lorachat.Envelope) {
	select {
	case d.envs <- env:
		return
	default:
	}
	select {
	case <-d.envs:
	default:
	}
	select {
	case d.envs <- env:
	default:
	}
}

// Pump forwards envelopes to program until ctx is cancelled.
func (d *ProgramDisplay) Pump(ctx context.Context, program Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-d.envs:
			program.Send(envelopeMsg(env))
		}
	}
}
