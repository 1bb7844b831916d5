// Package ui renders the chat for a terminal, either as a full-screen view or as plain lines.
package ui

import (
	"fmt"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

const clockLayout = "15:04:05"

// CommandsHint lists the chat commands for headers.
const CommandsHint = "Commands: /quit, /status, /channel <name>, /channels, /help"

// Header is the title line of the chat.
func Header(nodeID string) string {
	return "LoRa Chat - Node ID: " + nodeID
}

func clock(env lorachat.Envelope) string {
	t := env.Time()
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Format(clockLayout)
}

// FormatLine renders an envelope as "[HH:MM:SS] node: content".
func FormatLine(env lorachat.Envelope) string {
	return fmt.Sprintf("[%s] %s: %s", clock(env), env.Node, env.Content)
}
