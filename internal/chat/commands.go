package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

const commandPrefix = "/"

type command struct {
	usage string
	help  string
	run   func(n *Node, args []string)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"/quit": {
			usage: "/quit",
			help:  "exit the chat",
			run:   func(n *Node, _ []string) { n.Stop() },
		},
		"/status": {
			usage: "/status",
			help:  "show radio status",
			run:   (*Node).status,
		},
		"/channel": {
			usage: "/channel <name>",
			help:  "switch the active channel",
			run:   (*Node).switchChannel,
		},
		"/channels": {
			usage: "/channels",
			help:  "list available channels",
			run:   (*Node).listChannels,
		},
		"/help": {
			usage: "/help",
			help:  "list commands",
			run:   (*Node).help,
		},
	}
}

func isCommand(line string) bool {
	return strings.HasPrefix(line, commandPrefix)
}

func (n *Node) dispatch(line string) {
	fields := strings.Fields(line)
	cmd, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		n.notify(lorachat.TypeError, fmt.Sprintf("Error: unknown command %s, type /help for a list", fields[0]))
		return
	}
	cmd.run(n, fields[1:])
}

// StatusLine describes the link, the active channel and the pipeline counters.
func (n *Node) StatusLine() string {
	stats := n.Stats()
	return fmt.Sprintf("Radio Status: %s | Channel: %s | Queued: %d | Sent: %d | Failed: %d | Received: %d",
		lorachat.LinkStatus(n.transport), n.channels.Active(), n.QueueDepth(),
		stats.Sent, stats.Failed, stats.Received)
}

func (n *Node) status(_ []string) {
	n.notify(lorachat.TypeStatus, n.StatusLine())
}

func (n *Node) switchChannel(args []string) {
	if len(args) != 1 {
		n.notify(lorachat.TypeError, "Error: usage: "+commands["/channel"].usage)
		return
	}
	if err := n.channels.SetActive(args[0]); err != nil {
		n.reportError(err)
		return
	}
	n.notify(lorachat.TypeStatus, "Switched to channel "+args[0])
}

func (n *Node) listChannels(_ []string) {
	allowed := n.channels.Allowed()
	active := n.channels.Active()
	for i, name := range allowed {
		if name == active {
			allowed[i] = name + " (active)"
		}
	}
	n.notify(lorachat.TypeStatus, "Channels: "+strings.Join(allowed, ", "))
}

func (n *Node) help(_ []string) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s - %s", commands[name].usage, commands[name].help))
	}
	n.notify(lorachat.TypeStatus, "Commands: "+strings.Join(lines, "; "))
}
