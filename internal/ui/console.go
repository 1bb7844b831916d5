package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

var _ lorachat.Display = &Console{}

// Console prints each envelope as a plain line. It also serves as a transcript writer.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Notify(env lorachat.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, FormatLine(env))
}

// Banner prints the chat header.
func (c *Console) Banner(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, Header(nodeID))
	fmt.Fprintln(c.out, CommandsHint)
	fmt.Fprintln(c.out, strings.Repeat("-", 50))
}

// ReadLines submits each input line until in is exhausted or done is closed.
// A line pending when done closes is discarded.
func ReadLines(in io.Reader, submit func(string), done <-chan struct{}) error {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errs <- scanner.Err()
	}()

	for {
		select {
		case <-done:
			return nil
		case err := <-errs:
			return err
		case line := <-lines:
			if line = strings.TrimSpace(line); line != "" {
				submit(line)
			}
		}
	}
}
