package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

const maxLineBytes = 1024 * 1024

// TerminalInput reads user messages line by line. Blank lines are skipped.
// Reading happens on a background goroutine so that Next can return as soon
// as its context is cancelled.
type TerminalInput struct {
	in     io.Reader
	out    io.Writer
	styles Styles

	start sync.Once
	lines chan string
}

// NewTerminalInput reads from in and writes the prompt to out.
func NewTerminalInput(in io.Reader, out io.Writer, styles Styles) *TerminalInput {
	return &TerminalInput{
		in:     in,
		out:    out,
		styles: styles,
		lines:  make(chan string),
	}
}

func (t *TerminalInput) readLines() {
	defer close(t.lines)
	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		t.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("reading input failed")
	}
}

// Next prompts for and returns the next non-blank line. It returns false at
// end of input or when ctx is done.
func (t *TerminalInput) Next(ctx context.Context) (string, bool) {
	t.start.Do(func() { go t.readLines() })

	for {
		_, _ = io.WriteString(t.out, t.styles.User.Render("You")+": ")
		select {
		case <-ctx.Done():
			_, _ = io.WriteString(t.out, "\n")
			return "", false
		case line, ok := <-t.lines:
			if !ok {
				_, _ = io.WriteString(t.out, "\n")
				return "", false
			}
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			return line, true
		}
	}
}
