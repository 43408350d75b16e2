package console

import (
	"fmt"
	"io"
)

// TerminalDisplay prints model text and tool invocations as labelled lines.
type TerminalDisplay struct {
	out    io.Writer
	styles Styles
}

func NewTerminalDisplay(out io.Writer, styles Styles) *TerminalDisplay {
	return &TerminalDisplay{out: out, styles: styles}
}

func (d *TerminalDisplay) AssistantText(text string) {
	_, _ = fmt.Fprintf(d.out, "%s: %s\n", d.styles.Assistant.Render("Claude"), text)
}

func (d *TerminalDisplay) ToolInvoked(name string, arguments string) {
	_, _ = fmt.Fprintf(d.out, "%s: %s(%s)\n", d.styles.Tool.Render("tool"), name, arguments)
}
