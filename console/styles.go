// Package console is the terminal front end of toolchat: a line-oriented
// input source, a display for model text and tool invocations, the start-up
// banner and the API key prompt.
package console

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Styles holds the label styles of the conversation.
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Tool      lipgloss.Style
	Banner    lipgloss.Style
}

// NewStyles builds the label styles for output written through r. A
// renderer over a non-terminal writer produces plain text.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		User:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		Tool:      r.NewStyle().Foreground(lipgloss.Color("10")),
		Banner:    r.NewStyle().Faint(true),
	}
}

// StylesFor returns the styles appropriate for w.
func StylesFor(w io.Writer) Styles {
	return NewStyles(lipgloss.NewRenderer(w))
}

// IsTerminal reports whether v is a file attached to a terminal.
func IsTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var bannerLines = []string{
	"Chat with Claude",
	"Type your messages and press Enter to chat",
	"Press Ctrl+C to exit",
}

// PrintBanner writes the greeting shown when a session starts.
func PrintBanner(w io.Writer, styles Styles) {
	for _, line := range bannerLines {
		_, _ = io.WriteString(w, styles.Banner.Render(line)+"\n")
	}
	_, _ = io.WriteString(w, "\n")
}
