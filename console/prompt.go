package console

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/tcnksm/go-input"
)

// ErrNoAPIKey is returned when no key was entered.
var ErrNoAPIKey = errors.New("no API key provided")

// PromptAPIKey asks the operator for the key stored in envName. Input is
// masked when in is a terminal.
func PromptAPIKey(in io.Reader, out io.Writer, envName string) (string, error) {
	ui := &input.UI{
		Reader: in,
		Writer: out,
	}
	query := envName + " is not set. Enter your API key"
	key, err := ui.Ask(query, &input.Options{
		Required:  true,
		Loop:      false,
		HideOrder: true,
		Mask:      IsTerminal(in),
	})
	if err != nil {
		if errors.Is(err, input.ErrEmpty) {
			return "", ErrNoAPIKey
		}
		return "", errors.Wrap(err, "read API key")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}
