package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalInputSkipsBlankLines(t *testing.T) {
	var out bytes.Buffer
	in := NewTerminalInput(strings.NewReader("\n   \nhello\r\nsecond line\n"), &out, StylesFor(&out))

	line, ok := in.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, "hello", line)

	line, ok = in.Next(context.Background())
	require.True(t, ok)
	assert.Equal(t, "second line", line)

	_, ok = in.Next(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 5, strings.Count(out.String(), "You: "))
}

func TestTerminalInputEOF(t *testing.T) {
	var out bytes.Buffer
	in := NewTerminalInput(strings.NewReader(""), &out, StylesFor(&out))
	_, ok := in.Next(context.Background())
	assert.False(t, ok)
}

func TestTerminalInputCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	var out bytes.Buffer
	in := NewTerminalInput(r, &out, StylesFor(&out))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan bool)
	go func() {
		_, ok := in.Next(ctx)
		done <- ok
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after cancellation")
	}
}

func TestTerminalDisplay(t *testing.T) {
	var out bytes.Buffer
	d := NewTerminalDisplay(&out, StylesFor(&out))

	d.AssistantText("I'll read the file.")
	d.ToolInvoked("read_file", `{"path":"main.go"}`)

	assert.Equal(t, "Claude: I'll read the file.\ntool: read_file({\"path\":\"main.go\"})\n", out.String())
}

func TestPrintBanner(t *testing.T) {
	var out bytes.Buffer
	PrintBanner(&out, StylesFor(&out))
	assert.Contains(t, out.String(), "Chat with Claude")
	assert.Contains(t, out.String(), "Press Ctrl+C to exit")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
	assert.False(t, IsTerminal(strings.NewReader("")))
}

func TestPromptAPIKey(t *testing.T) {
	var out bytes.Buffer
	key, err := PromptAPIKey(strings.NewReader("sk-ant-test\n"), &out, "ANTHROPIC_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", key)
	assert.Contains(t, out.String(), "ANTHROPIC_API_KEY")
}

func TestPromptAPIKeyEmpty(t *testing.T) {
	var out bytes.Buffer
	_, err := PromptAPIKey(strings.NewReader("\n"), &out, "ANTHROPIC_API_KEY")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
