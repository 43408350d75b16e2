package agentloop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ToolNotFound is the content of the result for an unregistered tool name.
const ToolNotFound = "tool not found"

// ToolObserver is notified before a registered tool runs.
type ToolObserver interface {
	ToolInvoked(name string, arguments string)
}

// ToolExecutor dispatches tool uses to the registry. It never returns an
// error: every failure becomes an error-tagged ToolResult.
type ToolExecutor struct {
	registry       *ToolRegistry
	observer       ToolObserver
	maxOutputChars int
}

// ExecutorOption configures a ToolExecutor.
type ExecutorOption func(*ToolExecutor)

// WithMaxOutputChars truncates tool output longer than n characters.
// Zero, the default, leaves output untouched.
func WithMaxOutputChars(n int) ExecutorOption {
	return func(e *ToolExecutor) {
		e.maxOutputChars = n
	}
}

// NewToolExecutor creates an executor over registry. observer may be nil.
func NewToolExecutor(registry *ToolRegistry, observer ToolObserver, opts ...ExecutorOption) *ToolExecutor {
	e := &ToolExecutor{registry: registry, observer: observer}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the named tool with arguments and returns its result,
// correlated by id.
func (e *ToolExecutor) Execute(ctx context.Context, id, name string, arguments json.RawMessage) (result ToolResult) {
	result.ID = id

	def, ok := e.registry.Get(name)
	if !ok {
		log.Warn().Str("tool", name).Str("tool_use_id", id).Msg("model requested an unknown tool")
		result.Content = ToolNotFound
		result.IsError = true
		return result
	}

	if len(bytes.TrimSpace(arguments)) == 0 {
		arguments = json.RawMessage("{}")
	}
	compact := compactJSON(arguments)
	if e.observer != nil {
		e.observer.ToolInvoked(name, compact)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("tool", name).Interface("panic", r).Msg("tool panicked")
			result.Content = fmt.Sprintf("tool %s panicked: %v", name, r)
			result.IsError = true
		}
		log.Debug().
			Str("tool", name).
			Str("tool_use_id", id).
			Str("arguments", compact).
			Dur("elapsed", time.Since(start)).
			Bool("is_error", result.IsError).
			Msg("tool executed")
	}()

	if err := e.registry.validate(def.Name, arguments); err != nil {
		result.Content = "invalid input parameters: " + err.Error()
		result.IsError = true
		return result
	}

	output, err := def.Handler.Execute(ctx, arguments)
	if err != nil {
		result.Content = err.Error()
		result.IsError = true
		return result
	}
	result.Content = TruncateOutput(output, e.maxOutputChars)
	return result
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
