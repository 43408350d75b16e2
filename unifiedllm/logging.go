package unifiedllm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggingMiddleware logs a summary of every request and its outcome. A
// logger without a level falls back to the global logger.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		lg := logger
		if lg.GetLevel() == zerolog.NoLevel {
			lg = log.Logger
		}
		lg = lg.With().
			Str("provider", req.Provider).
			Str("model", req.Model).
			Int("messages", len(req.Messages)).
			Int("tools", len(req.ToolDefs)).
			Logger()

		lg.Debug().Msg("llm: sending request")
		start := time.Now()

		resp, err := next(ctx, req)
		if err != nil {
			lg.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("llm: request failed")
			return nil, err
		}

		lg.Debug().
			Str("response_id", resp.ID).
			Str("finish_reason", resp.FinishReason.Reason).
			Int("content_parts", len(resp.Message.Content)).
			Int("tool_calls", len(resp.ToolCalls())).
			Int("text_bytes", len(resp.Text())).
			Int("input_tokens", resp.Usage.InputTokens).
			Int("output_tokens", resp.Usage.OutputTokens).
			Dur("elapsed", time.Since(start)).
			Msg("llm: received response")
		return resp, nil
	}
}
