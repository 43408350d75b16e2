package agentloop

import (
	"context"
	"encoding/json"

	"github.com/martinemde/toolchat/unifiedllm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ModelGateway produces the model's next turn for a transcript.
type ModelGateway interface {
	Infer(ctx context.Context, transcript []Turn) ([]Segment, error)
}

// Completer is the part of unifiedllm.Client the gateway needs.
type Completer interface {
	Complete(ctx context.Context, req unifiedllm.Request) (*unifiedllm.Response, error)
}

// GatewayConfig holds the request parameters sent with every inference.
type GatewayConfig struct {
	Provider     string
	Model        string
	MaxTokens    int
	// Temperature is left to the provider when nil.
	Temperature  *float64
	SystemPrompt string
}

// LLMGateway is a ModelGateway backed by a unifiedllm client. Each call
// sends the whole transcript and the whole tool catalog.
type LLMGateway struct {
	client  Completer
	cfg     GatewayConfig
	catalog []unifiedllm.ToolDefinition
}

// NewLLMGateway creates a gateway advertising the tools in registry.
func NewLLMGateway(client Completer, registry *ToolRegistry, cfg GatewayConfig) *LLMGateway {
	var catalog []unifiedllm.ToolDefinition
	if registry != nil {
		catalog = registry.Catalog()
	}
	return &LLMGateway{client: client, cfg: cfg, catalog: catalog}
}

// Infer sends transcript to the backend and returns the response segments
// in the order received. A response without content yields no segments.
// Every failure is a *GatewayError.
func (g *LLMGateway) Infer(ctx context.Context, transcript []Turn) ([]Segment, error) {
	req := unifiedllm.Request{
		Provider:    g.cfg.Provider,
		Model:       g.cfg.Model,
		ToolDefs:    g.catalog,
		Temperature: g.cfg.Temperature,
	}
	if g.cfg.MaxTokens > 0 {
		maxTokens := g.cfg.MaxTokens
		req.MaxTokens = &maxTokens
	}
	if g.cfg.SystemPrompt != "" {
		req.Messages = append(req.Messages, unifiedllm.SystemMessage(g.cfg.SystemPrompt))
	}
	req.Messages = append(req.Messages, ConvertTranscript(transcript)...)

	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return nil, &GatewayError{Err: err}
	}
	if resp == nil {
		return nil, &GatewayError{Err: errors.Wrap(ErrMalformedResponse, "empty response")}
	}

	segments, err := SegmentsFromMessage(resp.Message)
	if err != nil {
		return nil, &GatewayError{Err: err}
	}

	log.Debug().
		Str("response_id", resp.ID).
		Str("finish_reason", resp.FinishReason.Raw).
		Int("segments", len(segments)).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Msg("model turn received")
	return segments, nil
}

// ConvertTranscript maps turns onto backend messages one to one, keeping
// segment order. Tool results travel as tool_result parts of user messages.
func ConvertTranscript(turns []Turn) []unifiedllm.Message {
	messages := make([]unifiedllm.Message, 0, len(turns))
	for _, turn := range turns {
		msg := unifiedllm.Message{Role: unifiedllm.RoleUser}
		if turn.Role == RoleAssistant {
			msg.Role = unifiedllm.RoleAssistant
		}
		for _, seg := range turn.Segments {
			switch s := seg.(type) {
			case Text:
				msg.Content = append(msg.Content, unifiedllm.TextPart(s.Content))
			case ToolUse:
				msg.Content = append(msg.Content, unifiedllm.ToolCallPart(s.ID, s.Name, s.Arguments))
			case ToolResult:
				msg.Content = append(msg.Content, unifiedllm.ToolResultPart(s.ID, s.Content, s.IsError))
			}
		}
		messages = append(messages, msg)
	}
	return messages
}

// SegmentsFromMessage converts an assistant message into segments. Empty
// text parts are dropped. Tool calls must carry a unique id, a name and a
// JSON object as arguments.
func SegmentsFromMessage(msg unifiedllm.Message) ([]Segment, error) {
	segments := make([]Segment, 0, len(msg.Content))
	seen := make(map[string]bool)
	for i, part := range msg.Content {
		switch part.Kind {
		case unifiedllm.ContentText:
			if part.Text != "" {
				segments = append(segments, Text{Content: part.Text})
			}
		case unifiedllm.ContentToolCall:
			tc := part.ToolCall
			if tc == nil || tc.ID == "" || tc.Name == "" {
				return nil, errors.Wrapf(ErrMalformedResponse, "content part %d: tool call without id or name", i)
			}
			if seen[tc.ID] {
				return nil, errors.Wrapf(ErrMalformedResponse, "content part %d: duplicate tool call id %q", i, tc.ID)
			}
			seen[tc.ID] = true
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(tc.Arguments, &obj); err != nil || obj == nil {
				return nil, errors.Wrapf(ErrMalformedResponse, "content part %d: arguments of %s are not a JSON object", i, tc.Name)
			}
			args := make(json.RawMessage, len(tc.Arguments))
			copy(args, tc.Arguments)
			segments = append(segments, ToolUse{ID: tc.ID, Name: tc.Name, Arguments: args})
		default:
			return nil, errors.Wrapf(ErrMalformedResponse, "content part %d: unexpected kind %q", i, part.Kind)
		}
	}
	return segments, nil
}
