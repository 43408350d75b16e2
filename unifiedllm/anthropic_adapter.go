package unifiedllm

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultAnthropicBaseURL is the API host; the SDK adds the /v1 paths.
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	// DefaultAnthropicVersion is the anthropic-version header value.
	DefaultAnthropicVersion = "2023-06-01"
	// DefaultAnthropicMaxTokens is used when a request does not set MaxTokens.
	DefaultAnthropicMaxTokens = 1024
)

// AnthropicAdapter sends requests through the official Anthropic Go SDK.
// The SDK's own retries are off; RetryMiddleware decides what to retry.
type AnthropicAdapter struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

type anthropicConfig struct {
	baseURL    string
	apiVersion string
	model      string
	maxTokens  int
	timeout    time.Duration
}

// AnthropicOption configures an AnthropicAdapter.
type AnthropicOption func(*anthropicConfig)

// WithAnthropicBaseURL points the adapter at another host. A trailing /v1
// is accepted and dropped.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(c *anthropicConfig) {
		url = strings.TrimRight(strings.TrimSpace(url), "/")
		url = strings.TrimSuffix(url, "/v1")
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithAnthropicVersion overrides the anthropic-version header.
func WithAnthropicVersion(version string) AnthropicOption {
	return func(c *anthropicConfig) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithAnthropicModel sets the model used when a request leaves Model empty.
func WithAnthropicModel(model string) AnthropicOption {
	return func(c *anthropicConfig) {
		c.model = model
	}
}

// WithAnthropicMaxTokens sets max_tokens for requests that leave it unset.
func WithAnthropicMaxTokens(n int) AnthropicOption {
	return func(c *anthropicConfig) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithAnthropicTimeout bounds each request. Zero keeps the SDK's default.
func WithAnthropicTimeout(d time.Duration) AnthropicOption {
	return func(c *anthropicConfig) {
		c.timeout = d
	}
}

// NewAnthropicAdapter creates an adapter authenticated with apiKey.
func NewAnthropicAdapter(apiKey string, opts ...AnthropicOption) (*AnthropicAdapter, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &ConfigurationError{SDKError{Message: "anthropic api key is required"}}
	}

	cfg := anthropicConfig{
		baseURL:    DefaultAnthropicBaseURL,
		apiVersion: DefaultAnthropicVersion,
		maxTokens:  DefaultAnthropicMaxTokens,
	}
	if info := GetLatestModel("anthropic"); info != nil {
		cfg.model = info.ID
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL + "/"),
		option.WithHeader("anthropic-version", cfg.apiVersion),
		option.WithMaxRetries(0),
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.timeout))
	}

	return &AnthropicAdapter{
		client:    anthropic.NewClient(reqOpts...),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
	}, nil
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// Complete sends one Messages API request.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	msg, err := a.client.Messages.New(ctx, a.buildParams(req))
	if err != nil {
		return nil, a.translateError(ctx, err)
	}
	return a.buildResponse(msg), nil
}

func (a *AnthropicAdapter) buildParams(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(req.Messages)),
	}
	if req.Model != "" {
		params.Model = anthropic.Model(req.Model)
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		params.MaxTokens = int64(*req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if system := req.SystemPrompt(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(contentBlocks(msg.Content)...))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(contentBlocks(msg.Content)...))
		}
	}

	for _, td := range req.ToolDefs {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: toolParam(td)})
	}
	return params
}

func contentBlocks(parts []ContentPart) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		switch part.Kind {
		case ContentText:
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		case ContentToolCall:
			if part.ToolCall == nil {
				continue
			}
			input := part.ToolCall.Arguments
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(part.ToolCall.ID, input, part.ToolCall.Name))
		case ContentToolResult:
			if part.ToolResult == nil {
				continue
			}
			// the API rejects empty text blocks, so empty output sends no content
			result := anthropic.ToolResultBlockParam{
				ToolUseID: part.ToolResult.ToolCallID,
				IsError:   anthropic.Bool(part.ToolResult.IsError),
			}
			if part.ToolResult.Content != "" {
				result.Content = []anthropic.ToolResultBlockParamContentUnion{
					{OfText: &anthropic.TextBlockParam{Text: part.ToolResult.Content}},
				}
			}
			blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolResult: &result})
		}
	}
	return blocks
}

// toolParam splits a JSON schema into the fields the SDK models and passes
// everything else through untouched.
func toolParam(td ToolDefinition) *anthropic.ToolParam {
	var schema anthropic.ToolInputSchemaParam
	for key, value := range td.Parameters {
		switch key {
		case "type":
		case "properties":
			schema.Properties = value
		case "required":
			schema.Required = stringList(value)
		default:
			if schema.ExtraFields == nil {
				schema.ExtraFields = make(map[string]any)
			}
			schema.ExtraFields[key] = value
		}
	}
	tool := &anthropic.ToolParam{Name: td.Name, InputSchema: schema}
	if td.Description != "" {
		tool.Description = anthropic.String(td.Description)
	}
	return tool
}

func stringList(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (a *AnthropicAdapter) buildResponse(msg *anthropic.Message) *Response {
	parts := make([]ContentPart, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			parts = append(parts, TextPart(block.Text))
		case "tool_use":
			args := block.Input
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			parts = append(parts, ToolCallPart(block.ID, block.Name, args))
		default:
			log.Debug().Str("block_type", block.Type).Msg("anthropic: skipping unsupported content block")
		}
	}

	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &Response{
		ID:       msg.ID,
		Model:    string(msg.Model),
		Provider: a.Name(),
		Message: Message{
			Role:    RoleAssistant,
			Content: parts,
		},
		FinishReason: mapStopReason(string(msg.StopReason)),
		Usage:        Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}
}

func mapStopReason(raw string) FinishReason {
	switch anthropic.StopReason(raw) {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return FinishReason{Reason: "stop", Raw: raw}
	case anthropic.StopReasonMaxTokens:
		return FinishReason{Reason: "length", Raw: raw}
	case anthropic.StopReasonToolUse:
		return FinishReason{Reason: "tool_calls", Raw: raw}
	default:
		return FinishReason{Reason: "other", Raw: raw}
	}
}

// translateError maps SDK failures onto this package's error types.
func (a *AnthropicAdapter) translateError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &AbortError{SDKError{Message: "request cancelled", Cause: ctx.Err()}}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return a.statusError(apiErr)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &RequestTimeoutError{SDKError{Message: "request timed out", Cause: err}}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &RequestTimeoutError{SDKError{Message: "request timed out", Cause: err}}
	case errors.As(err, &netErr):
		return &NetworkError{SDKError{Message: "failed to send request", Cause: err}}
	}
	return &InvalidResponseError{SDKError{Message: "unusable anthropic response", Cause: err}}
}

func (a *AnthropicAdapter) statusError(apiErr *anthropic.Error) error {
	var body anthropic.ErrorResponse
	message, code := strings.TrimSpace(apiErr.RawJSON()), ""
	if err := json.Unmarshal([]byte(apiErr.RawJSON()), &body); err == nil && body.Error.Message != "" {
		message, code = body.Error.Message, body.Error.Type
	}

	var retryAfter *float64
	if apiErr.Response != nil {
		if secs, err := strconv.ParseFloat(apiErr.Response.Header.Get("retry-after"), 64); err == nil {
			retryAfter = &secs
		}
	}

	mapped := ErrorFromStatusCode(apiErr.StatusCode, message, a.Name(), code, retryAfter)
	return withCause(mapped, apiErr)
}
