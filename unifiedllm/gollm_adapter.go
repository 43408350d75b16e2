package unifiedllm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM instance and implements ProviderAdapter.
// gollm exposes a single-prompt API, so the conversation is rendered into one
// prompt and tool calls are recovered from a JSON array in the reply.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
}

// WithAPIKey sets the API key for the adapter.
func WithAPIKey(key string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.apiKey = key
	}
}

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// NewGollmAdapter creates a GollmAdapter for the given provider. An empty
// apiKey lets gollm fall back to its environment lookup.
func NewGollmAdapter(provider string, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmAdapterConfig{
		apiKey:      apiKey,
		maxTokens:   DefaultAnthropicMaxTokens,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		info := GetLatestModel(provider)
		if info == nil {
			return nil, &ConfigurationError{SDKError: SDKError{
				Message: "no default model known for provider " + provider,
			}}
		}
		model = info.ID
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // RetryMiddleware owns retries
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: "failed to create gollm LLM for provider " + provider,
			Cause:   err,
		}}
	}

	return &GollmAdapter{provider: provider, llm: llm, model: model}, nil
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Complete renders the request into a gollm prompt and generates a reply.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.translateRequest(req)
	a.applyRequestOptions(req)

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &AbortError{SDKError: SDKError{Message: "request cancelled", Cause: ctx.Err()}}
		}
		return nil, a.translateError(err)
	}

	return a.buildResponse(req, text), nil
}

// translateRequest flattens the conversation into a single gollm prompt.
func (a *GollmAdapter) translateRequest(req Request) *gollm.Prompt {
	var lines []string
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			continue
		}
		for _, part := range msg.Content {
			switch part.Kind {
			case ContentText:
				if part.Text == "" {
					continue
				}
				if msg.Role == RoleAssistant {
					lines = append(lines, "[Assistant]: "+part.Text)
				} else {
					lines = append(lines, part.Text)
				}
			case ContentToolCall:
				if part.ToolCall != nil {
					lines = append(lines, "[Tool Call] "+part.ToolCall.Name+"("+string(part.ToolCall.Arguments)+")")
				}
			case ContentToolResult:
				if part.ToolResult == nil {
					continue
				}
				prefix := "[Tool Result]"
				if part.ToolResult.IsError {
					prefix = "[Tool Error]"
				}
				lines = append(lines, prefix+": "+part.ToolResult.Content)
			}
		}
	}

	var promptOpts []gollm.PromptOption
	if system := req.SystemPrompt(); system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}
	if len(req.ToolDefs) > 0 {
		tools := make([]gollm.Tool, 0, len(req.ToolDefs))
		for _, t := range req.ToolDefs {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
	}

	return gollm.NewPrompt(strings.Join(lines, "\n"), promptOpts...)
}

func (a *GollmAdapter) applyRequestOptions(req Request) {
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}
}

// buildResponse splits the generated text into a leading text part followed
// by any tool calls found in it.
func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	calls, remaining := parseToolCalls(text)
	var parts []ContentPart
	if remaining != "" {
		parts = append(parts, TextPart(remaining))
	}
	for _, tc := range calls {
		parts = append(parts, ToolCallPart(tc.ID, tc.Name, tc.Arguments))
	}

	finish := FinishReason{Reason: "stop", Raw: "stop"}
	if len(calls) > 0 {
		finish = FinishReason{Reason: "tool_calls", Raw: "tool_calls"}
	}

	return &Response{
		ID:       "resp_" + uuid.New().String()[:8],
		Model:    model,
		Provider: a.provider,
		Message: Message{
			Role:    RoleAssistant,
			Content: parts,
		},
		FinishReason: finish,
	}
}

// parseToolCalls looks for a JSON array of {"name", "arguments"} objects in
// text. It returns the calls and the text around the array.
func parseToolCalls(text string) ([]ToolCallData, string) {
	start := strings.Index(text, `[{"name"`)
	if start == -1 {
		return nil, text
	}

	var raw []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	// the array may be followed by more prose
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&raw); err != nil {
		log.Debug().Err(err).Msg("gollm: reply contains an unparseable tool call array")
		return nil, text
	}

	calls := make([]ToolCallData, 0, len(raw))
	for _, rc := range raw {
		args := rc.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		calls = append(calls, ToolCallData{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: args,
		})
	}
	before := strings.TrimSpace(text[:start])
	after := strings.TrimSpace(text[start+int(dec.InputOffset()):])
	if before == "" || after == "" {
		return calls, before + after
	}
	return calls, before + "\n" + after
}

// gollmErrorClasses maps message fragments to status codes. gollm does not
// expose structured provider errors, so the text is all there is.
var gollmErrorClasses = []struct {
	status    int
	fragments []string
}{
	{401, []string{"401", "unauthorized", "invalid api key", "invalid key"}},
	{403, []string{"403", "forbidden"}},
	{404, []string{"404", "not found"}},
	{429, []string{"429", "rate limit"}},
	{413, []string{"context length", "too many tokens"}},
	{529, []string{"529", "overloaded"}},
	{500, []string{"500", "internal server"}},
	{408, []string{"timeout"}},
}

func (a *GollmAdapter) translateError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, class := range gollmErrorClasses {
		for _, fragment := range class.fragments {
			if strings.Contains(lower, fragment) {
				return withCause(ErrorFromStatusCode(class.status, msg, a.provider, "", nil), err)
			}
		}
	}
	return &ProviderError{
		SDKError:  SDKError{Message: msg, Cause: errors.WithStack(err)},
		Provider:  a.provider,
		Retryable: true,
	}
}
