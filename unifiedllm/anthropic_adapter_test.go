package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	path    string
	headers http.Header
	body    map[string]interface{}
}

func newAnthropicServer(t *testing.T, status int, respBody string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			captured.path = r.URL.Path
			captured.headers = r.Header.Clone()
			require.NoError(t, json.Unmarshal(raw, &captured.body))
		}
		w.Header().Set("content-type", "application/json")
		if status == http.StatusTooManyRequests {
			w.Header().Set("retry-after", "3")
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAnthropicAdapter(t *testing.T, srv *httptest.Server, opts ...AnthropicOption) *AnthropicAdapter {
	t.Helper()
	a, err := NewAnthropicAdapter("test-key", append([]AnthropicOption{WithAnthropicBaseURL(srv.URL + "/v1/")}, opts...)...)
	require.NoError(t, err)
	return a
}

func TestNewAnthropicAdapterRequiresKey(t *testing.T) {
	_, err := NewAnthropicAdapter("   ")
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestAnthropicCompleteTextResponse(t *testing.T) {
	var captured capturedRequest
	srv := newAnthropicServer(t, http.StatusOK, `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-7-sonnet-20250219",
		"content": [{"type": "text", "text": "Hello there"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 3}
	}`, &captured)
	a := newTestAnthropicAdapter(t, srv)

	resp, err := a.Complete(context.Background(), Request{
		Messages: []Message{SystemMessage("be brief"), userMessage("Hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages", captured.path)
	assert.Equal(t, "test-key", captured.headers.Get("x-api-key"))
	assert.Equal(t, DefaultAnthropicVersion, captured.headers.Get("anthropic-version"))
	assert.Equal(t, "claude-3-7-sonnet-latest", captured.body["model"])
	assert.EqualValues(t, DefaultAnthropicMaxTokens, captured.body["max_tokens"])
	assert.Equal(t, []interface{}{map[string]interface{}{"type": "text", "text": "be brief"}}, captured.body["system"])
	assert.NotContains(t, captured.body, "tools")
	assert.NotContains(t, captured.body, "temperature")

	msgs := captured.body["messages"].([]interface{})
	require.Len(t, msgs, 1)
	first := msgs[0].(map[string]interface{})
	assert.Equal(t, "user", first["role"])

	assert.Equal(t, "msg_01", resp.ID)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, "Hello there", resp.Text())
	assert.Equal(t, "stop", resp.FinishReason.Reason)
	assert.Equal(t, "end_turn", resp.FinishReason.Raw)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 3, TotalTokens: 15}, resp.Usage)
}

func TestAnthropicCompleteToolRoundTrip(t *testing.T) {
	var captured capturedRequest
	srv := newAnthropicServer(t, http.StatusOK, `{
		"id": "msg_02",
		"model": "claude-3-7-sonnet-20250219",
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "toolu_1", "name": "read_file", "input": {"path": "a.txt"}},
			{"type": "thinking", "thinking": "hidden"},
			{"type": "tool_use", "id": "toolu_2", "name": "list_files", "input": {}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`, &captured)
	a := newTestAnthropicAdapter(t, srv)

	maxTokens := 2048
	temperature := 0.2
	req := Request{
		Model:       "claude-3-5-haiku-latest",
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		Messages: []Message{
			userMessage("what is in a.txt?"),
			{Role: RoleAssistant, Content: []ContentPart{
				ToolCallPart("toolu_0", "read_file", json.RawMessage(`{"path":"a.txt"}`)),
			}},
			{Role: RoleUser, Content: []ContentPart{
				ToolResultPart("toolu_0", "no such file", true),
			}},
		},
		ToolDefs: []ToolDefinition{{
			Name:        "read_file",
			Description: "Read a file",
			Parameters:  map[string]interface{}{"type": "object"},
		}},
	}

	resp, err := a.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "claude-3-5-haiku-latest", captured.body["model"])
	assert.EqualValues(t, 2048, captured.body["max_tokens"])
	assert.Equal(t, 0.2, captured.body["temperature"])
	assert.NotContains(t, captured.body, "tool_choice")

	tools := captured.body["tools"].([]interface{})
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]interface{})
	assert.Equal(t, "read_file", tool["name"])
	assert.Equal(t, "Read a file", tool["description"])
	assert.Equal(t, map[string]interface{}{"type": "object"}, tool["input_schema"])

	msgs := captured.body["messages"].([]interface{})
	require.Len(t, msgs, 3)
	assistant := msgs[1].(map[string]interface{})
	assert.Equal(t, "assistant", assistant["role"])
	use := assistant["content"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "tool_use", use["type"])
	assert.Equal(t, "toolu_0", use["id"])
	assert.Equal(t, map[string]interface{}{"path": "a.txt"}, use["input"])

	results := msgs[2].(map[string]interface{})
	assert.Equal(t, "user", results["role"])
	result := results["content"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "tool_result", result["type"])
	assert.Equal(t, "toolu_0", result["tool_use_id"])
	assert.Equal(t, []interface{}{map[string]interface{}{"type": "text", "text": "no such file"}}, result["content"])
	assert.Equal(t, true, result["is_error"])

	assert.Equal(t, "tool_calls", resp.FinishReason.Reason)
	require.Len(t, resp.Message.Content, 3, "unsupported blocks are skipped")
	assert.Equal(t, ContentText, resp.Message.Content[0].Kind)
	calls := resp.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.JSONEq(t, `{"path": "a.txt"}`, string(calls[0].Arguments))
	assert.Equal(t, "toolu_2", calls[1].ID)
	assert.JSONEq(t, `{}`, string(calls[1].Arguments))
}

func TestAnthropicEmptyToolOutputSendsNoContent(t *testing.T) {
	var captured capturedRequest
	srv := newAnthropicServer(t, http.StatusOK, `{"id":"msg_03","content":[],"stop_reason":"end_turn"}`, &captured)
	a := newTestAnthropicAdapter(t, srv)

	_, err := a.Complete(context.Background(), Request{Messages: []Message{
		userMessage("read it"),
		{Role: RoleAssistant, Content: []ContentPart{ToolCallPart("t1", "read_file", nil)}},
		{Role: RoleUser, Content: []ContentPart{ToolResultPart("t1", "", false)}},
	}})
	require.NoError(t, err)

	msgs := captured.body["messages"].([]interface{})
	use := msgs[1].(map[string]interface{})["content"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{}, use["input"], "missing arguments go out as an empty object")
	result := msgs[2].(map[string]interface{})["content"].([]interface{})[0].(map[string]interface{})
	assert.NotContains(t, result, "content")
}

func TestAnthropicToolSchema(t *testing.T) {
	var captured capturedRequest
	srv := newAnthropicServer(t, http.StatusOK, `{"id":"msg_04","content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn"}`, &captured)
	a := newTestAnthropicAdapter(t, srv)

	_, err := a.Complete(context.Background(), Request{
		Messages: []Message{userMessage("hi")},
		ToolDefs: []ToolDefinition{{
			Name:        "edit_file",
			Description: "Edit a file",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{"type": "string"},
				},
				"required":             []interface{}{"path"},
				"additionalProperties": false,
			},
		}},
	})
	require.NoError(t, err)

	tool := captured.body["tools"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string"},
		},
		"required":             []interface{}{"path"},
		"additionalProperties": false,
	}, tool["input_schema"])
}

func TestAnthropicCompleteEmptyContent(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusOK, `{"content":[],"stop_reason":"end_turn"}`, nil)
	a := newTestAnthropicAdapter(t, srv)

	resp, err := a.Complete(context.Background(), Request{Messages: []Message{userMessage("hi")}})
	require.NoError(t, err)
	assert.Empty(t, resp.Message.Content)
	assert.Equal(t, "stop", resp.FinishReason.Reason)
}

func TestAnthropicCompleteErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
		code     string
		message  string
	}{
		{
			name:     "authentication",
			status:   http.StatusUnauthorized,
			body:     `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			expected: "*unifiedllm.AuthenticationError",
			code:     "authentication_error",
			message:  "invalid x-api-key",
		},
		{
			name:     "overloaded",
			status:   529,
			body:     `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			expected: "*unifiedllm.OverloadedError",
			code:     "overloaded_error",
			message:  "Overloaded",
		},
		{
			name:     "bad gateway",
			status:   http.StatusBadGateway,
			body:     `{"type":"error","error":{"type":"api_error","message":"upstream unavailable"}}`,
			expected: "*unifiedllm.ServerError",
			code:     "api_error",
			message:  "upstream unavailable",
		},
		{
			name:     "error without message",
			status:   http.StatusBadRequest,
			body:     `{"detail":"nope"}`,
			expected: "*unifiedllm.InvalidRequestError",
			message:  `{"detail":"nope"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAnthropicServer(t, tt.status, tt.body, nil)
			a := newTestAnthropicAdapter(t, srv)

			_, err := a.Complete(context.Background(), Request{Messages: []Message{userMessage("hi")}})
			require.Error(t, err)
			assert.Equal(t, tt.expected, fmt.Sprintf("%T", err))
			assert.Contains(t, err.Error(), tt.message)

			var pe *ProviderError
			switch e := err.(type) {
			case *AuthenticationError:
				pe = &e.ProviderError
			case *OverloadedError:
				pe = &e.ProviderError
			case *ServerError:
				pe = &e.ProviderError
			case *InvalidRequestError:
				pe = &e.ProviderError
			}
			require.NotNil(t, pe)
			assert.Equal(t, tt.code, pe.ErrorCode)
			assert.Equal(t, "anthropic", pe.Provider)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.NotNil(t, errors.Unwrap(err), "the SDK error stays reachable")
		})
	}
}

func TestAnthropicCompleteRateLimitRetryAfter(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusTooManyRequests,
		`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, nil)
	a := newTestAnthropicAdapter(t, srv)

	_, err := a.Complete(context.Background(), Request{Messages: []Message{userMessage("hi")}})
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	require.NotNil(t, rl.RetryAfter)
	assert.Equal(t, 3.0, *rl.RetryAfter)
	assert.True(t, IsRetryable(err))
}

func TestAnthropicCompleteMalformedBody(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusOK, `{"content": "not-a-list"`, nil)
	a := newTestAnthropicAdapter(t, srv)

	_, err := a.Complete(context.Background(), Request{Messages: []Message{userMessage("hi")}})
	var invalid *InvalidResponseError
	assert.True(t, errors.As(err, &invalid))
	assert.False(t, IsRetryable(err))
}

func TestAnthropicCompleteNetworkFailure(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusOK, `{}`, nil)
	a := newTestAnthropicAdapter(t, srv)
	srv.Close()

	_, err := a.Complete(context.Background(), Request{Messages: []Message{userMessage("hi")}})
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.True(t, IsRetryable(err))
}

func TestAnthropicCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	a := newTestAnthropicAdapter(t, srv, WithAnthropicTimeout(50*time.Millisecond))

	_, err := a.Complete(context.Background(), Request{Messages: []Message{userMessage("hi")}})
	var timeout *RequestTimeoutError
	assert.True(t, errors.As(err, &timeout), "got %T: %v", err, err)
}

func TestAnthropicCompleteCancelled(t *testing.T) {
	srv := newAnthropicServer(t, http.StatusOK, `{}`, nil)
	a := newTestAnthropicAdapter(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Complete(ctx, Request{Messages: []Message{userMessage("hi")}})
	var abort *AbortError
	assert.True(t, errors.As(err, &abort))
}

func TestWithAnthropicBaseURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://proxy.example/v1/", "https://proxy.example"},
		{"https://proxy.example/", "https://proxy.example"},
		{" https://proxy.example/anthropic ", "https://proxy.example/anthropic"},
		{"", DefaultAnthropicBaseURL},
	}
	for _, tt := range tests {
		cfg := anthropicConfig{baseURL: DefaultAnthropicBaseURL}
		WithAnthropicBaseURL(tt.in)(&cfg)
		assert.Equal(t, tt.want, cfg.baseURL, tt.in)
	}
}
