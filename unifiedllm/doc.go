// Package unifiedllm is the backend boundary for toolchat: provider-agnostic
// message types, a Client that sends requests to one provider adapter
// through middleware, and a typed error hierarchy.
//
// AnthropicAdapter is built on github.com/anthropics/anthropic-sdk-go.
// GollmAdapter wraps github.com/teilomillet/gollm for the other providers
// gollm supports.
//
//	adapter, _ := unifiedllm.NewAnthropicAdapter(os.Getenv("ANTHROPIC_API_KEY"))
//	client := unifiedllm.NewClient(adapter,
//	    unifiedllm.RetryMiddleware(unifiedllm.DefaultRetryPolicy()),
//	    unifiedllm.LoggingMiddleware(log.Logger),
//	)
//
//	resp, _ := client.Complete(ctx, unifiedllm.Request{
//	    Model: "claude-3-7-sonnet-latest",
//	    Messages: []unifiedllm.Message{{
//	        Role:    unifiedllm.RoleUser,
//	        Content: []unifiedllm.ContentPart{unifiedllm.TextPart("Hello")},
//	    }},
//	})
//	fmt.Println(resp.Text())
//
// Tool calls arrive as ContentToolCall parts of the assistant message; their
// results go back as ContentToolResult parts of the next user message.
package unifiedllm
