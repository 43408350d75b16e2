package unifiedllm

import (
	"context"
	"fmt"
	"io"
)

// ProviderAdapter is one backend, such as the Anthropic Messages API.
type ProviderAdapter interface {
	// Name is the provider identifier stamped on requests and responses.
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Middleware wraps the call to the adapter. It may inspect or change the
// request, and must call next to reach the backend.
type Middleware func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error)

// Client sends requests to a single adapter through a middleware chain.
type Client struct {
	adapter ProviderAdapter
	chain   func(context.Context, Request) (*Response, error)
}

// NewClient builds the chain once. The first middleware is the outermost.
func NewClient(adapter ProviderAdapter, middleware ...Middleware) *Client {
	c := &Client{adapter: adapter, chain: adapter.Complete}
	for i := len(middleware) - 1; i >= 0; i-- {
		mw, next := middleware[i], c.chain
		c.chain = func(ctx context.Context, req Request) (*Response, error) {
			return mw(ctx, req, next)
		}
	}
	return c
}

// Provider names the adapter behind the client.
func (c *Client) Provider() string { return c.adapter.Name() }

// Complete runs req through the middleware to the adapter. A request that
// names a different provider is rejected before anything is sent.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	switch req.Provider {
	case "":
		req.Provider = c.adapter.Name()
	case c.adapter.Name():
	default:
		return nil, &ConfigurationError{SDKError{
			Message: fmt.Sprintf("client is wired to %s, request asks for %s", c.adapter.Name(), req.Provider),
		}}
	}
	return c.chain(ctx, req)
}

// Close releases the adapter if it holds resources.
func (c *Client) Close() error {
	if closer, ok := c.adapter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
