package agentloop

import "github.com/pkg/errors"

// ErrMalformedResponse marks a backend response the gateway cannot turn
// into segments.
var ErrMalformedResponse = errors.New("malformed model response")

// GatewayError is a failed inference. It ends the session.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return "model gateway: " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
