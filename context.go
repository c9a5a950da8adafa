package goMormot

import (
	"context"

	"github.com/MrEthical07/goMormot/transport"
)

// WithRequestID attaches a correlation id to ctx. Requests sent with ctx carry
// it in X-Request-ID and audit events record it. Without one, each request
// gets a fresh UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return transport.WithRequestID(ctx, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := transport.RequestIDFromContext(ctx)
	return id
}
