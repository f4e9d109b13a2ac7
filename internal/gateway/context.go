package gateway

import "context"

type callerKey struct{}

// Caller identifies who triggered a run. It travels with the request context so
// gateways never hold per-call state.
type Caller struct {
	UserID    string
	SessionID string
	Metadata  map[string]string
}

// WithCaller returns a context carrying c. An empty caller leaves ctx unchanged.
func WithCaller(ctx context.Context, c Caller) context.Context {
	if c.UserID == "" && c.SessionID == "" && len(c.Metadata) == 0 {
		return ctx
	}
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx, if any.
func CallerFrom(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
