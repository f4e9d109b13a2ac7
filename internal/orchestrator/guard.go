package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/opentalon/leadgate/internal/gateway"
)

const (
	DefaultCallTimeout   = 30 * time.Second
	DefaultMaxErrorBytes = 4 * 1024
)

// Guard bounds a single capability invocation in time and size.
type Guard struct {
	Timeout       time.Duration
	MaxErrorBytes int
}

func NewGuard(timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Guard{Timeout: timeout, MaxErrorBytes: DefaultMaxErrorBytes}
}

// Execute runs the capability on g under the guard timeout. A capability that
// outlives the timeout is abandoned; its context is cancelled and its result dropped.
func (g *Guard) Execute(ctx context.Context, gw gateway.Gateway, capability string, params gateway.Params) gateway.Result {
	callCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	done := make(chan gateway.Result, 1)
	go func() {
		// Gateways implemented outside Base may not recover on their own.
		defer func() {
			if r := recover(); r != nil {
				done <- gateway.Result{Error: fmt.Sprint(r)}
			}
		}()
		done <- gw.Execute(callCtx, capability, params)
	}()

	select {
	case res := <-done:
		return g.truncate(res)
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return gateway.Fail("capability %s cancelled: %v", capability, ctx.Err())
		}
		return gateway.Fail("capability %s timed out after %s", capability, g.Timeout)
	}
}

func (g *Guard) truncate(res gateway.Result) gateway.Result {
	if g.MaxErrorBytes > 0 && len(res.Error) > g.MaxErrorBytes {
		res.Error = res.Error[:g.MaxErrorBytes] + " [truncated]"
	}
	return res
}
