package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/opentalon/leadgate/internal/gateway"
)

// rawGateway implements gateway.Gateway without the Base guards.
type rawGateway struct {
	exec func(ctx context.Context) gateway.Result
}

func (r *rawGateway) Name() string { return "raw" }
func (r *rawGateway) Description() string { return "" }
func (r *rawGateway) Declarations() []gateway.Declaration { return []gateway.Declaration{{Name: "raw"}} }
func (r *rawGateway) Has(name string) bool { return name == "raw" }
func (r *rawGateway) Validate(string, gateway.Params) bool { return true }
func (r *rawGateway) Execute(ctx context.Context, _ string, _ gateway.Params) gateway.Result {
	return r.exec(ctx)
}

func TestGuardRecoversForeignPanic(t *testing.T) {
	g := NewGuard(time.Second)
	gw := &rawGateway{exec: func(context.Context) gateway.Result { panic("raw failure") }}
	res := g.Execute(context.Background(), gw, "raw", nil)
	if res.Success || res.Error != "raw failure" {
		t.Errorf("result = %+v", res)
	}
}

func TestGuardTruncatesLongErrors(t *testing.T) {
	g := NewGuard(time.Second)
	g.MaxErrorBytes = 10
	gw := &rawGateway{exec: func(context.Context) gateway.Result {
		return gateway.Fail("%s", strings.Repeat("x", 100))
	}}
	res := g.Execute(context.Background(), gw, "raw", nil)
	if res.Error != strings.Repeat("x", 10)+" [truncated]" {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestGuardTimeout(t *testing.T) {
	g := NewGuard(10 * time.Millisecond)
	gw := &rawGateway{exec: func(context.Context) gateway.Result {
		time.Sleep(200 * time.Millisecond)
		return gateway.OK(nil)
	}}
	res := g.Execute(context.Background(), gw, "raw", nil)
	if res.Success || !strings.Contains(res.Error, "timed out after 10ms") {
		t.Errorf("result = %+v", res)
	}
}

func TestGuardParentCancelled(t *testing.T) {
	g := NewGuard(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := &rawGateway{exec: func(ctx context.Context) gateway.Result {
		<-ctx.Done()
		time.Sleep(100 * time.Millisecond)
		return gateway.OK(nil)
	}}
	res := g.Execute(ctx, gw, "raw", nil)
	if res.Success || !strings.Contains(res.Error, "cancelled") {
		t.Errorf("result = %+v", res)
	}
}

func TestNewGuardDefaults(t *testing.T) {
	g := NewGuard(0)
	if g.Timeout != DefaultCallTimeout {
		t.Errorf("Timeout = %s", g.Timeout)
	}
}
