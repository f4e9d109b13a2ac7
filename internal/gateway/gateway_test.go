package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type echoParams struct {
	Text  string `json:"text" jsonschema:"required" jsonschema_description:"Text to echo back"`
	Times int    `json:"times,omitempty" jsonschema_description:"Repetitions"`
}

func echoCapability() Capability {
	return CapabilityFunc{
		Decl: Declare("echo", "Echo the text", echoParams{}),
		Fn: func(_ context.Context, p Params) Result {
			return OK(map[string]any{"text": p.String("text")})
		},
	}
}

func panicCapability(v any) Capability {
	return CapabilityFunc{
		Decl: Declaration{Name: "explode", Description: "Always panics", Parameters: &Schema{Type: "object"}},
		Fn: func(context.Context, Params) Result {
			panic(v)
		},
	}
}

func newTestGateway() *Base {
	return NewBase("test", "test gateway", nil, echoCapability(), panicCapability("boom: upstream decoder crashed"))
}

func TestExecuteKnownCapability(t *testing.T) {
	g := newTestGateway()
	res := g.Execute(context.Background(), "echo", Params{"text": "  hola  "})
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Payload["text"] != "hola" {
		t.Errorf("text = %v", res.Payload["text"])
	}
}

func TestExecuteMissingRequiredParam(t *testing.T) {
	g := newTestGateway()
	res := g.Execute(context.Background(), "echo", Params{"times": 2})
	if res.Success {
		t.Fatal("expected failure for missing required param")
	}
	if !strings.Contains(res.Error, "invalid parameters") || !strings.Contains(res.Error, "text") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestExecuteNilParamCountsAsMissing(t *testing.T) {
	g := newTestGateway()
	res := g.Execute(context.Background(), "echo", Params{"text": nil})
	if res.Success {
		t.Fatal("expected failure for nil required param")
	}
}

func TestExecuteUnknownCapability(t *testing.T) {
	g := newTestGateway()
	res := g.Execute(context.Background(), "nope", Params{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "capability not found: nope" {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "boom: upstream decoder crashed", "boom: upstream decoder crashed"},
		{"error", errors.New("nil map write"), "nil map write"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewBase("p", "", nil, panicCapability(tt.value))
			res := g.Execute(context.Background(), "explode", nil)
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Error != tt.want {
				t.Errorf("Error = %q, want %q", res.Error, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	g := newTestGateway()
	if !g.Validate("echo", Params{"text": "x"}) {
		t.Error("expected valid")
	}
	if g.Validate("echo", Params{}) {
		t.Error("expected invalid without text")
	}
	if g.Validate("missing", Params{"text": "x"}) {
		t.Error("unknown capability should not validate")
	}
	if !g.Validate("explode", nil) {
		t.Error("capability without required params should validate")
	}
}

func TestHasAndDeclarations(t *testing.T) {
	g := newTestGateway()
	if !g.Has("echo") || !g.Has("explode") || g.Has("other") {
		t.Error("Has mismatch")
	}
	decls := g.Declarations()
	if len(decls) != 2 || decls[0].Name != "echo" || decls[1].Name != "explode" {
		t.Errorf("Declarations = %+v", decls)
	}
	info := Describe(g)
	if info.Total != 2 || info.Name != "test" {
		t.Errorf("Describe = %+v", info)
	}
}

func TestExecuteDoesNotMutateParams(t *testing.T) {
	g := newTestGateway()
	p := Params{"text": " x "}
	g.Execute(context.Background(), "echo", p)
	if len(p) != 1 || p["text"] != " x " {
		t.Errorf("params mutated: %v", p)
	}
}

func TestParamsString(t *testing.T) {
	p := Params{
		"s":   "  abc ",
		"f":   float64(20123456789),
		"i":   42,
		"b":   true,
		"nil": nil,
	}
	tests := map[string]string{
		"s":       "abc",
		"f":       "20123456789",
		"i":       "42",
		"b":       "true",
		"nil":     "",
		"missing": "",
	}
	for key, want := range tests {
		if got := p.String(key); got != want {
			t.Errorf("String(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestCallerContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := CallerFrom(ctx); ok {
		t.Error("expected no caller")
	}
	if got := WithCaller(ctx, Caller{}); got != ctx {
		t.Error("empty caller should not wrap context")
	}
	ctx = WithCaller(ctx, Caller{SessionID: "lead-7", Metadata: map[string]string{"origen": "WIX"}})
	c, ok := CallerFrom(ctx)
	if !ok || c.SessionID != "lead-7" || c.Metadata["origen"] != "WIX" {
		t.Errorf("CallerFrom = %+v, %v", c, ok)
	}
}
