package script

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opentalon/leadgate/internal/gateway"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
}

func newGateway(t *testing.T, body string, params ...ParamSpec) *gateway.Base {
	t.Helper()
	dir := t.TempDir()
	writeScript(t, dir, "cap.lua", body)
	g, err := New(Spec{
		Name:        "crm_extras",
		Description: "scripted helpers",
		Capabilities: []CapabilitySpec{
			{Name: "run", Description: "runs the script", Script: "cap.lua", Parameters: params},
		},
	}, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestScriptDeclaration(t *testing.T) {
	g := newGateway(t, `function execute(p) return {} end`,
		ParamSpec{Name: "ruc", Description: "tax id", Required: true},
		ParamSpec{Name: "limit", Type: "integer"},
	)
	decls := g.Declarations()
	if len(decls) != 1 || decls[0].Name != "run" {
		t.Fatalf("declarations = %+v", decls)
	}
	params := decls[0].Parameters
	if got := strings.Join(params.Required, ","); got != "ruc" {
		t.Errorf("required = %q", got)
	}
	if params.Properties["ruc"].Type != "string" || params.Properties["limit"].Type != "integer" {
		t.Errorf("property types = %s, %s", params.Properties["ruc"].Type, params.Properties["limit"].Type)
	}
	if strings.Join(params.PropertyOrder, ",") != "ruc,limit" {
		t.Errorf("PropertyOrder = %v", params.PropertyOrder)
	}
}

func TestScriptSuccessPayload(t *testing.T) {
	g := newGateway(t, `
function execute(params, caller)
  return {
    ruc = params.ruc,
    digits = string.len(params.ruc),
    session = caller.session_id,
    tags = { "a", "b" },
  }
end
`, ParamSpec{Name: "ruc", Required: true})

	ctx := gateway.WithCaller(context.Background(), gateway.Caller{SessionID: "s-1"})
	res := g.Execute(ctx, "run", gateway.Params{"ruc": "20123456789"})
	if !res.Success {
		t.Fatalf("execute failed: %s", res.Error)
	}
	if res.Payload["ruc"] != "20123456789" || res.Payload["digits"] != float64(11) {
		t.Errorf("payload = %v", res.Payload)
	}
	if res.Payload["session"] != "s-1" {
		t.Errorf("session = %v", res.Payload["session"])
	}
	tags, ok := res.Payload["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "a" {
		t.Errorf("tags = %#v", res.Payload["tags"])
	}
	if _, ok := res.Payload["success"]; ok {
		t.Error("success leaked into payload")
	}
}

func TestScriptReportedFailure(t *testing.T) {
	g := newGateway(t, `
function execute(params)
  return { success = false, error = "sin datos", hint = "retry" }
end
`)
	res := g.Execute(context.Background(), "run", gateway.Params{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "sin datos" {
		t.Errorf("Error = %q", res.Error)
	}
	if res.Payload["hint"] != "retry" {
		t.Errorf("payload = %v", res.Payload)
	}
}

func TestScriptErrorsBecomeFailedResults(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"runtime error", `function execute(p) error("boom") end`, "boom"},
		{"no execute", `x = 1`, "execute"},
		{"non-table return", `function execute(p) return "hi" end`, "must return a table"},
		{"syntax error", `function execute(`, "load script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newGateway(t, tt.body).Execute(context.Background(), "run", gateway.Params{})
			if res.Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("Error = %q, want substring %q", res.Error, tt.wantErr)
			}
		})
	}
}

func TestScriptEnvAllowlist(t *testing.T) {
	t.Setenv("LEADGATE_SCRIPT_TEST", "hola")
	t.Setenv("LEADGATE_SCRIPT_SECRET", "s3cret")
	dir := t.TempDir()
	writeScript(t, dir, "cap.lua", `
local osmod = require("os")
function execute(p)
  return {
    value = os.getenv("LEADGATE_SCRIPT_TEST"),
    same = osmod.getenv("LEADGATE_SCRIPT_TEST"),
    secret_hidden = os.getenv("LEADGATE_SCRIPT_SECRET") == nil,
  }
end
`)
	g, err := New(Spec{
		Name:         "crm_extras",
		Env:          []string{"LEADGATE_SCRIPT_TEST"},
		Capabilities: []CapabilitySpec{{Name: "run", Script: "cap.lua"}},
	}, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	res := g.Execute(context.Background(), "run", gateway.Params{})
	if !res.Success {
		t.Fatalf("execute failed: %s", res.Error)
	}
	if res.Payload["value"] != "hola" || res.Payload["same"] != "hola" {
		t.Errorf("payload = %v", res.Payload)
	}
	if res.Payload["secret_hidden"] != true {
		t.Error("variable outside the allowlist was readable")
	}
}

func TestScriptEnvDeniedByDefault(t *testing.T) {
	t.Setenv("LEADGATE_SCRIPT_TEST", "hola")
	g := newGateway(t, `function execute(p) return { hidden = os.getenv("LEADGATE_SCRIPT_TEST") == nil } end`)
	res := g.Execute(context.Background(), "run", gateway.Params{})
	if !res.Success || res.Payload["hidden"] != true {
		t.Errorf("res = %+v", res)
	}
}

func TestScriptNoExecuteOS(t *testing.T) {
	g := newGateway(t, `function execute(p) return { has_exec = os.execute ~= nil } end`)
	res := g.Execute(context.Background(), "run", gateway.Params{})
	if !res.Success {
		t.Fatalf("execute failed: %s", res.Error)
	}
	if res.Payload["has_exec"] != false {
		t.Error("os.execute must not be exposed")
	}
}

func TestScriptCancelledContext(t *testing.T) {
	g := newGateway(t, `function execute(p) while true do end end`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := g.Execute(ctx, "run", gateway.Params{})
	if res.Success {
		t.Fatal("expected failure on cancelled context")
	}
}

func TestNewRejectsMissingScript(t *testing.T) {
	_, err := New(Spec{
		Name:         "broken",
		Capabilities: []CapabilitySpec{{Name: "x", Script: "missing.lua"}},
	}, t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error for missing script")
	}
	if _, err := New(Spec{}, t.TempDir(), nil); err == nil {
		t.Error("expected error for unnamed gateway")
	}
}
