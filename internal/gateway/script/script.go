// Package script exposes operator-written Lua scripts as gateway capabilities.
package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/opentalon/leadgate/internal/gateway"
)

// ParamSpec declares one parameter of a scripted capability.
type ParamSpec struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	Enum        []string `yaml:"enum"`
}

// CapabilitySpec binds a capability declaration to the Lua file implementing it.
type CapabilitySpec struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Script      string      `yaml:"script"`
	Parameters  []ParamSpec `yaml:"parameters"`
}

// Spec describes a scripted gateway. Env lists the environment variables its
// scripts may read through os.getenv; every other name reads as nil.
type Spec struct {
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	Env          []string         `yaml:"env"`
	Capabilities []CapabilitySpec `yaml:"capabilities"`
}

// New builds a gateway whose capabilities run Lua scripts. Script paths are
// resolved against baseDir and must exist.
func New(spec Spec, baseDir string, logger *zap.Logger) (*gateway.Base, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("script gateway: name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	env := make(map[string]bool, len(spec.Env))
	for _, name := range spec.Env {
		env[name] = true
	}
	caps := make([]gateway.Capability, 0, len(spec.Capabilities))
	for _, cs := range spec.Capabilities {
		c, err := newCapability(cs, baseDir, env, logger)
		if err != nil {
			return nil, fmt.Errorf("script gateway %s: %w", spec.Name, err)
		}
		caps = append(caps, c)
	}
	return gateway.NewBase(spec.Name, spec.Description, logger, caps...), nil
}

type capability struct {
	decl   gateway.Declaration
	path   string
	env    map[string]bool
	logger *zap.Logger
}

func newCapability(cs CapabilitySpec, baseDir string, env map[string]bool, logger *zap.Logger) (*capability, error) {
	if cs.Name == "" {
		return nil, fmt.Errorf("capability without name")
	}
	path := cs.Script
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("capability %s: script: %w", cs.Name, err)
	}
	return &capability{
		decl:   gateway.Declaration{Name: cs.Name, Description: cs.Description, Parameters: paramSchema(cs.Parameters)},
		path:   path,
		env:    env,
		logger: logger.With(zap.String("capability", cs.Name), zap.String("script", path)),
	}, nil
}

func paramSchema(params []ParamSpec) *gateway.Schema {
	s := &gateway.Schema{Type: "object", Properties: make(map[string]*gateway.Schema, len(params))}
	for _, p := range params {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		s.Properties[p.Name] = &gateway.Schema{Type: typ, Description: p.Description, Enum: p.Enum}
		s.PropertyOrder = append(s.PropertyOrder, p.Name)
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

func (c *capability) Declaration() gateway.Declaration { return c.decl }

// Execute loads the script into a fresh Lua state and calls execute(params, caller).
// The script returns a table; success and error are lifted into the Result and
// every other key becomes payload.
func (c *capability) Execute(ctx context.Context, params gateway.Params) gateway.Result {
	L := newState(c.env)
	defer L.Close()
	L.SetContext(ctx)
	L.SetGlobal("log", L.NewFunction(func(ls *lua.LState) int {
		c.logger.Info(ls.CheckString(1))
		return 0
	}))

	if err := L.DoFile(c.path); err != nil {
		return gateway.Fail("load script: %v", err)
	}
	fn := L.GetGlobal("execute")
	if fn.Type() != lua.LTFunction {
		return gateway.Fail("script must define global function execute(params), got %s", fn.Type().String())
	}

	caller, _ := gateway.CallerFrom(ctx)
	L.Push(fn)
	L.Push(toLua(L, map[string]any(params)))
	L.Push(toLua(L, map[string]any{"user_id": caller.UserID, "session_id": caller.SessionID}))
	if err := L.PCall(2, 1, nil); err != nil {
		return gateway.Fail("execute(): %v", err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return gateway.Fail("execute() must return a table, got %s", ret.Type().String())
	}
	out, _ := fromLua(tbl).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	success := true
	if v, ok := out["success"].(bool); ok {
		success = v
	}
	errMsg, _ := out["error"].(string)
	delete(out, "success")
	delete(out, "error")
	if len(out) == 0 {
		out = nil
	}
	if !success {
		if errMsg == "" {
			errMsg = "script reported failure"
		}
		return gateway.FailWith(out, "%s", errMsg)
	}
	return gateway.OK(out)
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(t)
	case bool:
		return lua.LBool(t)
	case float64:
		return lua.LNumber(t)
	case int:
		return lua.LNumber(t)
	case int64:
		return lua.LNumber(t)
	case map[string]any:
		tbl := L.NewTable()
		for k, e := range t {
			tbl.RawSetString(k, toLua(L, e))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for _, e := range t {
			tbl.Append(toLua(L, e))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprint(t))
	}
}

// fromLua converts a Lua value to Go. Tables with only 1..n integer keys become
// slices, all other tables become maps keyed by the string form of the key.
func fromLua(v lua.LValue) any {
	switch t := v.(type) {
	case lua.LString:
		return string(t)
	case lua.LNumber:
		return float64(t)
	case lua.LBool:
		return bool(t)
	case *lua.LTable:
		if n := t.MaxN(); n > 0 && n == countKeys(t) {
			arr := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, fromLua(t.RawGetInt(i)))
			}
			return arr
		}
		m := make(map[string]any)
		t.ForEach(func(k, e lua.LValue) {
			m[k.String()] = fromLua(e)
		})
		return m
	default:
		return nil
	}
}

func countKeys(t *lua.LTable) int {
	n := 0
	t.ForEach(func(lua.LValue, lua.LValue) { n++ })
	return n
}

// newState opens the base, package, table, string and math libraries. The os
// library is replaced by a minimal module, both as a global and for require.
func newState(env map[string]bool) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	loader := osModuleLoader(env)
	L.PreloadModule("os", loader)
	L.Push(L.NewFunction(loader))
	L.Call(0, 1)
	L.SetGlobal("os", L.Get(-1))
	L.Pop(1)
	return L
}

// osModuleLoader provides a minimal os module: getenv restricted to env, and time.
func osModuleLoader(env map[string]bool) lua.LGFunction {
	return func(L *lua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "getenv", L.NewFunction(func(ls *lua.LState) int {
			name := ls.CheckString(1)
			val, ok := os.LookupEnv(name)
			if !env[name] || !ok {
				ls.Push(lua.LNil)
				return 1
			}
			ls.Push(lua.LString(val))
			return 1
		}))
		L.SetField(mod, "time", L.NewFunction(func(ls *lua.LState) int {
			ls.Push(lua.LNumber(time.Now().Unix()))
			return 1
		}))
		L.Push(mod)
		return 1
	}
}
