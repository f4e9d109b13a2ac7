package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Schema is the JSON-Schema subset used to describe capability parameters to the model.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`

	// PropertyOrder lists the keys of Properties in declaration order.
	PropertyOrder []string `json:"-"`
}

// Declaration describes one capability in the tool manifest.
type Declaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// RequiredParams returns the parameter names the capability cannot run without.
func (d Declaration) RequiredParams() []string {
	if d.Parameters == nil {
		return nil
	}
	return d.Parameters.Required
}

// Params holds the arguments of a function call.
type Params map[string]any

// String returns the trimmed string form of a parameter, or "" if it is absent.
// Numbers are formatted without exponent so identifiers sent as JSON numbers survive.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Result is the uniform outcome of a capability execution.
type Result struct {
	Success bool           `json:"success"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// OK returns a successful result carrying payload.
func OK(payload map[string]any) Result {
	return Result{Success: true, Payload: payload}
}

// Fail returns a failed result with a formatted error message.
func Fail(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// FailWith returns a failed result that still carries a payload, for capabilities
// whose failures report default field values.
func FailWith(payload map[string]any, format string, args ...any) Result {
	return Result{Payload: payload, Error: fmt.Sprintf(format, args...)}
}

// Capability is one function exposed to the model.
type Capability interface {
	Declaration() Declaration
	Execute(ctx context.Context, params Params) Result
}

// CapabilityFunc adapts a plain function into a Capability.
type CapabilityFunc struct {
	Decl Declaration
	Fn   func(ctx context.Context, params Params) Result
}

func (c CapabilityFunc) Declaration() Declaration { return c.Decl }

func (c CapabilityFunc) Execute(ctx context.Context, params Params) Result {
	return c.Fn(ctx, params)
}

// Gateway is a named bundle of capabilities. Execute must be total: it returns a
// Result for every input and never panics.
type Gateway interface {
	Name() string
	Description() string
	Declarations() []Declaration
	Has(capability string) bool
	Validate(capability string, params Params) bool
	Execute(ctx context.Context, capability string, params Params) Result
}

// Info summarizes a gateway for diagnostics.
type Info struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Total        int      `json:"total"`
}

// Describe builds the diagnostic summary of g.
func Describe(g Gateway) Info {
	decls := g.Declarations()
	names := make([]string, 0, len(decls))
	for _, d := range decls {
		names = append(names, d.Name)
	}
	return Info{
		Name:         g.Name(),
		Description:  g.Description(),
		Capabilities: names,
		Total:        len(names),
	}
}
