package model

import (
	"context"
	"strings"

	"github.com/opentalon/leadgate/internal/gateway"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	// RoleTool marks the turn that answers the function calls of the preceding model turn.
	RoleTool Role = "tool"
)

// FunctionCall is the model's request to invoke a capability.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResult answers exactly one FunctionCall.
type FunctionResult struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name"`
	Success bool           `json:"success"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Response flattens the result into the object handed back to the model.
func (r FunctionResult) Response() map[string]any {
	out := make(map[string]any, len(r.Payload)+2)
	for k, v := range r.Payload {
		out[k] = v
	}
	out["success"] = r.Success
	if r.Error != "" {
		out["error"] = r.Error
	}
	return out
}

// Part holds exactly one of Text, FunctionCall or FunctionResult.
type Part struct {
	Text           string          `json:"text,omitempty"`
	FunctionCall   *FunctionCall   `json:"function_call,omitempty"`
	FunctionResult *FunctionResult `json:"function_result,omitempty"`
}

type Turn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

func UserText(text string) Turn {
	return Turn{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// FunctionCalls returns the calls in the turn, in emission order.
func (t Turn) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range t.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

// Text joins the text parts of the turn with newlines.
func (t Turn) Text() string {
	var texts []string
	for _, p := range t.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// GenerationConfig carries sampling parameters. Zero values are left to the endpoint default.
type GenerationConfig struct {
	Temperature     float32 `yaml:"temperature" json:"temperature,omitempty"`
	TopP            float32 `yaml:"top_p" json:"top_p,omitempty"`
	TopK            int32   `yaml:"top_k" json:"top_k,omitempty"`
	MaxOutputTokens int32   `yaml:"max_output_tokens" json:"max_output_tokens,omitempty"`
}

type Request struct {
	Turns             []Turn
	Tools             []gateway.Declaration
	SystemInstruction string
	Generation        GenerationConfig
	// WebSearch grounds the response in a web search run by the endpoint.
	WebSearch bool
}

type Usage struct {
	PromptTokens    int32 `json:"prompt_tokens"`
	CandidateTokens int32 `json:"candidate_tokens"`
	TotalTokens     int32 `json:"total_tokens"`
}

func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:    u.PromptTokens + o.PromptTokens,
		CandidateTokens: u.CandidateTokens + o.CandidateTokens,
		TotalTokens:     u.TotalTokens + o.TotalTokens,
	}
}

type Response struct {
	Turn  Turn
	Usage Usage
}

// Client sends one request to the model endpoint.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}
