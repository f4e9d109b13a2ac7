package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/opentalon/leadgate/internal/gateway"
)

const (
	DefaultGeminiModel   = "gemini-2.0-flash-exp"
	DefaultGeminiTimeout = 30 * time.Second
)

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type GeminiOption func(*GeminiClient)

func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(g *GeminiClient) { g.httpClient = c }
}

// GeminiClient talks to the Gemini API through the genai SDK. The SDK client is
// created on first use, so a missing API key surfaces as ErrMissingAPIKey from
// Generate instead of failing process startup.
type GeminiClient struct {
	cfg        GeminiConfig
	httpClient *http.Client

	mu     sync.Mutex
	client *genai.Client
}

func NewGemini(cfg GeminiConfig, opts ...GeminiOption) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGeminiTimeout
	}
	g := &GeminiClient{cfg: cfg}
	for _, opt := range opts {
		opt(g)
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return g
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string { return g.cfg.Model }

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	cc := &genai.ClientConfig{
		APIKey:     g.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.cfg.BaseURL != "" {
		base := g.cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

func (g *GeminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := client.Models.GenerateContent(ctx, g.cfg.Model, toContents(req.Turns), toConfig(req))
	if err != nil {
		return nil, endpointError(err)
	}
	return fromResponse(resp)
}

func toContents(turns []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := string(t.Role)
		if t.Role == RoleTool {
			// Gemini expects function responses in a user turn.
			role = string(RoleUser)
		}
		c := &genai.Content{Role: role}
		for _, p := range t.Parts {
			switch {
			case p.FunctionCall != nil:
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   p.FunctionCall.ID,
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				}})
			case p.FunctionResult != nil:
				c.Parts = append(c.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       p.FunctionResult.ID,
					Name:     p.FunctionResult.Name,
					Response: p.FunctionResult.Response(),
				}})
			default:
				c.Parts = append(c.Parts, &genai.Part{Text: p.Text})
			}
		}
		contents = append(contents, c)
	}
	return contents
}

func toConfig(req *Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: req.Generation.MaxOutputTokens,
	}
	if v := req.Generation.Temperature; v > 0 {
		cfg.Temperature = &v
	}
	if v := req.Generation.TopP; v > 0 {
		cfg.TopP = &v
	}
	if req.Generation.TopK > 0 {
		k := float32(req.Generation.TopK)
		cfg.TopK = &k
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, d := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  toSchema(d.Parameters),
			})
		}
		cfg.Tools = append(cfg.Tools, &genai.Tool{FunctionDeclarations: decls})
	}
	if req.WebSearch {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	return cfg
}

var schemaTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"string":  genai.TypeString,
	"integer": genai.TypeInteger,
	"number":  genai.TypeNumber,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
}

func toSchema(s *gateway.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        schemaTypes[s.Type],
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	if out.Type == "" {
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toSchema(v)
		}
	}
	return out
}

func fromResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}
	turn := Turn{Role: RoleModel}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		switch {
		case p.FunctionCall != nil:
			turn.Parts = append(turn.Parts, Part{FunctionCall: &FunctionCall{
				ID:   p.FunctionCall.ID,
				Name: p.FunctionCall.Name,
				Args: p.FunctionCall.Args,
			}})
		case p.Text != "":
			turn.Parts = append(turn.Parts, Part{Text: p.Text})
		}
	}
	out := &Response{Turn: turn}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:    u.PromptTokenCount,
			CandidateTokens: u.CandidatesTokenCount,
			TotalTokens:     u.TotalTokenCount,
		}
	}
	return out, nil
}

// endpointError maps SDK API errors onto EndpointError so callers see the HTTP status.
func endpointError(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch apiErr := any(e).(type) {
		case genai.APIError:
			return &EndpointError{StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
		case *genai.APIError:
			if apiErr != nil {
				return &EndpointError{StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
			}
		}
	}
	return fmt.Errorf("model request: %w", err)
}
