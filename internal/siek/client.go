// Package siek is a client for the SIEK customer registry, which resolves a
// Peruvian RUC (11 digits) or DNI (8 digits) to a customer record.
package siek

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://apisiek.grupokossodo.com/mkt"
	DefaultTimeout = 15 * time.Second
)

var (
	ErrEmptyDocument   = errors.New("document number is empty")
	ErrInvalidDocument = errors.New("document must have 8 (DNI) or 11 (RUC) digits")
)

// NormalizeDocument strips everything but digits and checks the length.
func NormalizeDocument(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	doc := b.String()
	switch {
	case strings.TrimSpace(s) == "":
		return "", ErrEmptyDocument
	case len(doc) == 8 || len(doc) == 11:
		return doc, nil
	default:
		return doc, ErrInvalidDocument
	}
}

type Status int

const (
	StatusFailed Status = iota
	StatusFound
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Customer is the registry record, keyed by the upstream field names.
type Customer struct {
	DocumentType    string
	DocumentNumber  string
	LegalName       string
	Segment         string
	AssignedAdvisor string
	Department      string
	Province        string
	District        string
	Filter01        string
	Filter02        string
	Filter03        string
}

func customerFromMap(m map[string]any) *Customer {
	return &Customer{
		DocumentType:    field(m, "TipoDocumento"),
		DocumentNumber:  field(m, "NumeroDocumento"),
		LegalName:       field(m, "RazonSocial"),
		Segment:         field(m, "Segmento"),
		AssignedAdvisor: field(m, "AsesorAsignado"),
		Department:      field(m, "Departamento"),
		Province:        field(m, "Provincia"),
		District:        field(m, "Distrito"),
		Filter01:        field(m, "Filtro01"),
		Filter02:        field(m, "Filtro02"),
		Filter03:        field(m, "Filtro03"),
	}
}

func field(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// LookupResult is Found, NotFound or Failed. Raw keeps the upstream record as received.
type LookupResult struct {
	Status   Status
	Document string
	Customer *Customer
	Raw      map[string]any
	Reason   string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Lookup fetches the customer for document. A 404 or an empty body is NotFound;
// transport errors and other non-2xx answers are Failed. It never returns an error.
func (c *Client) Lookup(ctx context.Context, document string) LookupResult {
	doc, err := NormalizeDocument(document)
	if err != nil {
		return LookupResult{Status: StatusFailed, Document: doc, Reason: err.Error()}
	}
	if !c.Configured() {
		return LookupResult{Status: StatusFailed, Document: doc, Reason: "registry api key not configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/obtener-cliente/"+url.PathEscape(doc), nil)
	if err != nil {
		return LookupResult{Status: StatusFailed, Document: doc, Reason: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		reason := fmt.Sprintf("registry request: %v", err)
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			reason = "registry request timed out"
		}
		return LookupResult{Status: StatusFailed, Document: doc, Reason: reason}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return LookupResult{Status: StatusFailed, Document: doc, Reason: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode == http.StatusNotFound {
		return LookupResult{Status: StatusNotFound, Document: doc}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			reason = e.Error
		}
		return LookupResult{Status: StatusFailed, Document: doc, Reason: reason}
	}

	record, err := firstRecord(body)
	if err != nil {
		return LookupResult{Status: StatusFailed, Document: doc, Reason: fmt.Sprintf("decode response: %v", err)}
	}
	if len(record) == 0 {
		return LookupResult{Status: StatusNotFound, Document: doc}
	}
	return LookupResult{Status: StatusFound, Document: doc, Customer: customerFromMap(record), Raw: record}
}

// firstRecord accepts either an array of records or a single object.
func firstRecord(body []byte) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []map[string]any
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, nil
		}
		return list[0], nil
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
