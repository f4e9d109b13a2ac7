// Package mailing delivers new leads to the marketing list and to the sales inbox.
package mailing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opentalon/leadgate/internal/store"
)

const (
	DefaultOctopusURL = "https://api.emailoctopus.com"
	defaultTimeout    = 15 * time.Second
)

type OctopusConfig struct {
	BaseURL string
	APIKey  string
	ListID  string
}

// Octopus adds contacts to an EmailOctopus list.
type Octopus struct {
	cfg  OctopusConfig
	http *http.Client
}

func NewOctopus(cfg OctopusConfig, httpClient *http.Client) *Octopus {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOctopusURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Octopus{cfg: cfg, http: httpClient}
}

func (o *Octopus) Configured() bool { return o.cfg.APIKey != "" && o.cfg.ListID != "" }

type contactFields struct {
	FirstName   string `json:"first_name"`
	Company     string `json:"COMPANY"`
	TaxID       string `json:"RUC"`
	Phone       string `json:"telefono"`
	Requirement string `json:"REQUIREMENT"`
}

type contactRequest struct {
	EmailAddress string        `json:"email_address"`
	Fields       contactFields `json:"fields"`
	Tags         []string      `json:"tags"`
	Status       string        `json:"status"`
}

// AddContact subscribes the lead's email with its intake fields.
func (o *Octopus) AddContact(ctx context.Context, rec store.LeadRecord) error {
	if !o.Configured() {
		return fmt.Errorf("emailoctopus: api key or list id not configured")
	}
	payload, err := json.Marshal(contactRequest{
		EmailAddress: rec.Email,
		Fields: contactFields{
			FirstName:   rec.FullName,
			Company:     rec.Company,
			TaxID:       rec.TaxID,
			Phone:       rec.Phone,
			Requirement: rec.Requirement,
		},
		Tags:   []string{},
		Status: "subscribed",
	})
	if err != nil {
		return fmt.Errorf("emailoctopus: encode contact: %w", err)
	}

	endpoint := o.cfg.BaseURL + "/lists/" + url.PathEscape(o.cfg.ListID) + "/contacts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("emailoctopus: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.http.Do(req)
	if err != nil {
		return fmt.Errorf("emailoctopus: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("emailoctopus: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
