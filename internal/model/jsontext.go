package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFence removes ```json / ``` markup the model wraps around JSON answers.
func StripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if strings.Contains(t, "```json") {
		t = strings.ReplaceAll(t, "```json", "")
	}
	t = strings.ReplaceAll(t, "```", "")
	return strings.TrimSpace(t)
}

// DecodeJSON parses a JSON object out of model text. Code fences are stripped
// first; if the remainder is not valid JSON, the outermost {...} span is tried.
func DecodeJSON(text string, v any) error {
	t := StripCodeFence(text)
	if t == "" {
		return fmt.Errorf("empty model text")
	}
	err := json.Unmarshal([]byte(t), v)
	if err == nil {
		return nil
	}
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("parse model json: %w", err)
	}
	if err2 := json.Unmarshal([]byte(t[start:end+1]), v); err2 != nil {
		return fmt.Errorf("parse model json: %w", err)
	}
	return nil
}
