package model

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey = errors.New("model api key not configured")
	ErrEmptyResponse = errors.New("model returned no candidates")
)

// EndpointError is a non-2xx answer from the model endpoint.
type EndpointError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *EndpointError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("model endpoint error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("model endpoint error %d: %s", e.StatusCode, e.Message)
}

// StatusCode extracts the endpoint status from err, or 0 when err did not come from the endpoint.
func StatusCode(err error) int {
	var ee *EndpointError
	if errors.As(err, &ee) {
		return ee.StatusCode
	}
	return 0
}
