package idp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnavailable is wrapped by every failure that is not a provider verdict:
// transport errors, timeouts, and malformed success responses.
var ErrUnavailable = errors.New("identity provider unavailable")

const maxErrorBody = 512

// StatusError is a non-2xx response from the identity provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("identity provider returned status %d", e.StatusCode)
}

// Message extracts a human-readable message from a JSON error body
// ({"error": ...} or {"message": ...}). It returns "" otherwise.
func (e *StatusError) Message() string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(e.Body), &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// ClientError reports whether the provider rejected the request itself (4xx).
func (e *StatusError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
