package provider

import (
	"fmt"
	"io"
)

// maxErrorBody bounds how much of an upstream error body is kept.
const maxErrorBody = 512

// APIError is a non-2xx answer from a vendor API.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Provider, e.Status, e.Body)
}

func newAPIError(provider string, status int, body io.Reader) *APIError {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return &APIError{Provider: provider, Status: status, Body: string(data)}
}
