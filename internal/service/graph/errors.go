package graph

import (
	"fmt"

	"InboxGate/entity"
)

// ProviderError carries the platform's own error text so callers can surface it verbatim.
type ProviderError struct {
	Provider entity.Provider
	Status   int
	Code     int
	Subcode  int
	Type     string
	Message  string
	TraceID  string
	cause    error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.cause
}

type errorEnvelope struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode"`
		FbTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

func (e *errorEnvelope) toError(provider entity.Provider, status int, raw string) *ProviderError {
	message := e.Error.Message
	if message == "" {
		message = fmt.Sprintf("API error (status %d): %s", status, raw)
	}
	return &ProviderError{
		Provider: provider,
		Status:   status,
		Code:     e.Error.Code,
		Subcode:  e.Error.Subcode,
		Type:     e.Error.Type,
		Message:  message,
		TraceID:  e.Error.FbTraceID,
	}
}
