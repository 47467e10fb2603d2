package llm

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey   = errors.New("API key is not set for this model configuration")
	ErrMissingEndpoint = errors.New("API endpoint is not set for this model configuration")
)

// Kind classifies a chat request failure.
type Kind int

const (
	// KindConfiguration marks failures detected before any network attempt.
	KindConfiguration Kind = iota
	// KindClient marks 4xx responses, usually a bad key or malformed request.
	KindClient
	// KindServer marks 5xx responses.
	KindServer
	// KindNetworkUnreachable marks DNS or host resolution failures.
	KindNetworkUnreachable
	// KindUnknown covers everything else.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindNetworkUnreachable:
		return "network"
	}
	return "unknown"
}

// RequestError is a categorized chat request failure. The original cause is
// always retained for wrapping.
type RequestError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (e *RequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

func configurationError(cause error) *RequestError {
	return &RequestError{
		Kind:    KindConfiguration,
		Message: "invalid model configuration",
		Cause:   cause,
	}
}
