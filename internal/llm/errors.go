package llm

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	// KindConfiguration: missing or placeholder credential. Never retried.
	KindConfiguration ErrorKind = iota
	// KindTimeout: the attempt deadline expired.
	KindTimeout
	// KindHTTP: the endpoint answered with a non-2xx status.
	KindHTTP
	// KindNetwork: transport failure before a response was read.
	KindNetwork
	// KindParse: a 2xx response whose body is not a chat completion.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "Configuration"
	case KindTimeout:
		return "Timeout"
	case KindHTTP:
		return "HTTP"
	case KindNetwork:
		return "Network"
	case KindParse:
		return "Parse"
	default:
		return "Unknown"
	}
}

// Error is the failure returned by Client.Translate.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // set for KindHTTP
	Attempts   int // attempts made before giving up
	Cause      error
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind, e.Message))
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts: %d", e.Attempts))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}
	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	return e.Kind != KindConfiguration
}

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind == kind
	}
	return false
}
