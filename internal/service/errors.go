package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/srt-translator/internal/llm"
	"github.com/MimeLyc/srt-translator/pkg/log"
)

type ErrorType int

const (
	ErrFileNotFound ErrorType = iota
	ErrFileRead
	ErrFileWrite
	ErrParse
	ErrValidation
	ErrConfig
	ErrTranslation
	ErrUnknown
)

// TranslateError is the error type surfaced by the service to its callers.
type TranslateError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *TranslateError {
	return &TranslateError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *TranslateError {
	return &TranslateError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *TranslateError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *TranslateError) Unwrap() error {
	return e.Cause
}

func (e *TranslateError) WithContext(key string, value any) *TranslateError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrFileRead:
		return "FileRead"
	case ErrFileWrite:
		return "FileWrite"
	case ErrParse:
		return "Parse"
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	case ErrTranslation:
		return "Translation"
	default:
		return "Unknown"
	}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *TranslateError) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

// Handle logs err with advice. It reports false for errors that are not
// *TranslateError.
func (h *DefaultErrorHandler) Handle(err error) bool {
	var transErr *TranslateError
	if !errors.As(err, &transErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	advice := h.GetAdvice(transErr)
	log.Error("Error Detail: %v\n advice: %s", err, advice)

	return true
}

// GetAdvice returns error handling advice
func (h *DefaultErrorHandler) GetAdvice(err *TranslateError) string {
	switch err.Type {
	case ErrFileNotFound:
		return "Please check that the file path is correct and ensure the file exists with read permissions"
	case ErrFileRead:
		return "Please check file permissions to ensure read access and verify the file is not corrupted"
	case ErrFileWrite:
		return "Please ensure the output directory exists and has write permissions"
	case ErrParse:
		return "Please verify the file is a valid SRT subtitle: index line, timecode line, then text"
	case ErrValidation:
		return "Please verify input parameters are correct, file paths and target language cannot be empty"
	case ErrConfig:
		return "Please set LLM_API_KEY (environment or .env file) to a real key and check LLM_API_URL"
	case ErrTranslation:
		return translationAdvice(err.Cause)
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

func translationAdvice(cause error) string {
	var llmErr *llm.Error
	if !errors.As(cause, &llmErr) {
		return "An issue occurred during translation, the original text was kept"
	}
	switch llmErr.Kind {
	case llm.KindConfiguration:
		return "Please set LLM_API_KEY (environment or .env file) to a real key"
	case llm.KindTimeout:
		return "The API did not answer in time; raise LLM_TIMEOUT_MS or try again later"
	case llm.KindHTTP:
		if llmErr.StatusCode == 401 || llmErr.StatusCode == 403 {
			return "The API rejected the credential; check LLM_API_KEY"
		}
		if llmErr.StatusCode == 429 {
			return "The API is rate limiting requests; try again later or raise LLM_MAX_RETRIES"
		}
		return "The API returned an error; review the API service status"
	case llm.KindNetwork:
		return "Please check network connectivity to ensure access to the API service"
	default:
		return "The API response could not be understood; check LLM_API_URL points at a chat-completions endpoint"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var transErr *TranslateError
	if errors.As(err, &transErr) {
		return transErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *TranslateError {
	return NewErrorWithCause(errorType, message, err)
}

// Advice returns the advice for err, or "" when err is not a *TranslateError.
func Advice(err error) string {
	var transErr *TranslateError
	if !errors.As(err, &transErr) {
		return ""
	}
	return NewDefaultErrorHandler().GetAdvice(transErr)
}
