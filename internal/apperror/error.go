package apperror

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// AppError is a coded failure. Codes, not messages, are the contract:
// errors.Is against one of the sentinels below matches any AppError with the
// same code anywhere in the chain.
type AppError struct {
	Code       Code      `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	Context    string    `json:"context,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// LogValue renders the error as a group so structured logs keep the code
// separate from the cause chain.
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("code", string(e.Code))}
	if e.Context != "" {
		attrs = append(attrs, slog.String("context", e.Context))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	return slog.GroupValue(attrs...)
}

// ResponseBody is the "error" member of an HTTP error reply.
type ResponseBody struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Context   string `json:"context,omitempty"`
	Timestamp string `json:"timestamp"`
	TraceID   string `json:"traceId,omitempty"`
}

// Response is the JSON shape of an HTTP error reply.
type Response struct {
	Error ResponseBody `json:"error"`
}

// ToResponse serializes the error for an HTTP reply. traceID may be empty.
func (e *AppError) ToResponse(traceID string) Response {
	return Response{Error: ResponseBody{
		Code:      e.Code,
		Message:   e.Message,
		Context:   e.Context,
		Timestamp: e.Timestamp.Format(time.RFC3339),
		TraceID:   traceID,
	}}
}

// New creates a new AppError with the given code and options
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:       code,
		Message:    messages[code],
		StatusCode: statusCode(code),
		Timestamp:  time.Now(),
	}
	for _, opt := range opts {
		opt(err)
	}
	if err.Message == "" {
		err.Message = string(code)
	}
	return err
}

// Option is a functional option for AppError
type Option func(*AppError)

// WithContext adds context information
func WithContext(context string) Option {
	return func(e *AppError) {
		e.Context = context
	}
}

// WithCause wraps an underlying error
func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// Sentinels for errors.Is matching by code.
var (
	ErrChainRead     = &AppError{Code: CodeChainReadFailure}
	ErrTransport     = &AppError{Code: CodeTransportFailure}
	ErrDecode        = &AppError{Code: CodeDecodeFailure}
	ErrNoData        = &AppError{Code: CodeNoDataAvailable}
	ErrStreamPoll    = &AppError{Code: CodeStreamPollFailure}
	ErrInvalidInput  = &AppError{Code: CodeInvalidInput}
	ErrConfiguration = &AppError{Code: CodeConfigurationError}
)

// Validation creates a caller error reported as 400.
func Validation(code Code, context string) *AppError {
	err := New(code, WithContext(context))
	err.StatusCode = http.StatusBadRequest
	return err
}

// GetCode extracts the error code from an error
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

func statusCode(code Code) int {
	switch code {
	case CodeInvalidInput, CodeRequiredField:
		return http.StatusBadRequest
	case CodeNoDataAvailable:
		return http.StatusNotFound
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	// Upstream node or subgraph misbehaved
	case CodeChainReadFailure, CodeTransportFailure, CodeDecodeFailure, CodeStreamPollFailure:
		return http.StatusBadGateway
	case CodeEthereumConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
