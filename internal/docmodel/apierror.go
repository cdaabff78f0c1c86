package docmodel

import "fmt"

// APIErrorCode is the client-facing error taxonomy, analogous to the
// teacher's utils.ErrorResponse but transport-agnostic (no HTTP status
// codes baked in — the REST surface maps these itself).
type APIErrorCode string

const (
	CodeInvalidInput      APIErrorCode = "invalid_input"
	CodeNotFound          APIErrorCode = "not_found"
	CodeConflict          APIErrorCode = "conflict"
	CodeResourceExhausted APIErrorCode = "resource_exhausted"
	CodeTransient         APIErrorCode = "transient"
	CodeInternal          APIErrorCode = "internal"
)

// APIError is an error carrying the logical return code. ErrNotFound, which
// the store returns for a missing record, is one; the Facade and
// queue.Dispatcher methods return ordinary wrapped errors.
type APIError struct {
	Code    APIErrorCode
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// LogicalCode maps an APIErrorCode to the transport-agnostic exit code.
func (e *APIError) LogicalCode() int {
	switch e.Code {
	case CodeInvalidInput:
		return 1
	case CodeNotFound:
		return 2
	case CodeConflict:
		return 3
	case CodeResourceExhausted:
		return 4
	case CodeInternal:
		return 5
	default:
		return 0
	}
}

// NewAPIError builds an APIError wrapping err (which may be nil).
func NewAPIError(code APIErrorCode, message string, err error) *APIError {
	return &APIError{Code: code, Message: message, Err: err}
}

var (
	// ErrNotFound is returned by TaskStore.Get when no record matches.
	ErrNotFound = NewAPIError(CodeNotFound, "record not found", nil)
)
