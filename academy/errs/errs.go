// Package errs defines the error taxonomy shared across the academy core.
//
// Every typed error matches one sentinel through errors.Is, so callers can
// branch on the class without caring which component produced it:
//
//	NetworkError     -> ErrNetwork     (transient unless the upstream rejected the request)
//	ValidationError  -> ErrValidation  (caller misuse, never retried)
//	PersistenceError -> ErrPersistence (store rejected a write, surfaced to the user)
//	NotFoundError    -> ErrNotFound    (absent external record; a cache miss is not an error)
//	InvalidStateError-> ErrInvalidState
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNetwork      = errors.New("network error")
	ErrValidation   = errors.New("validation error")
	ErrPersistence  = errors.New("persistence error")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// Messages shown to end users. Raw error text never reaches them.
const (
	MsgActionFailed   = "action failed, please try again"
	MsgSelectAnswer   = "select an answer before continuing"
	MsgNotFound       = "the requested item could not be found"
	MsgAlreadyHandled = "this action has already been completed"
)

// NetworkError reports a failed call to an upstream service.
type NetworkError struct {
	Op         string // logical operation, e.g. "coins.list"
	StatusCode int    // 0 when the request never produced a response
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream returned status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error        { return e.Err }
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// Temporary reports whether repeating the request may succeed.
// Transport failures, 5xx and 429 are temporary; other 4xx are not.
func (e *NetworkError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// ValidationError reports caller misuse.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PersistenceError reports that the data store rejected an operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string        { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error        { return e.Err }
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// NotFoundError reports an absent external record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string        { return fmt.Sprintf("%s %q not found", e.Resource, e.ID) }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidStateError reports an operation attempted in a state that forbids it.
type InvalidStateError struct {
	Op    string
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// IsRetryable reports whether err is a transient failure worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Temporary()
	}
	return false
}

// UserMessage maps err to the text shown to an end user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		var v *ValidationError
		if errors.As(err, &v) && v.Message != "" {
			return v.Message
		}
		return MsgSelectAnswer
	case errors.Is(err, ErrNotFound):
		return MsgNotFound
	case errors.Is(err, ErrInvalidState):
		return MsgAlreadyHandled
	default:
		return MsgActionFailed
	}
}
