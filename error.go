package cratedoc

import (
	"errors"
	"fmt"
)

// Application error codes.
const (
	ECONFLICT    = "conflict"
	EINTERNAL    = "internal"
	EINVALID     = "invalid"
	ENOTFOUND    = "not_found"
	ENETWORK     = "network"
	ETOOLCHAIN   = "toolchain_missing"
	EBUILD       = "build_failed"
	ERESOLVE     = "resolution_failed"
	ELOCKTIMEOUT = "lock_timeout"
	EIO          = "io"
)

// Stage names the point of the request pipeline where an error occurred.
type Stage string

// Pipeline stages.
const (
	StageAcquire     Stage = "acquire"
	StageResolve     Stage = "resolve"
	StageMaterialize Stage = "materialize"
	StageIndex       Stage = "index"
	StageAnswer      Stage = "answer"
)

// Error represents an application-specific error.
//
// Detail carries collaborator output verbatim (compiler diagnostics,
// cargo stderr). Err is the underlying cause, if any.
type Error struct {
	Code      string
	Message   string
	Stage     Stage
	Retryable bool
	Detail    string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	return fmt.Sprintf("cratedoc error: code=%s message=%s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf is a helper function to return an Error with a given code and
// formatted message. Network and lock timeout errors are retryable.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: code == ENETWORK || code == ELOCKTIMEOUT,
	}
}

// WrapError returns an Error with the given code and message wrapping err.
func WrapError(code string, err error, format string, args ...any) *Error {
	e := Errorf(code, format, args...)
	e.Err = err
	return e
}

// WithDetail returns a copy of err carrying the given diagnostic text.
// Errors that are not *Error are wrapped as EINTERNAL.
func WithDetail(err error, detail string) error {
	if err == nil {
		return nil
	}
	e := asError(err)
	e.Detail = detail
	return e
}

// WithStage annotates err with stage unless it already names one.
// Errors that are not *Error are wrapped as EINTERNAL.
func WithStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	e := asError(err)
	if e.Stage == "" {
		e.Stage = stage
	}
	return e
}

// asError returns a shallow copy of the *Error in err's chain, or a new
// EINTERNAL error wrapping err.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		return &cp
	}
	return &Error{Code: EINTERNAL, Message: err.Error(), Err: err}
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// ErrorStage returns the pipeline stage recorded on err, if any.
func ErrorStage(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

// ErrorDetail returns the diagnostic text recorded on err, if any.
func ErrorDetail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
