package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return "validation error"
	}
	return err.Err.Error()
}

// ErrorKind classifies an AppError; the transport layer maps kinds to status codes.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalid
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindLocked
	KindTooManyRequests
)

// AppError is a domain error identified by a stable, client facing code (e.g. EMAIL_IN_USE).
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Data    map[string]interface{}
}

func NewAppError(kind ErrorKind, code, msg string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: msg}
}

func (e *AppError) Error() string {
	return e.Code
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e with msg.
func (e *AppError) WithMessage(msg string) *AppError {
	cp := e.clone()
	cp.Message = msg
	return cp
}

// WithData returns a copy of e carrying key=val in its response payload.
func (e *AppError) WithData(key string, val interface{}) *AppError {
	cp := e.clone()
	cp.Data[key] = val
	return cp
}

func (e *AppError) clone() *AppError {
	cp := *e
	cp.Data = make(map[string]interface{}, len(e.Data)+1)
	for k, v := range e.Data {
		cp.Data[k] = v
	}
	return &cp
}

// AsAppError returns the AppError wrapped in err, if any.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

var (
	ErrInvalidID        = NewAppError(KindInvalid, "INVALID_ID", "Invalid id.")
	ErrPermissionDenied = NewAppError(KindForbidden, "PERMISSION_DENIED", "You do not have permission to perform this action.")
)

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
