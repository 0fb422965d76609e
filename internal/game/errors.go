package game

import (
	"errors"
	"fmt"
)

// 错误类别，调用方用 errors.Is 判断
var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
	ErrNotReady     = errors.New("not ready")
)

// Error 带有可读原因的业务错误
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Reason 返回面向用户的错误原因
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return err.Error()
}
