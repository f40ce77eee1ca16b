// Package errs defines the depot's error-kind enumeration.
//
// Internal helpers surface errors without wrapping; only a transport
// boundary (outside this module) should translate a Kind into an HTTP
// status or process exit code, using HTTPStatus/ExitCode below.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind string

const (
	Internal          Kind = "Internal"
	InvalidParameter  Kind = "InvalidParameter"
	Permission        Kind = "Permission"
	NotFound          Kind = "NotFound"
	Conflict          Kind = "Conflict"
	Authentication    Kind = "Authentication"
	Parsing           Kind = "Parsing"
	Constraint        Kind = "Constraint"
	TypeError         Kind = "TypeError"
	UserError         Kind = "UserError"
	Client            Kind = "Client"
)

// Error is the concrete error type returned by depot core operations.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Internalf(format string, args ...any) *Error         { return New(Internal, format, args...) }
func InvalidParamf(format string, args ...any) *Error      { return New(InvalidParameter, format, args...) }
func Permissionf(format string, args ...any) *Error        { return New(Permission, format, args...) }
func NotFoundf(format string, args ...any) *Error          { return New(NotFound, format, args...) }
func Conflictf(format string, args ...any) *Error          { return New(Conflict, format, args...) }
func Authenticationf(format string, args ...any) *Error    { return New(Authentication, format, args...) }
func Parsingf(format string, args ...any) *Error           { return New(Parsing, format, args...) }
func Constraintf(format string, args ...any) *Error        { return New(Constraint, format, args...) }
func TypeErrorf(format string, args ...any) *Error         { return New(TypeError, format, args...) }
func UserErrorf(format string, args ...any) *Error         { return New(UserError, format, args...) }
func Clientf(format string, args ...any) *Error            { return New(Client, format, args...) }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HTTPStatus returns the authoritative HTTP status for a Kind (§6).
func HTTPStatus(k Kind) int {
	switch k {
	case Internal:
		return 500
	case InvalidParameter:
		return 400
	case Permission:
		return 403
	case NotFound:
		return 404
	case Conflict:
		return 409
	case Authentication:
		return 401
	case Constraint:
		return 412
	case Parsing:
		return 422
	case TypeError:
		return 417
	case UserError:
		return 406
	case Client:
		return 500
	default:
		return 500
	}
}

// ExitCode returns the authoritative process exit code for a Kind (§6).
func ExitCode(k Kind) int {
	switch k {
	case Internal:
		return 121
	case InvalidParameter:
		return 22
	case Permission:
		return 13
	case NotFound:
		return 2
	case Conflict:
		return 16
	case Authentication:
		return 13
	case Constraint:
		return 33
	case Parsing:
		return 5
	case TypeError:
		return 34
	case UserError:
		return 1
	case Client:
		return 10
	default:
		return 1
	}
}
