package service

import (
	"errors"

	"github.com/iago/factory-ops-back/internal/repository"
	"github.com/iago/factory-ops-back/internal/upload"
)

// ErrorKind is the closed set of failure classes the HTTP layer maps to
// status codes.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation"
	KindInternal   ErrorKind = "internal"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func notFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message, Err: repository.ErrNotFound}
}

func rejected(rejection error) error {
	return &Error{Kind: KindValidation, Err: rejection}
}

func internal(message string, err error) error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf classifies any error returned by this package. Unknown errors are
// internal; nil has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind
	}
	if errors.Is(err, repository.ErrNotFound) {
		return KindNotFound
	}
	if _, ok := upload.AsRejection(err); ok {
		return KindValidation
	}
	return KindInternal
}
