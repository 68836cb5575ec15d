package service

import (
	"context"
	"errors"

	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// Sentinel errors.
var (
	ErrClient                  = ServiceError{origin: "client"}
	ErrNotFound                = ServiceError{origin: "notFound"}
	ErrFetchFailed             = ServiceError{origin: "fetchFailed"}
	ErrMissingLanguageData     = ServiceError{origin: "missingLanguageData"}
	ErrIndexOutOfRange         = ServiceError{origin: "indexOutOfRange"}
	ErrUnsupportedBodyType     = ServiceError{origin: "unsupportedBodyType"}
	ErrUnsupportedSelectorType = ServiceError{origin: "unsupportedSelectorType"}
	ErrNoImageService          = ServiceError{origin: "noImageService"}
	ErrNoSuchRegion            = ServiceError{origin: "noSuchRegion"}
)

// ServiceError has detailed information about errors from the service package.
type ServiceError struct {
	base   error
	origin string
}

// Is checks if the given error and the current ServiceError are the same.
func (se ServiceError) Is(target error) bool {
	var err ServiceError
	if !errors.As(target, &err) {
		return false
	}
	return se.origin == err.origin
}

// Error is used to output the error message.
func (se ServiceError) Error() string {
	if se.base == nil {
		return se.origin
	}
	return se.base.Error()
}

// Unwrap gives access to the underlying error.
func (se ServiceError) Unwrap() error {
	return se.base
}

func newError(sentinel ServiceError, err error) error {
	return ServiceError{base: err, origin: sentinel.origin}
}

func newClientError(err error) error {
	return newError(ErrClient, err)
}

func newNotFoundError(err error) error {
	return newError(ErrNotFound, err)
}

func newFetchError(err error) error {
	return newError(ErrFetchFailed, err)
}

func startSpan(ctx context.Context, operation string) (ddtrace.Span, context.Context) {
	return ddTracer.StartSpanFromContext(ctx, "internal/service/"+operation)
}
