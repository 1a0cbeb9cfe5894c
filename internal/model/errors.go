package model

import (
	"errors"

	"github.com/rotisserie/eris"
)

// ErrorKind is the closed error taxonomy from the error-handling design:
// a classification orthogonal to transport status codes.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindAuthorizationScope ErrorKind = "authorization_scope"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindProviderExhausted  ErrorKind = "provider_exhausted"
	KindProviderTransient  ErrorKind = "provider_transient"
	KindExtractionEmpty    ErrorKind = "extraction_empty"
	KindEnrichmentPartial  ErrorKind = "enrichment_partial"
	KindPersistenceTransient ErrorKind = "persistence_transient"
	KindPersistenceFatal   ErrorKind = "persistence_fatal"
	KindTimeout            ErrorKind = "timeout"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
)

// DomainError tags an error with a Kind so callers can branch on behavior
// (retry, skip, fail the run) without string-matching messages.
type DomainError struct {
	Kind ErrorKind
	Err  error
}

func (e *DomainError) Error() string { return e.Err.Error() }
func (e *DomainError) Unwrap() error { return e.Err }

// NewError wraps err with a kind and message, consistent with eris's
// wrap-don't-discard convention used throughout the pipeline.
func NewError(kind ErrorKind, msg string, err error) *DomainError {
	if err == nil {
		return &DomainError{Kind: kind, Err: eris.New(msg)}
	}
	return &DomainError{Kind: kind, Err: eris.Wrap(err, msg)}
}

// KindOf extracts the ErrorKind from err, if any was attached.
func KindOf(err error) (ErrorKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
