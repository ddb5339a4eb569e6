package core

import (
	"errors"
	"fmt"
)

// Kind classifies user-visible failures. Handlers map kinds to status codes;
// everything else surfaces as an internal error.
type Kind string

const (
	KindAcquisitionFailed  Kind = "acquisition_failed"
	KindSegmentationFailed Kind = "segmentation_failed"
	KindFrameExtraction    Kind = "frame_extraction_failed"
	KindAlreadyProcessing  Kind = "already_processing"
	KindNoSearchableContent Kind = "no_searchable_content"
	KindInvalidMode        Kind = "invalid_mode"
	KindInvalidTopK        Kind = "invalid_top_k"
	KindVideoNotReady      Kind = "video_not_ready"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
)

// Error is a structured failure: a machine-readable kind plus human-readable
// detail. Third-party error payloads are normalized into Detail, never
// forwarded verbatim.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two *Errors by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NewError builds a structured error with formatted detail.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and detail to an underlying error.
func WrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// ErrKind extracts the kind from an error chain, or "" if untyped.
func ErrKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return ErrKind(err) == kind
}

// transientError marks failures worth one retry (network hiccups, rate
// limits). Validation and quota errors must not carry this marker.
type transientError struct{ err error }

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// MarkTransient flags err as retryable.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was flagged retryable.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
