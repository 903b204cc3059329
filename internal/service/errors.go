package service

import (
	"errors"
	"fmt"
)

// Error taxonomy. Match with errors.Is; the typed errors below unwrap to these.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrUpstreamEmptyResult  = errors.New("upstream returned an empty result")
	ErrUpstreamSchema       = errors.New("upstream response did not match the expected schema")
	ErrAnalysisFailed       = errors.New("analysis failed")
	ErrQuantificationFailed = errors.New("quantification failed")
	ErrPersistence          = errors.New("persistence failed")
	ErrDuplicateID          = errors.New("duplicate meal id")
	ErrNotFound             = errors.New("not found")
)

// InvalidInputError describes a caller mistake detected before any network call.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

func invalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// UpstreamError is a failure attributed to an external provider.
// Kind is one of ErrUpstreamUnavailable, ErrUpstreamEmptyResult or ErrUpstreamSchema.
type UpstreamError struct {
	Provider   string
	Kind       error
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func unavailable(provider string, status int, err error) error {
	return &UpstreamError{Provider: provider, Kind: ErrUpstreamUnavailable, StatusCode: status, Err: err}
}

func emptyResult(provider string) error {
	return &UpstreamError{Provider: provider, Kind: ErrUpstreamEmptyResult}
}

func schemaError(provider string, err error) error {
	return &UpstreamError{Provider: provider, Kind: ErrUpstreamSchema, Err: err}
}

// StageError marks which pipeline stage failed. Kind is ErrAnalysisFailed,
// ErrQuantificationFailed or ErrPersistence.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsRetryable reports whether repeating the same request may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
