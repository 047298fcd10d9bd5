// Package wallcore holds the shared types and error taxonomy used across
// wallhue's palette, effect, cache and orchestration packages.
package wallcore

import "fmt"

// ErrorKind classifies a StructuredError for policy dispatch (retry,
// criticality, cache handling). See the table in spec §7.
type ErrorKind string

const (
	ErrImageInvalid       ErrorKind = "ImageInvalid"
	ErrBackendUnavailable ErrorKind = "BackendUnavailable"
	ErrExtractionFailed   ErrorKind = "ExtractionFailed"
	ErrEffectFailed       ErrorKind = "EffectFailed"
	ErrTemplateFailed     ErrorKind = "TemplateFailed"
	ErrCacheCorrupt       ErrorKind = "CacheCorrupt"
	ErrCacheQuotaExceeded ErrorKind = "CacheQuotaExceeded"
	ErrApplyFailed        ErrorKind = "ApplyFailed"
	ErrCancelled          ErrorKind = "Cancelled"
	ErrInternal           ErrorKind = "Internal"
)

// StructuredError is the uniform error shape propagated out of steps,
// backends and engines. Recoverable marks errors a caller may retry or
// downgrade to a warning; the pipeline executor does not read it, and
// retries and halts by each step's MaxAttempts and Critical settings.
type StructuredError struct {
	Kind                   ErrorKind
	StepName               string
	Message                string
	SourceImageFingerprint string
	Recoverable            bool
	Inner                  error

	// EffectReason distinguishes EffectFailed's two policy-relevant
	// sub-cases (spec §7); zero value is EffectReasonOther's behavior
	// (retry once) and only ever read when Kind == ErrEffectFailed.
	EffectReason EffectFailedReason
}

func (e *StructuredError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.StepName, e.Message, e.Inner)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.StepName, e.Message)
}

func (e *StructuredError) Unwrap() error { return e.Inner }

// NewError builds a StructuredError, wrapping inner if non-nil.
func NewError(kind ErrorKind, stepName, message string, recoverable bool, inner error) *StructuredError {
	return &StructuredError{
		Kind:        kind,
		StepName:    stepName,
		Message:     message,
		Recoverable: recoverable,
		Inner:       inner,
	}
}

// NewEffectError builds an EffectFailed StructuredError tagged with reason,
// per spec §7's distinct NoEngine/other policies.
func NewEffectError(reason EffectFailedReason, stepName, message string, recoverable bool, inner error) *StructuredError {
	return &StructuredError{
		Kind:         ErrEffectFailed,
		StepName:     stepName,
		Message:      message,
		Recoverable:  recoverable,
		Inner:        inner,
		EffectReason: reason,
	}
}

// EffectFailedReason distinguishes the two EffectFailed sub-cases the error
// policy table treats differently (spec §7).
type EffectFailedReason string

const (
	EffectReasonNoEngine EffectFailedReason = "NoEngine"
	EffectReasonOther    EffectFailedReason = "Other"
)
