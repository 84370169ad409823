package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// AssemblyError describes a failure of one assembly run with enough context to
// identify the failing stage and, where relevant, the exhibit being processed.
type AssemblyError struct {
	Type       ErrorType `json:"type"`
	Stage      Stage     `json:"stage"`
	Message    string    `json:"message"`
	EntryIndex int       `json:"entry_index"` // -1 when the failure is not tied to an exhibit
	Template   string    `json:"template,omitempty"`
	Missing    []string  `json:"missing,omitempty"`
	Err        error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorType classifies assembly failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeMissingPlaceholder
	ErrorTypeConversionFailure
	ErrorTypeExhibitOverflow
	ErrorTypeIOFailure
	ErrorTypeInvalidInput
	ErrorTypeTemplateNotFound
	ErrorTypeMergeFailure
)

// Stage names the pipeline step that failed
type Stage string

const (
	StageIntake   Stage = "intake"
	StageSequence Stage = "sequence"
	StageCover    Stage = "cover"
	StageExhibit  Stage = "exhibit"
	StageClosing  Stage = "closing"
	StageUpload   Stage = "upload"
	StageCompose  Stage = "compose"
	StageConvert  Stage = "convert"
	StageMerge    Stage = "merge"
	StageScratch  Stage = "scratch"
	StagePublish  Stage = "publish"
)

// Error implements the error interface
func (e *AssemblyError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("[%s] stage %s: %s", e.Type.String(), e.Stage, e.Message)
	}
	if e.EntryIndex >= 0 {
		msg += fmt.Sprintf(" (exhibit %d)", e.EntryIndex)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// Is matches another AssemblyError by type so callers can test with sentinels
func (e *AssemblyError) Is(target error) bool {
	t, ok := target.(*AssemblyError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Stage == "" && t.Message == ""
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeMissingPlaceholder:
		return "MISSING_PLACEHOLDER"
	case ErrorTypeConversionFailure:
		return "CONVERSION_FAILURE"
	case ErrorTypeExhibitOverflow:
		return "EXHIBIT_OVERFLOW"
	case ErrorTypeIOFailure:
		return "IO_FAILURE"
	case ErrorTypeInvalidInput:
		return "INVALID_INPUT"
	case ErrorTypeTemplateNotFound:
		return "TEMPLATE_NOT_FOUND"
	case ErrorTypeMergeFailure:
		return "MERGE_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Sentinels for errors.Is checks against the type only.
var (
	ErrMissingPlaceholder = &AssemblyError{Type: ErrorTypeMissingPlaceholder}
	ErrConversionFailure  = &AssemblyError{Type: ErrorTypeConversionFailure}
	ErrExhibitOverflow    = &AssemblyError{Type: ErrorTypeExhibitOverflow}
	ErrIOFailure          = &AssemblyError{Type: ErrorTypeIOFailure}
	ErrInvalidInput       = &AssemblyError{Type: ErrorTypeInvalidInput}
	ErrTemplateNotFound   = &AssemblyError{Type: ErrorTypeTemplateNotFound}
	ErrMergeFailure       = &AssemblyError{Type: ErrorTypeMergeFailure}
)

// New creates an AssemblyError not tied to an exhibit
func New(errorType ErrorType, stage Stage, message string) *AssemblyError {
	return &AssemblyError{
		Type:       errorType,
		Stage:      stage,
		Message:    message,
		EntryIndex: -1,
		Timestamp:  time.Now(),
	}
}

// Wrap wraps err as an AssemblyError
func Wrap(errorType ErrorType, stage Stage, message string, err error) *AssemblyError {
	e := New(errorType, stage, message)
	e.Err = err
	return e
}

// MissingPlaceholder reports the placeholders a template referenced but the context lacked
func MissingPlaceholder(template string, missing []string) *AssemblyError {
	e := New(ErrorTypeMissingPlaceholder, "", fmt.Sprintf("template %s references unset placeholders %v", template, missing))
	e.Template = template
	e.Missing = missing
	return e
}

// WithStage sets the stage if not already set and returns the error
func (e *AssemblyError) WithStage(stage Stage) *AssemblyError {
	if e.Stage == "" {
		e.Stage = stage
	}
	return e
}

// WithEntry ties the error to an exhibit manifest entry
func (e *AssemblyError) WithEntry(index int) *AssemblyError {
	e.EntryIndex = index
	return e
}

// IsRetryable reports whether another converter attempt may succeed.
// Expiry of the caller's own deadline is final.
func (e *AssemblyError) IsRetryable() bool {
	if e.Type != ErrorTypeConversionFailure {
		return false
	}
	return !stderrors.Is(e.Err, context.Canceled) && !stderrors.Is(e.Err, context.DeadlineExceeded)
}

// At attaches a stage and optional exhibit index to err. Non-assembly errors
// are wrapped as IO failures.
func At(err error, stage Stage, entry int) error {
	if err == nil {
		return nil
	}
	var ae *AssemblyError
	if stderrors.As(err, &ae) {
		ae.WithStage(stage)
		if ae.EntryIndex < 0 && entry >= 0 {
			ae.EntryIndex = entry
		}
		return ae
	}
	wrapped := Wrap(ErrorTypeIOFailure, stage, "stage failed", err)
	wrapped.EntryIndex = entry
	return wrapped
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var ae *AssemblyError
	if stderrors.As(err, &ae) {
		return ae.Type
	}
	return ErrorTypeUnknown
}
