package domain

import (
	"errors"
	"fmt"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrChannelNotFound = errors.New("channel instance not found")
	ErrQueueNotFound   = errors.New("queue not found")
)

// Severity classifies a pipeline failure for the orchestrator: ignorable
// events are dropped and acknowledged, transient ones may be retried, fatal
// ones need operator intervention.
type Severity int

const (
	SeverityIgnorable Severity = iota
	SeverityTransient
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityTransient:
		return "transient"
	case SeverityFatal:
		return "fatal"
	default:
		return "ignorable"
	}
}

// PipelineError carries the outcome classification alongside the cause.
type PipelineError struct {
	Severity Severity
	Reason   string
	Err      error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Severity, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Severity, e.Reason)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func Ignorable(reason string) error {
	return &PipelineError{Severity: SeverityIgnorable, Reason: reason}
}

func Transient(reason string, err error) error {
	return &PipelineError{Severity: SeverityTransient, Reason: reason, Err: err}
}

func Fatal(reason string, err error) error {
	return &PipelineError{Severity: SeverityFatal, Reason: reason, Err: err}
}

// ClassOf extracts the severity from an error chain. Unclassified errors are
// treated as transient: storage and network failures are the common case.
func ClassOf(err error) Severity {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Severity
	}
	return SeverityTransient
}
