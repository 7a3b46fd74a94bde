package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline operations.
var (
	ErrNotFound         = errors.New("document not found")
	ErrGuardDenied      = errors.New("stage prerequisites not met")
	ErrProcessingFailed = errors.New("stage processing failed")
	ErrSuperseded       = errors.New("stage invocation superseded")
	ErrNotRunnable      = errors.New("stage has no processor")
)

// ProcessingError reports a failed processor call. The session field for the
// stage is left as it was before the call.
type ProcessingError struct {
	Stage      Stage
	DocumentID string
	Reason     string
	Err        error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s failed for document %s: %s", e.Stage, e.DocumentID, e.Reason)
}

func (e *ProcessingError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProcessingFailed}
	}
	return []error{ErrProcessingFailed, e.Err}
}

// GuardError is returned when a stage is entered without its prerequisites.
// Redirect names the stage the caller should send the user to instead.
type GuardError struct {
	Stage    Stage
	Redirect Stage
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("cannot enter %s: prerequisites not met, redirect to %s", e.Stage, e.Redirect)
}

func (e *GuardError) Is(target error) bool { return target == ErrGuardDenied }
