package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrStepFailed matches any *StepError.
	ErrStepFailed = errors.New("pipeline step failed")
	// ErrArtifactDir is returned when the artifact directory cannot be created.
	ErrArtifactDir = errors.New("could not create directory to hold build artifacts")
)

// StepError records which step aborted the pipeline.
type StepError struct {
	Index int // 1-based
	Step  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is reports ErrStepFailed as a match so callers need not type-assert.
func (e *StepError) Is(target error) bool {
	return target == ErrStepFailed
}
