// Package errors holds the error values shared by every shipit package.
// Adapters wrap their causes with one of the category sentinels so that
// callers can classify a failed run with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Failure categories. Every adapter failure wraps one of these.
// ErrTagMismatch is the exception: it marks a broken orchestrator
// invariant rather than a failure of a step's collaborator.
var (
	ErrBuild               = errors.New("build failed")
	ErrAuthentication      = errors.New("authentication failed")
	ErrNetwork             = errors.New("network error")
	ErrTargetNotFound      = errors.New("deployment target not found")
	ErrTargetMisconfigured = errors.New("deployment target misconfigured")
)

// Orchestration and configuration errors.
var (
	ErrNotQualifying  = errors.New("event does not qualify for a pipeline run")
	ErrTargetBusy     = errors.New("another run holds the deployment target lock")
	ErrTagMismatch    = errors.New("image reference changed between steps")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrSecretNotFound = errors.New("secret not found")
	ErrRunNotFound    = errors.New("run not found")
)

// StepError reports the pipeline step a run failed at.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Category returns the failure category sentinel err wraps, or nil when
// err is not attributable to one.
func Category(err error) error {
	for _, c := range []error{ErrBuild, ErrAuthentication, ErrNetwork, ErrTargetNotFound, ErrTargetMisconfigured} {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}
