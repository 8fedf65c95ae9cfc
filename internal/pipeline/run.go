package pipeline

import (
	"fmt"
	"time"
)

// Run is the record of one pipeline execution.
type Run struct {
	ID          string       `json:"id"`
	Target      string       `json:"target"`
	Image       string       `json:"image"`
	Event       Event        `json:"event"`
	State       State        `json:"state"`
	FailedStep  Step         `json:"failedStep,omitempty"`
	Error       string       `json:"error,omitempty"`
	ImageID     string       `json:"imageID,omitempty"`
	Digest      string       `json:"digest,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Transitions []Transition `json:"transitions,omitempty"`
}

// Transition is one recorded state change of a run.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Succeeded reports whether the run reached StateDeployed.
func (r Run) Succeeded() bool {
	return r.State == StateDeployed
}

// transition moves r to state to, recording the change at now.
func (r *Run) transition(to State, now time.Time) error {
	if !r.State.CanTransitionTo(to) {
		return fmt.Errorf("illegal transition %s -> %s", r.State, to)
	}
	r.Transitions = append(r.Transitions, Transition{From: r.State, To: to, At: now})
	r.State = to
	r.UpdatedAt = now
	return nil
}

// fail moves r to StateFailed and records the step and error verbatim.
func (r *Run) fail(step Step, err error, now time.Time) {
	if r.State.Terminal() {
		return
	}
	r.Transitions = append(r.Transitions, Transition{From: r.State, To: StateFailed, At: now})
	r.State = StateFailed
	r.FailedStep = step
	r.Error = err.Error()
	r.UpdatedAt = now
}
