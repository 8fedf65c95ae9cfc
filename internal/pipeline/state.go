package pipeline

// State is the position of a run in the pipeline state machine.
type State string

const (
	StateTriggered  State = "Triggered"
	StateBuilding   State = "Building"
	StateBuilt      State = "Built"
	StatePublishing State = "Publishing"
	StatePublished  State = "Published"
	StateDeploying  State = "Deploying"
	StateDeployed   State = "Deployed"
	StateFailed     State = "Failed"
)

// next lists the single forward transition out of every non-terminal state.
// Any non-terminal state may also move to StateFailed.
var next = map[State]State{
	StateTriggered:  StateBuilding,
	StateBuilding:   StateBuilt,
	StateBuilt:      StatePublishing,
	StatePublishing: StatePublished,
	StatePublished:  StateDeploying,
	StateDeploying:  StateDeployed,
}

// Terminal reports whether no further transitions are allowed out of s.
func (s State) Terminal() bool {
	return s == StateDeployed || s == StateFailed
}

// CanTransitionTo reports whether the state machine allows s -> to.
func (s State) CanTransitionTo(to State) bool {
	if s.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[s] == to
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateTriggered, StateBuilding, StateBuilt, StatePublishing,
		StatePublished, StateDeploying, StateDeployed, StateFailed:
		return true
	}
	return false
}

// Step names a unit of work executed by the orchestrator.
type Step string

const (
	StepBuild   Step = "build"
	StepPublish Step = "publish"
	StepDeploy  Step = "deploy"
)
