package formatters

import (
	"time"

	"github.com/familyevents/shipit/internal/pipeline"
	"github.com/familyevents/shipit/version"
)

const (
	StepPassed  = "passed"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

// stepStates maps every step to the state entered when it starts and the
// state entered when it completes.
var stepStates = []struct {
	step       pipeline.Step
	start, end pipeline.State
}{
	{pipeline.StepBuild, pipeline.StateBuilding, pipeline.StateBuilt},
	{pipeline.StepPublish, pipeline.StatePublishing, pipeline.StatePublished},
	{pipeline.StepDeploy, pipeline.StateDeploying, pipeline.StateDeployed},
}

// getResponse flattens a run into the user-facing report.
func getResponse(r pipeline.Run) UserResponse {
	entered := map[pipeline.State]time.Time{}
	for _, t := range r.Transitions {
		entered[t.To] = t.At
	}
	failedAt, failed := entered[pipeline.StateFailed]

	steps := make([]stepExecutionInfo, 0, len(stepStates))
	for _, s := range stepStates {
		info := stepExecutionInfo{Name: string(s.step), Status: StepSkipped}
		started, ok := entered[s.start]
		switch {
		case !ok:
		case failed && r.FailedStep == s.step:
			info.Status = StepFailed
			info.ElapsedTime = float64(failedAt.Sub(started).Milliseconds())
		default:
			if done, ok := entered[s.end]; ok {
				info.Status = StepPassed
				info.ElapsedTime = float64(done.Sub(started).Milliseconds())
			}
		}
		steps = append(steps, info)
	}

	return UserResponse{
		RunID:       r.ID,
		Target:      r.Target,
		Image:       r.Image,
		Digest:      r.Digest,
		State:       string(r.State),
		Deployed:    r.Succeeded(),
		FailedStep:  string(r.FailedStep),
		Error:       r.Error,
		Event:       r.Event,
		Steps:       steps,
		StartedAt:   r.CreatedAt,
		FinishedAt:  r.UpdatedAt,
		LibraryInfo: version.Version,
	}
}

// UserResponse is the standard user-facing run report.
type UserResponse struct {
	RunID       string                 `json:"run_id"`
	Target      string                 `json:"target"`
	Image       string                 `json:"image"`
	Digest      string                 `json:"digest,omitempty"`
	State       string                 `json:"state"`
	Deployed    bool                   `json:"deployed"`
	FailedStep  string                 `json:"failed_step,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Event       pipeline.Event         `json:"event"`
	Steps       []stepExecutionInfo    `json:"steps"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
	LibraryInfo version.VersionContext `json:"shipit"`
}

// stepExecutionInfo is the outcome of one pipeline step.
type stepExecutionInfo struct {
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	ElapsedTime float64 `json:"elapsed_time"`
}
