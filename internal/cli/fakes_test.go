package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/pipeline"
)

var runTime = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func deployedRun(ctx context.Context) (pipeline.Run, error) {
	return pipeline.Run{
		ID:        "run-1",
		Target:    "planner-bot",
		Image:     "plannerregistry.azurecr.io/planner:latest",
		State:     pipeline.StateDeployed,
		Digest:    "sha256:pushed",
		CreatedAt: runTime,
		UpdatedAt: runTime.Add(time.Minute),
	}, nil
}

func failedRun(ctx context.Context) (pipeline.Run, error) {
	err := fmt.Errorf("%w: UNAUTHORIZED", shipiterr.ErrAuthentication)
	return pipeline.Run{
		ID:         "run-2",
		Target:     "planner-bot",
		Image:      "plannerregistry.azurecr.io/planner:latest",
		State:      pipeline.StateFailed,
		FailedStep: pipeline.StepPublish,
		Error:      err.Error(),
		CreatedAt:  runTime,
		UpdatedAt:  runTime.Add(time.Minute),
	}, &shipiterr.StepError{Step: string(pipeline.StepPublish), Err: err}
}

func notQualifying(ctx context.Context) (pipeline.Run, error) {
	return pipeline.Run{}, fmt.Errorf("%w: push refs/heads/feature", shipiterr.ErrNotQualifying)
}

func targetBusy(ctx context.Context) (pipeline.Run, error) {
	return pipeline.Run{}, fmt.Errorf("could not lock target planner-bot: %w", shipiterr.ErrTargetBusy)
}

// badWriter fails every write.
type badWriter struct{}

func (badWriter) WriteFile(string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}
