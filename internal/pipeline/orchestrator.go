// Package pipeline sequences the build, publish and deploy steps of a
// deployment run. A run moves through a fixed state machine and stops at
// the first failing step; side effects of completed steps are kept.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/log"
)

// Plan is everything a single run needs besides its collaborators.
type Plan struct {
	Event Event
	// Branch is the only branch whose pushes trigger a run.
	Branch string
	// Target is the logical name of the hosting resource.
	Target string
	// Build describes the image. Build.Image is the reference every step
	// of the run must agree on.
	Build BuildRequest
}

// Orchestrator executes plans. Builder, Publisher, Deployer, Runs and Locks
// are required; Notifier is optional.
type Orchestrator struct {
	Builder   Builder
	Publisher Publisher
	Deployer  Deployer
	Runs      RunRepository
	Locks     Locker
	Notifier  Notifier

	Now   func() time.Time
	NewID func() string
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

// Execute runs plan once. A non-qualifying event returns ErrNotQualifying
// and a busy target returns ErrTargetBusy; neither creates a run record.
// Otherwise the returned Run is terminal, and the error is a
// *errors.StepError when the run failed.
func (o *Orchestrator) Execute(ctx context.Context, plan Plan) (Run, error) {
	logger := logr.FromContextOrDiscard(ctx)

	if !plan.Event.Qualifies(plan.Branch) {
		logger.Info("event does not trigger a run", "event", plan.Event.Name, "ref", plan.Event.Ref, "branch", plan.Branch)
		return Run{}, fmt.Errorf("%w: %s %s", shipiterr.ErrNotQualifying, plan.Event.Name, plan.Event.Ref)
	}

	id := o.newID()
	if err := o.Locks.Lock(ctx, plan.Target, id); err != nil {
		return Run{}, fmt.Errorf("could not lock target %s: %w", plan.Target, err)
	}
	defer func() {
		// the run's own context may already be cancelled
		if err := o.Locks.Unlock(context.WithoutCancel(ctx), plan.Target, id); err != nil {
			logger.Error(err, "unable to release target lock", "target", plan.Target)
		}
	}()

	now := o.now()
	run := Run{
		ID:        id,
		Target:    plan.Target,
		Image:     plan.Build.Image,
		Event:     plan.Event,
		State:     StateTriggered,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.Runs.Create(ctx, run); err != nil {
		return Run{}, fmt.Errorf("could not record run: %w", err)
	}

	logger = logger.WithValues("run", run.ID, "target", run.Target, "image", run.Image)
	ctx = logr.NewContext(ctx, logger)
	logger.Info("pipeline run triggered", "commit", plan.Event.Commit)

	err := o.execute(ctx, &run, plan)
	if err != nil {
		logger.Error(err, "pipeline run failed", "step", run.FailedStep)
	} else {
		logger.Info("pipeline run deployed", "digest", run.Digest)
	}

	if o.Notifier != nil {
		if nerr := o.Notifier.Notify(ctx, run); nerr != nil {
			logger.Error(nerr, "unable to send run notification")
		}
	}

	return run, err
}

// execute walks run through the state machine. Every returned error has
// already been recorded on run.
func (o *Orchestrator) execute(ctx context.Context, run *Run, plan Plan) error {
	// Building
	if err := o.advance(ctx, run, StateBuilding); err != nil {
		return o.failed(ctx, run, StepBuild, err)
	}
	built, err := o.Builder.Build(ctx, plan.Build)
	if err != nil {
		return o.failed(ctx, run, StepBuild, err)
	}
	if built.Reference != run.Image {
		return o.failed(ctx, run, StepBuild, fmt.Errorf("%w: built %s, planned %s", shipiterr.ErrTagMismatch, built.Reference, run.Image))
	}
	run.ImageID = built.ID
	if err := o.advance(ctx, run, StateBuilt); err != nil {
		return o.failed(ctx, run, StepBuild, err)
	}

	// Publishing
	if err := o.advance(ctx, run, StatePublishing); err != nil {
		return o.failed(ctx, run, StepPublish, err)
	}
	published, err := o.Publisher.Publish(ctx, built)
	if err != nil {
		return o.failed(ctx, run, StepPublish, err)
	}
	if published.Reference != run.Image {
		return o.failed(ctx, run, StepPublish, fmt.Errorf("%w: published %s, planned %s", shipiterr.ErrTagMismatch, published.Reference, run.Image))
	}
	run.Digest = published.Digest
	if err := o.advance(ctx, run, StatePublished); err != nil {
		return o.failed(ctx, run, StepPublish, err)
	}

	// Deploying
	if err := o.advance(ctx, run, StateDeploying); err != nil {
		return o.failed(ctx, run, StepDeploy, err)
	}
	if err := o.Deployer.Deploy(ctx, DeployRequest{Target: run.Target, Image: published.Reference}); err != nil {
		return o.failed(ctx, run, StepDeploy, err)
	}
	return o.advance(ctx, run, StateDeployed)
}

func (o *Orchestrator) advance(ctx context.Context, run *Run, to State) error {
	logger := logr.FromContextOrDiscard(ctx)
	from := run.State
	if err := run.transition(to, o.now()); err != nil {
		return err
	}
	logger.V(log.DBG).Info("run state changed", "from", from, "to", to)
	o.save(ctx, *run)
	if err := o.Locks.Refresh(ctx, run.Target, run.ID); err != nil {
		logger.Error(err, "unable to refresh target lock", "target", run.Target)
	}
	return nil
}

func (o *Orchestrator) failed(ctx context.Context, run *Run, step Step, err error) error {
	run.fail(step, err, o.now())
	o.save(ctx, *run)
	return &shipiterr.StepError{Step: string(step), Err: err}
}

// save persists run. History failures are logged and never change the
// outcome of the run.
func (o *Orchestrator) save(ctx context.Context, run Run) {
	if err := o.Runs.Update(context.WithoutCancel(ctx), run); err != nil {
		logr.FromContextOrDiscard(ctx).Error(err, "unable to update run history", "state", run.State)
	}
}
