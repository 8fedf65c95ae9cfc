// Package runrepotest provides contract tests for [pipeline.RunRepository]
// and [pipeline.Locker] implementations.
package runrepotest

import (
	"context"
	"errors"
	"testing"
	"time"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/pipeline"
)

// Factory creates a fresh [pipeline.RunRepository] for each test.
type Factory func(t *testing.T) pipeline.RunRepository

// LockerFactory creates a fresh [pipeline.Locker] for each test.
type LockerFactory func(t *testing.T) pipeline.Locker

var epoch = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func sampleRun(id string, created time.Time) pipeline.Run {
	return pipeline.Run{
		ID:     id,
		Target: "planner-bot",
		Image:  "plannerregistry.azurecr.io/planner:latest",
		Event: pipeline.Event{
			Name:       pipeline.EventPush,
			Ref:        "refs/heads/main",
			Commit:     "0a1b2c3d",
			Repository: "https://github.com/familyevents/planner.git",
		},
		State:     pipeline.StateTriggered,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// Run exercises the [pipeline.RunRepository] contract.
func Run(t *testing.T, factory Factory) {
	t.Run("CreateAndGet", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		if err := repo.Create(ctx, sampleRun("r1", epoch)); err != nil {
			t.Fatalf("Create: %v", err)
		}

		got, err := repo.Get(ctx, "r1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.State != pipeline.StateTriggered {
			t.Errorf("State = %q, want %q", got.State, pipeline.StateTriggered)
		}
		if got.Event.Commit != "0a1b2c3d" {
			t.Errorf("Event.Commit = %q, want %q", got.Event.Commit, "0a1b2c3d")
		}
		if !got.CreatedAt.Equal(epoch) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, epoch)
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		if err := repo.Create(ctx, sampleRun("r1", epoch)); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := repo.Create(ctx, sampleRun("r1", epoch)); err == nil {
			t.Fatal("expected error creating a duplicate run")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		repo := factory(t)

		_, err := repo.Get(context.Background(), "missing")
		if !errors.Is(err, shipiterr.ErrRunNotFound) {
			t.Fatalf("Get: got %v, want ErrRunNotFound", err)
		}
	})

	t.Run("UpdateRecordsOutcome", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		r := sampleRun("r1", epoch)
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}

		later := epoch.Add(time.Minute)
		r.State = pipeline.StateFailed
		r.FailedStep = pipeline.StepPublish
		r.Error = "authentication failed: UNAUTHORIZED"
		r.ImageID = "sha256:1111"
		r.UpdatedAt = later
		r.Transitions = []pipeline.Transition{
			{From: pipeline.StateTriggered, To: pipeline.StateBuilding, At: epoch},
			{From: pipeline.StateBuilding, To: pipeline.StateBuilt, At: epoch},
			{From: pipeline.StateBuilt, To: pipeline.StatePublishing, At: epoch},
			{From: pipeline.StatePublishing, To: pipeline.StateFailed, At: later},
		}
		if err := repo.Update(ctx, r); err != nil {
			t.Fatalf("Update: %v", err)
		}

		got, err := repo.Get(ctx, "r1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.State != pipeline.StateFailed {
			t.Errorf("State = %q, want %q", got.State, pipeline.StateFailed)
		}
		if got.FailedStep != pipeline.StepPublish {
			t.Errorf("FailedStep = %q, want %q", got.FailedStep, pipeline.StepPublish)
		}
		if got.Error != r.Error {
			t.Errorf("Error = %q, want %q", got.Error, r.Error)
		}
		if len(got.Transitions) != 4 {
			t.Fatalf("Transitions = %d, want 4", len(got.Transitions))
		}
		if got.Transitions[3].To != pipeline.StateFailed {
			t.Errorf("last transition to %q, want %q", got.Transitions[3].To, pipeline.StateFailed)
		}
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		repo := factory(t)

		err := repo.Update(context.Background(), sampleRun("missing", epoch))
		if !errors.Is(err, shipiterr.ErrRunNotFound) {
			t.Fatalf("Update: got %v, want ErrRunNotFound", err)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		for i, id := range []string{"r1", "r2", "r3"} {
			if err := repo.Create(ctx, sampleRun(id, epoch.Add(time.Duration(i)*time.Minute))); err != nil {
				t.Fatalf("Create %s: %v", id, err)
			}
		}

		all, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("List = %d runs, want 3", len(all))
		}
		if all[0].ID != "r3" || all[2].ID != "r1" {
			t.Errorf("List order = %s,%s,%s, want r3,r2,r1", all[0].ID, all[1].ID, all[2].ID)
		}

		limited, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatalf("List(2): %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("List(2) = %d runs, want 2", len(limited))
		}
	})
}

// RunLocker exercises the [pipeline.Locker] contract.
func RunLocker(t *testing.T, factory LockerFactory) {
	t.Run("LockAndUnlock", func(t *testing.T) {
		locks := factory(t)
		ctx := context.Background()

		if err := locks.Lock(ctx, "planner-bot", "r1"); err != nil {
			t.Fatalf("Lock: %v", err)
		}
		if err := locks.Unlock(ctx, "planner-bot", "r1"); err != nil {
			t.Fatalf("Unlock: %v", err)
		}
		if err := locks.Lock(ctx, "planner-bot", "r2"); err != nil {
			t.Fatalf("Lock after Unlock: %v", err)
		}
	})

	t.Run("SecondOwnerIsRejected", func(t *testing.T) {
		locks := factory(t)
		ctx := context.Background()

		if err := locks.Lock(ctx, "planner-bot", "r1"); err != nil {
			t.Fatalf("Lock: %v", err)
		}
		err := locks.Lock(ctx, "planner-bot", "r2")
		if !errors.Is(err, shipiterr.ErrTargetBusy) {
			t.Fatalf("second Lock: got %v, want ErrTargetBusy", err)
		}
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		locks := factory(t)
		ctx := context.Background()

		if err := locks.Lock(ctx, "planner-bot", "r1"); err != nil {
			t.Fatalf("Lock: %v", err)
		}
		if err := locks.Lock(ctx, "planner-bot-staging", "r2"); err != nil {
			t.Fatalf("Lock other key: %v", err)
		}
	})

	t.Run("UnlockByOtherOwnerKeepsLock", func(t *testing.T) {
		locks := factory(t)
		ctx := context.Background()

		if err := locks.Lock(ctx, "planner-bot", "r1"); err != nil {
			t.Fatalf("Lock: %v", err)
		}
		_ = locks.Unlock(ctx, "planner-bot", "r2")
		if err := locks.Lock(ctx, "planner-bot", "r3"); !errors.Is(err, shipiterr.ErrTargetBusy) {
			t.Fatalf("Lock after foreign Unlock: got %v, want ErrTargetBusy", err)
		}
	})

	t.Run("RefreshRequiresOwnership", func(t *testing.T) {
		locks := factory(t)
		ctx := context.Background()

		if err := locks.Lock(ctx, "planner-bot", "r1"); err != nil {
			t.Fatalf("Lock: %v", err)
		}
		if err := locks.Refresh(ctx, "planner-bot", "r1"); err != nil {
			t.Fatalf("Refresh by owner: %v", err)
		}
		if err := locks.Refresh(ctx, "planner-bot", "r2"); err == nil {
			t.Fatal("Refresh by another owner succeeded")
		}
		if err := locks.Refresh(ctx, "planner-bot-staging", "r1"); err == nil {
			t.Fatal("Refresh of an unheld key succeeded")
		}
	})
}
