package cmd

import (
	"bytes"
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/history"
	"github.com/familyevents/shipit/internal/pipeline"
)

var _ = Describe("History commands", func() {
	created := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		isolateConfig()

		db, err := history.Open(os.Getenv("SHIPIT_HISTORY_DB"))
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		runs := &history.RunRepo{DB: db}
		Expect(runs.Create(context.Background(), pipeline.Run{
			ID:        "run-1",
			Target:    "planner-bot",
			Image:     "plannerregistry.azurecr.io/planner:latest",
			Event:     pipeline.Event{Name: "push", Ref: "refs/heads/main", Commit: "0a1b2c3d4e5f"},
			State:     pipeline.StateDeployed,
			CreatedAt: created,
			UpdatedAt: created,
		})).To(Succeed())
		Expect(runs.Create(context.Background(), pipeline.Run{
			ID:         "run-2",
			Target:     "planner-bot",
			Image:      "plannerregistry.azurecr.io/planner:latest",
			Event:      pipeline.Event{Name: "push", Ref: "refs/heads/main", Commit: "ffeeddcc"},
			State:      pipeline.StateFailed,
			FailedStep: pipeline.StepPublish,
			Error:      "authentication failed: UNAUTHORIZED",
			CreatedAt:  created.Add(time.Hour),
			UpdatedAt:  created.Add(time.Hour),
		})).To(Succeed())
	})

	It("should list runs newest first", func() {
		out, err := executeCommand(rootCmd(), "history", "list")
		Expect(err).ToNot(HaveOccurred())

		lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
		Expect(lines).To(HaveLen(3))
		Expect(string(lines[0])).To(HavePrefix("ID"))
		Expect(string(lines[1])).To(ContainSubstring("Failed (publish)"))
		Expect(string(lines[2])).To(ContainSubstring("0a1b2c3"))
		Expect(string(lines[2])).ToNot(ContainSubstring("0a1b2c3d"))
	})

	It("should honour the limit", func() {
		out, err := executeCommand(rootCmd(), "history", "list", "--limit", "1")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("run-2"))
		Expect(out).ToNot(ContainSubstring("run-1"))
	})

	It("should show a run report in the requested format", func() {
		out, err := executeCommand(rootCmd(), "history", "show", "run-2", "--format", "json")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring(`"run_id": "run-2"`))
		Expect(out).To(ContainSubstring(`"failed_step": "publish"`))
	})

	It("should fail for an unknown run", func() {
		_, err := executeCommand(rootCmd(), "history", "show", "nope")
		Expect(err).To(MatchError(shipiterr.ErrRunNotFound))
	})
})
