package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/familyevents/shipit/artifacts"
	"github.com/familyevents/shipit/internal/checkout"
	"github.com/familyevents/shipit/internal/cli"
	"github.com/familyevents/shipit/internal/formatters"
	"github.com/familyevents/shipit/internal/pipeline"
	"github.com/familyevents/shipit/internal/runtime"
	"github.com/familyevents/shipit/internal/secrets"
	"github.com/familyevents/shipit/internal/viper"
	"github.com/familyevents/shipit/internal/webhook"
	"github.com/familyevents/shipit/version"
)

func serveCmd() *cobra.Command {
	var lockWait time.Duration

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive push webhooks and run the pipeline for each qualifying push",
		Long: "Starts an HTTP server accepting signed GitHub push webhooks. Qualifying pushes are cloned\n" +
			"and run one at a time, in the order they arrived. The run history is served under /api/v1/runs.",
		Args:    cobra.NoArgs,
		PreRunE: bindConfigFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRunE(cmd, lockWait)
		},
	}

	flags := serveCmd.Flags()
	flags.String("branch", "", "The only branch whose pushes trigger a run. (env: SHIPIT_BRANCH)")
	flags.String("listen", "", "Address the webhook server listens on. (env: SHIPIT_LISTEN)")
	flags.String("artifacts", "", "Directory run reports are written to, one subdirectory per delivery. (env: SHIPIT_ARTIFACTS)")
	flags.DurationVar(&lockWait, "lock-wait", DefaultServeLockWait, "How long a run waits for a deployment target held by another run.")

	bindImageFlags(serveCmd)
	bindTargetFlags(serveCmd)

	return serveCmd
}

func serveRunE(cmd *cobra.Command, lockWait time.Duration) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logr.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("invalid logging configuration")
	}
	logger.Info("shipit version", "version", version.Version.String())

	cfg, err := runtime.NewConfigFrom(*viper.Instance())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store := secrets.New(cfg.SecretsDir)
	webhookSecret, err := store.Lookup(ctx, cfg.WebhookSecretName)
	if err != nil {
		return fmt.Errorf("could not read webhook secret: %w", err)
	}
	gitToken, err := secrets.Optional(ctx, store, cfg.GitTokenSecret)
	if err != nil {
		return err
	}

	formatter, err := formatters.NewForConfig(cfg.ReadOnly())
	if err != nil {
		return err
	}

	deps, err := newPipeline(ctx, cfg, store, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer deps.Close()

	runner := &pushRunner{
		cfg:          cfg,
		orchestrator: deps.orchestrator,
		gitToken:     gitToken,
		formatter:    formatter,
		out:          cmd.OutOrStdout(),
		lockWait:     lockWait,
	}

	srv, err := webhook.New(webhook.Options{
		Secret: []byte(webhookSecret),
		Branch: cfg.Branch,
		Runs:   deps.orchestrator.Runs,
		Handle: runner.handle,
		Logger: logger.WithName("webhook"),
	})
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Listen(gctx, cfg.Listen)
	})
	g.Go(func() error {
		return srv.Work(gctx)
	})
	return g.Wait()
}

// pushRunner runs the pipeline for queued pushes, one at a time.
type pushRunner struct {
	cfg          *runtime.Config
	orchestrator *pipeline.Orchestrator
	gitToken     string
	formatter    formatters.ResponseFormatter
	out          io.Writer
	lockWait     time.Duration
}

// handle runs p. The pushed commit is checked out inside the build step,
// so a failed checkout ends in a recorded failed run like any other build
// failure.
func (r *pushRunner) handle(ctx context.Context, p webhook.Push) error {
	artifactsWriter, err := artifacts.NewFilesystemWriter(artifacts.WithDirectory(filepath.Join(r.cfg.Artifacts, deliveryDir(p))))
	if err != nil {
		return err
	}
	ctx = artifacts.ContextWithWriter(ctx, artifactsWriter)

	o := *r.orchestrator
	o.Builder = &checkout.Builder{
		Inner: r.orchestrator.Builder,
		Request: checkout.Request{
			URL:    p.Event.Repository,
			Branch: r.cfg.Branch,
			Commit: p.Event.Commit,
			Token:  r.gitToken,
		},
	}

	plan := planFor(r.cfg, p.Event, r.cfg.ContextDir)
	execute := retryWhileBusy(func(ctx context.Context) (pipeline.Run, error) {
		return o.Execute(ctx, plan)
	}, r.lockWait)
	return cli.RunPipeline(ctx, execute, r.formatter, r.out)
}

// deliveryDir names the artifacts subdirectory of a push. Delivery IDs
// are not covered by the payload signature and are only used when they
// are UUIDs.
func deliveryDir(p webhook.Push) string {
	if id, err := uuid.Parse(p.Delivery); err == nil {
		return id.String()
	}
	return filepath.Base(filepath.Clean("/" + p.Event.Commit))
}
