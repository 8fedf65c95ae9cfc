package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/familyevents/shipit/artifacts"
	"github.com/familyevents/shipit/internal/formatters"
	"github.com/familyevents/shipit/internal/pipeline"
	"github.com/familyevents/shipit/internal/runtime"
	"github.com/familyevents/shipit/internal/secrets"
	"github.com/familyevents/shipit/internal/viper"
	"github.com/familyevents/shipit/version"
)

// runPipeline has the same method signature as cli.RunPipeline so the
// command can be tested without a Docker daemon.
type runPipeline func(context.Context, func(context.Context) (pipeline.Run, error), formatters.ResponseFormatter, io.Writer) error

type eventFlags struct {
	name       string
	ref        string
	commit     string
	repository string
}

func runCmd(runpipeline runPipeline) *cobra.Command {
	var ev eventFlags
	var lockWait time.Duration

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once for the current event",
		Long: "Builds the application image, publishes it to the registry and redeploys the web app.\n" +
			"The triggering event is taken from the flags, falling back to the GITHUB_* variables of the CI environment.",
		Args: cobra.NoArgs,
		// this fmt.Sprintf is in place to keep spacing consistent with cobras two spaces that's used in: Usage, Flags, etc
		Example: fmt.Sprintf("  %s", "shipit run --registry-server plannerregistry.azurecr.io --repository planner --target planner-bot --resource-group family-events"),
		PreRunE: bindConfigFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunE(cmd, resolveEvent(ev, os.Getenv), lockWait, runpipeline)
		},
	}

	flags := runCmd.Flags()

	flags.StringVar(&ev.name, "event", "", "Name of the triggering event. (env: GITHUB_EVENT_NAME)")
	flags.StringVar(&ev.ref, "ref", "", "Ref the event points at, e.g. refs/heads/main. (env: GITHUB_REF)")
	flags.StringVar(&ev.commit, "commit", "", "Commit the event points at. (env: GITHUB_SHA)")
	flags.StringVar(&ev.repository, "source-url", "", "URL of the source repository. (env: GITHUB_SERVER_URL/GITHUB_REPOSITORY)")
	flags.DurationVar(&lockWait, "lock-wait", 0, "How long to wait for a deployment target held by another run. Zero fails immediately.")

	flags.String("branch", "", "The only branch whose pushes trigger a run. (env: SHIPIT_BRANCH)")

	bindImageFlags(runCmd)
	bindTargetFlags(runCmd)

	flags.String("artifacts", "", "Directory the run report is written to. (env: SHIPIT_ARTIFACTS)")

	return runCmd
}

func bindImageFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.String("registry-server", "", "Registry host the image is pushed to. (env: SHIPIT_REGISTRY_SERVER)")

	flags.String("repository", "", "Image repository within the registry. (env: SHIPIT_REPOSITORY)")

	flags.String("tag", "", "Image tag, overwritten by every run. (env: SHIPIT_TAG)")

	flags.String("context", "", "Application directory sent as build context. (env: SHIPIT_CONTEXT)")

	flags.String("dockerfile", "", "Dockerfile, relative to the build context. (env: SHIPIT_DOCKERFILE)")

	flags.String("manifest", "", "Dependency manifest, relative to the build context. (env: SHIPIT_MANIFEST)")

	flags.String("platform", "", "Architecture the image is built for. (env: SHIPIT_PLATFORM)")

	flags.String("docker-config", "", "Path to a docker config.json with registry credentials. (env: SHIPIT_DOCKER_CONFIG)")

	flags.Bool("insecure", false, "Use insecure protocol for the registry.")
}

func bindTargetFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.String("target", "", "Name of the web app that is redeployed. (env: SHIPIT_TARGET)")

	flags.String("resource-group", "", "Resource group of the web app. (env: SHIPIT_RESOURCE_GROUP)")
}

// resolveEvent fills every event field not given as a flag from the CI
// environment.
func resolveEvent(ev eventFlags, getenv func(string) string) pipeline.Event {
	event := pipeline.Event{
		Name:       ev.name,
		Ref:        ev.ref,
		Commit:     ev.commit,
		Repository: ev.repository,
	}
	if event.Name == "" {
		event.Name = getenv("GITHUB_EVENT_NAME")
	}
	if event.Ref == "" {
		event.Ref = getenv("GITHUB_REF")
	}
	if event.Commit == "" {
		event.Commit = getenv("GITHUB_SHA")
	}
	if event.Repository == "" {
		server, repo := getenv("GITHUB_SERVER_URL"), getenv("GITHUB_REPOSITORY")
		if server != "" && repo != "" {
			event.Repository = strings.TrimSuffix(server, "/") + "/" + repo
		}
	}
	return event
}

func runRunE(cmd *cobra.Command, event pipeline.Event, lockWait time.Duration, runpipeline runPipeline) error {
	ctx := cmd.Context()
	logger, err := logr.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("invalid logging configuration")
	}
	logger.Info("shipit version", "version", version.Version.String())

	// Render the Viper configuration as a runtime.Config
	cfg, err := runtime.NewConfigFrom(*viper.Instance())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// nothing is opened, read or written for an event that cannot trigger
	// a run
	if !event.Qualifies(cfg.Branch) {
		logger.Info("event does not trigger a run", "event", event.Name, "ref", event.Ref, "branch", cfg.Branch)
		return nil
	}

	formatter, err := formatters.NewForConfig(cfg.ReadOnly())
	if err != nil {
		return err
	}

	artifactsWriter, err := artifacts.NewFilesystemWriter(artifacts.WithDirectory(cfg.Artifacts))
	if err != nil {
		return err
	}
	ctx = artifacts.ContextWithWriter(ctx, artifactsWriter)

	deps, err := newPipeline(ctx, cfg, secrets.New(cfg.SecretsDir), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer deps.Close()

	plan := planFor(cfg, event, cfg.ContextDir)
	execute := retryWhileBusy(func(ctx context.Context) (pipeline.Run, error) {
		return deps.orchestrator.Execute(ctx, plan)
	}, lockWait)

	cmd.SilenceUsage = true
	return runpipeline(ctx, execute, formatter, cmd.OutOrStdout())
}
