package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/crane"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/appservice"
	"github.com/familyevents/shipit/internal/builder"
	"github.com/familyevents/shipit/internal/history"
	"github.com/familyevents/shipit/internal/notify"
	"github.com/familyevents/shipit/internal/option"
	"github.com/familyevents/shipit/internal/pipeline"
	"github.com/familyevents/shipit/internal/registry"
	"github.com/familyevents/shipit/internal/runtime"
	"github.com/familyevents/shipit/internal/secrets"
)

// pipelineDeps are the collaborators of one orchestrator plus the history
// database they share.
type pipelineDeps struct {
	orchestrator *pipeline.Orchestrator
	db           *sql.DB
}

func (d *pipelineDeps) Close() error {
	return d.db.Close()
}

// newPipeline wires the orchestrator for cfg. Registry and cloud
// credentials are read from store by the step that needs them, so a run
// that never reaches that step never reads them. Image builds stream
// their output to buildOutput.
func newPipeline(ctx context.Context, cfg *runtime.Config, store secrets.Store, buildOutput io.Writer) (*pipelineDeps, error) {
	logger := logr.FromContextOrDiscard(ctx)

	dockerBuilder, err := builder.NewDockerBuilder(buildOutput)
	if err != nil {
		return nil, err
	}

	db, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("could not open run history: %w", err)
	}

	o := &pipeline.Orchestrator{
		Builder: dockerBuilder,
		Publisher: &registry.Publisher{
			Source: registry.DaemonSource{},
			Options: func(ctx context.Context) ([]crane.Option, error) {
				creds, err := registryCredentials(ctx, cfg, store)
				if err != nil {
					return nil, err
				}
				return option.GenerateCraneOptions(ctx, cfg, creds), nil
			},
		},
		Deployer: &appservice.Client{
			Secrets:            store,
			CredentialsSecret:  cfg.CloudCredentialsSecret,
			ResourceGroup:      cfg.ResourceGroup,
			ManagementEndpoint: cfg.ManagementEndpoint,
			AuthorityHost:      cfg.AuthorityHost,
		},
		Runs:  &history.RunRepo{DB: db},
		Locks: &history.LockRepo{DB: db, TTL: cfg.LockTTL},
	}

	token, err := secrets.Optional(ctx, store, cfg.NotifyTokenSecret)
	if err != nil {
		db.Close()
		return nil, err
	}
	if token != "" && cfg.NotifyChatID != "" {
		telegram, err := notify.NewTelegram(token, cfg.NotifyChatID, "")
		if err != nil {
			db.Close()
			return nil, err
		}
		o.Notifier = telegram
	} else {
		logger.V(1).Info("run notifications disabled")
	}

	return &pipelineDeps{orchestrator: o, db: db}, nil
}

// registryCredentials reads the optional registry login secrets. Without
// them crane falls back to the docker config keychain.
func registryCredentials(ctx context.Context, cfg *runtime.Config, store secrets.Store) (option.RegistryCredentials, error) {
	username, err := secrets.Optional(ctx, store, cfg.RegistryUsernameSecret)
	if err != nil {
		return option.RegistryCredentials{}, err
	}
	password, err := secrets.Optional(ctx, store, cfg.RegistryPasswordSecret)
	if err != nil {
		return option.RegistryCredentials{}, err
	}
	return option.RegistryCredentials{
		Registry: cfg.RegistryServer,
		Username: username,
		Password: password,
	}, nil
}

// planFor describes a run of cfg triggered by event, building from
// contextDir.
func planFor(cfg *runtime.Config, event pipeline.Event, contextDir string) pipeline.Plan {
	labels := map[string]string{}
	if event.Commit != "" {
		labels[builder.LabelRevision] = event.Commit
	}
	if event.Repository != "" {
		labels[builder.LabelSource] = event.Repository
	}

	return pipeline.Plan{
		Event:  event,
		Branch: cfg.Branch,
		Target: cfg.Target,
		Build: pipeline.BuildRequest{
			ContextDir: contextDir,
			Dockerfile: cfg.Dockerfile,
			Manifest:   cfg.Manifest,
			Image:      cfg.ImageReference(),
			Platform:   cfg.Platform,
			Labels:     labels,
		},
	}
}

type executeFunc = func(context.Context) (pipeline.Run, error)

// retryWhileBusy retries execute with exponential backoff for as long as
// the target is held by another run, up to wait. A zero wait fails fast.
func retryWhileBusy(execute executeFunc, wait time.Duration) executeFunc {
	if wait <= 0 {
		return execute
	}
	return func(ctx context.Context) (pipeline.Run, error) {
		logger := logr.FromContextOrDiscard(ctx)

		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = wait

		var run pipeline.Run
		op := func() error {
			r, err := execute(ctx)
			run = r
			if errors.Is(err, shipiterr.ErrTargetBusy) {
				return err
			}
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		onBusy := func(err error, next time.Duration) {
			logger.Info("deployment target busy, waiting", "retry in", next.String())
		}

		err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), onBusy)
		return run, err
	}
}
