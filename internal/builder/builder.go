// Package builder produces the application image with the Docker Engine
// API.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-logr/logr"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/spf13/afero"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/log"
	"github.com/familyevents/shipit/internal/pipeline"
)

const (
	LabelRevision = "org.opencontainers.image.revision"
	LabelSource   = "org.opencontainers.image.source"
)

// DockerAPI is the part of the Docker client used for builds.
type DockerAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
}

// DockerBuilder implements [pipeline.Builder] against a Docker daemon.
type DockerBuilder struct {
	Client DockerAPI
	// Fs is used to validate the build context. It defaults to the host
	// filesystem, which is also where the context is archived from.
	Fs afero.Fs
	// Out receives the build progress. Nil discards it.
	Out io.Writer
}

// NewDockerBuilder connects to the daemon configured by the DOCKER_*
// environment.
func NewDockerBuilder(out io.Writer) (*DockerBuilder, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerBuilder{Client: cli, Fs: afero.NewOsFs(), Out: out}, nil
}

var _ pipeline.Builder = &DockerBuilder{}

// Build validates the context, builds it and tags the result as
// req.Image. Nothing is pushed.
func (b *DockerBuilder) Build(ctx context.Context, req pipeline.BuildRequest) (pipeline.BuiltImage, error) {
	logger := logr.FromContextOrDiscard(ctx)

	fs := b.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := ValidateContext(fs, req); err != nil {
		return pipeline.BuiltImage{}, err
	}

	excludes, err := readDockerignore(req.ContextDir)
	if err != nil {
		return pipeline.BuiltImage{}, fmt.Errorf("%w: %v", shipiterr.ErrBuild, err)
	}
	logger.V(log.DBG).Info("creating build context", "dir", req.ContextDir, "excludes", len(excludes))

	buildContext, err := archive.TarWithOptions(req.ContextDir, &archive.TarOptions{
		ExcludePatterns: excludes,
	})
	if err != nil {
		return pipeline.BuiltImage{}, fmt.Errorf("%w: failed to create build context: %v", shipiterr.ErrBuild, err)
	}
	defer buildContext.Close()

	opts := types.ImageBuildOptions{
		Tags:        []string{req.Image},
		Dockerfile:  filepath.ToSlash(req.Dockerfile),
		Remove:      true,
		ForceRemove: true,
		PullParent:  true,
		Labels:      req.Labels,
	}
	if req.Platform != "" {
		opts.Platform = "linux/" + req.Platform
	}

	logger.Info("building image", "image", req.Image, "platform", opts.Platform)
	resp, err := b.Client.ImageBuild(ctx, buildContext, opts)
	if err != nil {
		if client.IsErrConnectionFailed(err) {
			return pipeline.BuiltImage{}, fmt.Errorf("%w: %v", shipiterr.ErrNetwork, err)
		}
		return pipeline.BuiltImage{}, fmt.Errorf("%w: %v", shipiterr.ErrBuild, err)
	}
	defer resp.Body.Close()

	out := b.Out
	if out == nil {
		out = io.Discard
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil); err != nil {
		var jerr *jsonmessage.JSONError
		if errors.As(err, &jerr) {
			return pipeline.BuiltImage{}, fmt.Errorf("%w: %s", shipiterr.ErrBuild, jerr.Message)
		}
		return pipeline.BuiltImage{}, fmt.Errorf("%w: reading build output: %v", shipiterr.ErrBuild, err)
	}

	inspect, _, err := b.Client.ImageInspectWithRaw(ctx, req.Image)
	if err != nil {
		return pipeline.BuiltImage{}, fmt.Errorf("%w: built image %s not found: %v", shipiterr.ErrBuild, req.Image, err)
	}
	logger.V(log.DBG).Info("image built", "id", inspect.ID)

	return pipeline.BuiltImage{Reference: req.Image, ID: inspect.ID}, nil
}

// readDockerignore returns the exclude patterns of the context's
// .dockerignore, or none when the file does not exist.
func readDockerignore(contextDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(contextDir, ".dockerignore"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open .dockerignore: %w", err)
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("could not parse .dockerignore: %w", err)
	}
	return patterns, nil
}
