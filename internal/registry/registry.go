// Package registry publishes locally built images to a container
// registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	cranev1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/daemon"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/log"
	"github.com/familyevents/shipit/internal/pipeline"
)

// ImageSource loads a built image by reference.
type ImageSource interface {
	Image(ctx context.Context, ref string) (cranev1.Image, error)
}

// DaemonSource reads images from the local Docker daemon.
type DaemonSource struct{}

func (DaemonSource) Image(ctx context.Context, ref string) (cranev1.Image, error) {
	tag, err := name.NewTag(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference %s: %w", ref, err)
	}
	return daemon.Image(tag, daemon.WithContext(ctx))
}

// Publisher implements [pipeline.Publisher] with crane.
type Publisher struct {
	Source ImageSource
	// Options builds the crane options for a call; see
	// option.GenerateCraneOptions. It runs once per Publish, so registry
	// secrets are read only when an image is pushed. Its errors are
	// authentication errors.
	Options func(ctx context.Context) ([]crane.Option, error)
}

var _ pipeline.Publisher = &Publisher{}

// Publish pushes img under its own reference, replacing whatever the tag
// pointed at before, and returns the manifest digest.
func (p *Publisher) Publish(ctx context.Context, img pipeline.BuiltImage) (pipeline.PublishedImage, error) {
	logger := logr.FromContextOrDiscard(ctx)

	image, err := p.Source.Image(ctx, img.Reference)
	if err != nil {
		return pipeline.PublishedImage{}, fmt.Errorf("%w: could not load built image %s: %v", shipiterr.ErrBuild, img.Reference, err)
	}

	var opts []crane.Option
	if p.Options != nil {
		opts, err = p.Options(ctx)
		if err != nil {
			if shipiterr.Category(err) == nil {
				err = fmt.Errorf("%w: registry credentials: %v", shipiterr.ErrAuthentication, err)
			}
			return pipeline.PublishedImage{}, err
		}
	}

	logger.Info("pushing image", "image", img.Reference)
	if err := crane.Push(image, img.Reference, opts...); err != nil {
		return pipeline.PublishedImage{}, classify(img.Reference, err)
	}

	digest, err := image.Digest()
	if err != nil {
		return pipeline.PublishedImage{}, fmt.Errorf("could not compute digest of %s: %w", img.Reference, err)
	}
	logger.V(log.DBG).Info("image pushed", "digest", digest.String())

	return pipeline.PublishedImage{Reference: img.Reference, Digest: digest.String()}, nil
}

// classify wraps a push failure in its error category. Rejected
// credentials are authentication errors; everything else the registry or
// the network returns is a network error.
func classify(ref string, err error) error {
	var terr *transport.Error
	if errors.As(err, &terr) {
		switch terr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: push %s: %v", shipiterr.ErrAuthentication, ref, err)
		}
		for _, d := range terr.Errors {
			if d.Code == transport.UnauthorizedErrorCode || d.Code == transport.DeniedErrorCode {
				return fmt.Errorf("%w: push %s: %v", shipiterr.ErrAuthentication, ref, err)
			}
		}
	}
	return fmt.Errorf("%w: push %s: %v", shipiterr.ErrNetwork, ref, err)
}
