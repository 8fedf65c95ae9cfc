package option

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/google/go-containerregistry/pkg/crane"
	cranev1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/familyevents/shipit/internal/authn"
	"github.com/familyevents/shipit/version"
)

// CraneConfig is the subset of configuration the registry client needs.
type CraneConfig interface {
	CraneDockerConfig() string
	CranePlatform() string
	CraneInsecure() bool
}

// RegistryCredentials are explicit credentials for one registry host.
type RegistryCredentials struct {
	Registry string
	Username string
	Password string
}

// GenerateCraneOptions returns the crane options used for every registry
// call. Failed requests are not retried.
func GenerateCraneOptions(ctx context.Context, craneConfig CraneConfig, creds RegistryCredentials) []crane.Option {
	options := []crane.Option{
		crane.WithContext(ctx),
		crane.WithAuthFromKeychain(
			authn.Keychain(
				ctx,
				authn.WithDockerConfig(craneConfig.CraneDockerConfig()),
				authn.WithCredentials(creds.Registry, creds.Username, creds.Password),
			),
		),
		crane.WithPlatform(&cranev1.Platform{
			OS:           "linux",
			Architecture: craneConfig.CranePlatform(),
		}),
		crane.WithUserAgent("shipit/" + version.Version.Version),
		noRetry(),
	}

	if craneConfig.CraneInsecure() {
		// Registries with self-signed certificates need both plain HTTP
		// fallback and a transport that skips verification.
		rt := remote.DefaultTransport.(*http.Transport).Clone()
		rt.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint: gosec
		}

		options = append(options, crane.Insecure, crane.WithTransport(rt))
	}

	return options
}

// noRetry disables the remote package's default retry of transient errors.
func noRetry() crane.Option {
	return func(o *crane.Options) {
		o.Remote = append(o.Remote,
			remote.WithRetryBackoff(remote.Backoff{Steps: 1}),
			remote.WithRetryStatusCodes(),
		)
	}
}
