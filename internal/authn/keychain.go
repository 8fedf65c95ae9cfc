package authn

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/docker/cli/cli/config"
	"github.com/docker/cli/cli/config/types"
	"github.com/go-logr/logr"
	craneauthn "github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"

	"github.com/familyevents/shipit/internal/log"
)

type shipitKeychain struct {
	dockercfg string
	// registry, username and password are explicit credentials for a
	// single registry host; they win over the docker config.
	registry string
	username string
	password string
	ctx      context.Context
}

type KeychainOption func(*shipitKeychain)

// WithDockerConfig configures the keychain with the docker config at
// path dockercfg. An empty value disables config file lookups.
func WithDockerConfig(dockercfg string) KeychainOption {
	return func(k *shipitKeychain) {
		k.dockercfg = dockercfg
	}
}

// WithCredentials configures an explicit username and password for the
// registry host. They are ignored when either value is empty.
func WithCredentials(registry, username, password string) KeychainOption {
	return func(k *shipitKeychain) {
		k.registry = registry
		k.username = username
		k.password = password
	}
}

// Keychain returns a craneauthn.Keychain that resolves explicit
// credentials first, then the docker config, and finally falls back to
// anonymous access.
func Keychain(ctx context.Context, opts ...KeychainOption) craneauthn.Keychain {
	k := &shipitKeychain{ctx: ctx}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Resolve returns an Authenticator with credentials, or Anonymous if no
// suitable credentials are found for the target. If the docker config
// cannot be found or read, that constitutes an error.
func (k *shipitKeychain) Resolve(target craneauthn.Resource) (craneauthn.Authenticator, error) {
	logger := logr.FromContextOrDiscard(k.ctx)

	logger.V(log.TRC).Info("entering shipit keychain Resolve", "registry", target.RegistryStr())

	if k.username != "" && k.password != "" && sameRegistry(k.registry, target.RegistryStr()) {
		logger.V(log.DBG).Info("using explicit registry credentials", "registry", target.RegistryStr())
		return craneauthn.FromConfig(craneauthn.AuthConfig{
			Username: k.username,
			Password: k.password,
		}), nil
	}

	if k.dockercfg == "" {
		// No file specified. No auth expected
		return craneauthn.Anonymous, nil
	}

	r, err := os.Open(k.dockercfg)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("could not find docker config: %s: %w", k.dockercfg, err)
	}
	if err != nil {
		return nil, fmt.Errorf("could not open docker config: %s: %v", k.dockercfg, err)
	}

	defer r.Close()
	cf, err := config.LoadFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not load docker config from reader: %v", err)
	}

	authFileTargets := []string{
		target.String(),
		target.RegistryStr(),
	}

	// Logins to docker.io are stored under docker.io, while crane resolves
	// the registry as index.docker.io.
	if strings.Contains(name.DefaultRegistry, target.RegistryStr()) {
		authFileTargets = append(authFileTargets,
			strings.Replace(target.String(), name.DefaultRegistry, "docker.io", 1),
			strings.Replace(target.RegistryStr(), name.DefaultRegistry, "docker.io", 1),
		)
	}

	var cfg, empty types.AuthConfig
	for _, key := range authFileTargets {
		if key == name.DefaultRegistry {
			key = craneauthn.DefaultAuthKey
		}

		cfg, err = cf.GetAuthConfig(key)
		if err != nil {
			return nil, fmt.Errorf("could not get auth config: %v", err)
		}
		if cfg != empty {
			break
		}
	}
	if cfg == empty {
		return craneauthn.Anonymous, nil
	}

	return craneauthn.FromConfig(craneauthn.AuthConfig{
		Username:      cfg.Username,
		Password:      cfg.Password,
		Auth:          cfg.Auth,
		IdentityToken: cfg.IdentityToken,
		RegistryToken: cfg.RegistryToken,
	}), nil
}

// sameRegistry compares registry hosts, ignoring any scheme and trailing
// slash on the configured value.
func sameRegistry(configured, target string) bool {
	configured = strings.TrimPrefix(configured, "https://")
	configured = strings.TrimPrefix(configured, "http://")
	configured = strings.TrimSuffix(configured, "/")
	return configured != "" && strings.EqualFold(configured, target)
}
