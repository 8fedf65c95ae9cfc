// Package secrets resolves credentials by name at run time. Values are
// never cached or written anywhere by this package.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/log"
)

// Store looks up a secret value by name. A missing secret is reported as
// errors.ErrSecretNotFound.
type Store interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// EnvStore reads secrets from environment variables named exactly like the
// secret.
type EnvStore struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func (s EnvStore) Lookup(ctx context.Context, name string) (string, error) {
	lookup := s.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(name)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", shipiterr.ErrSecretNotFound, name)
	}
	logr.FromContextOrDiscard(ctx).V(log.TRC).Info("secret resolved from environment", "name", name)
	return v, nil
}

// FileStore reads secrets from files named like the secret inside Dir, the
// layout used by mounted secret volumes. Trailing newlines are trimmed.
type FileStore struct {
	Fs  afero.Fs
	Dir string
}

// NewFileStore returns a FileStore rooted at dir on the host filesystem.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Fs: afero.NewOsFs(), Dir: dir}
}

func (s *FileStore) Lookup(ctx context.Context, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid secret name %q", shipiterr.ErrSecretNotFound, name)
	}

	b, err := afero.ReadFile(s.Fs, filepath.Join(s.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", shipiterr.ErrSecretNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("could not read secret %s: %w", name, err)
	}

	v := strings.TrimRight(string(b), "\r\n")
	if v == "" {
		return "", fmt.Errorf("%w: %s is empty", shipiterr.ErrSecretNotFound, name)
	}
	logr.FromContextOrDiscard(ctx).V(log.TRC).Info("secret resolved from file", "name", name, "dir", s.Dir)
	return v, nil
}

// ChainStore tries each store in order and returns the first value found.
type ChainStore []Store

func (c ChainStore) Lookup(ctx context.Context, name string) (string, error) {
	for _, s := range c {
		v, err := s.Lookup(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, shipiterr.ErrSecretNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", shipiterr.ErrSecretNotFound, name)
}

// New returns the default store: the environment first, then dir when it is
// set.
func New(dir string) Store {
	chain := ChainStore{EnvStore{}}
	if dir != "" {
		chain = append(chain, NewFileStore(dir))
	}
	return chain
}

// Optional looks up name and returns the empty string when the secret does
// not exist. An empty name is never looked up.
func Optional(ctx context.Context, s Store, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	v, err := s.Lookup(ctx, name)
	if errors.Is(err, shipiterr.ErrSecretNotFound) {
		return "", nil
	}
	return v, err
}
