// Package checkout materializes the commit a run was triggered by.
package checkout

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-logr/logr"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/pipeline"
)

// Request identifies the commit to check out.
type Request struct {
	URL    string
	Branch string
	Commit string
	// Token authenticates HTTPS clones of private repositories. Empty
	// means anonymous.
	Token string
}

// Clone checks out req into a new temporary directory and returns its
// path. The caller removes the directory with os.RemoveAll.
func Clone(ctx context.Context, req Request, progress io.Writer) (string, error) {
	logger := logr.FromContextOrDiscard(ctx)

	dir, err := os.MkdirTemp("", "shipit-checkout-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	opts := &git.CloneOptions{
		URL:      req.URL,
		Progress: progress,
	}
	if req.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(req.Branch)
		opts.SingleBranch = true
	}
	if req.Token != "" {
		// any non-empty username works with token auth
		opts.Auth = &http.BasicAuth{Username: "shipit", Password: req.Token}
	}

	logger.Info("cloning repository", "url", req.URL, "branch", req.Branch, "commit", req.Commit)
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("%w: failed to clone %s: %v", shipiterr.ErrBuild, req.URL, err)
	}

	if req.Commit != "" {
		wt, err := repo.Worktree()
		if err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("%w: %v", shipiterr.ErrBuild, err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(req.Commit)}); err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("%w: failed to check out %s: %v", shipiterr.ErrBuild, req.Commit, err)
		}
	}
	return dir, nil
}

// Builder checks out Request before every build and builds from the
// checkout. The build request's ContextDir is taken relative to the
// repository root. A failed checkout is a failed build.
type Builder struct {
	Inner    pipeline.Builder
	Request  Request
	Progress io.Writer
}

var _ pipeline.Builder = &Builder{}

func (b *Builder) Build(ctx context.Context, req pipeline.BuildRequest) (pipeline.BuiltImage, error) {
	dir, err := Clone(ctx, b.Request, b.Progress)
	if err != nil {
		return pipeline.BuiltImage{}, err
	}
	defer os.RemoveAll(dir)

	req.ContextDir = filepath.Join(dir, req.ContextDir)
	return b.Inner.Build(ctx, req)
}
