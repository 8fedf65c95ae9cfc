// Package version contains all identifiable versioning info for
// describing the shipit project.
package version

import (
	"context"
	"fmt"
	"strings"

	semver "github.com/Masterminds/semver/v3"
	"github.com/go-logr/logr"
	"github.com/google/go-github/v57/github"
)

var (
	projectName = "github.com/familyevents/shipit"
	version     = "unknown"
	commit      = "unknown"
)

var Version = VersionContext{
	Name:    projectName,
	Version: version,
	Commit:  commit,
}

type VersionClient interface {
	GetLatestRelease(ctx context.Context, owner string, repo string) (*github.RepositoryRelease, *github.Response, error)
}

type VersionContext struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func (vc *VersionContext) String() string {
	return fmt.Sprintf("%s <commit: %s>", vc.Version, vc.Commit)
}

// LatestReleasedVersion returns the latest GitHub release of the project
// when it is newer than vc, and nil when vc is up to date.
func (vc *VersionContext) LatestReleasedVersion(ctx context.Context, svc VersionClient) (*github.RepositoryRelease, error) {
	logger := logr.FromContextOrDiscard(ctx)

	projectTokens := strings.Split(vc.Name, "/")
	if len(projectTokens) != 3 {
		return nil, fmt.Errorf("project name %q is not a github.com/owner/repo path", vc.Name)
	}
	owner := projectTokens[1]
	repo := projectTokens[2]

	latestRelease, resp, err := svc.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("could not fetch latest release: %w", err)
	}
	if resp != nil {
		logger.V(1).Info("github responded with", "rate limit", resp.Rate.String())
	}

	currentVersion, err := semver.NewVersion(vc.Version)
	if err != nil {
		logger.Error(err, "unable to determine current semver")
		return nil, err
	}
	latestVersion, err := semver.NewVersion(latestRelease.GetTagName())
	if err != nil {
		logger.Error(err, "unable to determine latest semver")
		return nil, err
	}
	if latestVersion.GreaterThan(currentVersion) {
		return latestRelease, nil
	}
	return nil, nil
}
