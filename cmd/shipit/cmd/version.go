package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-github/v57/github"
	"github.com/spf13/cobra"

	"github.com/familyevents/shipit/version"
)

func versionCmd() *cobra.Command {
	var checkLatest bool
	var ghToken string

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the shipit version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version.String())
			if checkLatest {
				checkForNewerReleaseVersion(cmd, newGithubClient(ghToken).Repositories)
			}
			return nil
		},
	}

	versionCmd.Flags().BoolVar(&checkLatest, "check-latest", false, "Also report whether a newer release is available.")
	versionCmd.Flags().StringVar(&ghToken, "gh-auth-token", "", "A Github auth token can be specified to work around rate limits")

	return versionCmd
}

func newGithubClient(token string) *github.Client {
	client := github.NewClient(&http.Client{
		// timeout in 1s in case Github is slow to respond
		Timeout: time.Second * 1,
	})
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return client
}

// checkForNewerReleaseVersion checks if there is a newer release available
func checkForNewerReleaseVersion(cmd *cobra.Command, svc version.VersionClient) {
	logger := logr.FromContextOrDiscard(cmd.Context())

	latestRelease, err := version.Version.LatestReleasedVersion(cmd.Context(), svc)
	if err != nil {
		logger.Error(err, "Unable to determine if running the latest release")
		return
	}
	if latestRelease == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "shipit is up to date")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "newer release %s available at %s\n", latestRelease.GetTagName(), latestRelease.GetHTMLURL())
}
