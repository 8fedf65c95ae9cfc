package cmd

import (
	"bytes"
	"context"
	"errors"

	"github.com/google/go-github/v57/github"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/familyevents/shipit/version"
)

type fakeReleases struct {
	tag string
	err error
}

func (f fakeReleases) GetLatestRelease(ctx context.Context, owner, repo string) (*github.RepositoryRelease, *github.Response, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	url := "https://github.com/familyevents/shipit/releases/tag/" + f.tag
	return &github.RepositoryRelease{TagName: &f.tag, HTMLURL: &url}, nil, nil
}

var _ = Describe("Version command", func() {
	BeforeEach(func() {
		isolateConfig()
	})

	It("should print the version", func() {
		out, err := executeCommand(rootCmd(), "version")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring(version.Version.String()))
	})

	Context("checking for a newer release", func() {
		BeforeEach(func() {
			saved := version.Version
			version.Version.Version = "0.1.0"
			DeferCleanup(func() { version.Version = saved })
		})

		It("should report a newer release", func() {
			cmd := versionCmd()
			out := &bytes.Buffer{}
			cmd.SetOut(out)
			cmd.SetContext(context.Background())

			checkForNewerReleaseVersion(cmd, fakeReleases{tag: "0.2.0"})
			Expect(out.String()).To(ContainSubstring("newer release 0.2.0"))
		})

		It("should report being up to date", func() {
			cmd := versionCmd()
			out := &bytes.Buffer{}
			cmd.SetOut(out)
			cmd.SetContext(context.Background())

			checkForNewerReleaseVersion(cmd, fakeReleases{tag: "0.1.0"})
			Expect(out.String()).To(ContainSubstring("up to date"))
		})

		It("should print nothing when github fails", func() {
			cmd := versionCmd()
			out := &bytes.Buffer{}
			cmd.SetOut(out)
			cmd.SetContext(context.Background())

			checkForNewerReleaseVersion(cmd, fakeReleases{err: errors.New("rate limited")})
			Expect(out.String()).To(BeEmpty())
		})
	})
})
