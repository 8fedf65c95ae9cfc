package version

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/google/go-github/v57/github"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

var _ = Describe("version package utility", func() {
	var vc VersionContext

	BeforeEach(func() {
		vc = VersionContext{
			Name:    projectName,
			Version: "0.0.1",
			Commit:  "foobar",
		}
	})

	It("should default to unknown when not built with ldflags", func() {
		Expect(Version.Name).To(Equal("github.com/familyevents/shipit"))
		Expect(Version.Version).ToNot(BeEmpty())
		Expect(Version.Commit).ToNot(BeEmpty())
	})

	Context("When printing the VersionContext", func() {
		It("should display the version and the commit information as a string", func() {
			Expect(strings.Contains(vc.String(), "0.0.1")).To(BeTrue())
			Expect(strings.Contains(vc.String(), "foobar")).To(BeTrue())
		})
	})

	// VersionContext is embedded in run reports.
	Context("When using a VersionContext", func() {
		It("should have JSON struct tags on fields", func() {
			nf, nexists := reflect.TypeOf(&Version).Elem().FieldByName("Name")
			Expect(nexists).To(BeTrue())
			Expect(string(nf.Tag)).To(Equal(`json:"name"`))

			vf, vexists := reflect.TypeOf(&Version).Elem().FieldByName("Version")
			Expect(vexists).To(BeTrue())
			Expect(string(vf.Tag)).To(Equal(`json:"version"`))

			cf, cexists := reflect.TypeOf(&Version).Elem().FieldByName("Commit")
			Expect(cexists).To(BeTrue())
			Expect(string(cf.Tag)).To(Equal(`json:"commit"`))
		})

		It("should only have three struct keys for tests to be valid", func() {
			keys := reflect.TypeOf(Version).NumField()
			Expect(keys).To(Equal(3))
		})
	})

	Context("When retrieving latest available release from Github", func() {
		Context("When current version is older than the latest version", func() {
			It("should return a version", func() {
				release, err := vc.LatestReleasedVersion(testContext(), &MockGhVersionClientNewer{})
				Expect(err).ToNot(HaveOccurred())
				Expect(release).ToNot(BeNil())
				Expect(release.GetTagName()).To(Equal("0.0.2"))
				Expect(release.GetHTMLURL()).To(Equal("test.com/release/0.0.2"))
			})
		})
		Context("When current version is the latest version", func() {
			It("should return nil", func() {
				release, err := vc.LatestReleasedVersion(testContext(), &MockGhVersionClientOlder{})
				Expect(err).ToNot(HaveOccurred())
				Expect(release).To(BeNil())
			})
		})
		Context("When current version is ahead of the latest release", func() {
			It("should return nil", func() {
				vc.Version = "0.1.0"
				release, err := vc.LatestReleasedVersion(testContext(), &MockGhVersionClientNewer{})
				Expect(err).ToNot(HaveOccurred())
				Expect(release).To(BeNil())
			})
		})
		Context("When the version is not in semver format", func() {
			It("should return an error", func() {
				release, err := vc.LatestReleasedVersion(testContext(), &MockGhVersionClientBadVersion{})
				Expect(err).To(HaveOccurred())
				Expect(release).To(BeNil())
			})
		})
		Context("When there is an error fetching the latest release from github", func() {
			It("should return an error", func() {
				release, err := vc.LatestReleasedVersion(testContext(), &MockGhVersionClientError{})
				Expect(err).To(HaveOccurred())
				Expect(release).To(BeNil())
			})
		})
		Context("When the project name is not a github path", func() {
			It("should return an error", func() {
				vc.Name = "shipit"
				_, err := vc.LatestReleasedVersion(testContext(), &MockGhVersionClientNewer{})
				Expect(err).To(HaveOccurred())
			})
		})
	})
})

func testContext() context.Context {
	return logr.NewContext(context.Background(), logrusr.New(logrus.New()))
}

type MockGhVersionClientNewer struct{}

type MockGhVersionClientOlder struct{}

type MockGhVersionClientError struct{}

type MockGhVersionClientBadVersion struct{}

func (mc *MockGhVersionClientNewer) GetLatestRelease(ctx context.Context, owner string, repo string) (*github.RepositoryRelease, *github.Response, error) {
	tag := "0.0.2"
	url := "test.com/release/0.0.2"

	release := github.RepositoryRelease{
		TagName: &tag,
		HTMLURL: &url,
	}
	response := github.Response{
		Rate: github.Rate{
			Limit:     60,
			Remaining: 59,
		},
	}

	return &release, &response, nil
}

func (mc *MockGhVersionClientOlder) GetLatestRelease(ctx context.Context, owner string, repo string) (*github.RepositoryRelease, *github.Response, error) {
	tag := "0.0.1"
	url := "test.com/release/0.0.1"
	release := github.RepositoryRelease{
		TagName: &tag,
		HTMLURL: &url,
	}
	response := github.Response{
		Rate: github.Rate{
			Limit:     60,
			Remaining: 59,
		},
	}

	return &release, &response, nil
}

func (mc *MockGhVersionClientBadVersion) GetLatestRelease(ctx context.Context, owner string, repo string) (*github.RepositoryRelease, *github.Response, error) {
	tag := "foobar"
	url := "test.com/release/foobar"
	release := github.RepositoryRelease{
		TagName: &tag,
		HTMLURL: &url,
	}
	response := github.Response{
		Rate: github.Rate{
			Limit:     60,
			Remaining: 59,
		},
	}

	return &release, &response, nil
}

func (mc *MockGhVersionClientError) GetLatestRelease(ctx context.Context, owner string, repo string) (*github.RepositoryRelease, *github.Response, error) {
	return nil, nil, errors.New("unspecified Error")
}
