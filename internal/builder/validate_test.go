package builder

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/pipeline"
)

var _ = Describe("Build context validation", func() {
	var (
		fs  afero.Fs
		req pipeline.BuildRequest
	)

	BeforeEach(func() {
		fs = afero.NewMemMapFs()
		Expect(afero.WriteFile(fs, "/src/Dockerfile", []byte("FROM python:3.11-slim\n"), 0o644)).To(Succeed())
		Expect(afero.WriteFile(fs, "/src/requirements.txt", []byte(
			"# runtime\n"+
				"python-telegram-bot[job-queue]==20.7\n"+
				"beautifulsoup4>=4.12,<5\n"+
				"requests\n"+
				"dateparser ~= 1.2  # dates\n"+
				"geopy; python_version >= \"3.8\"\n"+
				"\n"+
				"-r extra.txt\n"+
				"--index-url https://pypi.org/simple\n",
		), 0o644)).To(Succeed())
		req = pipeline.BuildRequest{
			ContextDir: "/src",
			Dockerfile: "Dockerfile",
			Manifest:   "requirements.txt",
			Image:      "plannerregistry.azurecr.io/planner:latest",
		}
	})

	It("should accept a valid context", func() {
		Expect(ValidateContext(fs, req)).To(Succeed())
	})

	It("should accept a context without a manifest", func() {
		req.Manifest = ""
		Expect(fs.Remove("/src/requirements.txt")).To(Succeed())
		Expect(ValidateContext(fs, req)).To(Succeed())
	})

	DescribeTable("should reject",
		func(mutate func(), substr string) {
			mutate()
			err := ValidateContext(fs, req)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, shipiterr.ErrBuild)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(substr))
		},
		Entry("a missing context directory", func() { req.ContextDir = "/nope" }, "/nope"),
		Entry("a missing Dockerfile", func() { req.Dockerfile = "Containerfile" }, "Containerfile"),
		Entry("a missing manifest", func() { req.Manifest = "requirements-dev.txt" }, "requirements-dev.txt"),
		Entry("an invalid dependency name", func() {
			Expect(afero.WriteFile(fs, "/src/requirements.txt", []byte("requests\npython telegram bot\n"), 0o644)).To(Succeed())
		}, "line 2"),
		Entry("a dangling version specifier", func() {
			Expect(afero.WriteFile(fs, "/src/requirements.txt", []byte("requests==\n"), 0o644)).To(Succeed())
		}, "requests=="),
	)

	DescribeTable("requirement syntax",
		func(line string, valid bool) {
			Expect(requirementPattern.MatchString(manifestEntry(line))).To(Equal(valid))
		},
		Entry("bare name", "requests", true),
		Entry("dotted name", "zope.interface", true),
		Entry("pinned", "aiohttp==3.9.1", true),
		Entry("range", "lxml>=4.9, <6", true),
		Entry("extras", "uvicorn[standard]>=0.23", true),
		Entry("marker", `tzdata; sys_platform == "win32"`, true),
		Entry("leading symbol", "_private", false),
		Entry("space in name", "beautiful soup", false),
		Entry("unknown operator", "requests=>2", false),
	)
})
