package cli

import (
	"bytes"
	"context"
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/familyevents/shipit/artifacts"
	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/formatters"
	"github.com/familyevents/shipit/internal/pipeline"
)

var _ = Describe("CLI Library function", func() {
	When("invoking the pipeline using the CLI library", func() {
		Context("without passing in an artifact writer", func() {
			It("should throw an error", func() {
				err := RunPipeline(context.TODO(), deployedRun, nil, io.Discard)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("no artifact writer"))
			})
		})

		Context("with a preconfigured artifact writer", func() {
			var testcontext context.Context
			var artifactWriter *artifacts.MapWriter
			var testFormatter formatters.ResponseFormatter
			var out *bytes.Buffer

			BeforeEach(func() {
				var err error
				artifactWriter, err = artifacts.NewMapWriter()
				Expect(err).ToNot(HaveOccurred())
				testcontext = artifacts.ContextWithWriter(context.Background(), artifactWriter)

				testFormatter, err = formatters.NewByName("json")
				Expect(err).ToNot(HaveOccurred())
				out = &bytes.Buffer{}
			})

			It("should print and store the report of a deployed run", func() {
				err := RunPipeline(testcontext, deployedRun, testFormatter, out)
				Expect(err).ToNot(HaveOccurred())
				Expect(out.String()).To(ContainSubstring(`"run_id": "run-1"`))

				files := artifactWriter.Files()
				Expect(files).To(HaveKey("report.json"))
				b, err := io.ReadAll(files["report.json"])
				Expect(err).ToNot(HaveOccurred())
				Expect(string(b)).To(ContainSubstring(`"deployed": true`))
			})

			It("should store the report of a failed run and return the step error", func() {
				err := RunPipeline(testcontext, failedRun, testFormatter, out)
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, shipiterr.ErrAuthentication)).To(BeTrue())

				var stepErr *shipiterr.StepError
				Expect(errors.As(err, &stepErr)).To(BeTrue())
				Expect(stepErr.Step).To(Equal(string(pipeline.StepPublish)))

				Expect(artifactWriter.Files()).To(HaveKey("report.json"))
				Expect(out.String()).To(ContainSubstring(`"failed_step": "publish"`))
			})

			It("should not report anything for a non-qualifying event", func() {
				err := RunPipeline(testcontext, notQualifying, testFormatter, out)
				Expect(err).ToNot(HaveOccurred())
				Expect(out.Len()).To(BeZero())
				Expect(artifactWriter.Files()).To(BeEmpty())
			})

			It("should return the lock error without a report", func() {
				err := RunPipeline(testcontext, targetBusy, testFormatter, out)
				Expect(errors.Is(err, shipiterr.ErrTargetBusy)).To(BeTrue())
				Expect(artifactWriter.Files()).To(BeEmpty())
			})

			It("should throw an error if the formatter returns an error", func() {
				var err error
				testFormatter, err = formatters.New("test", "test", func(ctx context.Context, r pipeline.Run) ([]byte, error) {
					return []byte{}, errors.New("unable to format")
				})
				Expect(err).ToNot(HaveOccurred())

				err = RunPipeline(testcontext, deployedRun, testFormatter, out)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("unable to format"))
			})

			It("should fail if the artifact writer cannot write the report", func() {
				ctx := artifacts.ContextWithWriter(context.Background(), badWriter{})
				err := RunPipeline(ctx, deployedRun, testFormatter, out)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("disk full"))
			})
		})
	})

	It("should name the report after the formatter extension", func() {
		Expect(ReportFilenameWithExtension("yaml")).To(Equal("report.yaml"))
	})
})
