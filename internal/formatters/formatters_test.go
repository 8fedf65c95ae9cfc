package formatters

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/familyevents/shipit/internal/pipeline"
	"github.com/familyevents/shipit/internal/runtime"
)

var _ = Describe("Formatters", func() {
	Describe("When getting the formatter for the named default format", func() {
		It("should never fail", func() {
			_, err := NewByName(DefaultFormat)
			Expect(err).ToNot(HaveOccurred())
		})
	})
	Describe("When getting a new formatter for a configuration", func() {
		Context("with a valid configuration", func() {
			cfg := runtime.Config{
				ResponseFormat: "json",
			}

			It("should return a formatter and no error", func() {
				formatter, err := NewForConfig(cfg.ReadOnly())
				Expect(err).ToNot(HaveOccurred())
				Expect(formatter.FileExtension()).To(Equal("json"))
			})
		})

		Context("without a configured format", func() {
			cfg := runtime.Config{}

			It("should fall back to the default format", func() {
				formatter, err := NewForConfig(cfg.ReadOnly())
				Expect(err).ToNot(HaveOccurred())
				Expect(formatter.PrettyName()).To(Equal("Plain Text"))
			})
		})

		Context("with an unknown format requested by the user", func() {
			cfg := runtime.Config{
				ResponseFormat: "junitxml",
			}

			It("should return an error", func() {
				formatter, err := NewForConfig(cfg.ReadOnly())

				Expect(err).To(HaveOccurred())
				Expect(formatter).To(BeNil())
			})
		})
	})

	Describe("When creating a new generic formatter", func() {
		Context("with improper arguments", func() {
			var fn FormatterFunc = func(context.Context, pipeline.Run) ([]byte, error) {
				return []byte(fmt.Errorf("unused").Error()), nil
			}

			It("should return an error because of an empty name", func() {
				emptyNameFormatter, err := New("", "txt", fn)
				Expect(err).To(HaveOccurred())
				Expect(emptyNameFormatter).To(BeNil())
			})
		})

		Context("with proper arguments", func() {
			expectedResult := []byte("this is a test")
			var fn FormatterFunc = func(context.Context, pipeline.Run) ([]byte, error) {
				return expectedResult, nil
			}

			It("should format runs with the provided function", func() {
				formatter, err := New("testFormatter", "txt", fn)
				Expect(err).ToNot(HaveOccurred())
				Expect(formatter.PrettyName()).To(Equal("testFormatter"))
				Expect(formatter.FileExtension()).To(Equal("txt"))

				formattingResult, err := formatter.Format(context.TODO(), pipeline.Run{})
				Expect(err).ToNot(HaveOccurred())
				Expect(formattingResult).To(Equal(expectedResult))
			})
		})
	})
})
