// Package formatters defines the abstractions used to properly format a
// shipit run report.
package formatters

import (
	"context"
	"fmt"

	"github.com/familyevents/shipit/internal/config"
	"github.com/familyevents/shipit/internal/pipeline"
)

// DefaultFormat is used when no format is configured.
const DefaultFormat = "text"

// FormatterFunc describes a function that formats a finished run.
type FormatterFunc = func(context.Context, pipeline.Run) (response []byte, formattingError error)

// ResponseFormatter describes the expected methods a formatter
// must implement.
type ResponseFormatter interface {
	// PrettyName is the name used to represent this formatter.
	PrettyName() string
	// FileExtension represents the file extension one might use when creating
	// a file with the contents of this formatter.
	FileExtension() string
	// Format takes a finished Run, formats it as needed, and returns the
	// report ready to write as a byte slice.
	Format(context.Context, pipeline.Run) (response []byte, formattingError error)
}

// NewForConfig returns the formatter named by the configured response
// format, or the default format when none is set.
func NewForConfig(cfg config.Config) (ResponseFormatter, error) {
	name := cfg.ResponseFormat()
	if name == "" {
		name = DefaultFormat
	}
	return NewByName(name)
}

// NewByName returns a predefined ResponseFormatter with the given name.
func NewByName(name string) (ResponseFormatter, error) {
	formatter, defined := availableFormatters[name]
	if !defined {
		return nil, fmt.Errorf("%s: %s",
			"the requested formatter is unknown",
			name,
		)
	}

	return formatter, nil
}

// New returns a new formatter with the provided name and FormatterFunc.
func New(name, extension string, fn FormatterFunc) (ResponseFormatter, error) {
	if len(name) == 0 {
		return nil, fmt.Errorf(
			"failed to create a new generic formatter: formatter name is required",
		)
	}

	gf := genericFormatter{
		name:          name,
		formatterFunc: fn,
		fileExtension: extension,
	}

	return &gf, nil
}

// genericFormatter implements ResponseFormatter around a FormatterFunc.
type genericFormatter struct {
	name          string
	fileExtension string
	formatterFunc FormatterFunc
}

func (f *genericFormatter) PrettyName() string {
	return f.name
}

func (f *genericFormatter) Format(ctx context.Context, r pipeline.Run) ([]byte, error) {
	return f.formatterFunc(ctx, r)
}

func (f *genericFormatter) FileExtension() string {
	return f.fileExtension
}

// availableFormatters maps configuration-friendly values to the
// formatters included with shipit.
var availableFormatters = map[string]ResponseFormatter{
	"text": &genericFormatter{"Plain Text", "txt", textFormatter},
	"json": &genericFormatter{"Generic JSON", "json", genericJSONFormatter},
	"yaml": &genericFormatter{"Generic YAML", "yaml", genericYAMLFormatter},
}
