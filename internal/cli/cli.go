// Package cli drives a single pipeline execution for the command line:
// it executes the run, prints and stores the run report, and returns the
// error that decides the exit status.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/familyevents/shipit/artifacts"
	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/formatters"
	"github.com/familyevents/shipit/internal/pipeline"
)

// ReportBasename is the artifact file name of a run report, without
// extension.
const ReportBasename = "report"

// RunPipeline executes the pipeline and writes the formatted report of the
// resulting run to out and to the artifact writer in ctx. The report is
// written for failed runs too. An event that does not qualify is not an
// error.
func RunPipeline(
	ctx context.Context,
	execute func(context.Context) (pipeline.Run, error),
	formatter formatters.ResponseFormatter,
	out io.Writer,
) error {
	artifactsWriter := artifacts.WriterFromContext(ctx)
	if artifactsWriter == nil {
		return errors.New("no artifact writer was configured")
	}

	run, runErr := execute(ctx)
	if errors.Is(runErr, shipiterr.ErrNotQualifying) {
		log.Infof("No pipeline run: %v", runErr)
		return nil
	}
	if run.ID == "" {
		// nothing was recorded, so there is nothing to report
		if runErr == nil {
			runErr = errors.New("pipeline returned no run")
		}
		return runErr
	}

	formatted, err := formatter.Format(ctx, run)
	if err != nil {
		return fmt.Errorf("could not format run report: %w", err)
	}

	fmt.Fprintln(out, string(formatted))

	reportPath, err := artifactsWriter.WriteFile(ReportFilenameWithExtension(formatter.FileExtension()), bytes.NewReader(formatted))
	if err != nil {
		return err
	}
	log.Tracef("run report written to %s", reportPath)

	log.Infof("shipit result: %s", convertState(run))

	return runErr
}

func convertState(run pipeline.Run) string {
	if run.Succeeded() {
		return "DEPLOYED"
	}
	if run.FailedStep != "" {
		return fmt.Sprintf("FAILED at %s", run.FailedStep)
	}
	return "FAILED"
}

// ReportFilenameWithExtension returns the report artifact name for ext.
func ReportFilenameWithExtension(ext string) string {
	return strings.Join([]string{ReportBasename, ext}, ".")
}
