// Package test holds helpers shared by shipit test suites.
package test

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	. "github.com/onsi/ginkgo/v2"

	"github.com/familyevents/shipit/internal/log"
)

// NewTestLoggerContext returns ctx carrying a logger that writes every
// line, debug included, to the GinkgoWriter so it only shows for failing
// specs.
func NewTestLoggerContext(ctx context.Context) context.Context {
	logger := funcr.New(func(prefix, args string) {
		GinkgoWriter.Println(prefix, args)
	}, funcr.Options{Verbosity: log.DBG})
	return logr.NewContext(ctx, logger)
}
