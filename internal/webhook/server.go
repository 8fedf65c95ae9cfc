// Package webhook receives source-control push notifications over HTTP and
// hands qualifying pushes to a single worker, one at a time, in arrival
// order. It also exposes the run history read-only.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/gofiber/fiber/v2"
	"github.com/google/go-github/v57/github"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/log"
	"github.com/familyevents/shipit/internal/pipeline"
)

const (
	eventTypeHeader  = "X-GitHub-Event"
	deliveryIDHeader = "X-GitHub-Delivery"
	signatureHeader  = "X-Hub-Signature-256"

	// DefaultQueueSize is how many accepted pushes may wait for the worker.
	DefaultQueueSize = 16

	shutdownTimeout = 10 * time.Second
)

// Push is a qualifying push waiting to be run.
type Push struct {
	Event    pipeline.Event
	Delivery string
}

// Handler executes the pipeline for a push.
type Handler func(ctx context.Context, p Push) error

// Options configure a Server. Secret, Branch, Runs and Handle are required.
type Options struct {
	// Secret is the shared webhook secret signatures are verified with.
	Secret    []byte
	Branch    string
	Runs      pipeline.RunRepository
	Handle    Handler
	QueueSize int
	Logger    logr.Logger
}

// Server is the webhook HTTP server plus its FIFO worker.
type Server struct {
	app    *fiber.App
	opts   Options
	queue  chan Push
	logger logr.Logger
}

// New creates the server and registers its routes.
func New(opts Options) (*Server, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("webhook secret is empty")
	}
	if opts.Runs == nil || opts.Handle == nil {
		return nil, errors.New("webhook server needs a run repository and a handler")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			AppName:               "shipit",
		}),
		opts:   opts,
		queue:  make(chan Push, opts.QueueSize),
		logger: opts.Logger,
	}

	s.app.Get("/healthz", s.health)
	s.app.Post("/webhooks/github", s.receive)

	v1 := s.app.Group("/api").Group("/v1")
	runs := v1.Group("/runs")
	runs.Get("/", s.listRuns)
	runs.Get("/:id", s.getRun)

	return s, nil
}

// App exposes the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on addr until ctx is done.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()

	s.logger.Info("webhook server listening", "addr", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down webhook server")
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	}
}

// Work runs queued pushes one after another until ctx is done. A failed
// run is logged and does not stop the worker.
func (s *Server) Work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-s.queue:
			logger := s.logger.WithValues("delivery", p.Delivery, "commit", p.Event.Commit)
			logger.V(log.DBG).Info("starting queued run")
			if err := s.opts.Handle(logr.NewContext(ctx, logger), p); err != nil {
				logger.Error(err, "queued run failed")
			}
		}
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) receive(c *fiber.Ctx) error {
	payload, err := github.ValidatePayloadFromBody(
		c.Get(fiber.HeaderContentType),
		bytes.NewReader(c.Body()),
		c.Get(signatureHeader),
		s.opts.Secret,
	)
	if err != nil {
		s.logger.V(log.DBG).Info("rejected webhook", "reason", err.Error())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid webhook signature",
		})
	}

	event, err := github.ParseWebHook(c.Get(eventTypeHeader), payload)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	switch e := event.(type) {
	case *github.PingEvent:
		return c.JSON(fiber.Map{"status": "pong"})
	case *github.PushEvent:
		return s.enqueue(c, e)
	default:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ignored"})
	}
}

func (s *Server) enqueue(c *fiber.Ctx, e *github.PushEvent) error {
	p := Push{
		Event: pipeline.Event{
			Name:       pipeline.EventPush,
			Ref:        e.GetRef(),
			Commit:     e.GetAfter(),
			Repository: e.GetRepo().GetCloneURL(),
		},
		Delivery: c.Get(deliveryIDHeader),
	}

	if e.GetDeleted() || !p.Event.Qualifies(s.opts.Branch) {
		s.logger.V(log.DBG).Info("push does not trigger a run", "ref", p.Event.Ref, "branch", s.opts.Branch)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ignored"})
	}

	select {
	case s.queue <- p:
		s.logger.Info("push queued", "delivery", p.Delivery, "commit", p.Event.Commit)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued"})
	default:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "run queue is full",
		})
	}
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	limit := 0
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a non-negative integer",
			})
		}
		limit = n
	}

	runs, err := s.opts.Runs.List(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if runs == nil {
		runs = []pipeline.Run{}
	}
	return c.JSON(runs)
}

func (s *Server) getRun(c *fiber.Ctx) error {
	run, err := s.opts.Runs.Get(c.UserContext(), c.Params("id"))
	switch {
	case errors.Is(err, shipiterr.ErrRunNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(run)
}
