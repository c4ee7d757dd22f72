// Package stubserver is a local stand-in for the call-summary service. It
// serves the same HTTP endpoints the dashboard consumes, backed by SQLite,
// and writes a fixed placeholder instead of generating real summaries.
package stubserver

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/carein/callboard/internal/api"
	"github.com/carein/callboard/internal/db"
)

// AppName is reported by the root endpoint.
const AppName = "CareIN AI Call Summary API"

// Commlog messages written alongside each action.
const (
	CreatedMessage = "Summary initially created and generated."
	RerunMessage   = "Summary re-generated for transcript."
)

// MockSummary is the placeholder written by every rerun.
const MockSummary = "Summary (mocked): This is a fallback summary because the OpenAI API is unavailable." +
	"Key points and actions from the transcript would appear here!"

const defaultListLimit = 100

// Summarizer produces summary text for a transcript.
type Summarizer func(transcript string) string

// Options configures a Server.
type Options struct {
	Logger     logrus.FieldLogger
	Summarizer Summarizer
	// AllowOrigins is a comma-separated CORS origin list.
	AllowOrigins string
}

// Server is the stub HTTP API.
type Server struct {
	app       *fiber.App
	store     *db.Store
	log       logrus.FieldLogger
	summarize Summarizer
}

// New builds a Server over store. Routes are mounted under /api/v1.
func New(store *db.Store, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	summarize := opts.Summarizer
	if summarize == nil {
		summarize = func(string) string { return MockSummary }
	}
	origins := opts.AllowOrigins
	if origins == "" {
		origins = "http://localhost:3000, http://localhost:3001"
	}

	s := &Server{
		store:     store,
		log:       log,
		summarize: summarize,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               AppName,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger)
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, " + api.RequestIDHeader,
	}))

	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Welcome to CareIn AI Call Summary API"})
	})

	v1 := s.app.Group("/api/v1")
	v1.Post("/summaries", s.createSummary)
	v1.Get("/summaries", s.listSummaries)
	v1.Get("/summaries/:id", s.getSummary)
	v1.Post("/summaries/:id/rerun", s.rerunSummary)
	v1.Get("/commlog", s.listCommlog)
	v1.Get("/commlog/:id", s.commlogForSummary)

	return s
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) createSummary(c *fiber.Ctx) error {
	var req api.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "invalid request body")
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "transcript must not be empty")
	}

	cs, err := s.store.CreateSummary(c.UserContext(), req.Transcript, CreatedMessage)
	if err != nil {
		return err
	}
	s.log.WithField("summary_id", cs.ID).Info("summary created")
	return c.JSON(toSummary(cs))
}

func (s *Server) listSummaries(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.store.ListSummaries(c.UserContext(), skip, limit)
	if err != nil {
		return err
	}
	out := make([]api.Summary, 0, len(rows))
	for _, cs := range rows {
		out = append(out, toSummary(cs))
	}
	return c.JSON(out)
}

func (s *Server) getSummary(c *fiber.Ctx) error {
	id, err := summaryID(c)
	if err != nil {
		return err
	}
	cs, err := s.store.GetSummary(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(toSummary(cs))
}

func (s *Server) rerunSummary(c *fiber.Ctx) error {
	id, err := summaryID(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	cs, err := s.store.GetSummary(ctx, id)
	if err != nil {
		return err
	}
	cs, err = s.store.RerunSummary(ctx, id, s.summarize(cs.Transcript), RerunMessage)
	if err != nil {
		return err
	}
	s.log.WithField("summary_id", id).Info("summary re-generated")
	return c.JSON(toSummary(cs))
}

func (s *Server) listCommlog(c *fiber.Ctx) error {
	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.store.ListCommlog(c.UserContext(), skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(toCommlog(rows))
}

func (s *Server) commlogForSummary(c *fiber.Ctx) error {
	id, err := summaryID(c)
	if err != nil {
		return err
	}
	rows, err := s.store.CommlogForSummary(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(toCommlog(rows))
}

func summaryID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil {
		return 0, fiber.NewError(fiber.StatusUnprocessableEntity, "summary id must be an integer")
	}
	return int64(id), nil
}

// handleError renders every failure as {"detail": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	detail := "Internal server error"

	var fe *fiber.Error
	switch {
	case errors.Is(err, db.ErrNotFound):
		code = fiber.StatusNotFound
		detail = "Call summary not found"
	case errors.As(err, &fe):
		code = fe.Code
		detail = fe.Message
	default:
		s.log.WithError(err).Error("request failed")
	}

	return c.Status(code).JSON(api.ErrorBody{Detail: detail})
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		// Render now so the logged status is the final one.
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}
	s.log.WithFields(logrus.Fields{
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     c.Response().StatusCode(),
		"duration":   time.Since(start).Round(time.Microsecond),
		"request_id": c.Get(api.RequestIDHeader),
	}).Debug("request")
	return nil
}

func toSummary(cs db.CallSummary) api.Summary {
	out := api.Summary{
		ID:         cs.ID,
		Transcript: cs.Transcript,
		Summary:    cs.Summary,
		CreatedAt:  api.NewTimestamp(cs.CreatedAt),
	}
	if cs.UpdatedAt != nil {
		out.UpdatedAt = api.TimestampPtr(*cs.UpdatedAt)
	}
	return out
}

func toCommlog(rows []db.Commlog) []api.CommlogEntry {
	out := make([]api.CommlogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, api.CommlogEntry{
			ID:            r.ID,
			CallSummaryID: r.CallSummaryID,
			Action:        r.Action,
			Message:       r.Message,
			CreatedAt:     api.NewTimestamp(r.CreatedAt),
		})
	}
	return out
}
