package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"healthmate/app/config"
	"healthmate/app/service/conversation"
	"healthmate/app/service/history"
	"healthmate/app/service/patient"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Conversation interface {
	ProcessMessage(ctx context.Context, req conversation.TurnRequest) (*conversation.TurnResponse, error)
	State(ctx context.Context, sessionID string) (*conversation.State, error)
}

type History interface {
	Dates(ctx context.Context, sessionID string) ([]string, error)
	ByDate(ctx context.Context, sessionID, date string) ([]history.Line, error)
	Search(ctx context.Context, q history.SearchQuery) ([]history.Match, error)
}

type Patients interface {
	Lookup(ctx context.Context, id string) (*patient.Profile, error)
	Save(ctx context.Context, p *patient.Profile) error
}

// Service is the HTTP boundary in front of the conversation engine.
type Service struct {
	cfg *config.Config
	app *fiber.App
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		cfg: cfg,
		app: NewApp(
			do.MustInvoke[*conversation.Service](di),
			do.MustInvoke[*history.Service](di),
			do.MustInvoke[*patient.Service](di),
			cfg.HTTP.AdminToken,
		),
	}, nil
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Service) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("HTTP server listening", "addr", s.cfg.HTTP.Listen)
		return s.app.Listen(s.cfg.HTTP.Listen)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		slog.Info("HTTP server shutting down")
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func NewApp(conv Conversation, hist History, patients Patients, adminToken string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "healthmate",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	h := &handlers{
		conversation: conv,
		history:      hist,
		patients:     patients,
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	apiGroup := app.Group("/api")
	apiGroup.Post("/chat", h.chat)
	apiGroup.Get("/history/dates", h.historyDates)
	apiGroup.Get("/history/:date", h.historyByDate)
	apiGroup.Post("/history/search", h.historySearch)
	apiGroup.Get("/session", h.session)

	if adminToken != "" {
		admin := apiGroup.Group("/patients", keyauth.New(keyauth.Config{
			Validator: func(_ *fiber.Ctx, key string) (bool, error) {
				if subtle.ConstantTimeCompare([]byte(key), []byte(adminToken)) != 1 {
					return false, keyauth.ErrMissingOrMalformedAPIKey
				}
				return true, nil
			},
		}))
		admin.Get("/:id", h.getPatient)
		admin.Put("/:id", h.putPatient)
	}

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	case errors.Is(err, conversation.ErrInvalidRequest), errors.Is(err, history.ErrInvalidDate),
		errors.Is(err, history.ErrMissingSession):
		code = fiber.StatusBadRequest
	case errors.Is(err, patient.ErrNotFound):
		code = fiber.StatusNotFound
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
