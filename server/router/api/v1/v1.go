// Package v1 exposes the thin HTTP surface over the capture pipeline and
// search services. Handlers validate input and delegate; no pipeline logic
// lives here.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memexhq/memex/internal/profile"
	apperrors "github.com/memexhq/memex/server/internal/errors"
	"github.com/memexhq/memex/server/middleware"
	"github.com/memexhq/memex/server/runner/process"
	"github.com/memexhq/memex/server/service/capture"
	"github.com/memexhq/memex/server/service/search"
	"github.com/memexhq/memex/store"
)

// APIV1Service wires the v1 routes to their backing services.
type APIV1Service struct {
	Profile       *profile.Profile
	Store         *store.Store
	Processor     *capture.Processor
	SearchService *search.Service
	Runner        *process.Runner
	Logger        *slog.Logger
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(profile *profile.Profile, store *store.Store, processor *capture.Processor, searchService *search.Service, runner *process.Runner, logger *slog.Logger) *APIV1Service {
	return &APIV1Service{
		Profile:       profile,
		Store:         store,
		Processor:     processor,
		SearchService: searchService,
		Runner:        runner,
		Logger:        logger,
	}
}

// Register mounts the v1 routes on the echo server.
func (s *APIV1Service) Register(e *echo.Echo) {
	limiter := middleware.NewRateLimiter()

	e.GET("/healthz", s.Health)

	group := e.Group("/api/v1", limiter.Echo())
	group.POST("/captures/process", s.ProcessCapture)
	group.GET("/search", s.SearchCaptures)
}

// Health reports liveness.
func (s *APIV1Service) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// httpStatusForError maps pipeline error codes to HTTP statuses.
func httpStatusForError(err error) int {
	switch apperrors.GetCodeFromError(err, apperrors.ErrCodePersistence) {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeAlreadyInProgress:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}
