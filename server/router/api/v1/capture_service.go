package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/memexhq/memex/server/internal/errors"
	"github.com/memexhq/memex/server/internal/observability"
)

// ProcessCaptureRequest triggers processing for one capture.
type ProcessCaptureRequest struct {
	CaptureID int32 `json:"captureId"`
	OwnerID   int32 `json:"ownerId"`
}

// ProcessCaptureResponse reports the outcome of a processing attempt.
type ProcessCaptureResponse struct {
	Status             string            `json:"status"`
	ExtractedText      string            `json:"extractedText"`
	EmbeddingGenerated bool              `json:"embeddingGenerated"`
	ExtractedDate      string            `json:"extractedDate,omitempty"`
	ExtractedTime      string            `json:"extractedTime,omitempty"`
	TemporalContext    map[string]string `json:"temporalContext,omitempty"`
}

// ProcessCapture runs the processing pipeline for a capture.
func (s *APIV1Service) ProcessCapture(c echo.Context) error {
	var req ProcessCaptureRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if req.CaptureID == 0 || req.OwnerID == 0 {
		return c.JSON(http.StatusBadRequest, errorBody("captureId and ownerId are required"))
	}

	reqCtx := observability.NewRequestContext(s.Logger, req.OwnerID)
	reqCtx.Info("processing capture", slog.Int64(observability.LogFieldCaptureID, int64(req.CaptureID)))

	outcome, err := s.Processor.Process(c.Request().Context(), req.CaptureID, req.OwnerID)
	if err != nil {
		status := httpStatusForError(err)
		if status == http.StatusAccepted {
			return c.JSON(http.StatusAccepted, map[string]string{"status": "processing"})
		}
		reqCtx.Error("capture processing failed", err,
			slog.Int64(observability.LogFieldCaptureID, int64(req.CaptureID)),
			slog.String(observability.LogFieldErrorCode, string(apperrors.GetCodeFromError(err, apperrors.ErrCodePersistence))))
		return c.JSON(status, errorBody(err.Error()))
	}

	resp := &ProcessCaptureResponse{
		Status:             "completed",
		ExtractedText:      outcome.ExtractedText,
		EmbeddingGenerated: outcome.EmbeddingGenerated,
	}
	if outcome.AlreadyCompleted {
		resp.Status = "already_completed"
	}
	if outcome.Temporal != nil {
		resp.ExtractedDate = outcome.Temporal.Date
		resp.ExtractedTime = outcome.Temporal.TimeOfDay
		if len(outcome.Temporal.Context) > 0 {
			resp.TemporalContext = make(map[string]string, len(outcome.Temporal.Context))
			for key, match := range outcome.Temporal.Context {
				resp.TemporalContext[key] = match.Text
			}
		}
	}

	reqCtx.Info("capture processed",
		slog.Int64(observability.LogFieldCaptureID, int64(req.CaptureID)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return c.JSON(http.StatusOK, resp)
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}
