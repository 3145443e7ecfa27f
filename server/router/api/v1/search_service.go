package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memexhq/memex/server/internal/observability"
	"github.com/memexhq/memex/server/service/search"
)

// SearchResultItem is one ranked hit in a search response.
type SearchResultItem struct {
	CaptureUID string  `json:"captureUid"`
	Note       string  `json:"note,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
	SearchType string  `json:"searchType"`
	Relevance  float64 `json:"relevance"`
}

// SearchResponse is the search endpoint payload.
type SearchResponse struct {
	Results []*SearchResultItem `json:"results"`
	Count   int                 `json:"count"`
}

const maxSnippetLength = 200

// SearchCaptures runs hybrid (or single-mode) search over the owner's captures.
func (s *APIV1Service) SearchCaptures(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return c.JSON(http.StatusBadRequest, errorBody("query is required"))
	}
	ownerID, err := strconv.ParseInt(c.QueryParam("ownerId"), 10, 32)
	if err != nil || ownerID <= 0 {
		return c.JSON(http.StatusBadRequest, errorBody("ownerId is required"))
	}

	opts := search.Options{Mode: search.ModeHybrid}
	if mode := c.QueryParam("mode"); mode != "" {
		opts.Mode = search.Mode(mode)
	}
	if limit := c.QueryParam("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if threshold := c.QueryParam("threshold"); threshold != "" {
		if f, err := strconv.ParseFloat(threshold, 32); err == nil {
			opts.Threshold = float32(f)
		}
	}

	reqCtx := observability.NewRequestContext(s.Logger, int32(ownerID))

	results, err := s.SearchService.Search(c.Request().Context(), query, int32(ownerID), opts)
	if err != nil {
		reqCtx.Error("search failed", err, slog.String(observability.LogFieldSearchMode, string(opts.Mode)))
		return c.JSON(httpStatusForError(err), errorBody(err.Error()))
	}

	items := make([]*SearchResultItem, len(results))
	for i, result := range results {
		items[i] = &SearchResultItem{
			CaptureUID: result.Capture.UID,
			Note:       result.Capture.Note,
			Snippet:    snippet(result.Capture.ExtractedText),
			SearchType: result.Type,
			Relevance:  result.Relevance,
		}
	}

	reqCtx.Info("search completed",
		slog.String(observability.LogFieldSearchMode, string(opts.Mode)),
		slog.Int("result_count", len(items)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return c.JSON(http.StatusOK, &SearchResponse{Results: items, Count: len(items)})
}

func snippet(text string) string {
	if len(text) <= maxSnippetLength {
		return text
	}
	return text[:maxSnippetLength] + "..."
}
