package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowBurstThenDeny(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 20; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst must pass", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))

	// Other keys have their own budget.
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestEchoMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	e := echo.New()
	handler := rl.Echo()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	do := func() error {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
		req.RemoteAddr = "10.0.0.3:12345"
		rec := httptest.NewRecorder()
		return handler(e.NewContext(req, rec))
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, do())
	}

	err := do()
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
}
