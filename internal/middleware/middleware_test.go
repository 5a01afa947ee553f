package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(m Middleware) *fiber.App {
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewRateLimiter)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})
	return app
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRequestID(t *testing.T) {
	app := newTestApp(New(quietLogger()))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Len(t, string(body), 26, "generated ids are ULIDs")
	assert.Equal(t, string(body), resp.Header.Get(RequestIDKey))

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "caller-id")
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "caller-id", string(body))

	for _, unsafe := range []string{"id with spaces", "semi;colon", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		req.Header.Set(RequestIDKey, unsafe)
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Len(t, string(body), 26, "unsafe caller id %q is replaced", unsafe)
	}
}

func TestRateLimiter(t *testing.T) {
	app := newTestApp(NewWithRate(quietLogger(), 0.0001, 2))

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestDescribeRequestBody(t *testing.T) {
	assert.Equal(t, "[binary body 2.0KB]", describeRequestBody("multipart/form-data; boundary=x", make([]byte, 2048)))
	assert.Equal(t, "[binary body 12B]", describeRequestBody("image/png", make([]byte, 12)))
	assert.Equal(t, "[non-JSON body]", describeRequestBody("text/plain", []byte("hello")))
	assert.Equal(t, `{"token":"[SECRET]"}`, describeRequestBody("application/json", []byte(`{"token":"abc"}`)))
}
