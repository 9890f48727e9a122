package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(cfg Config) *fiber.App {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/generate", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})
	app.Post("/api/v1/documents", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) int {
	t.Helper()

	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestValidQueryPasses(t *testing.T) {
	app := newTestApp(Config{})

	status := postJSON(t, app, "/api/v1/generate", `{"query":"rebuild housing in vanuatu","maxProjects":3}`)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRejectsUnsupportedContentType(t *testing.T) {
	app := newTestApp(Config{})

	req := httptest.NewRequest("POST", "/api/v1/documents", strings.NewReader("<xml/>"))
	req.Header.Set("Content-Type", "application/xml")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestRejectsInvalidJSON(t *testing.T) {
	app := newTestApp(Config{})

	status := postJSON(t, app, "/api/v1/generate", `{not json`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestRejectsMissingQuery(t *testing.T) {
	app := newTestApp(Config{})

	status := postJSON(t, app, "/api/v1/generate", `{"maxProjects":3}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestRejectsOverlongQuery(t *testing.T) {
	app := newTestApp(Config{MaxQueryLength: 50})

	body := `{"query":"` + strings.Repeat("a", 60) + `"}`
	status := postJSON(t, app, "/api/v1/generate", body)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestRejectsHostileQueries(t *testing.T) {
	app := newTestApp(Config{})

	tests := []string{
		`{"query":"recovery'; DROP TABLE documents; --"}`,
		`{"query":"<script>alert(1)</script> housing"}`,
		`{"query":"javascript:alert(1) recovery projects"}`,
	}
	for _, body := range tests {
		assert.Equal(t, fiber.StatusBadRequest, postJSON(t, app, "/api/v1/generate", body))
	}
}

func TestOtherRoutesSkipQueryScreening(t *testing.T) {
	app := newTestApp(Config{})

	status := postJSON(t, app, "/api/v1/documents", `{"anything":"goes here"}`)
	assert.Equal(t, fiber.StatusOK, status)
}
