package middleware

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

func newTestApp() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(Recover(), RequestID(), RequestLogger(), SecurityHeaders(), MethodGuard())
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })
	app.Get("/fail", func(c *fiber.Ctx) error { return errors.New("database password leaked") })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })
	return app
}

func decodeError(t *testing.T, body io.Reader) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestRequestIDPropagates(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest(fiber.MethodGet, "/ok", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-42")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got := resp.Header.Get(fiber.HeaderXRequestID); got != "req-42" {
		t.Errorf("expected request id %q, got %q", "req-42", got)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}

	resp, _ = app.Test(httptest.NewRequest(fiber.MethodGet, "/ok", nil))
	if resp.Header.Get(fiber.HeaderXRequestID) == "" {
		t.Error("expected a generated request id")
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
		code   string
	}{
		{"panic", fiber.MethodGet, "/boom", 500, "INTERNAL_ERROR"},
		{"plain error", fiber.MethodGet, "/fail", 500, "INTERNAL_ERROR"},
		{"fiber error", fiber.MethodGet, "/missing", 404, "NOT_FOUND"},
		{"write method", fiber.MethodPost, "/ok", 405, "METHOD_NOT_ALLOWED"},
	}

	app := newTestApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(tt.method, tt.path, nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, resp.StatusCode)
			}
			body := decodeError(t, resp.Body)
			if body.Code != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, body.Code)
			}
			if body.RequestID == "" {
				t.Error("expected request id in body")
			}
			if strings.Contains(body.Error, "password") {
				t.Errorf("internal error leaked: %q", body.Error)
			}
		})
	}
}
