package http

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"support_worker/core/domain"
	"support_worker/core/service/support"
)

type staticStats support.Stats

func (s staticStats) Stats() support.Stats { return support.Stats(s) }

func newApp(h *HealthHandler) *fiber.App {
	app := fiber.New()
	h.Register(app)
	return app
}

func TestHealth(t *testing.T) {
	app := newApp(NewHealthHandler(nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		ping     Pinger
		expected int
	}{
		{"healthy", func(ctx context.Context) error { return nil }, fiber.StatusOK},
		{"unhealthy", func(ctx context.Context) error { return errors.New("refused") }, fiber.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(nil).WithCheck("postgres", tt.ping).WithCheck("redis", nil)
			resp, err := newApp(h).Test(httptest.NewRequest("GET", "/ready", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, resp.StatusCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if strings.Contains(string(body), "redis") {
				t.Errorf("nil checks should not be reported: %s", body)
			}
		})
	}
}

func TestStats(t *testing.T) {
	stats := staticStats{Runs: 4, Actions: map[domain.Action]int64{domain.ActionSent: 3}}
	app := newApp(NewHealthHandler(stats))

	resp, err := app.Test(httptest.NewRequest("GET", "/stats", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{`"runs":4`, `"sent":3`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %s in %s", want, body)
		}
	}
}
