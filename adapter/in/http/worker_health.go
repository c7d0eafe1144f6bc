// Package http exposes the worker's operational endpoints.
package http

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"support_worker/core/service/support"
)

// Pinger checks one dependency.
type Pinger func(ctx context.Context) error

// StatsSource provides run statistics for /stats.
type StatsSource interface {
	Stats() support.Stats
}

type HealthHandler struct {
	checks map[string]Pinger
	stats  StatsSource
	extra  func() fiber.Map
}

func NewHealthHandler(stats StatsSource) *HealthHandler {
	return &HealthHandler{checks: make(map[string]Pinger), stats: stats}
}

// WithCheck adds a readiness check. Nil pingers are ignored.
func (h *HealthHandler) WithCheck(name string, ping Pinger) *HealthHandler {
	if ping != nil {
		h.checks[name] = ping
	}
	return h
}

// WithPoolStats adds connection pool figures to /stats.
func (h *HealthHandler) WithPoolStats(fn func() fiber.Map) *HealthHandler {
	h.extra = fn
	return h
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/stats", h.Stats)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	allHealthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks[name] = "healthy"
		}
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Stats(c *fiber.Ctx) error {
	body := fiber.Map{"timestamp": time.Now().UTC().Format(time.RFC3339)}
	if h.stats != nil {
		body["workflow"] = h.stats.Stats()
	}
	if h.extra != nil {
		body["pools"] = h.extra()
	}
	return c.JSON(body)
}
