package bootstrap

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"support_worker/adapter/in/http"
	"support_worker/infra/database"
	"support_worker/infra/middleware"
)

// NewHealthApp builds the operational HTTP server used in poll mode.
func NewHealthApp(deps *Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: !deps.Config.IsDevelopment(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          middleware.ErrorHandler(),
		ReadBufferSize:        4096,
	})
	app.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.SecurityHeaders(),
		middleware.MethodGuard(),
	)

	h := http.NewHealthHandler(deps.RunService)
	if deps.DB != nil {
		h.WithCheck("postgres", deps.DB.Ping)
	}
	if deps.Redis != nil {
		h.WithCheck("redis", func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() })
	}
	if deps.MongoDB != nil {
		h.WithCheck("mongodb", func(ctx context.Context) error { return deps.MongoDB.Ping(ctx, nil) })
	}
	if deps.Neo4j != nil {
		h.WithCheck("neo4j", deps.Neo4j.VerifyConnectivity)
	}
	if deps.Mail != nil {
		h.WithCheck("gmail", func(ctx context.Context) error {
			if state := deps.Mail.CircuitState(); state == "open" {
				return errCircuitOpen
			}
			return nil
		})
	}

	h.WithPoolStats(func() fiber.Map {
		pools := fiber.Map{
			"llm":   deps.LLMClient.Costs().GetStats(),
			"steps": deps.Timings.Summaries(),
		}
		if deps.DB != nil {
			pools["postgres"] = database.GetPoolStats(deps.DB)
		}
		if deps.SQLDB != nil {
			pools["sql"] = deps.SQLDB.Stats()
		}
		if deps.Redis != nil {
			pools["redis"] = database.GetRedisStats(deps.Redis)
		}
		return pools
	})
	h.Register(app)

	return app
}
