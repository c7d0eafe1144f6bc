package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"support_worker/adapter/out/graph"
	"support_worker/adapter/out/messaging"
	"support_worker/adapter/out/mongodb"
	"support_worker/adapter/out/provider"
	"support_worker/config"
	"support_worker/core/agent/llm"
	"support_worker/core/agent/rag"
	"support_worker/core/agent/workflow"
	"support_worker/core/port/out"
	"support_worker/core/service/support"
	"support_worker/infra/database"
	"support_worker/pkg/cache"
	"support_worker/pkg/logger"
	"support_worker/pkg/metrics"
)

// text-embedding-3-small
const embeddingDimensions = 1536

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client
	Neo4j   neo4j.DriverWithContext

	// Agent
	LLMClient *llm.Client
	Embedder  out.Embedder
	Knowledge out.KnowledgeBase
	Writer    out.VectorWriter
	SQLWriter *rag.SQLWriter

	// Reporting
	ReportStore *mongodb.ReportAdapter
	Reporter    *support.TallyReporter

	// Mail
	Mail *provider.GmailAdapter

	// Workflow
	Engine     *workflow.Engine
	RunService *support.Service
	Timings    *metrics.Registry
}

// newInfra opens the stores and model client shared by every mode.
func newInfra(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// LLM
	deps.LLMClient = llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:         cfg.OpenAIAPIKey,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		MaxTokens:      cfg.LLMMaxTokens,
		Temperature:    cfg.LLMTemperature,
		Timeout:        time.Duration(cfg.LLMTimeoutSec) * time.Second,
	})
	deps.Embedder = rag.NewCachedEmbedder(rag.NewEmbedder(deps.LLMClient), rag.NewEmbeddingCache(1000, 24*time.Hour))

	// Knowledge store
	var store out.VectorStore
	switch cfg.KnowledgeBackend {
	case config.KnowledgeNeo4j:
		driver, err := graph.NewDriver(ctx, cfg.Neo4jURL, cfg.Neo4jUsername, cfg.Neo4jPassword)
		if err != nil {
			return fail(err)
		}
		deps.Neo4j = driver
		cleanups = append(cleanups, func() { driver.Close(context.Background()) })

		adapter := graph.NewKnowledgeAdapter(driver, "neo4j", embeddingDimensions)
		if err := adapter.EnsureIndexes(ctx); err != nil {
			logger.Warn("Failed to ensure Neo4j indexes: %v", err)
		}
		store, deps.Writer = adapter, adapter
		logger.Info("Knowledge backend: neo4j")

	default:
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		deps.DB = db
		cleanups = append(cleanups, db.Close)

		vs := rag.NewVectorStore(db)
		if err := vs.EnsureSchema(ctx); err != nil {
			return fail(fmt.Errorf("knowledge schema: %w", err))
		}
		store = vs

		sqlDB, err := database.NewSQLX(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		deps.SQLDB = sqlDB
		cleanups = append(cleanups, func() { sqlDB.Close() })
		deps.SQLWriter = rag.NewSQLWriter(sqlDB)
		deps.Writer = deps.SQLWriter
		logger.Info("Knowledge backend: pgvector")
	}

	var knowledge out.KnowledgeBase = rag.NewRetriever(deps.Embedder, store, deps.LLMClient, rag.RetrieverConfig{
		TopK:     cfg.KnowledgeTopK,
		MinScore: cfg.KnowledgeMinScore,
	})

	// Redis (optional): answer cache and event streams
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
			knowledge = rag.NewCachedKnowledge(knowledge, cache.NewRedisCache(redisClient, "support"), cfg.AnswerCacheTTL)
			logger.Info("Answer cache (Redis) enabled, ttl=%s", cfg.AnswerCacheTTL)
		}
	}
	deps.Knowledge = knowledge

	// MongoDB (optional): run reports
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			logger.Warn("MongoDB connection failed: %v", err)
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() { mongoClient.Disconnect(context.Background()) })

			deps.ReportStore = mongodb.NewReportAdapter(mongoClient.Database(cfg.MongoDBName))
			if err := deps.ReportStore.EnsureIndexes(ctx); err != nil {
				logger.Warn("Failed to ensure MongoDB indexes: %v", err)
			}
		}
	}

	return deps, cleanup, nil
}

// NewDependencies wires everything a workflow run needs.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	if err := cfg.RequireRuntime(); err != nil {
		return nil, nil, err
	}

	deps, cleanup, err := newInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// Gmail
	svc, err := provider.NewGmailService(ctx, provider.AuthConfig{
		CredentialsFile: cfg.GmailCredentialsFile,
		TokenFile:       cfg.GmailTokenFile,
		Prompt:          os.Stdout,
		Input:           os.Stdin,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Mail = provider.NewGmailAdapter(svc, provider.GmailConfig{
		MyEmail:      cfg.MyEmail,
		Lookback:     cfg.MailLookback,
		MaxResults:   cfg.MailMaxResults,
		HandledLabel: cfg.HandledLabel,
	})

	// Reporting
	var sinks support.FanOut
	if deps.ReportStore != nil {
		sinks = append(sinks, deps.ReportStore)
	} else {
		sinks = append(sinks, support.NewLogReporter(nil))
	}
	if deps.Redis != nil {
		sinks = append(sinks, messaging.NewOutcomePublisher(deps.Redis, cfg.EventStreamPrefix))
	}
	deps.Reporter = support.NewTallyReporter(sinks)

	// Workflow
	log := logger.WithField("worker_id", cfg.WorkerID)
	rt := &workflow.Runtime{
		Mail:      deps.Mail,
		LLM:       deps.LLMClient,
		Knowledge: deps.Knowledge,
		Reporter:  deps.Reporter,
		Logger:    log,
		Policy:    workflow.NewDeliveryPolicy(cfg.AutoSendCategories...),
	}
	graphCfg := workflow.DefaultGraphConfig(workflow.GraphName)
	graphCfg.StepLimit = cfg.WorkflowStepLimit
	graphCfg.Observer = workflow.LogObserver(log)
	deps.Timings = metrics.NewRegistry(500)
	graphCfg.Timings = deps.Timings

	engine, err := workflow.NewEngine(rt, graphCfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Engine = engine
	deps.RunService = support.NewService(engine, deps.Reporter, log)

	logger.WithFields(map[string]any{
		"step_limit": graphCfg.StepLimit,
		"auto_send":  rt.Policy.String(),
	}).Info("Workflow %s ready with %d transitions", engine.Name(), len(engine.Transitions()))

	return deps, cleanup, nil
}
