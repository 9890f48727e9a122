package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/resilience2relief/backend/internal/api/handlers"
	rediscache "github.com/resilience2relief/backend/internal/cache/redis"
	"github.com/resilience2relief/backend/internal/embedding"
	"github.com/resilience2relief/backend/internal/generation"
	"github.com/resilience2relief/backend/internal/ingestion"
	"github.com/resilience2relief/backend/internal/kg/builder"
	"github.com/resilience2relief/backend/internal/kg/neo4j"
	"github.com/resilience2relief/backend/internal/metrics"
	"github.com/resilience2relief/backend/internal/middleware/ratelimit"
	"github.com/resilience2relief/backend/internal/middleware/security"
	"github.com/resilience2relief/backend/internal/middleware/validation"
	"github.com/resilience2relief/backend/internal/orchestrator"
	"github.com/resilience2relief/backend/internal/retriever"
	"github.com/resilience2relief/backend/internal/storage/sqlite"
	"github.com/resilience2relief/backend/internal/synthesis"
	"github.com/resilience2relief/backend/internal/vector"
	"github.com/resilience2relief/backend/internal/vector/memory"
	"github.com/resilience2relief/backend/internal/vector/milvus"
	"github.com/resilience2relief/backend/pkg/config"
	appLogger "github.com/resilience2relief/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Resilience2Relief API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *rediscache.Client
	if cfg.Redis.Enabled {
		cacheClient, err = rediscache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	embedder, err := embedding.NewEmbedder(cfg.Embedding)
	if err != nil {
		appLogger.Fatal("Failed to create embedder", zap.Error(err))
	}
	if cacheClient != nil {
		embedder = embedding.NewCachedEmbedder(embedder, cacheClient)
	}

	var index vector.Index
	switch cfg.Index.Backend {
	case "milvus":
		milvusIndex, err := milvus.NewIndex(cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, embedder.Dimension(), embedder.Version())
		if err != nil {
			appLogger.Fatal("Failed to create milvus index", zap.Error(err))
		}
		defer milvusIndex.Close()
		index = milvusIndex
	default:
		index = memory.NewIndex(embedder.Dimension(), embedder.Version())
	}

	generator, err := generation.NewGenerator(cfg.Generator)
	if err != nil {
		appLogger.Fatal("Failed to create generator", zap.Error(err))
	}

	processor := ingestion.NewProcessor(
		sqliteClient, index, embedder,
		cfg.Ingestion.SegmentSize, cfg.Ingestion.SegmentOverlap, cfg.Ingestion.MaxFileSize,
	)
	if cacheClient != nil {
		processor = processor.WithCache(cacheClient)
	}

	var partnerSuggester synthesis.PartnerSuggester
	if cfg.Neo4j.Enabled {
		kgClient, err := neo4j.NewClient(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password)
		if err != nil {
			appLogger.Warn("Neo4j unavailable, continuing without partner graph", zap.Error(err))
		} else {
			defer kgClient.Close(context.Background())
			processor = processor.WithGraph(builder.NewBuilder(kgClient))
			partnerSuggester = kgClient
		}
	}

	ret := retriever.New(
		index, embedder, sqliteClient,
		cfg.Retrieval.TopK, cfg.Retrieval.OverfetchFactor, cfg.Retrieval.PerDocumentCap,
	)
	synthesizer := synthesis.New(generator, partnerSuggester)

	orch := orchestrator.New(
		ret, synthesizer, sqliteClient,
		generator.Name(), time.Duration(cfg.Server.RequestTimeout)*time.Second,
	)
	if cacheClient != nil {
		orch = orch.WithCache(cacheClient)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(validation.Middleware(validation.Config{
		MaxBodySize: cfg.Server.BodyLimit,
		Logger:      appLogger.GetLogger(),
	}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	generateHandler := handlers.NewGenerateHandler(orch)
	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient, index)
	exportHandler := handlers.NewExportHandler()
	wsHandler := handlers.NewWebSocketHandler(orch)

	api := app.Group("/api/v1")

	api.Post("/generate", generateHandler.HandleGenerate)
	api.Get("/generate/history", generateHandler.HandleHistory)

	api.Post("/documents", documentHandler.HandleUpload)
	api.Get("/documents", documentHandler.HandleList)
	api.Delete("/documents/:id", documentHandler.HandleDelete)
	api.Get("/stats", documentHandler.HandleStats)

	api.Post("/export", exportHandler.HandleExport)

	app.Get("/ws", websocket.New(wsHandler.HandleConnection))
	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
