// Package main provides the HTTP API server for docharvester.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docharvester/docharvester-go/internal/config"
	"github.com/docharvester/docharvester-go/internal/db"
	"github.com/docharvester/docharvester-go/internal/graphsync"
	"github.com/docharvester/docharvester-go/internal/llm"
	"github.com/docharvester/docharvester-go/internal/metrics"
	"github.com/docharvester/docharvester-go/internal/parser"
	"github.com/docharvester/docharvester-go/internal/server"
	"github.com/docharvester/docharvester-go/internal/service"
	"github.com/docharvester/docharvester-go/internal/tasks"
)

const version = "0.1.0"

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("docharvester-server starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"llm_provider", cfg.LLMProvider,
		"workers", cfg.WorkerCount,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		cancel()
		os.Exit(1)
	}

	if *wipeDB || os.Getenv("DOCHARVESTER_WIPE_DB") == "true" {
		if err := dbClient.WipeData(ctx); err != nil {
			logger.Error("failed to wipe database", "error", err)
			cancel()
			os.Exit(1)
		}
		logger.Warn("database wiped on startup")
	}

	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize schema", "error", err)
		cancel()
		os.Exit(1)
	}
	cancel()
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	// LLM model failure is fatal: generation and extraction tasks
	// cannot run without it. The embedder is optional; search and
	// classification degrade to text-only and rule-based paths.
	model, err := llm.NewModel(cfg)
	if err != nil {
		logger.Error("failed to create LLM model", "error", err, "provider", cfg.LLMProvider)
		os.Exit(1)
	}

	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		logger.Warn("embeddings disabled", "error", err)
		embedder = nil
	}

	defaults, err := config.LoadCoverageDefaults(cfg.CoverageConfigPath)
	if err != nil {
		logger.Warn("using built-in coverage defaults", "error", err, "path", cfg.CoverageConfigPath)
		defaults = config.BuiltinCoverageDefaults()
	}

	chunkCfg := parser.ChunkConfig{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.ChunkOverlap,
	}
	if err := chunkCfg.Validate(); err != nil {
		logger.Error("invalid chunking configuration", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	classifier := llm.NewClassifier(model, logger)
	generator := llm.NewContentGenerator(model)
	extractor := llm.NewEntityExtractor(model)
	graphStore := graphsync.NewSurrealStore(dbClient)

	coverageSvc := service.NewCoverageService(dbClient, defaults, collector)
	documentSvc := service.NewDocumentService(dbClient, classifier, embedder, coverageSvc, chunkCfg, collector)
	generateSvc := service.NewGenerateService(dbClient, generator, classifier, coverageSvc, chunkCfg, collector)
	entitySvc := service.NewEntityService(dbClient, extractor, graphStore, collector)
	wikiSvc := service.NewWikiService(dbClient, generator, graphStore, collector)
	searchSvc := service.NewSearchService(dbClient, embedder, collector)

	tracker := tasks.NewTracker(dbClient, logger)
	runner := tasks.NewRunner(tracker, cfg.WorkerCount, logger)

	srv := server.New(cfg.ServerAddr, server.Deps{
		Tracker:   tracker,
		Runner:    runner,
		Coverage:  coverageSvc,
		Documents: documentSvc,
		Generate:  generateSvc,
		Entities:  entitySvc,
		Wiki:      wikiSvc,
		Search:    searchSvc,
		Metrics:   collector,
	}, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(runCtx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
