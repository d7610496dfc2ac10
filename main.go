package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/negroni"

	"github.com/serisow/docqa/chunker"
	"github.com/serisow/docqa/config"
	"github.com/serisow/docqa/db"
	"github.com/serisow/docqa/handlers"
	"github.com/serisow/docqa/logging"
	"github.com/serisow/docqa/orchestrator"
	"github.com/serisow/docqa/server"
	"github.com/serisow/docqa/services/document_service"
	"github.com/serisow/docqa/services/embedding_service"
	"github.com/serisow/docqa/services/generation_service"
	"github.com/serisow/docqa/services/index_service"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	embedder, err := buildEmbedder(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize embedding provider: %v", err)
	}
	generator, err := buildGenerator(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize generation provider: %v", err)
	}

	index, store, pool, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	chk, err := chunker.NewSentenceChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("Invalid chunking configuration: %v", err)
	}

	docService := document_service.NewService(chk, embedder, index, store, cfg.EmbedParallelism, logger)

	orch := orchestrator.New(embedder, index, generator, orchestrator.Options{
		TopK:                 cfg.RetrievalTopK,
		ConfidenceThreshold:  cfg.ConfidenceThreshold,
		MaxRetries:           cfg.MaxRetries,
		TopKMultiplier:       cfg.RetryTopKMultiplier,
		TopKCeiling:          cfg.RetryTopKCeiling,
		ThresholdDecrement:   cfg.RetryThresholdDecrement,
		ConfidenceFloor:      cfg.MinConfidenceFloor,
		AcceptOnMinCitations: cfg.AcceptOnMinCitations,
		MinCitations:         cfg.MinCitations,
		QueryTimeout:         cfg.QueryTimeout,
		PerAttemptTimeout:    cfg.PerAttemptTimeout,
		GenerationTimeout:    cfg.GenerationTimeout,
		ContextCharLimit:     cfg.GenerationContextLimit,
	}, logger)

	var pinger handlers.Pinger
	if pool != nil {
		pinger = pool
	}

	r := server.SetupRoutes(server.Handlers{
		Query:    handlers.NewQueryHandler(orch, logger),
		Ingest:   handlers.NewIngestHandler(docService, logger),
		Document: handlers.NewDocumentHandler(docService, logger),
		Health:   handlers.NewHealthHandler(pinger),
	})
	n := setupNegroni(r)

	logger.Info("Starting server",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.HTTPPort),
		slog.String("vector_index", cfg.VectorIndex))

	if cfg.Environment == "production" {
		server.ServeProduction(n, server.Config{
			Domains:      cfg.Domains,
			CertCacheDir: cfg.CertCacheDir,
		})
	} else {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      n,
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		server.ServeDevelopment(srv)
	}
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())

	n.UseHandler(r)
	return n
}

func buildEmbedder(cfg config.Config, logger *slog.Logger) (embedding_service.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		return embedding_service.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension, logger), nil
	default:
		return nil, &config.ConfigurationError{Field: "EMBEDDING_PROVIDER", Reason: "unknown provider " + cfg.EmbeddingProvider}
	}
}

func buildGenerator(cfg config.Config, logger *slog.Logger) (generation_service.Generator, error) {
	switch cfg.LLMProvider {
	case "openai":
		return generation_service.NewOpenAIService(cfg.OpenAIAPIKey, cfg.LLMModel, logger), nil
	case "anthropic":
		return generation_service.NewAnthropicService(cfg.AnthropicAPIKey, cfg.LLMModel, logger), nil
	default:
		return nil, &config.ConfigurationError{Field: "LLM_PROVIDER", Reason: "unknown provider " + cfg.LLMProvider}
	}
}

// buildStorage wires the vector index and the document store together. The
// pgvector pair shares one pool; the memory pair keeps everything in
// process for index-less deployments.
func buildStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (index_service.VectorIndex, document_service.DocumentStore, *pgxpool.Pool, error) {
	switch cfg.VectorIndex {
	case "pgvector":
		pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		store := document_service.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, err
		}
		index := index_service.NewPgVectorIndex(pool, cfg.EmbeddingDimension, logger)
		if err := index.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, err
		}
		go runIndexMaintenance(ctx, index, logger)
		return index, store, pool, nil
	case "memory":
		return index_service.NewMemoryIndex(cfg.EmbeddingDimension), document_service.NewMemoryStore(), nil, nil
	default:
		return nil, nil, nil, &config.ConfigurationError{Field: "VECTOR_INDEX", Reason: "unknown index " + cfg.VectorIndex}
	}
}

// runIndexMaintenance rebuilds the ivfflat index when the corpus has grown
// far past the list count it was created for.
func runIndexMaintenance(ctx context.Context, index *index_service.PgVectorIndex, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := index.ReindexIfNeeded(ctx); err != nil {
				logger.Error("Index maintenance failed",
					slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return
		}
	}
}

func initLogger() (*slog.Logger, error) {
	logDir := filepath.Join("logs", "docqa")

	fileHandler, err := logging.NewDailyFileHandler(logDir, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	if err != nil {
		return nil, err
	}

	return slog.New(fileHandler), nil
}
