// cmd/research-worker/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"device-research/internal/agent"
	"device-research/internal/audit"
	"device-research/internal/common/camunda"
	"device-research/internal/common/config"
	"device-research/internal/common/database"
	"device-research/internal/common/logger"
	"device-research/internal/common/observability"
	"device-research/internal/docsearch"
	"device-research/internal/fda"
	"device-research/internal/llm"
	"device-research/internal/session"
	"device-research/internal/websearch"

	researchturn "device-research/internal/workers/ai-conversation/research-turn"
	fdalookup "device-research/internal/workers/data-access/fda-lookup"
)

type worker interface {
	Register() error
	Close()
	GetTaskType() string
}

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logger.New("info", "console")
		bootstrap.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting research worker...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.Observability.ServiceName, cfg.Observability.Tracing)
	if err != nil {
		zapLog.Fatal("observability setup failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Zeebe ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(ctx, camunda.ConfigFromApp(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL (turn audit) ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("audit schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis (session history) ---
	rdb := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	// --- Completion API ---
	completion := cfg.APIs.Completion
	var completer llm.Completer
	if completion.APIKey != "" {
		completer = llm.NewClient(&llm.Config{
			BaseURL:    completion.BaseURL,
			APIKey:     completion.APIKey,
			Model:      completion.Model,
			Timeout:    config.GetDuration(completion.Timeout),
			MaxRetries: completion.MaxRetries,
		}, log)
	} else {
		zapLog.Warn("completion API key not set, answers will report the missing key")
	}

	// --- Evidence sources ---
	var sources agent.Sources
	checks := []readinessCheck{
		{name: "zeebe", check: camundaClient.HealthCheck},
		{name: "postgres", check: pg.Ping},
		{name: "redis", check: rdb.Ping},
	}

	if cfg.Research.Sources.Documents {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		if err := es.EnsureIndex(ctx, cfg.Research.DocumentIndex); err != nil {
			zapLog.Fatal("document index setup failed", zap.Error(err))
		}
		sources.Documents = docsearch.NewSearcher(&docsearch.Config{
			Index:      cfg.Research.DocumentIndex,
			MaxResults: cfg.Research.DocumentMaxResults,
			Timeout:    config.GetDuration(cfg.Research.DocumentTimeout),
		}, es.Client, log)
		checks = append(checks, readinessCheck{name: "elasticsearch", check: es.Ping})
		zapLog.Info("Elasticsearch connected successfully")
	}

	fdaTool := fda.NewTool(fda.NewClient(fda.Config{
		BaseURL: cfg.APIs.FDA.BaseURL,
		Timeout: config.GetDuration(cfg.APIs.FDA.Timeout),
	}), log)
	if cfg.Research.Sources.Regulatory {
		sources.Regulatory = fdaTool
	}

	if cfg.Research.Sources.Web {
		web := cfg.APIs.WebSearch
		sources.Web = websearch.NewSearcher(&websearch.Config{
			SearchAPIBaseURL: web.BaseURL,
			SearchAPIKey:     web.APIKey,
			SearchEngineID:   web.EngineID,
			Timeout:          config.GetDuration(web.Timeout),
			MaxResults:       web.MaxResults,
			Summary:          llm.CallSettings(cfg.Research.WebSummary),
			Fallback:         llm.CallSettings(cfg.Research.WebFallback),
		}, completer, log)
	}

	researcher := agent.New(&agent.Config{
		Instructions:    cfg.Research.Instructions,
		Synthesis:       llm.CallSettings(cfg.Research.Synthesis),
		RegulatoryLimit: cfg.Research.RegulatoryLimit,
	}, sources, completer, log)

	history := session.NewStore(&session.Config{
		KeyPrefix:     cfg.Session.KeyPrefix,
		HistoryWindow: cfg.Session.HistoryWindow,
		TTL:           time.Duration(cfg.Session.TTL) * time.Second,
	}, rdb.Client, log)

	// --- Workers ---
	var workers []worker

	if config.IsWorkerEnabled(cfg, researchturn.TaskType) {
		h, err := researchturn.NewHandler(researchturn.HandlerOptions{
			AppConfig:     cfg,
			Camunda:       camundaClient,
			Agent:         researcher,
			History:       history,
			Audit:         audit.NewLog(pg.DB),
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("research turn handler init failed", zap.Error(err))
		}
		workers = append(workers, h)
	}

	if config.IsWorkerEnabled(cfg, fdalookup.TaskType) {
		h, err := fdalookup.NewHandler(fdalookup.HandlerOptions{
			AppConfig: cfg,
			Camunda:   camundaClient,
			Searcher:  fdaTool,
			Logger:    log,
		})
		if err != nil {
			zapLog.Fatal("fda lookup handler init failed", zap.Error(err))
		}
		workers = append(workers, h)
	}

	for _, w := range workers {
		if err := w.Register(); err != nil {
			zapLog.Fatal("worker registration failed", zap.String("taskType", w.GetTaskType()), zap.Error(err))
		}
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	server := newHealthServer(cfg.App.HTTPAddr, checks)
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		zapLog.Error("Error closing Redis client", zap.Error(err))
	}
	if err := pg.Close(); err != nil {
		zapLog.Error("Error closing PostgreSQL client", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down observability", zap.Error(err))
	}

	zapLog.Info("Research worker stopped gracefully")
}
