package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/af-corp/foodguard-gateway/internal/config"
	"github.com/af-corp/foodguard-gateway/internal/gateway"
	"github.com/af-corp/foodguard-gateway/internal/genapi"
	"github.com/af-corp/foodguard-gateway/internal/guard"
	"github.com/af-corp/foodguard-gateway/internal/guard/injection"
	"github.com/af-corp/foodguard-gateway/internal/guard/keyword"
	"github.com/af-corp/foodguard-gateway/internal/guard/nsfw"
	"github.com/af-corp/foodguard-gateway/internal/guard/policy"
	"github.com/af-corp/foodguard-gateway/internal/guard/semantic"
	"github.com/af-corp/foodguard-gateway/internal/guard/vision"
	"github.com/af-corp/foodguard-gateway/internal/refset"
	"github.com/af-corp/foodguard-gateway/internal/task"
	"github.com/af-corp/foodguard-gateway/internal/telemetry"
	"github.com/af-corp/foodguard-gateway/internal/verdictcache"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	memoryMode := flag.Bool("memory", false, "run with in-memory store and queue (no postgres/redis)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}
	cfg := loader.Config()

	metrics := telemetry.NewMetrics()

	// Reference set is a startup invariant: no centroids, no pipeline.
	refs, err := refset.Load(cfg.Guard.ReferenceSetPath)
	if err != nil {
		logger.Error("failed to load reference set", "path", cfg.Guard.ReferenceSetPath, "error", err)
		os.Exit(1)
	}
	logger.Info("reference set loaded",
		"name", refs.Name(), "version", refs.Version(), "model", refs.Model(), "dim", refs.Dim())

	// Storage and queue
	var (
		store task.Store
		queue task.Queue
		rdb   *redis.Client
	)
	if *memoryMode {
		logger.Warn("running in memory mode: tasks are not durable")
		store = task.NewMemStore()
		queue = task.NewMemQueue(1024)
	} else {
		dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		if err := dbPool.Ping(context.Background()); err != nil {
			logger.Error("database not reachable", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")
		store = task.NewPGStore(dbPool)

		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis not reachable", "error", err)
			os.Exit(1)
		}
		logger.Info("redis connected")
		queue = task.NewRedisQueue(rdb, cfg.Worker.QueueName)
	}

	// Guard pipeline
	embedder := semantic.NewOpenAIEmbedder(cfg.Guard.Embedding)
	textScorer, err := semantic.NewScorer(embedder, refs, loader.Guard)
	if err != nil {
		logger.Error("failed to build semantic scorer", "error", err)
		os.Exit(1)
	}

	visionClient := vision.NewClient(cfg.Guard.Vision)

	var policyChecker guard.PolicyChecker
	if cfg.Guard.Policy.Enabled {
		eval := policy.NewEvaluator(func() config.PolicyFilterConfig { return loader.Guard().Policy })
		if err := eval.Load(); err != nil {
			logger.Error("failed to load policies", "error", err)
			os.Exit(1)
		}
		loader.OnReload(func() {
			if err := eval.Load(); err != nil {
				logger.Error("policy reload failed", "error", err)
			}
		})
		policyChecker = eval
	}

	engine := guard.NewEngine(loader.Guard, guard.Deps{
		Keywords:  keyword.NewDefaultMatcher(),
		Injection: injection.NewScanner(func() config.InjectionFilterConfig { return loader.Guard().Injection }),
		Text:      textScorer,
		Image:     vision.NewScorer(visionClient, loader.Guard),
		Safety:    nsfw.NewDetector(visionClient, loader.Guard),
		Policy:    policyChecker,
		Cache:     verdictcache.New(rdb, cfg.Guard.CacheTTL),
		Metrics:   metrics,
		Logger:    logger,
	})

	generator := genapi.NewClient(cfg.Generation)

	// Async layer
	svc := task.NewService(store, queue, metrics)
	pool := task.NewPool(store, queue, engine, generator, cfg.Worker.PoolSize, cfg.Worker.LeaseTimeout, metrics, logger)
	reaper := task.NewReaper(store, queue, cfg.Worker.LeaseTimeout, cfg.Worker.Retention, cfg.Worker.ReapInterval, metrics, logger)

	workCtx, stopWork := context.WithCancel(context.Background())
	pool.Start(workCtx)
	go reaper.Run(workCtx)

	// HTTP surface
	handler := gateway.NewHandler(svc, engine, generator, loader.Config)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/healthz", healthHandler(generator))
	r.Post("/v1/generations", handler.CreateGeneration)
	r.Get("/v1/generations/{id}", handler.GetGeneration)

	// Metrics on a separate port so the public surface stays minimal.
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version, "workers", cfg.Worker.PoolSize)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	// Stop accepting work, then let in-flight tasks drain.
	stopWork()
	pool.Wait()
	logger.Info("gateway stopped")
}

func healthHandler(gen *genapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":             "healthy",
			"version":            version,
			"generation_circuit": gen.Circuit().State().String(),
		})
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
