// Command searcher serves lookups against a snapshot over HTTP and reloads
// it when invert writes a new one.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/notify"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"dictionary", cfg.Server.DictionaryPath,
		"postings", cfg.Server.PostingsPath,
	)

	snap, err := segment.Load(cfg.Server.DictionaryPath, cfg.Server.PostingsPath)
	if err != nil {
		slog.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	}
	engine, err := query.New(snap)
	if err != nil {
		slog.Error("failed to create query engine", "error", err)
		os.Exit(1)
	}
	holder := reload.NewHolder(engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	reloader := reload.New(holder, cfg.Server.DictionaryPath, cfg.Server.PostingsPath).WithMetrics(m)

	var lookupCache *cache.LookupCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, lookup caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			store := cache.Guard(redisClient, cache.GuardConfig{
				Timeout:          cfg.Redis.OpTimeout,
				FailureThreshold: 5,
				ResetTimeout:     cfg.Redis.BreakerReset,
				OnStateChange: func(_, to resilience.State) {
					if to == resilience.StateClosed {
						m.CacheCircuitOpen.Set(0)
					} else {
						m.CacheCircuitOpen.Set(1)
					}
				},
			})
			lookupCache = cache.New(store, cfg.Redis.CacheTTL).WithMetrics(m)
			reloader.OnReload(func(ctx context.Context, _ *query.Engine) {
				if err := lookupCache.Invalidate(ctx); err != nil {
					slog.Warn("stale lookups left in cache", "error", err)
				}
			})
			slog.Info("lookup cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Watch.Enabled {
		if err := reloader.Watch(ctx, cfg.Watch.Debounce); err != nil {
			slog.Error("failed to watch snapshot", "error", err)
			os.Exit(1)
		}
	}

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer[notify.IndexComplete](cfg.Kafka, cfg.Kafka.Topics.IndexComplete, reloader.HandleEvent)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index complete consumer error", "error", err)
			}
		}()
		slog.Info("listening for index complete events", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	checker := health.NewChecker()
	checker.Register("snapshot", func(ctx context.Context) health.ComponentHealth {
		s := holder.Engine().Snapshot()
		if len(s.Dictionary) == 0 {
			return health.ComponentHealth{Status: health.StatusDown, Message: "empty dictionary"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("build %s, %d terms", s.BuildID, len(s.Dictionary)),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient, health.StatusDegraded))
	} else if cfg.Redis.Enabled {
		checker.Register("redis", health.PingCheck(nil, health.StatusDegraded))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Post("/api/v1/snapshot/reload", func(w http.ResponseWriter, req *http.Request) {
		swapped, err := reloader.Reload(req.Context(), "api")
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"reloaded": swapped, "build_id": holder.BuildID()})
	})
	handler.New(holder, lookupCache, cfg.Query.SummaryRadius).WithMetrics(m).Register(r)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr, "build_id", holder.BuildID())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
