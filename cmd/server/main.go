// ==============================================================================
// RISK ENGINE SERVER - cmd/server/main.go
// ==============================================================================
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"sentinel/internal/middleware"
	"sentinel/internal/notification"
	"sentinel/internal/riskengine/evalcontext"
	"sentinel/internal/riskengine/graph"
	"sentinel/internal/riskengine/httpapi"
	"sentinel/internal/riskengine/iforest"
	"sentinel/internal/riskengine/metrics"
	"sentinel/internal/riskengine/orchestrator"
	"sentinel/internal/riskengine/profile"
	"sentinel/internal/riskengine/reviewqueue"
	"sentinel/internal/riskengine/rules"
	"sentinel/internal/riskengine/scoring"
	"sentinel/internal/riskengine/silence"
	"sentinel/internal/riskengine/store"
	"sentinel/internal/riskengine/tuner"
	"sentinel/pkg/config"
	"sentinel/pkg/logger"
	"sentinel/pkg/validator"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New("risk-engine")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting risk engine", map[string]interface{}{"port": cfg.Server.Port})

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	defer redisClient.Close()

	log.Info("Redis connected", nil)

	s := store.New(redisClient)

	// Component wiring: profiles, rule registry, beneficiary graph and
	// isolation forest feed the per-transaction context builder; the
	// orchestrator sequences all of it plus the review queue and the two
	// fire-and-forget sinks into one synchronous evaluation call.
	profiles := profile.New(s, cfg.Engine.EWMAAlpha)
	counters := profile.NewCounters(s)

	ruleRepo := rules.NewRepository(s)
	ruleRegistry := rules.NewRegistry(ruleRepo, log)
	if err := ruleRegistry.Reload(context.Background()); err != nil {
		log.Warn("initial rule load failed; starting with an empty active set", map[string]interface{}{"error": err.Error()})
	}

	beneGraph := graph.New(s, log, cfg.Engine.GraphLookbackWindow)
	if err := beneGraph.Rebuild(context.Background()); err != nil {
		log.Warn("initial graph build failed", map[string]interface{}{"error": err.Error()})
	}

	forest := iforest.New(s, iforest.Config{
		TreeCount:  cfg.Engine.ForestTreeCount,
		SampleSize: cfg.Engine.ForestSampleSize,
	})

	ctxBuilder := evalcontext.NewBuilder(counters, beneGraph, forest)
	queue := reviewqueue.New(s, log)

	notifier := notification.NewRiskSink(notification.NewService(log), log, 256)
	defer notifier.Close()

	metricsSink := metrics.New(prometheus.DefaultRegisterer)

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.MinProfileTxns = int64(cfg.Engine.MinProfileTxns)
	orchCfg.Thresholds = scoring.Thresholds{Alert: cfg.Engine.AlertThreshold, Block: cfg.Engine.BlockThreshold}
	orchCfg.AutoAcceptTimeout = cfg.Engine.AutoAcceptAfter

	orch := orchestrator.New(s, profiles, ruleRegistry, ctxBuilder, queue, notifier, metricsSink, orchCfg, log)

	silenceDetector := silence.New(s, notifier, metricsSink, silence.DefaultConfig(), log)

	autoTuner := tuner.New(queue, ruleRegistry, s, metricsSink, tuner.DefaultConfig(), log)

	// Every background component owns its own ticker lifecycle; start and
	// stop them alongside the process rather than through a shared
	// scheduler.
	ruleRegistry.StartReloader(cfg.Engine.RuleCacheRefresh)
	defer ruleRegistry.Stop()

	beneGraph.StartRebuilder(cfg.Engine.GraphRebuildInterval)
	defer beneGraph.Stop()

	queue.StartAutoAcceptSweeper(cfg.Engine.AutoAcceptSweepInterval)
	defer queue.Stop()

	silenceDetector.StartScheduler(cfg.Engine.SilenceCheckInterval)
	defer silenceDetector.Stop()

	autoTuner.StartScheduler(time.Minute, cfg.Engine.TunerRunInterval)
	defer autoTuner.Stop()

	val := validator.New()
	api := httpapi.New(orch, queue, ruleRegistry, val, log)

	r := mux.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.NewRateLimiter(redisClient, 300, time.Minute).Limit)

	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/ready", readyCheck(redisClient)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api.Register(r)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Risk engine listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down risk engine...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Risk engine forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Risk engine stopped gracefully", nil)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	_ = r
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"risk-engine","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func readyCheck(client *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := client.Ping(r.Context()).Err(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready","reason":"redis unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready","service":"risk-engine"}`))
	}
}
