package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/mstanton/daykeeper/internal/config"
	"github.com/mstanton/daykeeper/internal/database"
	"github.com/mstanton/daykeeper/internal/handlers"
	"github.com/mstanton/daykeeper/internal/logger"
	"github.com/mstanton/daykeeper/internal/middleware"
	"github.com/mstanton/daykeeper/internal/queue"
	"github.com/mstanton/daykeeper/internal/services/ai"
	"github.com/mstanton/daykeeper/internal/session"
	"github.com/mstanton/daykeeper/internal/telemetry"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.New(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync(zapLogger)

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "daykeeper", version, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	zapLogger.Info("connected_to_database")

	// Connect to Redis for rate limiting
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// Connect to RabbitMQ for the job queue (optional; retried with
	// backoff to ride out broker startup delays)
	jobQueue := connectQueue(cfg, zapLogger)
	if jobQueue != nil {
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	// Initialize repositories
	planRepo := database.NewPlanRepository(db)
	activeGoalRepo := database.NewActiveGoalRepository(db)
	streakRepo := database.NewStreakRepository(db)
	historyRepo := database.NewHistoryRepository(db)

	// Initialize AI provider
	aiProvider, err := createAIProvider(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Fatal("failed_to_create_ai_provider", zap.Error(err))
	}

	// Initialize the session engine
	engine, err := session.NewEngine(context.Background(), session.Ports{
		Plans:       planRepo,
		ActiveGoals: activeGoalRepo,
		Streaks:     streakRepo,
		History:     historyRepo,
		Verifier:    aiProvider,
		Summarizer:  aiProvider,
		Jobs:        jobQueue,
	}, session.SystemClock{}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_session_engine", zap.Error(err))
	}

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(engine, aiProvider, zapLogger)
	planHandler := handlers.NewPlanHandler(planRepo, engine, jobQueue, zapLogger)
	streakHandler := handlers.NewStreakHandler(engine)
	historyHandler := handlers.NewHistoryHandler(historyRepo, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, jobQueue)

	// Setup router
	r := mux.NewRouter()

	// Middleware (gorilla/mux runs these in registration order)
	zapLogger.Info("setting_up_middleware")

	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("daykeeper"))
		zapLogger.Info("otel_middleware_enabled")
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")

	// API v1 routes (protected)
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitMW)
	if !cfg.AuthDisabled {
		apiRouter.Use(middleware.Auth([]byte(cfg.AuthSecret), zapLogger))
	} else {
		zapLogger.Warn("auth_disabled")
	}

	sessionHandler.RegisterRoutes(apiRouter.PathPrefix("/session").Subrouter())
	planHandler.RegisterRoutes(apiRouter.PathPrefix("/plans").Subrouter())
	streakHandler.RegisterRoutes(apiRouter.PathPrefix("/streak").Subrouter())
	historyHandler.RegisterRoutes(apiRouter.PathPrefix("/history").Subrouter())

	// Catch-all OPTIONS handler for preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Drive countdowns: sample the clock once a second through the
	// engine's tick intent.
	tickCtx, tickCancel := context.WithCancel(context.Background())
	defer tickCancel()
	go runTicker(tickCtx, engine, time.Duration(cfg.TickInterval)*time.Second, zapLogger)

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	tickCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// runTicker applies tick intents until ctx is cancelled
func runTicker(ctx context.Context, engine *session.Engine, interval time.Duration, zapLogger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.Apply(ctx, session.Intent{Kind: session.IntentTick}); err != nil {
				zapLogger.Error("tick_failed", zap.Error(err))
			}
		}
	}
}

// connectQueue dials RabbitMQ with exponential backoff. Returns nil when
// no RABBITMQ_URL is configured; background retries then never run and
// summaries stay on their fallback labels.
func connectQueue(cfg *config.Config, zapLogger *zap.Logger) queue.JobQueue {
	if cfg.RabbitMQURL == "" {
		zapLogger.Warn("rabbitmq_not_configured_background_jobs_disabled")
		return nil
	}

	const maxRetries = 10
	const initialDelay = 2 * time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return jobQueue
		}

		delay := initialDelay * time.Duration(1<<uint(attempt)) // Exponential backoff
		if delay > 30*time.Second {
			delay = 30 * time.Second // Cap at 30 seconds
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	zapLogger.Warn("rabbitmq_unreachable_continuing_without_background_jobs")
	return nil
}

// createAIProvider creates an AI provider based on configuration
func createAIProvider(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) (*ai.OpenAIProvider, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	return ai.NewOpenAIProviderWithLogger(
		cfg.OpenAIKey,
		cfg.AIBaseURL,
		cfg.AIModel,
		zapLogger,
		debugMode,
	), nil
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	// Only expose minimal version info
	if _, err := fmt.Fprintf(w, `{"version":"%s","timestamp":"%s"}`, version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}
