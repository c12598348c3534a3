package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/scribe-gateway/internal/api"
	"github.com/lexiqai/scribe-gateway/internal/config"
	"github.com/lexiqai/scribe-gateway/internal/diff"
	"github.com/lexiqai/scribe-gateway/internal/genai"
	"github.com/lexiqai/scribe-gateway/internal/observability"
	"github.com/lexiqai/scribe-gateway/internal/resilience"
	"github.com/lexiqai/scribe-gateway/internal/session"
	"github.com/lexiqai/scribe-gateway/internal/store"
	"github.com/lexiqai/scribe-gateway/internal/stt"
	"github.com/lexiqai/scribe-gateway/internal/transcript"
	"github.com/lexiqai/scribe-gateway/internal/transport/ws"
)

const grpcHealthInterval = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("transcription_provider", cfg.TranscriptionProvider).
		Bool("gemini_configured", cfg.GeminiConfigured()).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Scribe Gateway Service starting")

	// Record store
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
	}
	if cfg.SeedFile != "" {
		n, err := db.LoadSeedFile(context.Background(), cfg.SeedFile)
		if err != nil {
			logger.Fatal().Err(err).Str("seed_file", cfg.SeedFile).Msg("Failed to load seed data")
		}
		logger.Info().Int("patients", n).Str("seed_file", cfg.SeedFile).Msg("Seed data loaded")
	}

	// AI capabilities. Interfaces stay nil when a capability is unconfigured.
	var (
		transcriber transcript.Transcriber
		titler      transcript.Titler
		comparator  diff.Comparator
	)
	if cfg.GeminiConfigured() {
		gemini, err := genai.NewClient(context.Background(), genai.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.AITimeoutDuration(),
		}, newBreaker("gemini", cfg, logger), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		titler = gemini
		comparator = gemini
		if cfg.TranscriptionProvider == config.ProviderGemini {
			transcriber = gemini
		}
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set; comparison falls back to local diff and titles to local rule")
	}
	if cfg.TranscriptionProvider == config.ProviderDeepgram {
		transcriber = stt.NewDeepgramTranscriber(stt.Config{
			APIKey:   cfg.DeepgramAPIKey,
			Model:    cfg.DeepgramModel,
			Language: cfg.DeepgramLanguage,
			Timeout:  cfg.AITimeoutDuration(),
		}, newBreaker("deepgram", cfg, logger), logger)
	}
	if transcriber == nil {
		logger.Warn().Msg("No transcription capability configured; recordings will return an error result")
	}

	assembler := transcript.NewAssembler(transcriber, titler, logger)
	engine := diff.NewEngine(comparator, cfg.AITimeoutDuration(), logger)

	// Sessions
	hub := ws.NewHub()
	router := session.NewRouter(hub, logger)
	manager := session.NewManager(session.NewRegistry(), router, assembler, db, cfg.AITimeoutDuration(), logger)
	wsServer := ws.NewServer(cfg, hub, manager)

	checks := []observability.DependencyCheck{
		{
			Name: "store",
			Check: func(ctx context.Context) (bool, error) {
				if err := db.Ping(ctx); err != nil {
					return false, err
				}
				return true, nil
			},
		},
		{
			Name:     "transcription",
			Optional: true,
			Check:    configured(assembler.Available),
		},
		{
			Name:     "comparison",
			Optional: true,
			Check:    configured(engine.Available),
		},
	}

	e := api.NewServer(api.ServerOptions{
		Handler:        api.NewHandler(db, engine, logger),
		WebSocket:      wsServer.HandleWebSocket,
		Readiness:      checks,
		AllowOrigins:   cfg.AllowOrigins(),
		MetricsEnabled: cfg.MetricsEnabled,
		Logger:         logger,
	})

	// gRPC health service
	var grpcHealth *observability.GRPCHealthServer
	if cfg.GRPCHealthEnabled {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			logger.Fatal().Err(err).Str("port", cfg.GRPCHealthPort).Msg("Failed to listen for gRPC health")
		}
		grpcHealth = observability.NewGRPCHealthServer(logger, grpcHealthInterval, checks...)
		grpcHealth.Refresh(context.Background())
		go func() {
			logger.Info().Str("port", cfg.GRPCHealthPort).Msg("gRPC health server listening")
			if err := grpcHealth.Serve(lis); err != nil {
				logger.Error().Err(err).Msg("gRPC health server failed")
			}
		}()
	}

	// Create HTTP server with timeouts. Diff requests wait on the model.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeoutDuration() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		endpoint := fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)
		if cfg.PublicURL != "" {
			endpoint = cfg.PublicURL + "/ws"
		}
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", endpoint).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().
		Int("connections", hub.ConnectionCount()).
		Int("sessions", manager.Registry().Len()).
		Msg("Shutting down server...")

	if grpcHealth != nil {
		grpcHealth.Shutdown()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Hijacked sockets outlive server.Shutdown. Stops arriving from here on are
	// answered without finalizing; in-flight recordings deliver before the
	// sockets close.
	manager.Shutdown()
	hub.CloseAll()

	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close database")
	}

	logger.Info().Msg("Server exited gracefully")
}

// newBreaker creates a circuit breaker whose state is exported as a metric.
func newBreaker(name string, cfg *config.Config, logger zerolog.Logger) *resilience.CircuitBreaker {
	cb := resilience.NewCircuitBreaker(
		name,
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	cb.OnStateChange(func(service string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(service, int(to))
		logger.Warn().
			Str("service", service).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	})
	observability.UpdateCircuitBreakerState(name, int(cb.GetState()))
	return cb
}

func configured(available func() bool) observability.HealthCheckFunc {
	return func(context.Context) (bool, error) {
		if !available() {
			return false, errors.New("not configured")
		}
		return true, nil
	}
}
