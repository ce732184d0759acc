package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clinicbook/backend/internal/adapters/cache"
	"github.com/clinicbook/backend/internal/adapters/database"
	"github.com/clinicbook/backend/internal/api/handlers"
	"github.com/clinicbook/backend/internal/api/middleware"
	"github.com/clinicbook/backend/internal/api/routes"
	"github.com/clinicbook/backend/internal/application/services"
	"github.com/clinicbook/backend/internal/domain/repositories"
	"github.com/clinicbook/backend/internal/infrastructure/clients/postgres"
	"github.com/clinicbook/backend/internal/infrastructure/clients/redis"
	"github.com/clinicbook/backend/internal/infrastructure/observability"
	"github.com/clinicbook/backend/pkg/auth"
	"github.com/clinicbook/backend/pkg/clock"
	"github.com/clinicbook/backend/pkg/config"
	"github.com/clinicbook/backend/pkg/secrets"
)

func main() {
	// Secrets from Vault land in the environment before configuration is read
	_ = godotenv.Load()
	vaultCtx, cancelVault := context.WithTimeout(context.Background(), 15*time.Second)
	vaultResult, vaultErr := secrets.ApplyVaultSecrets(vaultCtx, secrets.LoadVaultConfigFromEnv())
	cancelVault()
	if vaultErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to load secrets from Vault: %v\n", vaultErr)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)
	logger := observability.GetLogger()
	if vaultResult.Enabled {
		logger.Info().Str("path", vaultResult.Path).Strs("loaded", vaultResult.Loaded).Strs("skipped", vaultResult.Skipped).Msg("secrets loaded from Vault")
	}

	// Set up context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			observability.ForwardToOTEL()
			logger = observability.GetLogger()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	loc, err := cfg.Scheduling.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scheduling configuration")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if cfg.Database.MigrateOnStart {
		applied, err := pgClient.Migrate(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to apply migrations")
		}
		logger.Info().Int("applied", applied).Msg("database schema up to date")
	}

	// Initialize repositories
	appointmentRepo := database.NewAppointmentAdapter(pgClient, metrics)
	var userRepo repositories.UserRepository = database.NewUserAdapter(pgClient, metrics)

	// Redis is optional: without it user lookups go straight to PostgreSQL
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, user lookups are not cached")
	} else {
		defer redisClient.Close()
		userRepo = database.NewCachedUserAdapter(userRepo, cache.NewRedisAdapter(redisClient), cfg.Redis.UserCacheTTL, metrics)
	}

	// Initialize services
	clk := clock.System{}
	bookingService := services.NewBookingService(appointmentRepo, userRepo, clk, loc, metrics)
	appointmentService := services.NewAppointmentService(appointmentRepo, userRepo, clk)

	// Initialize handlers
	appointmentHandler := handlers.NewAppointmentHandler(bookingService, appointmentService, loc)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go rateLimiter.Run(ctx)

	router := routes.NewRouter(
		appointmentHandler,
		auth.NewVerifier(cfg.Auth.JWTSecret, nil),
		rateLimiter,
		cfg.Server.AllowedOrigins,
		metrics,
	)
	router.AddReadinessCheck("postgres", pgClient.Ping)
	if redisClient != nil {
		router.AddReadinessCheck("redis", redisClient.Ping)
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Str("timezone", loc.String()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	logger.Info().Msg("server stopped")
}
