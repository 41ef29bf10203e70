package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/cinevault/auth-service/internal/auth"
	"github.com/cinevault/auth-service/internal/config"
	"github.com/cinevault/auth-service/internal/database"
	"github.com/cinevault/auth-service/internal/email"
	"github.com/cinevault/auth-service/internal/events"
	"github.com/cinevault/auth-service/internal/guard"
	httpServer "github.com/cinevault/auth-service/internal/http"
	"github.com/cinevault/auth-service/internal/logging"
	"github.com/cinevault/auth-service/internal/ratelimit"
	"github.com/cinevault/auth-service/internal/session"
	"github.com/cinevault/auth-service/internal/token"
	"github.com/cinevault/auth-service/internal/user"
)

// @title           CineVault Auth Service
// @version         1.0
// @description     Token-based authentication and session lifecycle service: registration, login with lockout, refresh token rotation storage, password reset, and per-endpoint rate limiting.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting auth service",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		// Redis backs rate limiting and events only; both degrade gracefully,
		// so a missing Redis downgrades to in-process behavior.
		logger.Warn("redis unavailable, using in-memory rate limiting and disabling events", "error", err.Error())
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	userRepo := user.NewRepository(db)

	sessions := session.NewManager(
		session.NewBunStore(db),
		cfg.Auth.RefreshTokenDuration,
		cfg.Auth.MaxRefreshTokens,
	)

	var limiterStore ratelimit.Store
	if redisClient != nil {
		limiterStore = ratelimit.NewRedisStore(redisClient)
	} else {
		limiterStore = ratelimit.NewMemoryStore()
	}
	rateLimiter := ratelimit.NewLimiter(limiterStore, cfg.RateLimit, logger)

	jwtService := token.NewJWTService(cfg.Auth)
	hasher := token.NewPasswordHasher(cfg.Auth.BcryptCost)
	accountGuard := guard.New(cfg.Auth.MaxLoginAttempts, cfg.Auth.LockoutDuration)

	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FrontendURL,
		cfg.Email.SendTimeout,
	)

	publisher := events.NewPublisher(redisClient, logger)

	authService := auth.NewService(
		userRepo,
		sessions,
		jwtService,
		hasher,
		accountGuard,
		emailService,
		publisher,
		logger,
	)

	authHandler := auth.NewHandler(
		authService,
		rateLimiter,
		logger,
		!cfg.Server.IsDevelopment(), // isProduction
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
		cfg.Auth.ResetTokenDuration,
	)
	authMiddleware := auth.NewMiddleware(jwtService)

	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
