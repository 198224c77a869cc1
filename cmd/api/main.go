package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tastebook/tastebook-api/internal/auth"
	"github.com/tastebook/tastebook-api/internal/config"
	"github.com/tastebook/tastebook-api/internal/database"
	"github.com/tastebook/tastebook-api/internal/email"
	httpServer "github.com/tastebook/tastebook-api/internal/http"
	"github.com/tastebook/tastebook-api/internal/logging"
	"github.com/tastebook/tastebook-api/internal/mealplan"
	"github.com/tastebook/tastebook-api/internal/notify"
	"github.com/tastebook/tastebook-api/internal/profile"
	"github.com/tastebook/tastebook-api/internal/ratelimit"
	"github.com/tastebook/tastebook-api/internal/recipe"
	"github.com/tastebook/tastebook-api/internal/session"
	"github.com/tastebook/tastebook-api/internal/user"
)

// @title           Tastebook API
// @version         1.0
// @description     Account management, profiles and recipe sharing for the Tastebook meal-planning app.

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
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	// Initialize the identity store (Postgres)
	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if cfg.Server.IsDevelopment() {
		if err := database.CreateSchema(context.Background(), db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	// Initialize the document store (MongoDB)
	mongoClient, mongoDB, err := initMongo(cfg.Mongo)
	if err != nil {
		return fmt.Errorf("failed to initialize document store: %w", err)
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := user.NewRepository(db)
	tokenRepo := auth.NewRedisRepository(redisClient)
	profileRepo := profile.NewRepository(mongoDB)
	recipeRepo := recipe.NewRepository(mongoDB)

	// Initialize rate limiter
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize PASETO service
	pasetoService, err := auth.NewPasetoService(cfg.Auth.PasetoKey)
	if err != nil {
		return fmt.Errorf("failed to initialize PASETO service: %w", err)
	}

	// Initialize email service
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FrontendURL,
		logger,
	)

	// Initialize profile services
	usernameChecker := profile.NewChecker(profileRepo, logger)
	profileService := profile.NewService(profileRepo, usernameChecker, logger)

	// Initialize auth service
	authService := auth.NewService(
		userRepo,
		tokenRepo,
		profileService,
		usernameChecker,
		pasetoService,
		logger,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)

	// Initialize the idle-session monitor. Expiry revokes every refresh
	// token the principal holds, which forces a fresh sign-in.
	monitor := session.NewMonitor(cfg.Session.IdleTimeout, func(ctx context.Context, uid string) error {
		userID, err := uuid.Parse(uid)
		if err != nil {
			return fmt.Errorf("invalid principal id %q: %w", uid, err)
		}
		return authService.RevokeAllSessions(ctx, userID)
	}, logger)
	defer monitor.Stop()

	// Initialize recipe sharing service
	recipeService := recipe.NewService(recipeRepo, profileRepo, emailService, logger)

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(
		authService,
		rateLimiter,
		monitor,
		logger,
		!cfg.Server.IsDevelopment(), // isProduction
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)
	authMiddleware := auth.NewMiddleware(pasetoService)
	profileHandler := httpServer.NewProfileHandler(profileService)
	recipeHandler := httpServer.NewRecipeHandler(recipeService)

	// Initialize router
	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, profileHandler, recipeHandler, monitor, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
	)

	// Daily meal digest, when configured
	notifierCtx, cancelNotifier := context.WithCancel(context.Background())
	defer cancelNotifier()
	if cfg.Notifier.Enabled() {
		planRepo := mealplan.NewRepository(mongoDB)
		digest := mealplan.NewDigest(planRepo, recipeRepo, logger)
		telegram := notify.NewTelegram(cfg.Notifier.TelegramBotToken, cfg.Notifier.TelegramChatID)
		scheduler := notify.NewScheduler(cfg.Notifier.SendAt, digest.TodayMessage, telegram, logger)
		go scheduler.Run(notifierCtx)
		logger.Info("daily meal notifier enabled", "send_at", cfg.Notifier.SendAt)
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initDB initializes the Postgres connection and returns a Bun DB instance
func initDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return database.NewBunDB(sqlDB), nil
}

// initMongo connects to the document store and returns the client plus the
// application database handle.
func initMongo(cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	client, err := database.NewMongoClient(context.Background(), cfg.URI)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Database(cfg.DBName), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
