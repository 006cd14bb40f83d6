package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"ingest-svc/app/clients"
	"ingest-svc/app/dto"
	"ingest-svc/app/handlers"
	"ingest-svc/app/middleware"
	"ingest-svc/app/ratelimit"
	"ingest-svc/app/services"
	"ingest-svc/storage/postgres"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	postgresdriver "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Version is the service version reported by the status endpoint.
const Version = "1.2.0"

// App represents the application
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Storage clients.StorageAdapter
	Redis   *redis.Client
	NATS    *nats.Conn
	Router  *gin.Engine
}

// Bootstrap initializes the application
func Bootstrap() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})).With("env", cfg.Environment)

	// Initialize storage
	store, err := postgres.NewStore(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Run migrations using golang-migrate
	if err := runMigrations(cfg.ConnString()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Shared rate-limit counters; multiple instances must observe one window
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := ratelimit.NewRedis(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow)

	// Event publication is optional; the service runs without a broker
	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn("failed to connect to NATS, events disabled", "url", cfg.NATSURL, "error", err)
			natsConn = nil
		}
	}

	router := NewRouter(RouterDeps{
		Logger:  logger,
		Storage: store,
		Limiter: limiter,
		APIKeys: services.NewAPIKeyService(store, logger),
		Tokens:  services.NewTokenService(cfg.SigningSecret),
		Events:  services.NewEventService(natsConn, logger),
		DB:      store,
		Cache:   redisPinger{client: redisClient},
	})

	return &App{
		Config:  cfg,
		Logger:  logger,
		Storage: store,
		Redis:   redisClient,
		NATS:    natsConn,
		Router:  router,
	}, nil
}

// Close releases every acquired dependency, on any exit path.
func (a *App) Close() {
	if a.NATS != nil {
		a.NATS.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if store, ok := a.Storage.(*postgres.Store); ok {
		store.Close()
	}
}

// RouterDeps carries everything the request pipeline needs, injected so tests
// can wire in-memory implementations.
type RouterDeps struct {
	Logger  *slog.Logger
	Storage clients.StorageAdapter
	Limiter ratelimit.Limiter
	APIKeys *services.APIKeyService
	Tokens  *services.TokenService
	Events  *services.EventService
	DB      handlers.Pinger
	Cache   handlers.Pinger
}

// NewRouter builds the HTTP request pipeline: rate check on everything under
// /api/v1, auth on protected endpoints, then handler logic.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		deps.Logger.Error("panic recovered",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"origin", c.ClientIP(),
			"panic", err,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
		})
	}))
	router.Use(middleware.Metrics())

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	}))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: "not found: " + c.Request.URL.Path,
		})
	})

	statusHandler := handlers.NewStatusHandler(Version, deps.DB, deps.Cache, deps.Logger)
	moduleHandler := handlers.NewModuleHandler()
	agentHandler := handlers.NewAgentHandler(deps.Storage, deps.Events, deps.Logger)
	resultHandler := handlers.NewResultHandler(deps.Storage, deps.Events, deps.Logger)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(deps.Limiter, deps.Logger))
	{
		v1.GET("/status", statusHandler.Status)
		v1.GET("/modules", moduleHandler.List)

		protected := v1.Group("")
		protected.Use(middleware.Auth(deps.APIKeys, deps.Tokens, deps.Logger))
		{
			protected.POST("/beacon", agentHandler.Beacon)
			protected.GET("/agents", agentHandler.ListAgents)
			protected.POST("/results", resultHandler.Submit)
			protected.GET("/results", resultHandler.Query)
		}
	}

	return router
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// runMigrations runs database migrations using golang-migrate
func runMigrations(connString string) error {
	// golang-migrate expects database/sql driver, so we use pgx stdlib adapter
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	driver, err := postgresdriver.WithInstance(db, &postgresdriver.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	migrationDir := "storage/postgres/migrations"
	sourceURL := fmt.Sprintf("file://%s", migrationDir)

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
