package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/config"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/handler"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/middleware"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/pkg/cache"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/pkg/logger"
	"github.com/Nachoram/plataforma-inmobiliaria-sub007/backend/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	ctx := context.Background()

	// Select the contract repository
	var repo service.ContractRepository
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = service.NewPostgresRepository(pool)
		slog.Info("using postgres contract store")
	case "memory", "":
		repo = service.NewMemoryRepository()
		slog.Info("using in-memory contract store")
	default:
		slog.Error("unknown store driver", "driver", cfg.Store.Driver)
		os.Exit(1)
	}

	// Contract read cache: redis when configured, in-process otherwise
	var readCache cache.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		readCache = cache.NewRedis(client, "contracts")
		slog.Info("using redis contract cache", "addr", cfg.Redis.Addr)
	} else {
		readCache = cache.NewMemory(cfg.Store.CacheMaxEntries)
	}

	contractSvc := service.NewContractService(repo, readCache, time.Duration(cfg.Store.CacheTTLSeconds)*time.Second)

	// Contract archive is optional, snapshots are disabled without it
	var archiveSvc *service.ArchiveService
	if cfg.Minio.Endpoint != "" {
		archiveSvc, err = service.NewArchiveService(&cfg.Minio)
		if err != nil {
			slog.Error("failed to initialize contract archive", "error", err)
			os.Exit(1)
		}
		if err := archiveSvc.EnsureBucket(ctx); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
		slog.Info("contract archive enabled", "bucket", cfg.Minio.Bucket)
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	contractHandler := handler.NewContractHandler(contractSvc, archiveSvc)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(middleware.RateLimit(100, time.Minute)) // Rate limiting: 100 requests per minute

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.GET("/applications/:id/contract", contractHandler.GetByApplication)
		protected.GET("/contracts/:id", contractHandler.Get)
		protected.PUT("/contracts/:id/content", contractHandler.SaveContent)
		protected.POST("/contracts/:id/status", contractHandler.UpdateStatus)
		protected.POST("/contracts/:id/import", contractHandler.Import)
		protected.POST("/contracts/:id/sync", contractHandler.Sync)
		protected.PUT("/contracts/:id/details", contractHandler.SetDetails)
		protected.GET("/contracts/:id/clauses", contractHandler.ListClauses)
		protected.POST("/contracts/:id/clauses", contractHandler.CreateClause)
		protected.DELETE("/contracts/:id/clauses/:clauseId", contractHandler.DeleteClause)
		protected.POST("/contracts/:id/archive", contractHandler.Archive)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
