package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"storefront-admin-service/internal/clients"
	"storefront-admin-service/internal/config"
	"storefront-admin-service/internal/deletion"
	"storefront-admin-service/internal/editor"
	"storefront-admin-service/internal/events"
	"storefront-admin-service/internal/handlers"
	"storefront-admin-service/internal/middleware"
	"storefront-admin-service/internal/store"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Storefront Admin Catalog API
// @version 1.0.0
// @description Admin product catalog for storefront dashboards: product table, product editor and delete confirmation, synchronized with the catalog API

// @host localhost:8090
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const serviceName = "storefront-admin-service"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.IsProduction() {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}
	logEntry := logrus.NewEntry(logger).WithField("service", serviceName)

	// Initialize Redis client only when category caching is enabled
	var redisClient *redis.Client
	if cfg.CategoryCacheTTL > 0 {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
			redisOpts = &redis.Options{
				Addr: "localhost:6379",
			}
		}
		// Set Redis password from GCP Secret Manager
		if password := secrets.GetRedisPassword(); password != "" {
			redisOpts.Password = password
		}
		redisClient = redis.NewClient(redisOpts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v (category cache will fall through)", err)
		} else {
			log.Println("✓ Redis connected successfully")
		}
		cancel()
		defer redisClient.Close()
	} else {
		log.Println("CATEGORY_CACHE_TTL not set, category caching disabled")
	}

	// Initialize event publisher for audit trail only if NATS_URL is set
	storeOpts := []store.Option{store.WithLogger(logEntry)}
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		var err error
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			storeOpts = append(storeOpts, store.WithPublisher(eventsPublisher))
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	// Initialize catalog clients
	clientCfg := clients.Config{
		BaseURL:       cfg.CatalogAPIURL,
		TrailingSlash: cfg.CatalogTrailingSlash,
		Timeout:       cfg.CatalogTimeout,
		RateLimit:     cfg.CatalogRateLimit,
		Interceptors:  []clients.RequestInterceptor{clients.ForwardCredentials()},
		Logger:        logEntry,
	}
	catalogClient := clients.NewCatalogClient(clientCfg)
	categories := clients.NewCachedCategories(clients.NewCategoriesClient(clientCfg), redisClient, cfg.CategoryCacheTTL, logEntry)
	log.Printf("✓ Catalog API client initialized (%s)", cfg.CatalogAPIURL)

	// Initialize stores, editor sessions and delete flows
	stores := store.NewRegistry(catalogClient, storeOpts...)
	sessions := editor.NewManager(categories, editor.ManagerOptions{
		SessionTTL:    cfg.EditorSessionTTL,
		MaxImageBytes: cfg.MaxImageSizeBytes,
		Logger:        logEntry,
	})
	deletions := deletion.NewRegistry()

	// Initialize handlers
	productsHandler := handlers.NewAdminProductsHandler(stores, deletions, categories, logEntry)
	exportHandler := handlers.NewExportHandler(stores, categories, logEntry)
	editorHandler := handlers.NewEditorHandler(stores, sessions, deletions, cfg.MaxImageSizeBytes, logEntry)

	// Start background jobs
	jobCtx, stopJobs := context.WithCancel(context.Background())
	expiryJob := editor.NewExpiryJob(sessions, cfg.EditorSweepInterval)
	go expiryJob.Start(jobCtx)
	log.Println("✓ Editor session expiry job started")

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	var err error
	if cfg.IsProduction() {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig(serviceName))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig(serviceName))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	// Initialize Prometheus metrics
	metrics := gosharedmw.InitGlobalMetrics("tesseract", "storefront_admin_service")
	log.Println("✓ Prometheus metrics initialized")

	// Initialize Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Add observability middleware (metrics + tracing)
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware(serviceName))
	router.Use(gosharedmw.CompressionMiddleware())
	router.Use(gosharedmw.SecurityHeaders())

	// Add CORS middleware
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)
	router.GET("/metrics", gosharedmw.Handler())

	// Protected admin routes
	admin := router.Group("/api/v1/admin")

	// Authentication middleware
	// Without a JWT secret outside production: use DevelopmentAuthMiddleware for local testing
	if cfg.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET not set, using development authentication")
		admin.Use(middleware.DevelopmentAuthMiddleware())
	} else {
		admin.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	}
	admin.Use(middleware.RequireAdmin())
	admin.Use(middleware.TenantMiddleware())

	handlers.RegisterAdminRoutes(admin, productsHandler, exportHandler, editorHandler)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Storefront admin service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down storefront-admin-service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	stopJobs()
	expiryJob.Stop()
	stores.Close()
	log.Println("✓ Catalog stores closed")

	// Shutdown tracer provider
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}

	log.Println("Storefront admin service stopped")
}
