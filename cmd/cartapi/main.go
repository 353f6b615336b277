package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scarlet-storefront/auth"
	"scarlet-storefront/cartapi/controllers"
	"scarlet-storefront/cartapi/database"
	"scarlet-storefront/cartapi/routes"
	"scarlet-storefront/cartapi/services"
	"scarlet-storefront/config"
	"scarlet-storefront/logger"
	"scarlet-storefront/middleware"
	awspkg "scarlet-storefront/pkg/aws"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "cartapi"

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// --- AWS setup ---
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		// the memory and redis stores run without AWS
		awsCfg = sdkaws.Config{}
	}

	var shipTo io.Writer
	if cfg.CloudWatchEnabled {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, "/scarlet/"+serviceName, serviceName)
		if err != nil {
			os.Stderr.WriteString("cloudwatch logs disabled: " + err.Error() + "\n")
		} else {
			shipTo = cw
		}
	}
	log, err := logger.New(cfg.Env, shipTo)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	secrets := awspkg.StorefrontSecrets{JWTSecret: cfg.JWTSecret}
	if secrets.JWTSecret == "" {
		// only the signing key matters here
		secrets, err = awspkg.ResolveSecrets(ctx, awspkg.NewSecretsClient(awsCfg, awspkg.DefaultSecretTTL), secrets, cfg.JWTSecretName)
		if err != nil {
			log.Fatal("Failed to resolve JWT secret", zap.Error(err))
		}
	}
	if secrets.JWTSecret == "" {
		log.Warn("JWT_SECRET not set; user cart routes will reject every request")
	}
	verifier := auth.NewVerifier(secrets.JWTSecret)

	// --- Storage ---
	var (
		repo        database.CartRepository
		redisClient *redis.Client
	)
	switch cfg.CartStore {
	case "dynamodb":
		repo = database.NewDynamoCartRepository(awspkg.NewDynamoClient(awsCfg), cfg.DynamoCartTable, cfg.CartTTL)
		log.Info("Using DynamoDB cart store", zap.String("table", cfg.DynamoCartTable))
	case "memory":
		repo = database.NewMemoryCartRepository()
		log.Warn("Using in-memory cart store; carts are lost on restart")
	default:
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		repo = database.NewRedisCartRepository(redisClient, cfg.CartTTL)
		log.Info("Connected to Redis")
	}

	var products database.ProductRepository
	if cfg.DynamoProductTable != "" {
		products = database.NewDynamoProductRepository(awspkg.NewDynamoClient(awsCfg), cfg.DynamoProductTable)
	} else {
		products = database.NewMemoryProductRepository(database.DemoProducts()...)
	}

	var publisher awspkg.SNSPublisher
	if cfg.CartEventsTopicARN != "" {
		publisher = awspkg.NewSNSClient(awsCfg)
	}

	// --- Dependency injection ---
	cartService := services.NewCartService(repo, products, publisher, cfg.CartEventsTopicARN, log)
	cartController := controllers.NewCartController(cartService)

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(awspkg.NewMetricsClient(awsCfg, "Scarlet/CartAPI", cfg.CloudWatchEnabled), serviceName))

	// Request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})
	routes.RegisterCartRoutes(r, cartController, verifier)

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.CartAPIPort, Handler: r}
	go func() {
		log.Info("Cart API started", zap.String("port", cfg.CartAPIPort), zap.String("store", cfg.CartStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Redis close error", zap.Error(err))
		}
	}
	log.Info("Cart API stopped gracefully")
}
