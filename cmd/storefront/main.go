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

	"scarlet-storefront/apperrors"
	"scarlet-storefront/auth"
	"scarlet-storefront/clients"
	"scarlet-storefront/config"
	"scarlet-storefront/controllers"
	"scarlet-storefront/logger"
	"scarlet-storefront/middleware"
	awspkg "scarlet-storefront/pkg/aws"
	"scarlet-storefront/routes"
	"scarlet-storefront/services"
	"scarlet-storefront/session"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "storefront"

func main() {
	cfg := config.Load()
	ctx := context.Background()

	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)
	if awsErr != nil {
		awsCfg = sdkaws.Config{}
	}

	var shipTo io.Writer
	if cfg.CloudWatchEnabled && awsErr == nil {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, "/scarlet/"+serviceName, serviceName)
		if err != nil {
			os.Stderr.WriteString("cloudwatch logs disabled: " + err.Error() + "\n")
		} else {
			shipTo = cw
		}
	}
	if err := logger.Initialize(cfg.Env, shipTo); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	log := logger.Log
	defer log.Sync()

	if awsErr != nil {
		log.Warn("AWS config unavailable; metrics and events disabled", zap.Error(awsErr))
	}

	var secretReader awspkg.SecretReader
	if awsErr == nil {
		secretReader = awspkg.NewSecretsClient(awsCfg, awspkg.DefaultSecretTTL)
	}
	secrets, err := awspkg.ResolveSecrets(ctx, secretReader, awspkg.StorefrontSecrets{
		JWTSecret:      cfg.JWTSecret,
		SessionAuthKey: cfg.SessionAuthKey,
		SessionEncKey:  cfg.SessionEncKey,
	}, cfg.JWTSecretName)
	if err != nil {
		log.Fatal("Failed to resolve storefront secrets", zap.Error(err))
	}
	verifier := auth.NewVerifier(secrets.JWTSecret)
	if !verifier.Enabled() {
		log.Warn("JWT_SECRET not set; bearer tokens are forwarded unverified")
	}

	if secrets.SessionAuthKey == "" {
		log.Warn("SESSION_AUTH_KEY not set; visitor cookies will not survive a restart")
	}
	cookies := session.NewCookieStore(secrets.SessionAuthKey, secrets.SessionEncKey, cfg.CookieSecure)

	// --- Clients ---
	gateway := clients.NewGatewayClient(cfg.APIBaseURL, cfg.RequestTimeout)
	cartClient := clients.NewCartClient(gateway)
	catalogClient := clients.NewCatalogClient(gateway)

	metricsClient := awspkg.NewMetricsClient(awsCfg, "Scarlet/Storefront", cfg.CloudWatchEnabled && awsErr == nil)
	var recorder services.MetricsRecorder
	if metricsClient.IsEnabled() {
		recorder = metricsClient
	}

	var publisher awspkg.SNSPublisher
	if cfg.CartEventsTopicARN != "" && awsErr == nil {
		publisher = awspkg.NewSNSClient(awsCfg)
	}
	sinks := func(sessionID string) services.Notifier {
		return services.MultiNotifier{
			services.LogNotifier{Logger: log.With(zap.String("session_id", sessionID))},
			services.EventNotifier{Publisher: publisher, TopicARN: cfg.CartEventsTopicARN, SessionID: sessionID, Logger: log},
		}
	}

	registry := services.NewRegistry(
		services.NewStateFactory(cartClient, catalogClient, recorder, sinks, cfg.DebounceDelay, log),
		cfg.VisitorTTL,
		log,
	)

	if metricsClient.IsEnabled() {
		registry.ReportTo(metricsClient)
	}

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	limiter := middleware.NewPerMinuteLimiter(cfg.RateLimitPerMinute)
	defer limiter.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(metricsClient, serviceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RateLimit(limiter))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterStorefrontRoutes(r, controllers.NewCartController(registry, log), cookies, verifier, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Storefront started",
			zap.String("port", cfg.Port),
			zap.String("api_base_url", cfg.APIBaseURL),
		)
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
	// send debounced quantity edits before the process goes away
	registry.Close(shutdownCtx)
	log.Info("Storefront stopped gracefully")
}
