// Package main is the entry point for the fern API service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/assistant"
	"github.com/Ramsey-B/fern/pkg/auth"
	"github.com/Ramsey-B/fern/pkg/billing"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/llm"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
	"github.com/Ramsey-B/fern/pkg/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.AppName, cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, tracing.ProviderConfig{
		ServiceName:    cfg.AppName,
		ServiceVersion: cfg.Version,
		Enabled:        cfg.OTLPEnabled,
		OTLP: exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
		},
	})
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}

	sqlDB, err := database.Connect(ctx, database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	migrations := database.NewMigrationService(sqlDB, logger, cfg.DatabaseMigrationFolderPath, cfg.DatabaseName)
	if err := migrations.Up(); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	db := database.NewDatabaseInstance(sqlDB, logger)

	var redisClient *redis.Client
	var limiter *redis.RateLimiter
	if cfg.RedisEnabled {
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		limiter = redis.NewRateLimiter(redisClient, cfg.AppName)
	}

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaEventsTopic,
		}, logger)
	}
	emitter := events.NewEmitter(producer, logger)

	// Repositories
	users := repositories.NewUserRepository(db, logger)
	workspaces := repositories.NewWorkspaceRepository(db, logger)
	memberships := repositories.NewMembershipRepository(db, logger)
	projects := repositories.NewProjectRepository(db, logger)
	processes := repositories.NewProcessRepository(db, logger)
	opportunities := repositories.NewOpportunityRepository(db, logger)
	blueprints := repositories.NewBlueprintRepository(db, logger)
	governance := repositories.NewGovernanceRepository(db, logger)
	sessions := repositories.NewSessionRepository(db, logger)
	usage := repositories.NewUsageRepository(db, logger)

	// Domain services
	meter := billing.NewMeter(workspaces, usage, emitter, logger)
	tokenRates := billing.TokenRates{
		PromptPer1K:     cfg.LLMPromptRatePer1K,
		CompletionPer1K: cfg.LLMCompletionRatePer1K,
	}
	llmClient := llm.NewClient(llm.Config{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     cfg.LLMTimeout,
		MaxRetries:  cfg.LLMMaxRetries,
	}, logger)
	applier := workflow.NewApplier(processes, logger)
	orchestrator := assistant.NewOrchestrator(
		sessions, memberships, processes, opportunities,
		applier, llmClient, meter, limiter, emitter, logger,
		assistant.Config{
			RateLimit:  cfg.AssistantRateLimit,
			RateWindow: cfg.AssistantRateWindow,
			TokenRates: tokenRates,
		},
	)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	prices := billing.PriceMap{
		GrowthPriceID: cfg.StripeGrowthPriceID,
		ScalePriceID:  cfg.StripeScalePriceID,
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(users, tokens, emitter, logger)
	workspaceHandler := handlers.NewWorkspaceHandler(workspaces, memberships, users, meter, emitter, logger)
	projectHandler := handlers.NewProjectHandler(projects, memberships, logger)
	processHandler := handlers.NewProcessHandler(processes, opportunities, memberships, applier, llmClient, meter, emitter, logger, tokenRates)
	opportunityHandler := handlers.NewOpportunityHandler(opportunities, memberships, logger)
	blueprintHandler := handlers.NewBlueprintHandler(blueprints, processes, opportunities, memberships, llmClient, meter, logger, tokenRates)
	governanceHandler := handlers.NewGovernanceHandler(governance, memberships, llmClient, meter, logger, tokenRates)
	sessionHandler := handlers.NewSessionHandler(sessions, memberships, orchestrator, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(workspaces, prices, cfg.StripeWebhookSecret, logger)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var checker *health.Checker
	if redisClient != nil {
		checker = health.NewChecker(sqlDB, redisClient.Redis(), cfg.Version)
	} else {
		checker = health.NewChecker(sqlDB, nil, cfg.Version)
	}
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")

	// Public routes
	authHandler.Register(api.Group("/auth"))
	webhookHandler.Register(api.Group("/webhooks"))

	// Protected routes
	var authn echo.MiddlewareFunc
	if cfg.AuthIssuerURL != "" {
		authn = middleware.OIDCAuthentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID)
	} else {
		authn = middleware.Authentication(logger, tokens)
	}
	protected := api.Group("", authn)

	authHandler.RegisterProtected(protected.Group("/auth"))

	workspacesGroup := protected.Group("/workspaces")
	workspaceHandler.Register(workspacesGroup)
	projectHandler.RegisterWorkspaceScoped(workspacesGroup)
	processHandler.RegisterWorkspaceScoped(workspacesGroup)
	blueprintHandler.RegisterWorkspaceScoped(workspacesGroup)
	governanceHandler.RegisterWorkspaceScoped(workspacesGroup)
	sessionHandler.RegisterWorkspaceScoped(workspacesGroup)

	projectHandler.Register(protected.Group("/projects"))

	processesGroup := protected.Group("/processes")
	processHandler.Register(processesGroup)
	opportunityHandler.RegisterProcessScoped(processesGroup)

	opportunityHandler.Register(protected.Group("/opportunities"))
	blueprintHandler.Register(protected.Group("/blueprints"))
	governanceHandler.RegisterUseCases(protected.Group("/ai-use-cases"))
	governanceHandler.RegisterPolicies(protected.Group("/ai-policies"))
	governanceHandler.RegisterMappings(protected.Group("/ai-policy-mappings"))
	sessionHandler.Register(protected.Group("/sessions"))

	checker.SetReady(true)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Infof("Starting %s on %s", cfg.AppName, addr)
		if err := e.Start(addr); err != nil {
			logger.WithError(err).Info("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to shut down server cleanly")
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Error("failed to close Kafka producer")
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Error("failed to close Redis client")
		}
	}
	if err := sqlDB.Close(); err != nil {
		logger.WithError(err).Error("failed to close database")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to flush traces")
	}
}
