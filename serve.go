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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/adapters/document"
	"github.com/vaforge/vaforge-engine/pkg/adapters/website"
	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/database"
	"github.com/vaforge/vaforge-engine/pkg/events"
	"github.com/vaforge/vaforge-engine/pkg/handlers"
	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/mcp"
	mcpauth "github.com/vaforge/vaforge-engine/pkg/mcp/auth"
	"github.com/vaforge/vaforge-engine/pkg/mcp/tools"
	"github.com/vaforge/vaforge-engine/pkg/middleware"
	"github.com/vaforge/vaforge-engine/pkg/repositories"
	"github.com/vaforge/vaforge-engine/pkg/services"
	"github.com/vaforge/vaforge-engine/pkg/services/pipeline"
	"github.com/vaforge/vaforge-engine/pkg/services/workqueue"
)

const shutdownTimeout = 30 * time.Second

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the MCP endpoint and the enrichment worker",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations on startup")
}

// core holds the services that do not depend on how enrichment events travel.
type core struct {
	llmClient  llm.LLMClient
	scopes     database.TenantScopeProvider
	orgRepo    repositories.OrganizationRepository
	savedRepo  repositories.SavedAnalysisRepository
	sopRepo    repositories.SOPRepository
	knowledge  services.KnowledgeBaseService
	learning   services.LearningService
	enrichment services.EnrichmentService
}

func newCore(rt *app) (*core, error) {
	llmClient, err := llm.NewClientFromConfig(rt.cfg.LLM, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	kbRepo := repositories.NewKnowledgeBaseRepository()
	eventRepo := repositories.NewLearningEventRepository()
	savedRepo := repositories.NewSavedAnalysisRepository()
	scopes := database.NewTenantScopeProvider(rt.db)

	knowledge := services.NewKnowledgeBaseService(kbRepo, nil, rt.logger)
	learning := services.NewLearningService(kbRepo, eventRepo, rt.cfg.Learning, rt.logger)
	extractor := services.NewInsightExtractionService(llmClient, rt.logger)

	return &core{
		llmClient:  llmClient,
		scopes:     scopes,
		orgRepo:    repositories.NewOrganizationRepository(),
		savedRepo:  savedRepo,
		sopRepo:    repositories.NewSOPRepository(),
		knowledge:  knowledge,
		learning:   learning,
		enrichment: services.NewEnrichmentService(scopes, savedRepo, extractor, learning, rt.logger),
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, logger := rt.cfg, rt.logger

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("redis_queue", cfg.Redis.IsConfigured()),
		zap.Bool("mcp", cfg.MCP.Enabled))

	if !skipMigrations {
		if err := database.RunMigrationsOnPool(rt.db, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	c, err := newCore(rt)
	if err != nil {
		return err
	}

	// Auth
	validator, err := auth.NewValidator(ctx, &auth.ValidatorConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		HMACSecret:         cfg.Auth.JWTSecret,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		return fmt.Errorf("failed to create token validator: %w", err)
	}
	defer validator.Close()
	authService := auth.NewAuthService(validator, cfg.Auth.CookieName, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	tenantMiddleware := handlers.TenantMiddleware(database.WithTenantContext(rt.db, c.orgRepo, logger))

	// Enrichment events: the worker queue always runs the handler; Redis, when
	// configured, carries events between publisher and consumer.
	retryCfg := workqueue.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.Worker.MaxRetries
	queue := workqueue.New(logger,
		workqueue.WithStrategy(workqueue.NewLimitStrategy(cfg.Worker.Concurrency, cfg.Worker.Concurrency)),
		workqueue.WithRetryConfig(retryCfg),
		workqueue.WithCapacity(cfg.Worker.QueueSize),
	)

	pingers := map[string]handlers.Pinger{
		"database": handlers.PingerFunc(rt.db.Ping),
	}
	healthChecks := map[string]tools.HealthCheck{
		"database": rt.db.Ping,
	}

	var publisher events.Publisher
	consumerDone := make(chan struct{})
	if cfg.Redis.IsConfigured() {
		redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()

		publisher = events.NewRedisPublisher(redisClient, cfg.Redis.QueueKey, logger)
		pingers["redis"] = handlers.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		healthChecks["redis"] = pingers["redis"].Ping

		go runConsumer(ctx, redisClient, cfg.Redis.QueueKey, queue, c.enrichment, logger, consumerDone)
	} else {
		publisher = events.NewQueuePublisher(queue, c.enrichment, logger)
		close(consumerDone)
	}

	// Services that publish enrichment events
	saved := services.NewSavedAnalysisService(c.savedRepo, publisher, logger)
	site := website.NewSummarizer(cfg.Scraper, logger)
	analysis := services.NewAnalysisService(
		pipeline.NewRunner(c.llmClient, logger),
		document.NewExtractor(logger),
		site,
		c.knowledge,
		saved,
		cfg.Scraper.MaxChars,
		logger,
	)
	chat := services.NewChatService(c.llmClient, c.knowledge, publisher, logger)
	sop := services.NewSOPService(c.llmClient, c.sopRepo, c.knowledge, site, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, pingers, logger).WithQueue(queue).RegisterRoutes(mux)
	handlers.NewAnalyzeHandler(analysis, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewDownloadHandler(saved, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewSavedAnalysisHandler(saved, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewKnowledgeBaseHandler(c.knowledge, c.learning, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewChatHandler(chat, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewSOPHandler(sop, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	if cfg.MCP.Enabled {
		audit := mcp.NewAuditLogger(logger)
		mcpServer := mcp.NewServer("vaforge-engine", cfg.Version, audit, logger)
		tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, healthChecks)
		tools.RegisterKnowledgeTools(mcpServer.MCP(), &tools.KnowledgeToolDeps{
			BaseMCPToolDeps: tools.BaseMCPToolDeps{Scopes: c.scopes, Logger: logger},
			KnowledgeBase:   c.knowledge,
			Learning:        c.learning,
		})
		mcpAuth := mcpauth.NewMiddleware(authService, audit, logger)
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux, mcpAuth)
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(middleware.Recover(logger)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting vaforge-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	<-consumerDone
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Enrichment queue did not drain before shutdown", zap.Error(err), zap.Int("pending", queue.Len()))
	}

	logger.Info("Server stopped")
	return runErr
}

// runConsumer moves events from Redis onto the worker queue until ctx ends.
func runConsumer(ctx context.Context, client *redis.Client, key string, queue *workqueue.Queue, handler events.Handler, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)
	consumer := events.NewRedisConsumer(client, key, queue, handler, logger)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Enrichment consumer stopped", zap.Error(err))
	}
}
