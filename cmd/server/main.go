package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"parserator/internal/config"
	"parserator/internal/email/noop"
	"parserator/internal/email/ses"
	"parserator/internal/handler"
	"parserator/internal/llm"
	_ "parserator/internal/llm/claude"
	_ "parserator/internal/llm/gemini"
	_ "parserator/internal/llm/openai"
	"parserator/internal/logger"
	"parserator/internal/port"
	"parserator/internal/repository/postgres"
	redisstore "parserator/internal/repository/redis"
	"parserator/internal/router"
	"parserator/internal/service"
	s3storage "parserator/internal/storage/s3"
	"parserator/internal/validator"
)

//	@title						Parserator API
//	@version					1.0
//	@description				Two-stage LLM parsing of unstructured text into structured JSON.
//	@BasePath					/
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: could not read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.Format == "json"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	accountRepo := postgres.NewAccountRepo(db)
	keyRepo := postgres.NewAPIKeyRepo(db)
	usageRepo := postgres.NewUsageRepo(db, cfg.Governance.ReservationTTL)
	recordRepo := postgres.NewUsageRecordRepo(db)
	webhookRepo := postgres.NewWebhookRepo(db)

	var rateStore port.RateWindowStore
	switch cfg.Governance.RateBackend {
	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		rateStore = redisstore.NewRateWindowStore(client)
	default:
		rateStore = postgres.NewRateEventStore(db)
	}
	logger.Info("main: rate window backend", "backend", cfg.Governance.RateBackend)

	// Initialize model gateway. Without a provider the server still starts and
	// parse requests answer SERVICE_UNAVAILABLE.
	generator, err := llm.NewGeneratorChain(cfg.LLM.Providers())
	if err != nil {
		logger.Warn("main: no model provider available", "error", err)
	}
	gateway := llm.NewGateway(generator, llm.Config{
		Model:          cfg.LLM.Primary.DefaultModel,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		TopP:           cfg.LLM.TopP,
		TopK:           cfg.LLM.TopK,
		Timeout:        cfg.LLM.Timeout,
		MaxAttempts:    cfg.LLM.MaxAttempts,
		BackoffBase:    cfg.LLM.BackoffBase,
		MaxPromptBytes: cfg.LLM.MaxPromptBytes,
	})

	// Initialize email
	var emailSender port.EmailSender
	if cfg.Email.Provider == "ses" {
		emailSender, err = ses.NewSESSender(ctx, &cfg.Email)
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	} else {
		emailSender = noop.NewNoopSender()
	}

	tasks := service.NewTaskRunner(service.TaskRunnerConfig{
		Concurrency: cfg.Worker.Concurrency,
		TaskTimeout: cfg.Worker.TaskTimeout,
	})

	// Initialize services
	webhookSvc := service.NewWebhookService(webhookRepo, tasks, &http.Client{Timeout: cfg.Webhook.Timeout}, cfg.Webhook)
	authSvc := service.NewAuthService(accountRepo, cfg.JWT)
	keySvc := service.NewAPIKeyService(keyRepo, accountRepo, tasks, webhookSvc, emailSender)
	governanceSvc := service.NewGovernanceService(keyRepo, accountRepo, usageRepo, rateStore, recordRepo,
		tasks, webhookSvc, emailSender, cfg.Governance)
	usageSvc := service.NewUsageService(usageRepo, recordRepo)

	var archiver service.ResultArchiver
	var resultLinks service.ResultLinker
	if cfg.Pipeline.ArchiveResults {
		storage, err := s3storage.NewS3Client(ctx, &cfg.Archive)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		archive := service.NewResultArchive(storage, tasks, cfg.Archive.Bucket, cfg.Archive.Prefix, cfg.Archive.LinkExpiry)
		archiver, resultLinks = archive, archive
	}

	architect := service.NewArchitectService(gateway, cfg.Architect)
	extractor := service.NewExtractorService(gateway, validator.NewEngine(validator.NewDefaultRegistry()), cfg.Extractor)
	parseSvc := service.NewParseService(architect, extractor, webhookSvc, archiver, cfg.Pipeline)

	// Initialize handlers
	handlers := router.Handlers{
		Auth:    handler.NewAuthHandler(authSvc),
		Parse:   handler.NewParseHandler(parseSvc, gateway, cfg.Pipeline.MaxInputBytes),
		Usage:   handler.NewUsageHandler(usageSvc),
		Keys:    handler.NewKeyHandler(keySvc),
		Webhook: handler.NewWebhookHandler(webhookSvc),
		Results: handler.NewResultHandler(resultLinks),
		Health:  handler.NewHealthHandler(postgres.NewHealthChecker(db), rateStore, gateway, cfg.Server.Version),
	}

	r := router.Setup(authSvc, governanceSvc, handlers, cfg.CORS.AllowedOrigins)

	go service.NewUsageResetWorker(usageRepo, cfg.Worker.ResetInterval).Start(ctx)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("main: server starting", "addr", cfg.Server.Port, "environment", cfg.Server.Environment, "model", gateway.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("main: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main: http shutdown", "error", err)
	}
	if err := tasks.Drain(shutdownCtx); err != nil {
		logger.Warn("main: background tasks did not finish", "error", err)
	}
	return nil
}
