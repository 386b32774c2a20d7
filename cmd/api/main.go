// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	amqppub "github.com/capitalize-ai/team-inbox/internal/amqp"
	"github.com/capitalize-ai/team-inbox/internal/authz"
	"github.com/capitalize-ai/team-inbox/internal/config"
	"github.com/capitalize-ai/team-inbox/internal/events"
	"github.com/capitalize-ai/team-inbox/internal/handler"
	"github.com/capitalize-ai/team-inbox/internal/ingest"
	"github.com/capitalize-ai/team-inbox/internal/lock"
	natsclient "github.com/capitalize-ai/team-inbox/internal/nats"
	"github.com/capitalize-ai/team-inbox/internal/service"
	"github.com/capitalize-ai/team-inbox/internal/store"
	"github.com/capitalize-ai/team-inbox/internal/store/memory"
	"github.com/capitalize-ai/team-inbox/internal/store/postgres"
	"github.com/capitalize-ai/team-inbox/pkg/logger"
	"github.com/capitalize-ai/team-inbox/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "team-inbox", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Store
	var st store.Store
	switch cfg.StoreBackend {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		st = memory.New()
	default:
		pg, err := postgres.Open(ctx, postgres.Config{
			DSN:          cfg.DatabaseURL,
			MaxIdleConns: cfg.DBMaxIdleConns,
			MaxOpenConns: cfg.DBMaxOpenConns,
			AutoMigrate:  cfg.DBAutoMigrate,
		}, log)
		if err != nil {
			log.Fatal("failed to open database", zap.Error(err))
		}
		defer pg.Close()
		st = pg
	}

	// Resolution lock
	var locker lock.Locker
	switch cfg.LockBackend {
	case "redis":
		rl, err := lock.NewRedis(ctx, lock.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.LockTTL,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rl.Close()
		locker = rl
	default:
		locker = lock.NewLocal()
	}

	// Event publishing
	var publisher events.Publisher
	var broker handler.BrokerStatus
	switch cfg.EventsBackend {
	case "nats":
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		publisher, broker = streamManager, natsClient
	case "amqp":
		amqpPublisher, err := amqppub.Dial(amqppub.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange}, log)
		if err != nil {
			log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer amqpPublisher.Close()
		publisher, broker = amqpPublisher, amqpPublisher
	default:
		log.Info("event publishing disabled")
	}
	emitter := events.NewEmitter(publisher, log)

	// Signature verification
	var verifier handler.SignatureVerifier = handler.NewTwilioVerifier(cfg.TwilioAuthToken, cfg.PublicBaseURL)
	if !cfg.WebhookSignatureRequired {
		log.Warn("webhook signature verification disabled")
		verifier = handler.TrustAll{}
	} else if cfg.TwilioAuthToken == "" {
		log.Warn("TWILIO_AUTH_TOKEN is empty, every webhook will be rejected")
	}

	// Initialize services
	engine := authz.NewEngine(st, log.Named("authz"))
	teamSvc := service.NewTeamService(st, engine, log)
	channelSvc := service.NewChannelService(st, engine, log)
	conversationSvc := service.NewConversationService(st, engine, emitter, log)
	ingestSvc := ingest.NewService(st, locker, emitter, log.Named("ingest"), ingest.Options{
		DedupeByProviderID: cfg.IngestDedupeBySID,
	})

	// Initialize handlers
	router := handler.NewRouter(handler.RouterConfig{
		Health:            handler.NewHealthHandler(st, broker),
		Teams:             handler.NewTeamHandler(teamSvc, log),
		Channels:          handler.NewChannelHandler(channelSvc, log),
		Conversations:     handler.NewConversationHandler(conversationSvc, log),
		Webhook:           handler.NewWebhookHandler(ingestSvc, verifier, log),
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Logger:            log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
