package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agio-digital/session-keys-backend/internal/audit"
	auditrepo "github.com/agio-digital/session-keys-backend/internal/audit/repository"
	"github.com/agio-digital/session-keys-backend/internal/chain"
	"github.com/agio-digital/session-keys-backend/internal/config"
	"github.com/agio-digital/session-keys-backend/internal/db"
	"github.com/agio-digital/session-keys-backend/internal/delegate"
	"github.com/agio-digital/session-keys-backend/internal/events"
	"github.com/agio-digital/session-keys-backend/internal/httpapi"
	"github.com/agio-digital/session-keys-backend/internal/identity"
	"github.com/agio-digital/session-keys-backend/internal/logging"
	"github.com/agio-digital/session-keys-backend/internal/policy/engine"
	sessionservice "github.com/agio-digital/session-keys-backend/internal/session/service"
	sessionstore "github.com/agio-digital/session-keys-backend/internal/session/store"
	walletservice "github.com/agio-digital/session-keys-backend/internal/wallet/service"
	walletstore "github.com/agio-digital/session-keys-backend/internal/wallet/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	sessions, wallets, auditRepo, closeStores, err := buildStores(cfg)
	if err != nil {
		logger.Fatal("stores", zap.Error(err))
	}
	defer closeStores()

	var producer events.Producer
	if brokers := cfg.EventsKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer := events.NewKafkaProducer(brokers, cfg.EventsKafkaTopic, logger)
		defer func() { _ = kafkaProducer.Close() }()
		producer = kafkaProducer
		logger.Info("event emission enabled", zap.Strings("brokers", brokers), zap.String("topic", cfg.EventsKafkaTopic))
	}

	auditLogger := audit.NewLogger(auditRepo, logger)

	var account chain.AccountClient
	if cfg.BundlerRPCURL != "" {
		client, err := chain.Dial(ctx, cfg.BundlerRPCURL)
		if err != nil {
			logger.Fatal("bundler rpc", zap.Error(err))
		}
		defer client.Close()
		account = client
	} else {
		logger.Warn("BUNDLER_RPC_URL not set; transaction endpoints will answer 503")
	}

	evaluator, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		logger.Fatal("policy evaluator", zap.Error(err))
	}

	lifecycle := sessionservice.NewLifecycle(sessions, auditLogger, producer, logger)
	directory := walletservice.NewDirectory(wallets, auditLogger, producer, logger)

	var delegator *delegate.TransactionDelegator
	if account != nil {
		timeout, interval := cfg.ConfirmWindow()
		delegator = delegate.NewTransactionDelegator(
			sessions, account, auditLogger, producer, logger,
			delegate.WithConfirmWindow(timeout, interval),
			delegate.WithEvaluator(evaluator),
		)
	}

	verifier := identity.NewVerifier([]byte(cfg.JWTSigningSecret), cfg.JWTIssuer, cfg.JWTAudience)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	httpapi.NewHandler(lifecycle, directory, delegator, account, auditRepo, verifier, logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("http server stopped")
}

// buildStores wires the configured persistence backend for sessions, wallets,
// and the audit trail. The returned closer releases backend connections.
func buildStores(cfg *config.Config) (sessionstore.Store, walletstore.Store, auditrepo.Repository, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return sessionstore.NewMemoryStore(), walletstore.NewMemoryStore(),
			auditrepo.NewMemoryRepository(), func() {}, nil

	case config.StoreFile:
		return sessionstore.NewFileStore(cfg.SessionsFile), walletstore.NewFileStore(cfg.WalletsFile),
			auditrepo.NewMemoryRepository(), func() {}, nil

	case config.StorePostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		closer := func() { _ = conn.Close() }
		return sessionstore.NewPostgresStore(conn), walletstore.NewPostgresStore(conn),
			auditrepo.NewPostgresRepository(conn), closer, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, nil, err
		}
		closer := func() { _ = client.Close() }
		return sessionstore.NewRedisStore(client), walletstore.NewRedisStore(client),
			auditrepo.NewMemoryRepository(), closer, nil
	}
	// config.Load already rejected unknown backends.
	return nil, nil, nil, nil, errors.New("unknown store backend")
}
