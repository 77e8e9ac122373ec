package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"paygate/config"
	httpHandler "paygate/internal/adapter/http/handler"
	"paygate/internal/adapter/http/middleware"
	"paygate/internal/adapter/mcp"
	"paygate/internal/adapter/resilience"
	memStorage "paygate/internal/adapter/storage/memory"
	pgStorage "paygate/internal/adapter/storage/postgres"
	redisStorage "paygate/internal/adapter/storage/redis"
	"paygate/internal/core/domain"
	"paygate/internal/core/ports"
	"paygate/internal/metrics"
	"paygate/internal/service"
	"paygate/internal/tools"
	"paygate/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	hashAdminKey := flag.String("hash-admin-key", "", "print the argon2id hash of an admin key and exit")
	flag.Parse()

	if *hashAdminKey != "" {
		hash, err := service.NewArgon2HashService().Hash(*hashAdminKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash admin key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// Price reloads arrive from the config watcher once the gateway is up.
	var onReload atomic.Pointer[func(*config.Config)]
	cfg, err := config.LoadAndWatch(*configPath, func(next *config.Config) {
		if fn := onReload.Load(); fn != nil {
			(*fn)(next)
		}
	}, func(err error) {
		fmt.Fprintf(os.Stderr, "ignoring unreadable config change: %v\n", err)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting paygate")

	ctx := context.Background()

	// Storage
	var (
		ledger         ports.Ledger
		auditRepo      ports.AuditRepository
		healthCheckers []ports.HealthChecker
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		if cfg.Storage.AutoMigrate {
			if err := pgStorage.Migrate(ctx, pool); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply schema")
			}
		}
		ledger = pgStorage.NewLedger(pool)
		auditRepo = pgStorage.NewAuditRepo(pool)
		healthCheckers = append(healthCheckers, pgStorage.NewHealthCheck(pool))
	default:
		ledger = memStorage.NewLedger()
		log.Warn().Msg("Using the in-memory ledger; balances are lost on restart")
	}

	// Caches and stores
	var (
		settlementCache ports.IdempotencyCache = memStorage.NewIdempotencyCache()
		nonceStore      ports.NonceStore       = memStorage.NewNonceStore()
		rateLimitStore  ports.RateLimitStore   = memStorage.NewRateLimitStore()
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		settlementCache = resilience.NewCache(redisStorage.NewSettlementCache(rdb), resilience.DefaultBreakerConfig("settlement-cache"), log)
		nonceStore = redisStorage.NewNonceStore(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheus("paygate")
	if err := collector.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	// Core services
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = uuid.NewString()
		log.Warn().Msg("auth.jwt_secret is empty; bearer tokens will not survive a restart")
	}
	if cfg.Auth.MasterSecret == "" {
		log.Warn().Msg("auth.master_secret is empty; HMAC credentials are disabled")
	}
	tokenSvc := service.NewJWTTokenService(jwtSecret, cfg.Auth.TokenExpiry, cfg.Auth.Issuer, cfg.Auth.Audience)
	secretSvc := service.NewHKDFSecretService(cfg.Auth.MasterSecret)
	hashSvc := service.NewArgon2HashService()
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))

	var notifier ports.SettlementNotifier
	if cfg.Webhook.URL != "" {
		notifier = service.NewWebhookNotifier(service.WebhookConfig{
			URL:        cfg.Webhook.URL,
			Secret:     cfg.Webhook.Secret,
			MaxRetries: cfg.Webhook.MaxRetries,
			Timeout:    cfg.Webhook.Timeout,
		}, nil, logger.Component(log, "webhook"))
	}

	initialBalance, err := decimal.NewFromString(cfg.Ledger.InitialBalance)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ledger.initial_balance")
	}
	settlementSvc := service.NewSettlementService(ledger, settlementCache, notifier, collector, service.SettlementConfig{
		Timeout:        cfg.Settlement.Timeout,
		MaxRetries:     cfg.Settlement.MaxRetries,
		CacheTTL:       cfg.Settlement.CacheTTL,
		AutoProvision:  cfg.Ledger.AutoProvision,
		InitialBalance: initialBalance,
	}, logger.Component(log, "settlement"))

	if err := seedFundingSources(ctx, ledger, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to provision funding sources")
	}

	table, err := service.PriceTableFromConfig(cfg.Pricing.Operations)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid price table")
	}
	pricingSvc := service.NewPricingService(table, logger.Component(log, "pricing"))

	resolver := service.NewWalletResolver(tokenSvc, secretSvc, nonceStore, service.WalletResolverConfig{
		MaxClockSkew: cfg.Auth.MaxClockSkew,
		NonceTTL:     cfg.Auth.NonceTTL,
	}, logger.Component(log, "resolver"))

	admission := service.NewAdmissionService(resolver, pricingSvc, settlementSvc, collector, service.AdmissionConfig{
		PayeeID:          cfg.Gateway.PayeeID,
		OperationTimeout: cfg.Gateway.OperationTimeout,
		RefundOnFailure:  cfg.Settlement.RefundOnFailure,
	}, logger.Component(log, "admission"))

	// MCP server
	catalog, err := tools.NewCatalog(tools.Arithmetic()...)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid operation catalog")
	}
	mcpServer := mcp.NewServer(cfg.Gateway.Name, cfg.Gateway.Version, catalog, pricingSvc, logger.Component(log, "mcp"), admission.Middleware())

	reload := func(next *config.Config) {
		table, err := service.PriceTableFromConfig(next.Pricing.Operations)
		if err != nil {
			log.Error().Err(err).Msg("Rejected price table reload")
			return
		}
		pricingSvc.Replace(table)
		mcpServer.RefreshPrices()
		auditSvc.Log(ctx, &domain.AuditLog{
			Actor:        "config",
			Action:       domain.AuditActionPriceReload,
			ResourceType: "price_table",
			Details:      fmt.Sprintf(`{"operations":%d}`, table.Len()),
			CreatedAt:    time.Now(),
		})
	}
	onReload.Store(&reload)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		MCPHandler:     mcpServer.Handler(),
		Catalog:        catalog,
		Prices:         pricingSvc,
		FundingSvc:     service.NewFundingService(ledger, settlementSvc, secretSvc, tokenSvc, logger.Component(log, "funding")),
		FundingStore:   service.NewLedgerFundingStore(ledger),
		HashSvc:        hashSvc,
		TokenSvc:       tokenSvc,
		AdminKeyHash:   cfg.Admin.APIKeyHash,
		RateLimitStore: rateLimitStoreIf(cfg.RateLimit.Enabled, rateLimitStore),
		RateLimit:      middleware.RateLimitRule{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window},
		MaxBodyBytes:   cfg.Gateway.MaxBodyBytes,
		Gatherer:       registry,
		HealthCheckers: healthCheckers,
		AuditSvc:       auditSvc,
		Logger:         log,
	})
	if cfg.Admin.APIKeyHash == "" {
		log.Warn().Msg("admin.api_key_hash is empty; the admin API is disabled")
	}

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// seedFundingSources creates the payee and the configured funding sources.
// Existing sources keep their balance.
func seedFundingSources(ctx context.Context, ledger ports.Ledger, cfg *config.Config, log zerolog.Logger) error {
	if _, err := ledger.EnsureFundingSource(ctx, cfg.Gateway.PayeeID, decimal.Zero); err != nil {
		return fmt.Errorf("payee %s: %w", cfg.Gateway.PayeeID, err)
	}
	for _, seed := range cfg.Ledger.Provision {
		balance := decimal.Zero
		if seed.Balance != "" {
			b, err := decimal.NewFromString(seed.Balance)
			if err != nil {
				return fmt.Errorf("funding source %s: balance %q: %w", seed.ID, seed.Balance, err)
			}
			balance = b
		}
		created, err := ledger.EnsureFundingSource(ctx, seed.ID, balance)
		if err != nil {
			return fmt.Errorf("funding source %s: %w", seed.ID, err)
		}
		if created {
			log.Info().Str("funding_source", seed.ID).Str("balance", balance.String()).Msg("Funding source provisioned")
		}
	}
	return nil
}

func rateLimitStoreIf(enabled bool, store ports.RateLimitStore) ports.RateLimitStore {
	if !enabled {
		return nil
	}
	return store
}
