package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avdeyev/dexflow-bot/internal/bot"
	"github.com/avdeyev/dexflow-bot/internal/chain"
	"github.com/avdeyev/dexflow-bot/internal/database"
	"github.com/avdeyev/dexflow-bot/internal/flow"
	"github.com/avdeyev/dexflow-bot/internal/gasoracle"
	"github.com/avdeyev/dexflow-bot/internal/gateway"
	"github.com/avdeyev/dexflow-bot/internal/health"
	"github.com/avdeyev/dexflow-bot/internal/idempotency"
	"github.com/avdeyev/dexflow-bot/internal/jobs"
	jobhandlers "github.com/avdeyev/dexflow-bot/internal/jobs/handlers"
	"github.com/avdeyev/dexflow-bot/internal/lifecycle"
	"github.com/avdeyev/dexflow-bot/internal/middleware"
	"github.com/avdeyev/dexflow-bot/internal/quote"
	"github.com/avdeyev/dexflow-bot/internal/ratelimit"
	"github.com/avdeyev/dexflow-bot/internal/repository"
	"github.com/avdeyev/dexflow-bot/internal/state"
	"github.com/avdeyev/dexflow-bot/internal/tokencache"
	"github.com/avdeyev/dexflow-bot/internal/user"
	"github.com/avdeyev/dexflow-bot/internal/wallet"
	"github.com/avdeyev/dexflow-bot/pkg/config"
	"github.com/avdeyev/dexflow-bot/pkg/graceful"
	"github.com/avdeyev/dexflow-bot/pkg/logger"
	"github.com/avdeyev/dexflow-bot/pkg/metrics"
	pkgredis "github.com/avdeyev/dexflow-bot/pkg/redis"

	_ "github.com/lib/pq"
)

const (
	flowSessionTTL       = 30 * time.Minute
	flowCleanupInterval  = 5 * time.Minute
	idemCleanupInterval  = 10 * time.Minute
	rateCleanupInterval  = 15 * time.Minute
	sentryFlushTimeout   = 2 * time.Second
	defaultMigrationsDir = "migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(sentryFlushTimeout)
	}

	log := logger.New(*cfg)
	log.Info("starting dexflow bot",
		slog.String("env", cfg.AppEnv),
		slog.String("mode", cfg.Bot.Mode),
		slog.Int64("chain_id", cfg.Chain.ChainID))

	config.Watch(v, log, func(next *config.Config) {
		log.Info("configuration file reloaded", slog.String("env", next.AppEnv))
	})

	// Postgres.
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	migrationsDir := cfg.Postgres.MigrationsDir
	if migrationsDir == "" {
		migrationsDir = defaultMigrationsDir
	}
	if err := database.NewMigrator(db, log).ApplyDir(ctx, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Redis.
	rdb, err := pkgredis.New(ctx, pkgredis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		PoolTimeout:  cfg.Redis.PoolTimeout,
		IdleTimeout:  cfg.Redis.IdleTimeout,
		MaxRetries:   cfg.Redis.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	redisClient := rdb.Client
	instrumentedRedis := pkgredis.NewMetricsClient(rdb)

	// Flow session storage.
	stateStorage := state.NewRedisStorage(redisClient, log)
	fsm := state.NewStateMachine(stateStorage, log, redisClient)
	go state.NewCleaner(redisClient, stateStorage, log, flowSessionTTL, flowCleanupInterval).Run(ctx)

	// Chain access.
	eth, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("dial rpc node: %w", err)
	}
	defer eth.Close()

	chainClient := chain.NewClient(eth, tokencache.NewCache(redisClient, 0), log)
	quotes := quote.New(quote.Config{
		BaseURL: cfg.Quote.BaseURL,
		APIKey:  cfg.Quote.APIKey,
		ChainID: cfg.Chain.ChainID,
		Timeout: cfg.Quote.Timeout,
		Debug:   cfg.Quote.Debug,
	}, log)
	oracle := gasoracle.New(gasoracle.Config{
		BaseURL:  cfg.GasOracle.BaseURL,
		Timeout:  cfg.GasOracle.Timeout,
		CacheTTL: cfg.GasOracle.CacheTTL,
	}, log)

	// Repositories and services.
	userRepo := repository.NewUserRepository(db, log)
	walletRepo := repository.NewWalletRepository(db, log)
	txRepo := repository.NewTransactionRepository(db, log)

	users := user.NewService(userRepo, log)
	wallets, err := wallet.NewService(walletRepo, cfg.Chain.WalletEncryptionKey, log)
	if err != nil {
		return fmt.Errorf("init wallet service: %w", err)
	}

	gateways := gateway.NewProvider(eth, chainClient, wallets, log,
		chain.WithReceiptWait(cfg.Chain.ReceiptPollInterval, cfg.Chain.ReceiptTimeout))

	engine := flow.NewEngine(flow.Deps{
		Balances: gateway.NewChainBalances(chainClient),
		Tokens:   gateway.NewChainTokens(chainClient),
		Quotes:   gateway.NewGuardedQuoter(quotes),
		Fees:     oracle,
		Gateways: gateways,
		Wallets:  gateway.NewWalletAddresses(wallets),
		Settings: users,
		Records:  gateway.NewTransactionRecords(txRepo),
	}, log)

	// Duplicate update suppression.
	idemManager := idempotency.NewManager(idempotency.NewRedisStore(redisClient, log), log)
	go idempotency.NewCleaner(redisClient, log, idemCleanupInterval).Run(ctx)

	// Rate limiting with in-memory fallback when Redis degrades.
	rules := ratelimit.NewRules(cfg.RateLimit)
	limiter := ratelimit.NewAdaptiveLimiter(
		ratelimit.NewRedisLimiter(redisClient, log),
		ratelimit.NewMemoryLimiter(log),
		log,
	)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, rules, log)
	go ratelimit.NewCleaner(redisClient, log, rateCleanupInterval).Run(ctx)

	// Telegram bot.
	b, err := bot.New(*cfg, log, bot.Deps{
		FSM:         fsm,
		Engine:      engine,
		Idempotency: idemManager,
		RateLimit:   rateLimitMw,
		Users:       users,
		Wallets:     wallets,
		Balances:    gateway.NewChainBalances(chainClient),
		TxRepo:      txRepo,
	})
	if err != nil {
		return fmt.Errorf("init bot: %w", err)
	}

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("telegram bot", func(context.Context) error {
		b.Stop()
		return nil
	})

	// Background jobs.
	if cfg.Jobs.Enabled {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		worker := jobs.NewWorker(redisOpt, cfg.Jobs.Queues, cfg.Jobs.Concurrency, log)
		worker.RegisterHandler(jobs.TaskTypeGasRefresh, jobhandlers.NewGasRefreshHandler(oracle, log))
		worker.RegisterHandler(jobs.TaskTypeMetadataWarm, jobhandlers.NewMetadataWarmHandler(chainClient, txRepo, log))
		go func() {
			if err := worker.Run(); err != nil {
				log.Error("jobs worker stopped", slog.Any("error", err))
			}
		}()
		shutdown.Register("jobs worker", func(context.Context) error {
			worker.Shutdown()
			return nil
		})

		scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs.GasRefreshCron, cfg.Jobs.MetadataWarmCron, log)
		if err := scheduler.RegisterTasks(); err != nil {
			return fmt.Errorf("register scheduled tasks: %w", err)
		}
		scheduler.Run()
		shutdown.Register("jobs scheduler", func(context.Context) error {
			scheduler.Shutdown()
			return nil
		})

		// Warm the gas cache immediately instead of waiting for the
		// first cron tick.
		queue := jobs.NewManager(redisOpt, log)
		if _, err := queue.Enqueue(ctx, jobs.NewGasRefreshTask()); err != nil {
			log.Warn("failed to enqueue initial gas refresh", slog.Any("error", err))
		}
		shutdown.Register("jobs queue client", func(context.Context) error {
			return queue.Close()
		})
	}

	// Health checks and metrics endpoint.
	checker := health.NewChecker(log)
	checker.AddCheck("postgres", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(instrumentedRedis))
	checker.AddCheck("rpc", health.NewRPCChecker(eth, cfg.Chain.ChainID))
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))

	probes := lifecycle.NewProbes(log, func(ctx context.Context) error {
		for name, result := range checker.Check(ctx) {
			if result != "OK" {
				return fmt.Errorf("%s: %s", name, result)
			}
		}
		return nil
	})
	shutdown.Register("probes", func(context.Context) error {
		probes.StartDraining()
		return nil
	})

	httpServer := graceful.NewServer(log, &http.Server{
		Addr:    cfg.Server.Port,
		Handler: logger.Middleware(middleware.New(log)(newHTTPMux(checker, probes))),
	}, cfg.Server.ShutdownTimeout)

	go metrics.NewStateCollector(fsm).Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.ListenAndServe(ctx)
	}()

	go b.Start()
	log.Info("dexflow bot is running")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("dexflow bot stopped")
	return nil
}

func newHTTPMux(checker *health.Checker, probes lifecycle.HealthChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		if err := probes.Liveness(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := probes.Readiness(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		results := checker.Check(r.Context())

		status := http.StatusOK
		for _, result := range results {
			if result != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(results)
	})

	return mux
}
