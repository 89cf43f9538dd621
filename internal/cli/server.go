package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lichsu-rewards-service/internal/app"
	"lichsu-rewards-service/internal/config"
	"lichsu-rewards-service/internal/infra/memory"
	pgstore "lichsu-rewards-service/internal/infra/postgres"
	redisstore "lichsu-rewards-service/internal/infra/redis"
	transport "lichsu-rewards-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the rewards server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	configureLogging(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	redisClient := newRedisClient(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	staticLoader := memory.NewStaticQuizLoader(memory.DemoQuizzes())
	var loader memory.QuizLoader = staticLoader
	var lister transport.QuizLister = staticLoader
	if pool != nil {
		pgLoader := pgstore.NewQuizLoader(pool)
		loader, lister = pgLoader, pgLoader
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	store, backends, err := newStore(cfg, redisClient, pool)
	if err != nil {
		return err
	}

	feed := app.NewPointsFeed()
	ledger := app.NewLedger(store, app.LedgerConfig{
		WelcomeBonus: cfg.Ledger.WelcomeBonus,
		OnChange:     feed.Publish,
	})
	catalog := app.DefaultCatalog()
	redemptions := app.NewRedemptions(store, ledger, catalog, app.RedemptionConfig{
		Validity:        config.TTLDuration(cfg.Vouchers.Validity, app.DefaultVoucherValidity),
		ProcessingDelay: config.TTLDuration(cfg.Vouchers.ProcessingDelay, 0),
	})
	gate := app.NewAttemptGate(store, app.GateConfig{
		BaseAttempts:  cfg.Quiz.BaseAttempts,
		BonusAttempts: cfg.Quiz.BonusAttempts,
		LockDuration:  config.TTLDuration(cfg.Quiz.LockDuration, app.DefaultLockDuration),
	})
	quizzes := app.NewQuizService(quizRepo, gate, ledger, app.QuizConfig{
		QuestionTime:     config.TTLDuration(cfg.Quiz.QuestionTime, app.DefaultQuestionTime),
		CompletionDelay:  config.TTLDuration(cfg.Quiz.CompletionDelay, app.DefaultCompletionDelay),
		PointsPerCorrect: cfg.Quiz.PointsPerCorrect,
	})

	router := transport.NewRouter(
		transport.NewAPIHandler(ledger, catalog, redemptions, quizzes, lister),
		transport.NewWSHandler(quizzes, ledger, feed),
		backends...,
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{"port": finalPort, "store": storeDriver(cfg)}).Info("starting rewards service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newRedisClient returns nil when Redis is not configured.
func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// storeDriver resolves the configured driver. Empty picks redis when configured, then postgres,
// then memory.
func storeDriver(cfg config.Config) string {
	if cfg.Store.Driver != "" {
		return cfg.Store.Driver
	}
	switch {
	case cfg.Redis.Addr != "":
		return "redis"
	case cfg.Postgres.URL != "":
		return "postgres"
	default:
		return "memory"
	}
}

func newStore(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool) (app.Store, []transport.Pinger, error) {
	var backends []transport.Pinger
	if redisClient != nil {
		backends = append(backends, redisstore.NewStore(redisClient, cfg.Redis.KeyPrefix))
	}
	if pool != nil {
		backends = append(backends, pgstore.NewStore(pool))
	}

	switch driver := storeDriver(cfg); driver {
	case "memory":
		log.Warn("using in-memory store; points and vouchers are lost on restart")
		return memory.NewStore(), backends, nil
	case "redis":
		if redisClient == nil {
			return nil, nil, fmt.Errorf("store driver redis requires redis.addr")
		}
		return redisstore.NewStore(redisClient, cfg.Redis.KeyPrefix), backends, nil
	case "postgres":
		if pool == nil {
			return nil, nil, fmt.Errorf("store driver postgres requires postgres.url")
		}
		return pgstore.NewStore(pool), backends, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func configureLogging(cfg config.Config) {
	log.SetOutput(os.Stdout)
	if cfg.Log.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
