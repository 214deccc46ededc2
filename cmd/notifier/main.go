package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/LeventeLantos/order-notifier/internal/api"
	"github.com/LeventeLantos/order-notifier/internal/compose"
	"github.com/LeventeLantos/order-notifier/internal/config"
	"github.com/LeventeLantos/order-notifier/internal/consumer"
	"github.com/LeventeLantos/order-notifier/internal/dedupe"
	"github.com/LeventeLantos/order-notifier/internal/gateway"
	"github.com/LeventeLantos/order-notifier/internal/logging"
	"github.com/LeventeLantos/order-notifier/internal/metrics"
	"github.com/LeventeLantos/order-notifier/internal/ratelimit"
	"github.com/LeventeLantos/order-notifier/internal/repo"
	"github.com/LeventeLantos/order-notifier/internal/scheduler"
	"github.com/LeventeLantos/order-notifier/internal/service"
	"github.com/LeventeLantos/order-notifier/internal/settings"
	"github.com/LeventeLantos/order-notifier/internal/tracking"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("notifier exited", zap.Error(err))
	}
}

type stores struct {
	dedupe   dedupe.Store
	window   ratelimit.Window
	settings settings.Store
	close    func()
}

func openStores(ctx context.Context, cfg config.RedisConfig) (*stores, error) {
	if !cfg.Enabled {
		return &stores{
			dedupe:   dedupe.NewMemoryStore(),
			window:   ratelimit.NewMemoryWindow(),
			settings: settings.NewMemoryStore(),
			close:    func() {},
		}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &stores{
		dedupe:   dedupe.NewRedisStore(rdb, dedupe.DefaultRedisPrefix),
		window:   ratelimit.NewRedisWindow(rdb, ratelimit.DefaultRedisKey),
		settings: settings.NewRedisStore(rdb, settings.DefaultRedisHash),
		close:    func() { _ = rdb.Close() },
	}, nil
}

func openOutcomes(ctx context.Context, url string) (repo.OutcomeRepository, func(), error) {
	if url == "" {
		return repo.NewMemoryOutcomeRepo(0), func() {}, nil
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	pg := repo.NewPostgresOutcomeRepo(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return pg, func() { _ = db.Close() }, nil
}

func seedValues(cfg *config.Config) map[string]string {
	return map[string]string{
		settings.KeyGatewayURL:       cfg.Gateway.URL,
		settings.KeyGatewayToken:     cfg.Gateway.Token,
		settings.KeyGatewayAuthStyle: string(cfg.Gateway.AuthStyle),
		settings.KeyRateLimitMax:     strconv.Itoa(cfg.RateLimit.Max),
		settings.KeyRateLimitWindow:  strconv.Itoa(int(cfg.RateLimit.Window / time.Second)),
	}
}

// applyLimits copies the stored rate limit onto the limiter, keeping the
// configured values for anything unset.
func applyLimits(ctx context.Context, s *settings.Settings, l *ratelimit.Limiter, cfg config.RateLimitConfig) error {
	max, window, err := s.RateLimits(ctx)
	if err != nil {
		return err
	}
	if max <= 0 {
		max = cfg.Max
	}
	if window <= 0 {
		window = cfg.Window
	}
	l.SetLimits(max, window)
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("order notifier starting",
		zap.String("addr", cfg.Server.Address),
		zap.String("env", cfg.Log.Env),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("postgres", cfg.Database.PostgresURL != ""),
		zap.Bool("queue", cfg.Queue.Enabled),
	)

	st, err := openStores(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer st.close()

	cfgStore := settings.New(st.settings)
	if err := cfgStore.Seed(ctx, seedValues(cfg)); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	var fileSource *settings.FileSource
	if cfg.Settings.File != "" {
		fileSource = settings.NewFileSource(cfg.Settings.File, cfgStore, logger)
		if _, err := fileSource.Apply(ctx); err != nil {
			return err
		}
	}

	adapter := gateway.NewAdapter(cfgStore, nil, logger)
	if err := adapter.Reload(ctx); err != nil {
		return err
	}
	if !adapter.Configured() {
		logger.Warn("gateway not configured; notifications are skipped until url and token are set")
	}

	limiter := ratelimit.New(st.window, cfg.RateLimit.Max, cfg.RateLimit.Window)
	if err := applyLimits(ctx, cfgStore, limiter, cfg.RateLimit); err != nil {
		return err
	}

	if fileSource != nil {
		go func() {
			err := fileSource.Watch(ctx, func(ctx context.Context) {
				if err := adapter.Reload(ctx); err != nil {
					logger.Error("gateway reload failed", zap.Error(err))
				}
				if err := applyLimits(ctx, cfgStore, limiter, cfg.RateLimit); err != nil {
					logger.Error("rate limit reload failed", zap.Error(err))
				}
			})
			if err != nil {
				logger.Error("settings watcher stopped", zap.Error(err))
			}
		}()
	}

	outcomes, closeOutcomes, err := openOutcomes(ctx, cfg.Database.PostgresURL)
	if err != nil {
		return err
	}
	defer closeOutcomes()

	metrics.Register()

	pipeline := service.NewPipeline(
		adapter,
		st.dedupe,
		limiter,
		compose.New(cfgStore, language.BrazilianPortuguese),
		cfgStore,
		logger,
	).
		WithRecorder(outcomes).
		WithCarriers(tracking.DefaultDirectory()).
		WithTTLs(cfg.Dedupe.NotificationTTL, cfg.Dedupe.ProcessingTTL)

	var sched *scheduler.Scheduler
	if cfg.Queue.Enabled {
		client, err := consumer.NewSQSClient(ctx, cfg.Queue.Endpoint)
		if err != nil {
			return err
		}
		c, err := consumer.NewSQSConsumer(client, cfg.Queue.URL, pipeline, logger.Named("sqs"))
		if err != nil {
			return err
		}
		sched, err = scheduler.New(cfg.Queue.PollInterval, c.Tick, logger.Named("scheduler"))
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	h := api.NewHandler(sched, pipeline, adapter, cfgStore, outcomes, logger)
	srv := &http.Server{
		Addr: cfg.Server.Address,
		Handler: loggingMiddleware(logger, api.Router(h, api.RouterOptions{
			AdminRatePerSecond: cfg.Admin.RatePerSecond,
			AdminBurst:         cfg.Admin.Burst,
		})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
