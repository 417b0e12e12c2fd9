// Package main - точка входа бота 21-дневного контент-челленджа.
//
// Один процесс обслуживает всё: Telegram long polling, планировщик
// напоминаний с пулом доставки и HTTP API с пробами и метриками.
// Состояние живёт в памяти или в PostgreSQL (STORAGE_BACKEND), Redis
// подключается опционально как кеш лидерборда и журнал напоминаний.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/createathon/challenge-hub/config"
	"github.com/createathon/challenge-hub/internal/application/engine"
	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/infrastructure/external/telegram"
	"github.com/createathon/challenge-hub/internal/infrastructure/external/youtube"
	"github.com/createathon/challenge-hub/internal/infrastructure/messaging"
	"github.com/createathon/challenge-hub/internal/infrastructure/persistence/memory"
	"github.com/createathon/challenge-hub/internal/infrastructure/persistence/postgres"
	"github.com/createathon/challenge-hub/internal/infrastructure/persistence/redis"
	"github.com/createathon/challenge-hub/internal/infrastructure/scheduler"
	"github.com/createathon/challenge-hub/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/createathon/challenge-hub/internal/interface/http"
	"github.com/createathon/challenge-hub/internal/interface/http/handlers"
	tginterface "github.com/createathon/challenge-hub/internal/interface/telegram"
	"github.com/createathon/challenge-hub/internal/interface/telegram/handler"
	"github.com/createathon/challenge-hub/internal/interface/telegram/middleware"
	"github.com/createathon/challenge-hub/pkg/circuitbreaker"
	"github.com/createathon/challenge-hub/pkg/retry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// storeWithPing - хранилище, которое умеет отвечать на health check.
type storeWithPing interface {
	challenge.ProgressStore
	Ping(ctx context.Context) error
}

func run() error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting challenge hub",
		"version", cfg.App.Version,
		"env", cfg.App.Environment,
		"storage", cfg.Storage.Backend,
		"timezone", cfg.App.Location.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reminderSchedule scheduler.Schedule
	if cfg.Reminder.Enabled {
		reminderSchedule, err = scheduler.ParseSchedule(cfg.Reminder.Cron, cfg.Reminder.Interval)
		if err != nil {
			return fmt.Errorf("invalid reminder schedule: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ ПРОГРЕССА
	// ─────────────────────────────────────────────────────────────────────────
	var store storeWithPing

	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		log.Info("connecting to database...")

		dbLog := log.With("component", "postgres")
		onRetry := retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			dbLog.Warn("database call failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		})
		pool := postgres.PoolSettings{
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		}

		// База в docker compose часто поднимается позже бота.
		conn, err := retry.DoValue(ctx,
			retry.DatabaseRetrier(retry.WithRetryIf(postgres.IsTransient), onRetry),
			func(ctx context.Context) (*postgres.Connection, error) {
				return postgres.Connect(ctx, cfg.Database.URL, pool)
			},
		)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer conn.Close()
		conn.SetRetrier(retry.DatabaseRetrier(onRetry))

		if cfg.Storage.AutoMigrate {
			applied, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("migrations applied", "count", applied)
		}

		store = postgres.NewProgressRepository(conn, cfg.Challenge.Days)
		log.Info("database connected")
	default:
		store = memory.NewProgressStore(memory.WithChallengeLength(cfg.Challenge.Days))
		log.Warn("using in-memory store, progress is lost on restart")
	}
	health.AddCheck("store", handlers.NewPingCheck(store))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		leaderboardCache engine.LeaderboardCache
		reminderLedger   jobs.ReminderLedger
	)

	if cfg.Redis.Enabled {
		cache, err := redis.NewCache(ctx, redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		})
		if err != nil {
			// Без кеша бот работает, просто медленнее.
			log.Warn("redis unavailable, continuing without cache", "error", err)
		} else {
			defer cache.Close()
			leaderboardCache = redis.NewLeaderboardCache(cache, cfg.Redis.LeaderboardTTL)
			reminderLedger = redis.NewReminderLedger(cache, reminderLedgerTTL(reminderSchedule, cfg.Reminder.Interval))
			health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
			log.Info("redis connected", "prefix", cfg.Redis.KeyPrefix)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. YOUTUBE (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var metricsSource engine.MetricsSource

	if cfg.YouTube.APIKey != "" {
		ytLog := log.With("component", "youtube_client")
		ytClient, err := youtube.NewClient(ctx, youtube.ClientConfig{
			APIKey:            cfg.YouTube.APIKey,
			Timeout:           cfg.YouTube.RequestTimeout,
			RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
			Burst:             cfg.YouTube.Burst,
			Retrier: retry.New(
				retry.WithMaxAttempts(cfg.YouTube.MaxRetries+1),
				retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
					ytLog.Debug("retrying youtube request", "attempt", attempt, "delay", delay, "error", err)
				}),
			),
			Breaker: circuitbreaker.YouTubeBreaker(
				func(name string, from, to circuitbreaker.State) {
					ytLog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
				},
				circuitbreaker.WithFailureThreshold(cfg.YouTube.CircuitBreakerThreshold),
				circuitbreaker.WithCooldown(cfg.YouTube.CircuitBreakerTimeout),
				circuitbreaker.WithIsFailure(youtube.IsOutage),
			),
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("failed to create youtube client: %w", err)
		}
		metricsSource = ytClient
		log.Info("youtube metrics source enabled")
	} else {
		log.Info("YOUTUBE_API_KEY not set, /submit with a link is disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ДВИЖОК ЧЕЛЛЕНДЖА
	// ─────────────────────────────────────────────────────────────────────────
	eng, err := engine.New(engine.Config{
		Store: store,
		Evaluator: challenge.Policy{
			MinDays:  cfg.Challenge.Days,
			MinViews: cfg.Challenge.MinViews,
		},
		ChallengeLength: cfg.Challenge.Days,
		Metrics:         metricsSource,
		Cache:           leaderboardCache,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. TELEGRAM CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	tgConfig := telegram.DefaultClientConfig(cfg.Telegram.Token)
	if secs := int(cfg.Telegram.PollingTimeout.Seconds()); secs > 0 {
		tgConfig.PollTimeout = secs
	}
	tgConfig.Retrier = retry.TelegramRetrier()
	tgConfig.Breaker = circuitbreaker.TelegramBreaker(
		func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		circuitbreaker.WithIsFailure(telegram.IsOutage),
	)
	tgConfig.Logger = log
	tgClient := telegram.NewClient(tgConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. НАПОМИНАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	queue := messaging.NewReminderQueue(cfg.Reminder.QueueSize)
	dispatcher := messaging.NewReminderDispatcher(
		queue,
		telegram.NewReminderNotifier(tgClient, cfg.Reminder.Text),
		messaging.DispatcherConfig{
			Workers:             cfg.Reminder.Workers,
			DeadLetterQueueSize: 1000,
			Logger:              log,
		},
		messaging.LoggingMiddleware(log.With("component", "reminder_delivery")),
	)

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	if reminderSchedule != nil {
		jobConfig := jobs.SendRemindersConfig{
			Interval: cfg.Reminder.Interval,
			Location: cfg.App.Location,
		}
		// У cron каждый запуск - отдельный слот журнала.
		if fireTimes, ok := reminderSchedule.(jobs.FireTimes); ok {
			jobConfig.FireTimes = fireTimes
		}
		job := jobs.NewSendRemindersJob(store, queue, reminderLedger, log, jobConfig)
		if err := sched.Register(job, reminderSchedule); err != nil {
			return fmt.Errorf("failed to register reminder job: %w", err)
		}
		log.Info("reminders scheduled", "schedule", reminderSchedule.String())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. TELEGRAM BOT
	// ─────────────────────────────────────────────────────────────────────────
	rateLimit := middleware.DefaultRateLimitConfig()
	rateLimit.RequestsPerMinute = cfg.Telegram.UserRateLimit
	rateLimit.BurstSize = cfg.Telegram.UserBurst
	for _, id := range cfg.Telegram.AdminIDs {
		rateLimit.WhitelistedUsers[id] = true
	}

	botConfig := tginterface.DefaultBotConfig()
	botConfig.Logger = log
	botConfig.Debug = cfg.App.Debug
	botConfig.MaxConcurrentUpdates = cfg.Telegram.MaxConcurrentUpdates
	botConfig.LeaderboardLimit = cfg.Challenge.LeaderboardLimit
	botConfig.Reward = handler.Reward{
		AnimationURL: cfg.Challenge.RewardGIFURL,
		FormURL:      cfg.Challenge.RewardFormURL,
	}
	botConfig.RateLimit = rateLimit
	botConfig.Metrics = middleware.NewMetrics(registry)

	bot, err := tginterface.NewBot(tgClient, eng, botConfig)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	if err := httpserver.RegisterReminderMetrics(registry, httpserver.ReminderSources{
		Queue:      queue,
		Dispatcher: dispatcher,
		Scheduler:  sched,
	}); err != nil {
		return fmt.Errorf("failed to register reminder metrics: %w", err)
	}

	var httpServer *httpserver.Server
	if cfg.HTTP.Enabled {
		httpConfig := httpserver.DefaultConfig()
		httpConfig.Host = cfg.HTTP.Host
		httpConfig.Port = cfg.HTTP.Port
		httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
		httpConfig.EnableMetrics = cfg.HTTP.MetricsEnabled
		httpConfig.LeaderboardLimit = cfg.Challenge.LeaderboardLimit

		httpServer, err = httpserver.NewServer(httpConfig, httpserver.Dependencies{
			Engine:        eng,
			Registry:      registry,
			HealthChecker: health,
			Scheduler:     sched,
			Dispatcher:    dispatcher,
			Logger:        log,
		})
		if err != nil {
			return fmt.Errorf("failed to create http server: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 2)

	if httpServer != nil {
		go func() {
			if err := <-httpServer.StartAsync(); err != nil {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reminder dispatcher: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		if err := bot.Start(ctx); err != nil {
			errCh <- fmt.Errorf("telegram bot error: %w", err)
		}
	}()

	log.Info("challenge hub is running",
		"http_enabled", cfg.HTTP.Enabled,
		"reminders_enabled", cfg.Reminder.Enabled,
		"challenge_days", cfg.Challenge.Days,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case runErr = <-errCh:
		log.Error("service error", "error", runErr)
	}
	stop()

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var shutdownErrs []error

	// Бот первым: новые апдейты больше не принимаются.
	if err := bot.Stop(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("bot: %w", err))
	}

	// Планировщик до диспетчера: цикл не должен писать в закрытую очередь.
	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("scheduler: %w", err))
	}

	// Диспетчер закрывает очередь и досылает буфер.
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("dispatcher: %w", err))
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrs = append(shutdownErrs, fmt.Errorf("http server: %w", err))
		}
	}

	if err := errors.Join(shutdownErrs...); err != nil {
		log.Warn("shutdown completed with errors", "error", err)
	} else {
		log.Info("shutdown completed successfully")
	}

	return runErr
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Observability.LogFormat, "text") && !cfg.IsProduction() {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(h).With("app", cfg.App.Name)
	slog.SetDefault(log)
	return log
}

// reminderLedgerTTL держит ключ журнала дольше самого длинного промежутка
// между запусками, чтобы перезапуск внутри слота не дублировал напоминания.
func reminderLedgerTTL(schedule scheduler.Schedule, interval time.Duration) time.Duration {
	ttl := 2 * interval
	if schedule != nil {
		ttl = max(ttl, 2*scheduler.LongestGap(schedule, time.Now(), 16))
	}
	return ttl
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
