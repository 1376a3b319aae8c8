package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dailyplan/internal/calendar"
	"dailyplan/internal/config"
	"dailyplan/internal/logger"
	"dailyplan/internal/queue"
	"dailyplan/internal/repository"
	"dailyplan/internal/service"
)

const (
	jobKeyPrefix = "dailyplan:jobs"
	// syncLockTTL is how long a crashed sync can block its calendar.
	// Live holders keep refreshing it.
	syncLockTTL = 5 * time.Minute
)

// app holds the wired components shared by the commands.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	db     *gorm.DB
	rdb    *redis.Client
	repos  *repository.Repositories

	worker  *queue.Worker
	syncer  *calendar.Syncer
	watches *calendar.WatchManager
	pusher  *calendar.Pusher
	webhook *calendar.WebhookHandler

	capacity    *service.CapacityService
	suggestions *service.SuggestionService
	plans       *service.PlanService
	tasks       *service.TaskService
	summaries   *service.SummaryService
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	dayStart, err := config.ParseClock(cfg.Planning.DayStart)
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	a := &app{cfg: cfg, logger: log, db: db, repos: repository.NewRepositories(db)}
	tx := repository.NewTransactor(db)

	var (
		store  queue.Store
		locker calendar.Locker
	)
	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = queue.NewRedisStore(a.rdb, jobKeyPrefix)
		locker = calendar.NewRedisLocker(a.rdb, syncLockTTL)
		log.Info("using redis job store", zap.String("addr", cfg.Redis.Addr))
	} else {
		store = queue.NewMemoryStore()
		locker = calendar.NewLocalLocker()
		log.Warn("REDIS_ADDR not set, jobs are kept in memory")
	}
	a.worker = queue.NewWorker(store, log.Named("queue"), queue.WithPollInterval(cfg.Queue.PollInterval))

	providers := calendar.NewGoogleFactory(a.repos.Tokens, cfg.Google.ClientID, cfg.Google.ClientSecret, log.Named("google"))
	a.syncer = calendar.NewSyncer(providers, a.repos, tx, locker, log.Named("sync"))
	a.watches = calendar.NewWatchManager(providers, a.repos.SyncStates, cfg.Google.WebhookURL, cfg.Google.WatchTTL, log.Named("watch"))
	a.pusher = calendar.NewPusher(providers, a.repos, a.worker, locker, log.Named("push"))
	a.webhook = calendar.NewWebhookHandler(a.repos.SyncStates, a.syncer, a.worker, cfg.Google.SyncInline, log.Named("webhook"))
	calendar.RegisterHandlers(a.worker, a.syncer, a.watches, a.pusher, log.Named("jobs"))

	a.capacity = service.NewCapacityService(a.repos.Users, a.repos.Tasks, cfg.Planning.DefaultCapacityMinutes)
	a.suggestions = service.NewSuggestionService(a.repos.Tasks, log.Named("suggest"))
	a.plans = service.NewPlanService(tx, cfg.Planning.DefaultCapacityMinutes, dayStart, log.Named("plan"))
	a.plans.SetCalendarPusher(a.pusher)
	a.tasks = service.NewTaskService(a.repos.Tasks, tx)
	a.tasks.SetEventRemover(a.pusher)
	a.summaries = service.NewSummaryService(a.repos.Tasks, a.repos.DailyPlans, a.capacity)
	return a, nil
}

func (a *app) pingDB(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *app) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("close db", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
