package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/config"
	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/database/migrations"
	"github.com/goblin-space/core/internal/modules/activity"
	"github.com/goblin-space/core/internal/modules/collection"
	"github.com/goblin-space/core/internal/modules/comment"
	"github.com/goblin-space/core/internal/modules/deletion"
	"github.com/goblin-space/core/internal/modules/entity"
	"github.com/goblin-space/core/internal/modules/mailer"
	"github.com/goblin-space/core/internal/modules/media"
	"github.com/goblin-space/core/internal/modules/moderation"
	"github.com/goblin-space/core/internal/modules/notification"
	"github.com/goblin-space/core/internal/modules/reference"
	"github.com/goblin-space/core/internal/modules/user"
	pkgcron "github.com/goblin-space/core/internal/pkg/cron"
	"github.com/goblin-space/core/internal/pkg/mail"
	"github.com/goblin-space/core/internal/pkg/migrate"
	pkgredis "github.com/goblin-space/core/internal/pkg/redis"
	"github.com/goblin-space/core/internal/pkg/storage"
	"github.com/goblin-space/core/internal/pkg/taskqueue"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
	redis  *goredis.Client
	files  storage.Store
	queue  *taskqueue.Service
	sender *mail.Sender
	sched  *pkgcron.Scheduler
	cancel context.CancelFunc

	Store         *entity.Store
	Deletion      *deletion.Engine
	Activities    *activity.Service
	Serializer    *activity.Serializer
	Notifications *notification.Service
	Users         *user.Service
	Media         *media.Service
	Collections   *collection.Service
	Comments      *comment.Service
	Moderation    *moderation.Service
}

// New initializes the application: DB, then Redis when enabled, then file
// storage and the services on top.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rc *goredis.Client
	if cfg.Redis.Enable {
		rc, err = pkgredis.Dial(context.Background(), cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	}

	files, err := storage.New(cfg.Storage)
	if err != nil {
		if rc != nil {
			_ = rc.Close()
		}
		return nil, fmt.Errorf("storage: %w", err)
	}

	return assemble(logger, cfg, db, rc, files), nil
}

func assemble(logger *zap.Logger, cfg *config.AppConfig, db *gorm.DB, rc *goredis.Client, files storage.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		db:     db,
		redis:  rc,
		files:  files,
		sender: mail.New(mail.BuildMailConfig(cfg)),
		sched:  pkgcron.New(logger),
	}
	if rc != nil {
		a.queue = taskqueue.NewService(rc)
	}

	resolver := reference.NewResolver(reference.Default())
	a.Store = entity.NewStore(resolver, entity.WithLogger(logger), entity.WithBaseURL(cfg.BaseURL))
	a.Deletion = deletion.NewEngine(a.Store, deletion.WithLogger(logger), deletion.WithFileStore(files))
	a.Activities = activity.NewService(a.Store, activity.WithLogger(logger))
	a.Serializer = activity.NewSerializer(resolver, cfg.BaseURL)

	notifyOpts := []notification.Option{
		notification.WithLogger(logger),
		notification.WithFetchLimit(cfg.Notifications.FetchLimit),
	}
	if d := a.dispatcher(); d != nil {
		notifyOpts = append(notifyOpts, notification.WithDispatcher(d))
	}
	a.Notifications = notification.NewService(resolver, notifyOpts...)

	a.Users = user.NewService(a.Store, user.WithLogger(logger))
	a.Media = media.NewService(a.Store,
		media.WithLogger(logger),
		media.WithFileStore(files),
		media.WithActivities(a.Activities),
		media.WithSubscriber(a.Notifications),
	)
	a.Collections = collection.NewService(a.Store, collection.WithLogger(logger), collection.WithActivities(a.Activities))
	a.Comments = comment.NewService(a.Store,
		comment.WithLogger(logger),
		comment.WithActivities(a.Activities),
		comment.WithNotifications(a.Notifications),
	)
	a.Moderation = moderation.NewService(a.Store, moderation.WithLogger(logger))

	registerCronJobs(a.sched, a)
	return a
}

// dispatcher picks how comment emails leave the process: through the task
// queue when Redis is available, inline otherwise.
func (a *App) dispatcher() notification.Dispatcher {
	if !a.cfg.Notifications.Email || !a.sender.Enabled() {
		return nil
	}
	if a.queue != nil {
		return mailer.NewQueued(a.queue)
	}
	return mailer.NewDirect(a.sender, "")
}

func (a *App) DB() *gorm.DB { return a.db }

func (a *App) Config() *config.AppConfig { return a.cfg }

func (a *App) Scheduler() *pkgcron.Scheduler { return a.sched }

// Migrator returns the schema migrator for the connected database.
func (a *App) Migrator() *migrate.Migrator {
	return migrations.New(a.db, a.logger)
}

// Worker returns the comment email worker, or nil without a task queue.
func (a *App) Worker() *mailer.Worker {
	if a.queue == nil {
		return nil
	}
	return mailer.NewWorker(a.queue, a.sender,
		mailer.WithLogger(a.logger),
		mailer.WithPollInterval(a.cfg.Notifications.PollInterval),
	)
}

// Begin opens a session for a unit of work.
func (a *App) Begin(ctx context.Context) *database.Session {
	return database.Begin(ctx, a.db)
}

// Start launches the scheduled jobs.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.sched.Start(ctx)
}

// Shutdown stops background jobs and closes connections.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
