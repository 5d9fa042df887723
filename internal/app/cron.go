package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	pkgcron "github.com/goblin-space/core/internal/pkg/cron"
)

const (
	JobCleanupActivities = "cleanup_activities"
	JobPurgeTasks        = "purge_tasks"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, a *App) {
	cronLogger := a.logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        JobCleanupActivities,
		Description: "Remove activities whose object or target is gone",
		Interval:    a.cfg.Cleanup.Interval,
		Fn: func(ctx context.Context) error {
			n, err := a.Deletion.CleanupActivities(ctx, a.db)
			if err != nil {
				return err
			}
			cronLogger.Info("activity cleanup done", zap.Int("removed", n))
			return nil
		},
	})

	if a.queue == nil {
		return
	}
	sched.Register(pkgcron.Job{
		Name:        JobPurgeTasks,
		Description: "Drop finished tasks past their retention",
		Interval:    a.cfg.Cleanup.Interval,
		Fn: func(ctx context.Context) error {
			n, err := a.queue.Purge(ctx, time.Now().Add(-a.cfg.Cleanup.TaskRetention))
			if err != nil {
				return err
			}
			cronLogger.Info("task purge done", zap.Int("purged", n))
			return nil
		},
	})
}
