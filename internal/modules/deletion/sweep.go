package deletion

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
)

const sweepBatchSize = 200

// CleanupActivities deletes every activity whose object, or target when it
// has one, no longer resolves to a row. It returns how many were removed.
func (e *Engine) CleanupActivities(ctx context.Context, db *gorm.DB) (int, error) {
	removed := 0
	err := database.Transaction(ctx, db, func(sess *database.Session) error {
		var batch []models.Activity
		res := sess.DB().FindInBatches(&batch, sweepBatchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				broken, err := e.brokenActivity(sess, &batch[i])
				if err != nil {
					return err
				}
				if !broken {
					continue
				}
				if err := e.HardDelete(sess, &batch[i]); err != nil {
					return err
				}
				removed++
			}
			return nil
		})
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.log.Info("removed broken activities", zap.Int("count", removed))
	}
	return removed, nil
}

func (e *Engine) brokenActivity(sess *database.Session, a *models.Activity) (bool, error) {
	tx := sess.DB()
	obj, err := e.resolver.ResolveID(tx, a.ObjectID)
	if err != nil {
		return false, err
	}
	if obj == nil {
		return true, nil
	}
	if a.TargetID == nil {
		return false, nil
	}
	target, err := e.resolver.ResolveID(tx, *a.TargetID)
	if err != nil {
		return false, err
	}
	return target == nil, nil
}
