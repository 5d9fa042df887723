package migrations

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	gmrTable       = "core__generic_model_reference"
	graveyardTable = "core__graveyard"
	linkTable      = "core__comment_links"
)

// Ids are plucked up front instead of using correlated subqueries: MySQL
// rejects deletes whose subquery reads the table being modified.

func graveyardRefs(tx *gorm.DB) ([]int64, error) {
	var ids []int64
	err := tx.Table(gmrTable).Where("model_type = ?", graveyardTable).Pluck("id", &ids).Error
	return ids, err
}

func removeGraveyardFromCollections(ctx context.Context, log *zap.Logger, tx *gorm.DB) error {
	refs, err := graveyardRefs(tx)
	if err != nil || len(refs) == 0 {
		return err
	}
	res := tx.Exec(`DELETE FROM core__collection_items WHERE object_id IN ?`, refs)
	if res.Error != nil {
		return res.Error
	}
	log.Info("removed tombstones from collections", zap.Int64("items", res.RowsAffected))
	return tx.Exec(`UPDATE core__collections SET num_items = (
		SELECT COUNT(*) FROM core__collection_items WHERE core__collection_items.collection = core__collections.id
	)`).Error
}

func removeGraveyardNotifications(ctx context.Context, log *zap.Logger, tx *gorm.DB) error {
	refs, err := graveyardRefs(tx)
	if err != nil || len(refs) == 0 {
		return err
	}
	res := tx.Exec(`DELETE FROM core__notifications WHERE object_id IN ?`, refs)
	if res.Error != nil {
		return res.Error
	}
	log.Info("removed notifications about tombstones", zap.Int64("notifications", res.RowsAffected))
	return tx.Exec(`UPDATE core__reports SET object_id = NULL WHERE object_id IN ?`, refs).Error
}

// removeTombstoneCommentWrappers drops comment links whose comment side was
// tombstoned, along with everything pointing at those links.
func removeTombstoneCommentWrappers(ctx context.Context, log *zap.Logger, tx *gorm.DB) error {
	refs, err := graveyardRefs(tx)
	if err != nil || len(refs) == 0 {
		return err
	}

	var links []int64
	if err := tx.Table(linkTable).Where("comment_id IN ?", refs).Pluck("id", &links).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	var linkRefs []int64
	if err := tx.Table(gmrTable).Where("model_type = ? AND obj_pk IN ?", linkTable, links).Pluck("id", &linkRefs).Error; err != nil {
		return err
	}

	if len(linkRefs) > 0 {
		statements := []string{
			`DELETE FROM core__notifications WHERE object_id IN ?`,
			`DELETE FROM core__collection_items WHERE object_id IN ?`,
			`UPDATE core__reports SET object_id = NULL WHERE object_id IN ?`,
			`DELETE FROM core__activities WHERE object_id IN ?`,
			`UPDATE core__activities SET target_id = NULL WHERE target_id IN ?`,
		}
		for _, stmt := range statements {
			if err := tx.Exec(stmt, linkRefs).Error; err != nil {
				return err
			}
		}
	}
	if err := tx.Exec(`DELETE FROM core__comment_links WHERE id IN ?`, links).Error; err != nil {
		return err
	}
	if len(linkRefs) > 0 {
		if err := tx.Exec(`DELETE FROM core__generic_model_reference WHERE id IN ?`, linkRefs).Error; err != nil {
			return err
		}
	}
	log.Info("removed tombstoned comment links", zap.Int("links", len(links)))
	return nil
}

// cleanupBrokenActivities deletes activities whose object reference points
// at a row that does not exist. A reference to a table that does not exist is
// broken too.
func cleanupBrokenActivities(ctx context.Context, log *zap.Logger, tx *gorm.DB) error {
	var types []string
	err := tx.Table(gmrTable).
		Where("id IN (?)", tx.Table("core__activities").Select("object_id")).
		Distinct().
		Pluck("model_type", &types).Error
	if err != nil {
		return err
	}

	var total int64
	for _, modelType := range types {
		var broken []int64
		q := tx.Table(gmrTable).Where("model_type = ?", modelType)
		if tx.Migrator().HasTable(modelType) {
			var live []int64
			if err := tx.Table(modelType).Pluck("id", &live).Error; err != nil {
				return err
			}
			if len(live) > 0 {
				q = q.Where("obj_pk NOT IN ?", live)
			}
		}
		if err := q.Pluck("id", &broken).Error; err != nil {
			return err
		}
		if len(broken) == 0 {
			continue
		}
		res := tx.Exec(`DELETE FROM core__activities WHERE object_id IN ?`, broken)
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected
	}
	if total > 0 {
		log.Info("removed broken activities", zap.Int64("activities", total))
	}
	return nil
}
