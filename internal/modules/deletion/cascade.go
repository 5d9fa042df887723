package deletion

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
)

// cascade deletes the children that hold a direct foreign key to obj.
func (e *Engine) cascade(sess *database.Session, obj models.Referenceable) error {
	switch v := obj.(type) {
	case *models.User:
		return e.cascadeUser(sess, v)
	case *models.MediaEntry:
		return e.cascadeMedia(sess, v)
	case *models.Collection:
		return hardDeleteEach[models.CollectionItem](e, sess, sess.DB().Where("collection = ?", v.ID))
	}
	return nil
}

// cascadeUser removes everything a user owns. Media go first since deleting
// them also removes comments made on them, then collections, comments and
// activities, and finally the rows that only make sense with the user.
func (e *Engine) cascadeUser(sess *database.Session, u *models.User) error {
	tx := sess.DB()

	if err := deleteEach[models.MediaEntry](e, sess, tx.Where("actor = ?", u.ID)); err != nil {
		return err
	}
	if err := deleteEach[models.Collection](e, sess, tx.Where("actor = ?", u.ID)); err != nil {
		return err
	}
	if err := deleteEach[models.TextComment](e, sess, tx.Where("actor = ?", u.ID)); err != nil {
		return err
	}
	if err := deleteEach[models.Activity](e, sess, tx.Where("actor = ?", u.ID)); err != nil {
		return err
	}

	if err := hardDeleteEach[models.Notification](e, sess, tx.Where("user_id = ?", u.ID)); err != nil {
		return err
	}
	if err := hardDeleteEach[models.CommentSubscription](e, sess, tx.Where("user_id = ?", u.ID)); err != nil {
		return err
	}
	if err := hardDeleteEach[models.Report](e, sess, tx.Where("reporter_id = ? OR reported_user_id = ?", u.ID, u.ID)); err != nil {
		return err
	}
	if err := tx.Model(&models.Report{}).Where("resolver_id = ?", u.ID).Update("resolver_id", nil).Error; err != nil {
		return err
	}

	if err := tx.Where(&models.PrivilegeUserAssociation{UserID: u.ID}).Delete(&models.PrivilegeUserAssociation{}).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", u.ID).Delete(&models.UserBan{}).Error; err != nil {
		return err
	}
	if err := hardDeleteEach[models.LocalUser](e, sess, tx.Where("id = ?", u.ID)); err != nil {
		return err
	}
	return hardDeleteEach[models.RemoteUser](e, sess, tx.Where("id = ?", u.ID))
}

// cascadeMedia removes the comments made on an entry, its files, tags and
// type specific data.
func (e *Engine) cascadeMedia(sess *database.Session, m *models.MediaEntry) error {
	tx := sess.DB()

	ref, err := e.resolver.FindFor(tx, m)
	if err != nil {
		return err
	}
	if ref != nil {
		var links []models.Comment
		if err := tx.Where("target_id = ?", ref.ID).Find(&links).Error; err != nil {
			return err
		}
		for i := range links {
			comment, err := e.resolver.ResolveID(tx, links[i].CommentID)
			if err != nil {
				return err
			}
			if err := e.HardDelete(sess, &links[i]); err != nil {
				return err
			}
			if comment == nil {
				continue
			}
			if _, gone := comment.(*models.Graveyard); gone {
				continue
			}
			if err := e.store.Delete(sess, comment, false, models.DeletionDefault); err != nil {
				return err
			}
		}
	}

	var paths []string
	var files []models.MediaFile
	if err := tx.Where("media_entry = ?", m.ID).Find(&files).Error; err != nil {
		return err
	}
	for _, f := range files {
		paths = append(paths, f.FilePath)
	}
	if err := tx.Where("media_entry = ?", m.ID).Delete(&models.MediaFile{}).Error; err != nil {
		return err
	}
	var attachments []models.MediaAttachmentFile
	if err := tx.Where("media_entry = ?", m.ID).Find(&attachments).Error; err != nil {
		return err
	}
	for i := range attachments {
		paths = append(paths, attachments[i].Filepath)
		if err := e.HardDelete(sess, &attachments[i]); err != nil {
			return err
		}
	}
	e.removeFilesAfterCommit(sess, paths)

	var tagIDs []int64
	if err := tx.Model(&models.MediaTag{}).Where("media_entry = ?", m.ID).Pluck("tag", &tagIDs).Error; err != nil {
		return err
	}
	if err := hardDeleteEach[models.MediaTag](e, sess, tx.Where("media_entry = ?", m.ID)); err != nil {
		return err
	}
	if err := e.dropOrphanTags(sess, tagIDs); err != nil {
		return err
	}

	if err := hardDeleteEach[models.CommentSubscription](e, sess, tx.Where("media_entry_id = ?", m.ID)); err != nil {
		return err
	}
	if err := hardDeleteEach[models.ProcessingMetaData](e, sess, tx.Where("media_entry_id = ?", m.ID)); err != nil {
		return err
	}
	if err := tx.Where("media_entry = ?", m.ID).Delete(&models.ImageData{}).Error; err != nil {
		return err
	}
	if err := tx.Where("media_entry = ?", m.ID).Delete(&models.VideoData{}).Error; err != nil {
		return err
	}

	if m.FileSize > 0 {
		err := tx.Model(&models.LocalUser{}).
			Where("id = ? AND uploaded >= ?", m.Actor, m.FileSize).
			UpdateColumn("uploaded", gorm.Expr("uploaded - ?", m.FileSize)).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) dropOrphanTags(sess *database.Session, tagIDs []int64) error {
	tx := sess.DB()
	for _, id := range tagIDs {
		var uses int64
		if err := tx.Model(&models.MediaTag{}).Where("tag = ?", id).Count(&uses).Error; err != nil {
			return err
		}
		if uses > 0 {
			continue
		}
		if err := hardDeleteEach[models.Tag](e, sess, tx.Where("id = ?", id)); err != nil {
			return err
		}
	}
	return nil
}

// removeFilesAfterCommit deletes stored files only once the rows pointing at
// them are gone for good. Failures are logged and left for an operator.
func (e *Engine) removeFilesAfterCommit(sess *database.Session, paths []string) {
	if e.files == nil || len(paths) == 0 {
		return
	}
	sess.AfterCommit(func(ctx context.Context) {
		for _, p := range paths {
			if p == "" {
				continue
			}
			if err := e.files.Delete(ctx, p); err != nil {
				e.log.Warn("failed to delete media file", zap.String("path", p), zap.Error(err))
			}
		}
	})
}
