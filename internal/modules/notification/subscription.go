package notification

import (
	"errors"

	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
)

// Subscription returns user's subscription to media, nil if there is none.
func (s *Service) Subscription(tx *gorm.DB, userID, mediaID int64) (*models.CommentSubscription, error) {
	var sub models.CommentSubscription
	err := tx.Where("user_id = ? AND media_entry_id = ?", userID, mediaID).Order("id").First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// Subscribe turns comment notifications on for user and media. Email follows
// the user's wants_comment_notification preference.
func (s *Service) Subscribe(sess *database.Session, user *models.User, media *models.MediaEntry) (*models.CommentSubscription, error) {
	tx := sess.DB()
	sub, err := s.Subscription(tx, user.ID, media.ID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = &models.CommentSubscription{UserID: user.ID, MediaEntryID: media.ID}
	}

	var lu models.LocalUser
	if err := tx.Where("id = ?", user.ID).Limit(1).Find(&lu).Error; err != nil {
		return nil, err
	}
	sub.Notify = true
	sub.SendEmail = lu.WantsCommentNotification

	if err := tx.Save(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

// Silence keeps the subscription but stops notifications and email.
func (s *Service) Silence(sess *database.Session, user *models.User, media *models.MediaEntry) error {
	return sess.DB().Model(&models.CommentSubscription{}).
		Where("user_id = ? AND media_entry_id = ?", user.ID, media.ID).
		Updates(map[string]interface{}{"notify": false, "send_email": false}).Error
}

func (s *Service) Unsubscribe(sess *database.Session, user *models.User, media *models.MediaEntry) error {
	return sess.DB().Where("user_id = ? AND media_entry_id = ?", user.ID, media.ID).
		Delete(&models.CommentSubscription{}).Error
}
