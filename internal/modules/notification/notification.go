// Package notification turns comments into per-subscriber notifications and
// hands comment emails to an asynchronous dispatcher.
package notification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/activity"
	"github.com/goblin-space/core/internal/modules/reference"
)

// DefaultFetchLimit caps how many notifications Get returns.
const DefaultFetchLimit = 100

// CommentEmail is the payload of one comment notification mail.
type CommentEmail struct {
	UserID     int64  `json:"user_id"`
	To         string `json:"to"`
	Username   string `json:"username"`
	Commenter  string `json:"commenter"`
	MediaTitle string `json:"media_title"`
	MediaURL   string `json:"media_url"`
	Content    string `json:"content"`
}

// Dispatcher queues comment emails for delivery outside the request.
type Dispatcher interface {
	DispatchCommentEmail(ctx context.Context, email CommentEmail) error
}

type Service struct {
	resolver   *reference.Resolver
	dispatcher Dispatcher
	fetchLimit int
	log        *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Named("NotificationService")
		}
	}
}

// WithDispatcher enables comment emails. Without one, send_email
// subscriptions only get the notification row.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithFetchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

func NewService(resolver *reference.Resolver, opts ...Option) *Service {
	s := &Service{resolver: resolver, fetchLimit: DefaultFetchLimit, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger notifies every subscriber of media about the comment behind link,
// skipping the comment's author. Emails are dispatched after the session
// commits; a failed dispatch never undoes the notification.
func (s *Service) Trigger(sess *database.Session, link *models.Comment, media *models.MediaEntry) error {
	tx := sess.DB()

	comment, err := s.resolver.ResolveID(tx, link.CommentID)
	if err != nil {
		return err
	}
	text, ok := comment.(*models.TextComment)
	if !ok {
		return fmt.Errorf("notification: link %d does not wrap a comment", link.ID)
	}
	linkRef, err := s.resolver.FindOrCreate(tx, link)
	if err != nil {
		return err
	}

	var subs []models.CommentSubscription
	if err := tx.Where("media_entry_id = ? AND notify = ?", media.ID, true).
		Order("id").Find(&subs).Error; err != nil {
		return err
	}

	var emails []CommentEmail
	for _, sub := range subs {
		if sub.UserID == text.Actor {
			continue
		}
		n := &models.Notification{ObjectID: linkRef.ID, UserID: sub.UserID}
		if err := tx.Create(n).Error; err != nil {
			return err
		}
		if !sub.SendEmail || s.dispatcher == nil {
			continue
		}
		email, ok, err := s.commentEmail(tx, sub.UserID, text, media)
		if err != nil {
			return err
		}
		if ok {
			emails = append(emails, email)
		}
	}

	if len(emails) > 0 {
		sess.AfterCommit(func(ctx context.Context) {
			for _, email := range emails {
				if err := s.dispatcher.DispatchCommentEmail(ctx, email); err != nil {
					s.log.Warn("comment email dispatch failed",
						zap.Int64("user_id", email.UserID), zap.Error(err))
				}
			}
		})
	}
	s.log.Debug("comment notifications created",
		zap.Int64("media_entry_id", media.ID), zap.Int("emails", len(emails)))
	return nil
}

func (s *Service) commentEmail(tx *gorm.DB, userID int64, c *models.TextComment, media *models.MediaEntry) (CommentEmail, bool, error) {
	var recipient models.LocalUser
	if err := tx.Where("id = ?", userID).Limit(1).Find(&recipient).Error; err != nil {
		return CommentEmail{}, false, err
	}
	if recipient.ID == 0 || recipient.Email == "" {
		return CommentEmail{}, false, nil
	}
	commenter, err := activity.DisplayName(tx, &models.User{Base: models.Base{ID: c.Actor}})
	if err != nil {
		return CommentEmail{}, false, err
	}
	return CommentEmail{
		UserID:     userID,
		To:         recipient.Email,
		Username:   recipient.Username,
		Commenter:  commenter,
		MediaTitle: media.Title,
		MediaURL:   media.PublicIdentifier(),
		Content:    c.Content,
	}, true, nil
}

// MarkSeen flags n as seen. Marking a seen notification again is a no-op.
func (s *Service) MarkSeen(sess *database.Session, n *models.Notification) error {
	if n == nil || n.Seen {
		return nil
	}
	if err := sess.DB().Model(n).Update("seen", true).Error; err != nil {
		return err
	}
	n.Seen = true
	return nil
}

// MarkCommentNotificationSeen marks user's notification about the comment
// link as seen, if there is one.
func (s *Service) MarkCommentNotificationSeen(sess *database.Session, link *models.Comment, user *models.User) error {
	tx := sess.DB()
	ref, err := s.resolver.FindFor(tx, link)
	if err != nil || ref == nil {
		return err
	}
	var n models.Notification
	if err := tx.Where("user_id = ? AND object_id = ?", user.ID, ref.ID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return s.MarkSeen(sess, &n)
}

// Get returns the user's newest notifications, or nil when the user does not
// want notifications at all.
func (s *Service) Get(tx *gorm.DB, userID int64, onlyUnseen bool) ([]models.Notification, error) {
	wants, err := wantsNotifications(tx, userID)
	if err != nil || !wants {
		return nil, err
	}
	q := tx.Where("user_id = ?", userID)
	if onlyUnseen {
		q = q.Where("seen = ?", false)
	}
	notifications := []models.Notification{}
	if err := q.Order("created DESC").Order("id DESC").Limit(s.fetchLimit).Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

// Count returns the number of notifications, or nil when the user does not
// want notifications at all.
func (s *Service) Count(tx *gorm.DB, userID int64, onlyUnseen bool) (*int64, error) {
	wants, err := wantsNotifications(tx, userID)
	if err != nil || !wants {
		return nil, err
	}
	q := tx.Model(&models.Notification{}).Where("user_id = ?", userID)
	if onlyUnseen {
		q = q.Where("seen = ?", false)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func wantsNotifications(tx *gorm.DB, userID int64) (bool, error) {
	var lu models.LocalUser
	if err := tx.Select("id", "wants_notifications").Where("id = ?", userID).Limit(1).Find(&lu).Error; err != nil {
		return false, err
	}
	return lu.ID != 0 && lu.WantsNotifications, nil
}
