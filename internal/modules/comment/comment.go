// Package comment posts comments on any referenceable object and fans them
// out to activities and notifications.
package comment

import (
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/activity"
	"github.com/goblin-space/core/internal/modules/entity"
	"github.com/goblin-space/core/internal/modules/notification"
	"github.com/goblin-space/core/internal/modules/reference"
)

var ErrEmptyComment = errors.New("comment: content is empty")

type Service struct {
	store         *entity.Store
	resolver      *reference.Resolver
	activities    *activity.Service
	notifications *notification.Service
	log           *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Named("CommentService")
		}
	}
}

func WithActivities(a *activity.Service) Option {
	return func(s *Service) { s.activities = a }
}

// WithNotifications notifies subscribers of commented media and subscribes
// the author.
func WithNotifications(n *notification.Service) Option {
	return func(s *Service) { s.notifications = n }
}

func NewService(store *entity.Store, opts ...Option) *Service {
	s := &Service{store: store, resolver: store.Resolver(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Post writes a comment by author on target and links the two. Comments on
// media notify the entry's subscribers and subscribe the author.
func (s *Service) Post(sess *database.Session, author *models.User, target models.Referenceable, content string) (*models.TextComment, *models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, ErrEmptyComment
	}
	tx := sess.DB()

	c := &models.TextComment{Actor: author.ID, Content: content}
	if err := s.store.Create(sess, c, false); err != nil {
		return nil, nil, err
	}
	targetRef, err := s.resolver.FindOrCreate(tx, target)
	if err != nil {
		return nil, nil, err
	}
	commentRef, err := s.resolver.FindOrCreate(tx, c)
	if err != nil {
		return nil, nil, err
	}
	link := &models.Comment{TargetID: targetRef.ID, CommentID: commentRef.ID}
	if err := tx.Create(link).Error; err != nil {
		return nil, nil, err
	}

	if s.activities != nil {
		if _, err := s.activities.Record(sess, author, activity.VerbPost, c, target, nil); err != nil {
			return nil, nil, err
		}
	}

	if m, ok := target.(*models.MediaEntry); ok && s.notifications != nil {
		if err := s.notifications.Trigger(sess, link, m); err != nil {
			return nil, nil, err
		}
		if _, err := s.notifications.Subscribe(sess, author, m); err != nil {
			return nil, nil, err
		}
	}
	s.log.Debug("comment posted", zap.Int64("comment", c.ID), zap.String("target", target.TableName()))
	return c, link, nil
}

// Thread is one comment made on an object.
type Thread struct {
	Link    models.Comment
	Comment models.Referenceable
}

// On lists the comments made on target, oldest first.
func (s *Service) On(tx *gorm.DB, target models.Referenceable) ([]Thread, error) {
	ref, err := s.resolver.FindFor(tx, target)
	if err != nil || ref == nil {
		return nil, err
	}
	var links []models.Comment
	if err := tx.Where("target_id = ?", ref.ID).Order("added").Order("id").Find(&links).Error; err != nil {
		return nil, err
	}
	threads := make([]Thread, 0, len(links))
	for _, link := range links {
		obj, err := s.resolver.ResolveID(tx, link.CommentID)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			continue
		}
		threads = append(threads, Thread{Link: link, Comment: obj})
	}
	return threads, nil
}

func (s *Service) Delete(sess *database.Session, c *models.TextComment, commit bool) error {
	return s.store.Delete(sess, c, commit, models.DeletionDefault)
}
