// Package media stores uploaded entries and drives them through processing.
package media

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/activity"
	"github.com/goblin-space/core/internal/modules/entity"
	"github.com/goblin-space/core/internal/pkg/storage"
)

var (
	ErrInvalidTransition = errors.New("media: invalid state transition")
	ErrUploadLimit       = errors.New("media: upload limit exceeded")
)

type CreateMediaDTO struct {
	Title       string   `json:"title"       validate:"required,max=255"`
	Description string   `json:"description"`
	MediaType   string   `json:"media_type"  validate:"required"`
	License     string   `json:"license"`
	Tags        []string `json:"tags"        validate:"dive,max=255"`
}

var validate = validator.New()

// Subscriber follows comments on an entry for a user.
type Subscriber interface {
	Subscribe(sess *database.Session, user *models.User, media *models.MediaEntry) (*models.CommentSubscription, error)
}

type Service struct {
	store      *entity.Store
	activities *activity.Service
	subscriber Subscriber
	files      storage.Store
	log        *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Named("MediaService")
		}
	}
}

func WithFileStore(files storage.Store) Option {
	return func(s *Service) { s.files = files }
}

// WithSubscriber subscribes owners to comments on their new entries.
func WithSubscriber(sub Subscriber) Option {
	return func(s *Service) { s.subscriber = sub }
}

// WithActivities records a post activity for every new entry.
func WithActivities(a *activity.Service) Option {
	return func(s *Service) { s.activities = a }
}

func NewService(store *entity.Store, opts ...Option) *Service {
	s := &Service{store: store, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds an unprocessed entry owned by owner. The slug is derived from
// the title and unique among the owner's entries.
func (s *Service) Create(sess *database.Session, owner *models.User, dto *CreateMediaDTO) (*models.MediaEntry, error) {
	dto.Title = strings.TrimSpace(dto.Title)
	if err := validate.Struct(dto); err != nil {
		return nil, err
	}
	slug, err := uniqueSlug(sess.DB(), owner.ID, slugify(dto.Title))
	if err != nil {
		return nil, err
	}
	m := &models.MediaEntry{
		Actor:       owner.ID,
		Title:       dto.Title,
		Slug:        slug,
		Description: dto.Description,
		MediaType:   dto.MediaType,
		License:     dto.License,
		State:       models.MediaUnprocessed,
	}
	if err := s.store.Create(sess, m, false); err != nil {
		return nil, err
	}
	if len(dto.Tags) > 0 {
		if err := s.SetTags(sess, m, dto.Tags); err != nil {
			return nil, err
		}
	}
	if s.subscriber != nil {
		if _, err := s.subscriber.Subscribe(sess, owner, m); err != nil {
			return nil, err
		}
	}
	if s.activities != nil {
		if _, err := s.activities.Record(sess, owner, activity.VerbPost, m, nil, nil); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// BySlug returns the owner's entry with slug, nil if there is none.
func (s *Service) BySlug(tx *gorm.DB, ownerID int64, slug string) (*models.MediaEntry, error) {
	var m models.MediaEntry
	if err := tx.Where("actor = ? AND slug = ?", ownerID, slug).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Delete removes the entry with its comments, files and tags.
func (s *Service) Delete(sess *database.Session, m *models.MediaEntry, commit bool) error {
	return s.store.Delete(sess, m, commit, models.DeletionDefault)
}

func uniqueSlug(tx *gorm.DB, ownerID int64, base string) (string, error) {
	slug := base
	for i := 2; ; i++ {
		var n int64
		if err := tx.Model(&models.MediaEntry{}).Where("actor = ? AND slug = ?", ownerID, slug).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	var sb strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}
	result := strings.TrimRight(sb.String(), "-")
	if result == "" {
		result = "media"
	}
	return result
}
