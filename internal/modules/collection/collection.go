// Package collection keeps user curated lists of media and other objects.
package collection

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
	"github.com/goblin-space/core/internal/modules/reference"
)

var (
	ErrAlreadyCollected = errors.New("collection: object already in collection")
	ErrNotCollected     = errors.New("collection: object not in collection")
	ErrTombstone        = errors.New("collection: deleted objects cannot be collected")
)

type CreateCollectionDTO struct {
	Title       string `json:"title"       validate:"required,max=255"`
	Description string `json:"description"`
	Type        string `json:"type"        validate:"omitempty,oneof=core-user-defined core-inbox core-outbox core-followers core-following"`
}

var validate = validator.New()

type Service struct {
	store      *entity.Store
	resolver   *reference.Resolver
	activities *activity.Service
	log        *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Named("CollectionService")
		}
	}
}

// WithActivities records create and add activities.
func WithActivities(a *activity.Service) Option {
	return func(s *Service) { s.activities = a }
}

func NewService(store *entity.Store, opts ...Option) *Service {
	s := &Service{store: store, resolver: store.Resolver(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(sess *database.Session, owner *models.User, dto *CreateCollectionDTO) (*models.Collection, error) {
	dto.Title = strings.TrimSpace(dto.Title)
	if err := validate.Struct(dto); err != nil {
		return nil, err
	}
	if dto.Type == "" {
		dto.Type = models.CollectionUserDefined
	}
	c := &models.Collection{
		Actor:       owner.ID,
		Title:       dto.Title,
		Slug:        slugify(dto.Title),
		Description: dto.Description,
		Type:        dto.Type,
	}
	if err := s.store.Create(sess, c, false); err != nil {
		return nil, err
	}
	if s.activities != nil && c.Type == models.CollectionUserDefined {
		if _, err := s.activities.Record(sess, owner, activity.VerbCreate, c, nil, nil); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends obj to c. Tombstones and objects already in c are rejected.
func (s *Service) Add(sess *database.Session, actor *models.User, c *models.Collection, obj models.Referenceable, note string) (*models.CollectionItem, error) {
	if _, dead := obj.(*models.Graveyard); dead {
		return nil, ErrTombstone
	}
	tx := sess.DB()
	ref, err := s.resolver.FindOrCreate(tx, obj)
	if err != nil {
		return nil, err
	}
	if ref.ModelType == (models.Graveyard{}).TableName() {
		return nil, ErrTombstone
	}

	var n int64
	if err := tx.Model(&models.CollectionItem{}).Where("collection = ? AND object_id = ?", c.ID, ref.ID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: %s %d", ErrAlreadyCollected, obj.TableName(), obj.PrimaryKey())
	}

	var last struct{ Position *int }
	if err := tx.Model(&models.CollectionItem{}).Select("MAX(position) AS position").
		Where("collection = ?", c.ID).Scan(&last).Error; err != nil {
		return nil, err
	}
	position := 0
	if last.Position != nil {
		position = *last.Position + 1
	}

	item := &models.CollectionItem{CollectionID: c.ID, ObjectID: ref.ID, Note: note, Position: position}
	if err := tx.Create(item).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(c).UpdateColumn("num_items", gorm.Expr("num_items + 1")).Error; err != nil {
		return nil, err
	}
	c.NumItems++

	if s.activities != nil && actor != nil {
		if _, err := s.activities.Record(sess, actor, activity.VerbAdd, obj, c, nil); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// Remove takes obj out of c.
func (s *Service) Remove(sess *database.Session, c *models.Collection, obj models.Referenceable) error {
	tx := sess.DB()
	ref, err := s.resolver.FindFor(tx, obj)
	if err != nil {
		return err
	}
	if ref == nil {
		return ErrNotCollected
	}
	var item models.CollectionItem
	if err := tx.Where("collection = ? AND object_id = ?", c.ID, ref.ID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotCollected
		}
		return err
	}
	if err := s.store.HardDelete(sess, &item, false); err != nil {
		return err
	}
	if err := tx.Model(c).Where("num_items > 0").UpdateColumn("num_items", gorm.Expr("num_items - 1")).Error; err != nil {
		return err
	}
	if c.NumItems > 0 {
		c.NumItems--
	}
	return nil
}

// Item pairs a collection item with the object it holds.
type Item struct {
	models.CollectionItem
	Object models.Referenceable
}

// Items lists c's entries in position order. Items whose object no longer
// resolves are skipped.
func (s *Service) Items(tx *gorm.DB, c *models.Collection) ([]Item, error) {
	var rows []models.CollectionItem
	if err := tx.Where("collection = ?", c.ID).Order("position").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		obj, err := s.resolver.ResolveID(tx, row.ObjectID)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			s.log.Warn("collection item points at nothing", zap.Int64("item", row.ID))
			continue
		}
		items = append(items, Item{CollectionItem: row, Object: obj})
	}
	return items, nil
}

func (s *Service) Delete(sess *database.Session, c *models.Collection, commit bool) error {
	return s.store.Delete(sess, c, commit, models.DeletionDefault)
}

func slugify(title string) string {
	s := strings.ToLower(title)
	s = strings.ReplaceAll(s, " ", "-")
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			sb.WriteRune(r)
		}
	}
	result := strings.Trim(sb.String(), "-")
	if result == "" {
		result = "collection"
	}
	return result
}
