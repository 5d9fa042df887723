// Package deletion removes entities while keeping every generic reference
// pointing at a row that exists.
package deletion

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/entity"
	"github.com/goblin-space/core/internal/modules/reference"
	"github.com/goblin-space/core/internal/pkg/storage"
)

// Engine implements soft and hard deletion for the entity store.
type Engine struct {
	store    *entity.Store
	resolver *reference.Resolver
	files    storage.Store
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l.Named("DeletionEngine")
		}
	}
}

// WithFileStore lets the engine remove stored media files once a deletion
// has committed.
func WithFileStore(files storage.Store) Option {
	return func(e *Engine) { e.files = files }
}

// NewEngine creates the engine and installs it as the store's deleter.
func NewEngine(store *entity.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		resolver: store.Resolver(),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	store.SetDeleter(e)
	return e
}

// SoftDelete replaces obj with a tombstone. Owned children are deleted
// first, then obj is detached from collections, notifications and comment
// threads, every reference to it is redirected to the tombstone in a single
// update, and finally the row itself is removed.
func (e *Engine) SoftDelete(sess *database.Session, obj models.Referenceable) error {
	mustBeAttached(sess, obj)
	tx := sess.DB()

	if err := e.cascade(sess, obj); err != nil {
		return err
	}

	tomb := &models.Graveyard{
		ObjectType: obj.TableName(),
		Deleted:    e.now().UTC(),
	}
	if f, ok := obj.(models.Federated); ok {
		if id := f.PublicIdentifier(); id != "" {
			tomb.PublicID = &id
		}
	}
	if _, isUser := obj.(*models.User); !isUser {
		if owned, ok := obj.(models.Owned); ok && owned.OwnerID() != 0 {
			actor := &models.User{Base: models.Base{ID: owned.OwnerID()}}
			ref, err := e.resolver.FindOrCreate(tx, actor)
			if err != nil {
				return fmt.Errorf("reference tombstone actor: %w", err)
			}
			tomb.ActorID = &ref.ID
		}
	}
	if err := tx.Create(tomb).Error; err != nil {
		return fmt.Errorf("create tombstone: %w", err)
	}

	ref, err := e.resolver.FindFor(tx, obj)
	if err != nil {
		return err
	}
	if ref != nil {
		if err := e.detach(sess, ref); err != nil {
			return err
		}
		res := tx.Model(&models.GenericModelReference{}).
			Where("model_type = ? AND obj_pk = ?", obj.TableName(), obj.PrimaryKey()).
			Updates(map[string]interface{}{
				"obj_pk":     tomb.ID,
				"model_type": tomb.TableName(),
			})
		if res.Error != nil {
			return fmt.Errorf("redirect references to tombstone: %w", res.Error)
		}
	}

	if err := tx.Delete(obj).Error; err != nil {
		return err
	}
	e.log.Debug("soft deleted",
		zap.String("table", obj.TableName()),
		zap.Int64("id", obj.PrimaryKey()),
		zap.Int64("tombstone", tomb.ID),
	)
	return nil
}

// HardDelete removes obj without a trace. Anything that referenced it is
// detached or deleted, then its reference row goes too.
func (e *Engine) HardDelete(sess *database.Session, obj models.Referenceable) error {
	mustBeAttached(sess, obj)
	tx := sess.DB()

	if err := e.cascade(sess, obj); err != nil {
		return err
	}

	ref, err := e.resolver.FindFor(tx, obj)
	if err != nil {
		return err
	}
	if ref != nil {
		if err := e.detach(sess, ref); err != nil {
			return err
		}
		if err := e.dropInbound(sess, ref); err != nil {
			return err
		}
		if err := tx.Delete(ref).Error; err != nil {
			return err
		}
	}

	if err := tx.Delete(obj).Error; err != nil {
		return err
	}
	e.log.Debug("hard deleted", zap.String("table", obj.TableName()), zap.Int64("id", obj.PrimaryKey()))
	return nil
}

// detach removes ref from collections, notifications and comment threads
// and unlinks reports from it. Reports are kept.
func (e *Engine) detach(sess *database.Session, ref *models.GenericModelReference) error {
	tx := sess.DB()

	var items []models.CollectionItem
	if err := tx.Where("object_id = ?", ref.ID).Find(&items).Error; err != nil {
		return err
	}
	for i := range items {
		if err := e.HardDelete(sess, &items[i]); err != nil {
			return err
		}
		err := tx.Model(&models.Collection{}).
			Where("id = ? AND num_items > 0", items[i].CollectionID).
			UpdateColumn("num_items", gorm.Expr("num_items - 1")).Error
		if err != nil {
			return err
		}
	}

	if err := hardDeleteEach[models.Notification](e, sess, tx.Where("object_id = ?", ref.ID)); err != nil {
		return err
	}
	if err := hardDeleteEach[models.Comment](e, sess, tx.Where("comment_id = ?", ref.ID)); err != nil {
		return err
	}

	return tx.Model(&models.Report{}).Where("object_id = ?", ref.ID).Update("object_id", nil).Error
}

// dropInbound clears the remaining columns that may hold ref before the
// reference row itself is deleted.
func (e *Engine) dropInbound(sess *database.Session, ref *models.GenericModelReference) error {
	tx := sess.DB()
	if err := hardDeleteEach[models.Comment](e, sess, tx.Where("target_id = ?", ref.ID)); err != nil {
		return err
	}
	if err := hardDeleteEach[models.Activity](e, sess, tx.Where("object_id = ?", ref.ID)); err != nil {
		return err
	}
	if err := tx.Model(&models.Activity{}).Where("target_id = ?", ref.ID).UpdateColumn("target_id", nil).Error; err != nil {
		return err
	}
	return tx.Model(&models.Graveyard{}).Where("actor_id = ?", ref.ID).Update("actor_id", nil).Error
}

// hardDeleteEach loads the rows matched by query and hard deletes them one by
// one so their own references are cleaned up too.
func hardDeleteEach[T any, PT interface {
	*T
	models.Referenceable
}](e *Engine, sess *database.Session, query *gorm.DB) error {
	var rows []T
	if err := query.Find(&rows).Error; err != nil {
		return err
	}
	for i := range rows {
		if err := e.HardDelete(sess, PT(&rows[i])); err != nil {
			return err
		}
	}
	return nil
}

// deleteEach is hardDeleteEach through the store, honouring each row's own
// deletion mode.
func deleteEach[T any, PT interface {
	*T
	models.Referenceable
}](e *Engine, sess *database.Session, query *gorm.DB) error {
	var rows []T
	if err := query.Find(&rows).Error; err != nil {
		return err
	}
	for i := range rows {
		if err := e.store.Delete(sess, PT(&rows[i]), false, models.DeletionDefault); err != nil {
			return err
		}
	}
	return nil
}

func mustBeAttached(sess *database.Session, obj models.Referenceable) {
	if !sess.Active() {
		panic(fmt.Sprintf("deletion: %s is not attached to an active session", obj.TableName()))
	}
	if obj.PrimaryKey() == 0 {
		panic(fmt.Sprintf("deletion: %s was never persisted", obj.TableName()))
	}
}
