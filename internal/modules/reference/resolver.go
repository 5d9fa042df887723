package reference

import (
	"errors"
	"fmt"

	"github.com/goblin-space/core/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnregistered is returned when referencing an entity whose type is not in
// the registry.
var ErrUnregistered = errors.New("reference: entity type not registered")

// Resolver translates between concrete entities and their generic references.
// All methods take the transaction to run in; none of them commit.
type Resolver struct {
	registry *Registry
	insert   InsertFunc
}

// InsertFunc persists an entity that has no primary key yet.
type InsertFunc func(tx *gorm.DB, e models.Referenceable) error

func NewResolver(registry *Registry) *Resolver {
	if registry == nil {
		registry = Default()
	}
	return &Resolver{registry: registry, insert: plainInsert}
}

func plainInsert(tx *gorm.DB, e models.Referenceable) error {
	return tx.Create(e).Error
}

func (r *Resolver) Registry() *Registry { return r.registry }

// SetInsert replaces how FindOrCreate persists unsaved entities. The entity
// store installs itself here so those entities get their public id.
func (r *Resolver) SetInsert(fn InsertFunc) {
	if fn == nil {
		fn = plainInsert
	}
	r.insert = fn
}

// FindFor returns the reference pointing at e, or nil when none exists yet.
func (r *Resolver) FindFor(tx *gorm.DB, e models.Referenceable) (*models.GenericModelReference, error) {
	if e.PrimaryKey() == 0 {
		return nil, nil
	}
	return r.lookup(tx, e.TableName(), e.PrimaryKey())
}

// FindOrCreate returns the reference pointing at e, creating it when missing.
// An unsaved e is inserted first so it has a key to point at.
func (r *Resolver) FindOrCreate(tx *gorm.DB, e models.Referenceable) (*models.GenericModelReference, error) {
	if !r.registry.Has(e.TableName()) {
		return nil, fmt.Errorf("%w: %s", ErrUnregistered, e.TableName())
	}
	if e.PrimaryKey() == 0 {
		if err := r.insert(tx, e); err != nil {
			return nil, fmt.Errorf("persist %s before referencing: %w", e.TableName(), err)
		}
	}

	ref, err := r.lookup(tx, e.TableName(), e.PrimaryKey())
	if err != nil || ref != nil {
		return ref, err
	}

	ref = &models.GenericModelReference{ObjPK: e.PrimaryKey(), ModelType: e.TableName()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(ref).Error; err != nil {
		return nil, err
	}
	if ref.ID == 0 {
		// Lost a race with another writer; use the row that won.
		return r.lookup(tx, e.TableName(), e.PrimaryKey())
	}
	return ref, nil
}

// Get loads a reference by id, returning nil if it does not exist.
func (r *Resolver) Get(tx *gorm.DB, id int64) (*models.GenericModelReference, error) {
	var ref models.GenericModelReference
	if err := tx.First(&ref, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

// Resolve loads the entity ref points at. A reference to an unknown table or a
// missing row resolves to nil without error.
func (r *Resolver) Resolve(tx *gorm.DB, ref *models.GenericModelReference) (models.Referenceable, error) {
	if ref == nil {
		return nil, nil
	}
	obj, ok := r.registry.New(ref.ModelType)
	if !ok {
		return nil, nil
	}
	if err := tx.First(obj, ref.ObjPK).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return obj, nil
}

// ResolveID resolves the reference stored under id.
func (r *Resolver) ResolveID(tx *gorm.DB, id int64) (models.Referenceable, error) {
	ref, err := r.Get(tx, id)
	if err != nil || ref == nil {
		return nil, err
	}
	return r.Resolve(tx, ref)
}

func (r *Resolver) lookup(tx *gorm.DB, table string, pk int64) (*models.GenericModelReference, error) {
	var ref models.GenericModelReference
	err := tx.Where("model_type = ? AND obj_pk = ?", table, pk).First(&ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}
