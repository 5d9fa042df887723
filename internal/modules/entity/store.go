package entity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/reference"
)

// Deleter carries out the two deletion strategies. The deletion engine
// implements it and registers itself with SetDeleter.
type Deleter interface {
	SoftDelete(sess *database.Session, e models.Referenceable) error
	HardDelete(sess *database.Session, e models.Referenceable) error
}

// Store is the uniform save/delete entry point for entities.
type Store struct {
	resolver *reference.Resolver
	deleter  Deleter
	baseURL  string
	log      *zap.Logger
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l.Named("EntityStore")
		}
	}
}

// WithBaseURL sets the prefix of generated public ids.
func WithBaseURL(u string) Option {
	return func(s *Store) { s.baseURL = strings.TrimRight(u, "/") }
}

func NewStore(resolver *reference.Resolver, opts ...Option) *Store {
	s := &Store{resolver: resolver, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if resolver != nil {
		resolver.SetInsert(func(tx *gorm.DB, e models.Referenceable) error {
			return s.insert(tx, e)
		})
	}
	return s
}

func (s *Store) SetDeleter(d Deleter) { s.deleter = d }

func (s *Store) Resolver() *reference.Resolver { return s.resolver }

// PublicID builds a new public id for an object of the given type.
func (s *Store) PublicID(objectType string) string {
	return fmt.Sprintf("%s/api/%s/%s", s.baseURL, objectType, uuid.NewString())
}

// Save flushes value into the session's transaction. With commit the session
// is committed afterwards; otherwise the caller composes more work first.
func (s *Store) Save(sess *database.Session, value interface{}, commit bool) error {
	s.assignPublicID(value)
	if err := sess.DB().Save(value).Error; err != nil {
		return err
	}
	if commit {
		return sess.Commit()
	}
	return nil
}

// Create inserts a new entity. Unlike Save it never updates an existing row.
func (s *Store) Create(sess *database.Session, value interface{}, commit bool) error {
	if err := s.insert(sess.DB(), value); err != nil {
		return err
	}
	if commit {
		return sess.Commit()
	}
	return nil
}

func (s *Store) insert(tx *gorm.DB, value interface{}) error {
	s.assignPublicID(value)
	return tx.Create(value).Error
}

func (s *Store) assignPublicID(value interface{}) {
	if f, ok := value.(models.Federated); ok && f.PublicIdentifier() == "" {
		f.SetPublicIdentifier(s.PublicID(f.ObjectType()))
	}
}

// ModeOf returns the deletion mode e declares, hard deletion if none.
func ModeOf(e models.Referenceable) models.DeletionMode {
	if d, ok := e.(models.Deletable); ok {
		return d.DeletionMode()
	}
	return models.HardDeletion
}

// Delete removes e using mode, or the mode e declares when mode is
// DeletionDefault. Deleting an entity that was never persisted, using a closed
// session, or passing an unknown mode are programming errors and panic.
func (s *Store) Delete(sess *database.Session, e models.Referenceable, commit bool, mode models.DeletionMode) error {
	if mode == models.DeletionDefault {
		mode = ModeOf(e)
	}
	var err error
	switch mode {
	case models.HardDeletion:
		return s.HardDelete(sess, e, commit)
	case models.SoftDeletion:
		mustBeAttached(sess, e)
		err = s.mustDeleter().SoftDelete(sess, e)
	default:
		panic(fmt.Sprintf("entity: invalid deletion mode %q", mode))
	}
	if err != nil {
		return err
	}
	if commit {
		return sess.Commit()
	}
	return nil
}

// HardDelete removes the row with no tombstone.
func (s *Store) HardDelete(sess *database.Session, e models.Referenceable, commit bool) error {
	mustBeAttached(sess, e)
	if err := s.mustDeleter().HardDelete(sess, e); err != nil {
		return err
	}
	if commit {
		return sess.Commit()
	}
	return nil
}

func (s *Store) mustDeleter() Deleter {
	if s.deleter == nil {
		panic("entity: store has no deleter configured")
	}
	return s.deleter
}

func mustBeAttached(sess *database.Session, e models.Referenceable) {
	if !sess.Active() {
		panic(fmt.Sprintf("entity: deleting %s without an active session", e.TableName()))
	}
	if e.PrimaryKey() == 0 {
		panic(fmt.Sprintf("entity: deleting unsaved %s", e.TableName()))
	}
}
