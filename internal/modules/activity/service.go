// Package activity records what actors do and renders entities in the shape
// federation peers expect.
package activity

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/entity"
	"github.com/goblin-space/core/internal/modules/reference"
)

// Verbs an activity may carry.
const (
	VerbAdd        = "add"
	VerbAuthor     = "author"
	VerbCreate     = "create"
	VerbDelete     = "delete"
	VerbDislike    = "dislike"
	VerbFavorite   = "favorite"
	VerbFollow     = "follow"
	VerbLike       = "like"
	VerbPost       = "post"
	VerbShare      = "share"
	VerbUnfavorite = "unfavorite"
	VerbUnfollow   = "unfollow"
	VerbUnlike     = "unlike"
	VerbUnshare    = "unshare"
	VerbUpdate     = "update"
	VerbTag        = "tag"
)

var ErrInvalidVerb = errors.New("activity: unknown verb")

// pastTense doubles as the set of valid verbs.
var pastTense = map[string]string{
	VerbAdd:        "added",
	VerbAuthor:     "authored",
	VerbCreate:     "created",
	VerbDelete:     "deleted",
	VerbDislike:    "disliked",
	VerbFavorite:   "favorited",
	VerbFollow:     "followed",
	VerbLike:       "liked",
	VerbPost:       "posted",
	VerbShare:      "shared",
	VerbUnfavorite: "unfavorited",
	VerbUnfollow:   "unfollowed",
	VerbUnlike:     "unliked",
	VerbUnshare:    "unshared",
	VerbUpdate:     "updated",
	VerbTag:        "tagged",
}

var targetPreposition = map[string]string{
	VerbAdd:   "to",
	VerbShare: "with",
}

func ValidVerb(verb string) bool {
	_, ok := pastTense[verb]
	return ok
}

type Service struct {
	store    *entity.Store
	resolver *reference.Resolver
	log      *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Named("ActivityService")
		}
	}
}

func NewService(store *entity.Store, opts ...Option) *Service {
	s := &Service{store: store, resolver: store.Resolver(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record stores that actor performed verb on object, optionally toward
// target and produced by generator. References for object and target are
// found or created; an unsaved object is saved first. Nothing is committed.
func (s *Service) Record(
	sess *database.Session,
	actor *models.User,
	verb string,
	object, target models.Referenceable,
	generator *models.Generator,
) (*models.Activity, error) {
	if !ValidVerb(verb) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVerb, verb)
	}
	if actor == nil || actor.ID == 0 {
		return nil, errors.New("activity: actor must be a saved user")
	}
	if isNil(object) {
		return nil, errors.New("activity: object is required")
	}
	tx := sess.DB()

	objRef, err := s.resolver.FindOrCreate(tx, object)
	if err != nil {
		return nil, fmt.Errorf("reference activity object: %w", err)
	}
	a := &models.Activity{Actor: actor.ID, Verb: verb, ObjectID: objRef.ID}

	if !isNil(target) {
		targetRef, err := s.resolver.FindOrCreate(tx, target)
		if err != nil {
			return nil, fmt.Errorf("reference activity target: %w", err)
		}
		a.TargetID = &targetRef.ID
	} else {
		target = nil
	}

	if generator != nil {
		if generator.ID == 0 {
			if err := tx.Create(generator).Error; err != nil {
				return nil, err
			}
		}
		a.Generator = &generator.ID
	}

	content, err := s.Content(tx, actor, verb, object, target)
	if err != nil {
		return nil, err
	}
	a.Content = content

	if err := s.store.Save(sess, a, false); err != nil {
		return nil, err
	}
	s.log.Debug("activity recorded", zap.String("verb", verb), zap.Int64("id", a.ID))
	return a, nil
}

// Content renders the human readable line for an activity, e.g.
// "alice posted an image" or "bob added an image to a collection".
func (s *Service) Content(tx *gorm.DB, actor *models.User, verb string, object, target models.Referenceable) (string, error) {
	name, err := DisplayName(tx, actor)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(" ")
	b.WriteString(pastTense[verb])
	b.WriteString(" ")
	objDesc, err := describe(tx, object)
	if err != nil {
		return "", err
	}
	b.WriteString(objDesc)
	if !isNil(target) {
		prep, ok := targetPreposition[verb]
		if !ok {
			prep = "on"
		}
		targetDesc, err := describe(tx, target)
		if err != nil {
			return "", err
		}
		b.WriteString(" " + prep + " " + targetDesc)
	}
	return b.String(), nil
}

// DisplayName returns the local username, the webfinger of a remote user or
// the user's name, in that order of preference.
func DisplayName(tx *gorm.DB, u *models.User) (string, error) {
	var local models.LocalUser
	err := tx.Where("id = ?", u.ID).Limit(1).Find(&local).Error
	if err != nil {
		return "", err
	}
	if local.Username != "" {
		return local.Username, nil
	}
	var remote models.RemoteUser
	if err := tx.Where("id = ?", u.ID).Limit(1).Find(&remote).Error; err != nil {
		return "", err
	}
	if remote.Webfinger != "" {
		return remote.Webfinger, nil
	}
	if u.Name != "" {
		return u.Name, nil
	}
	return "someone", nil
}

func describe(tx *gorm.DB, obj models.Referenceable) (string, error) {
	switch v := obj.(type) {
	case *models.User:
		return DisplayName(tx, v)
	case *models.Graveyard:
		return "a deleted object", nil
	case models.Federated:
		return withArticle(v.ObjectType()), nil
	default:
		return "an object", nil
	}
}

func withArticle(noun string) string {
	if noun == "" {
		return "an object"
	}
	switch noun[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an " + noun
	}
	return "a " + noun
}

func isNil(e models.Referenceable) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
