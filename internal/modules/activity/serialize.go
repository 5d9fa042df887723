package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/reference"
)

var ErrNotSerializable = errors.New("activity: object cannot be serialized")

// maxDepth bounds how far nested objects are expanded; deeper ones are
// rendered as id and type only.
const maxDepth = 2

// Object is the activity-streams rendering of an entity.
type Object struct {
	ID                string     `json:"id,omitempty"`
	ObjectType        string     `json:"objectType"`
	Verb              string     `json:"verb,omitempty"`
	DisplayName       string     `json:"displayName,omitempty"`
	PreferredUsername string     `json:"preferredUsername,omitempty"`
	Content           string     `json:"content,omitempty"`
	Summary           string     `json:"summary,omitempty"`
	License           string     `json:"license,omitempty"`
	URL               string     `json:"url,omitempty"`
	Published         *time.Time `json:"published,omitempty"`
	Updated           *time.Time `json:"updated,omitempty"`
	Deleted           *time.Time `json:"deleted,omitempty"`
	FormerType        string     `json:"formerType,omitempty"`
	TotalItems        *int       `json:"totalItems,omitempty"`
	Actor             *Object    `json:"actor,omitempty"`
	Object            *Object    `json:"object,omitempty"`
	Target            *Object    `json:"target,omitempty"`
	Generator         *Object    `json:"generator,omitempty"`
	InReplyTo         *Object    `json:"inReplyTo,omitempty"`
}

type Serializer struct {
	resolver *reference.Resolver
	baseURL  string
}

func NewSerializer(resolver *reference.Resolver, baseURL string) *Serializer {
	return &Serializer{resolver: resolver, baseURL: strings.TrimRight(baseURL, "/")}
}

// Serialize renders obj. Referenced objects that were soft deleted come out
// as tombstones; references whose row is gone are omitted.
func (s *Serializer) Serialize(tx *gorm.DB, obj models.Referenceable) (*Object, error) {
	return s.serialize(tx, obj, 0)
}

func (s *Serializer) serialize(tx *gorm.DB, obj models.Referenceable, depth int) (*Object, error) {
	switch v := obj.(type) {
	case *models.User:
		return s.user(tx, v)
	case *models.MediaEntry:
		return s.media(tx, v)
	case *models.TextComment:
		return s.comment(tx, v, depth)
	case *models.Collection:
		return s.collection(tx, v)
	case *models.Activity:
		return s.activity(tx, v, depth)
	case *models.Generator:
		return s.generator(v), nil
	case *models.Graveyard:
		return s.tombstone(tx, v, depth)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotSerializable, obj.TableName())
}

// nested serializes the object behind a reference id one level deeper.
func (s *Serializer) nested(tx *gorm.DB, refID int64, depth int) (*Object, error) {
	target, err := s.resolver.ResolveID(tx, refID)
	if err != nil || target == nil {
		return nil, err
	}
	if depth+1 > maxDepth {
		return stub(target), nil
	}
	out, err := s.serialize(tx, target, depth+1)
	if errors.Is(err, ErrNotSerializable) {
		return stub(target), nil
	}
	return out, err
}

func (s *Serializer) actor(tx *gorm.DB, userID int64) (*Object, error) {
	var u models.User
	if err := tx.Where("id = ?", userID).Limit(1).Find(&u).Error; err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return s.user(tx, &u)
}

func (s *Serializer) user(tx *gorm.DB, u *models.User) (*Object, error) {
	name, err := DisplayName(tx, u)
	if err != nil {
		return nil, err
	}
	id := name
	if u.IsLocal() {
		id = fmt.Sprintf("%s/api/user/%s/profile", s.baseURL, name)
	}
	display := u.Name
	if display == "" {
		display = name
	}
	return &Object{
		ID:                id,
		ObjectType:        u.ObjectType(),
		DisplayName:       display,
		PreferredUsername: name,
		Summary:           u.Bio,
		URL:               u.URL,
		Published:         timePtr(u.Created),
		Updated:           timePtr(u.Updated),
	}, nil
}

func (s *Serializer) media(tx *gorm.DB, m *models.MediaEntry) (*Object, error) {
	author, err := s.actor(tx, m.Actor)
	if err != nil {
		return nil, err
	}
	return &Object{
		ID:          m.PublicIdentifier(),
		ObjectType:  m.ObjectType(),
		DisplayName: m.Title,
		Content:     m.Description,
		License:     m.License,
		Published:   timePtr(m.Created),
		Updated:     timePtr(m.Updated),
		Actor:       author,
	}, nil
}

func (s *Serializer) comment(tx *gorm.DB, c *models.TextComment, depth int) (*Object, error) {
	author, err := s.actor(tx, c.Actor)
	if err != nil {
		return nil, err
	}
	out := &Object{
		ID:         c.PublicIdentifier(),
		ObjectType: c.ObjectType(),
		Content:    c.Content,
		Published:  timePtr(c.Created),
		Updated:    timePtr(c.Updated),
		Actor:      author,
	}

	ref, err := s.resolver.FindFor(tx, c)
	if err != nil || ref == nil {
		return out, err
	}
	var link models.Comment
	if err := tx.Where("comment_id = ?", ref.ID).Limit(1).Find(&link).Error; err != nil {
		return nil, err
	}
	if link.ID != 0 {
		if out.InReplyTo, err = s.nested(tx, link.TargetID, depth); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Serializer) collection(tx *gorm.DB, c *models.Collection) (*Object, error) {
	author, err := s.actor(tx, c.Actor)
	if err != nil {
		return nil, err
	}
	total := c.NumItems
	return &Object{
		ID:          c.PublicIdentifier(),
		ObjectType:  c.ObjectType(),
		DisplayName: c.Title,
		Content:     c.Description,
		Published:   timePtr(c.Created),
		Updated:     timePtr(c.Updated),
		TotalItems:  &total,
		Actor:       author,
	}, nil
}

func (s *Serializer) activity(tx *gorm.DB, a *models.Activity, depth int) (*Object, error) {
	out := &Object{
		ID:          a.PublicIdentifier(),
		ObjectType:  a.ObjectType(),
		Verb:        a.Verb,
		DisplayName: a.Title,
		Content:     a.Content,
		Published:   timePtr(a.Published),
		Updated:     timePtr(a.Updated),
	}
	var err error
	if out.Actor, err = s.actor(tx, a.Actor); err != nil {
		return nil, err
	}
	if out.Object, err = s.nested(tx, a.ObjectID, depth); err != nil {
		return nil, err
	}
	if a.TargetID != nil {
		if out.Target, err = s.nested(tx, *a.TargetID, depth); err != nil {
			return nil, err
		}
	}
	if a.Generator != nil {
		var g models.Generator
		if err := tx.Where("id = ?", *a.Generator).Limit(1).Find(&g).Error; err != nil {
			return nil, err
		}
		if g.ID != 0 {
			out.Generator = s.generator(&g)
		}
	}
	return out, nil
}

func (s *Serializer) generator(g *models.Generator) *Object {
	objectType := g.ObjectType
	if objectType == "" {
		objectType = "application"
	}
	return &Object{
		ID:          fmt.Sprintf("%s/api/%s/%d", s.baseURL, objectType, g.ID),
		ObjectType:  objectType,
		DisplayName: g.Name,
		Published:   timePtr(g.Published),
		Updated:     timePtr(g.Updated),
	}
}

func (s *Serializer) tombstone(tx *gorm.DB, g *models.Graveyard, depth int) (*Object, error) {
	deleted := g.Deleted
	out := &Object{
		ObjectType: "tombstone",
		FormerType: g.ObjectType,
		Published:  &deleted,
		Updated:    &deleted,
		Deleted:    &deleted,
	}
	if g.PublicID != nil {
		out.ID = *g.PublicID
	}
	if g.ActorID != nil {
		var err error
		if out.Actor, err = s.nested(tx, *g.ActorID, depth); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func stub(obj models.Referenceable) *Object {
	out := &Object{ObjectType: obj.TableName()}
	if f, ok := obj.(models.Federated); ok {
		out.ID = f.PublicIdentifier()
		out.ObjectType = f.ObjectType()
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
