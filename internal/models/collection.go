package models

import "time"

// Collection types.
const (
	CollectionUserDefined = "core-user-defined"
	CollectionInbox       = "core-inbox"
	CollectionOutbox      = "core-outbox"
	CollectionFollowers   = "core-followers"
	CollectionFollowing   = "core-following"
)

// Collection is an ordered, user owned list of generic references.
type Collection struct {
	Base
	PublicID    *string   `json:"public_id"   gorm:"column:public_id;uniqueIndex"`
	Title       string    `json:"title"       gorm:"column:title;not null"`
	Slug        string    `json:"slug"        gorm:"column:slug"`
	Created     time.Time `json:"created"     gorm:"column:created;autoCreateTime;not null"`
	Updated     time.Time `json:"updated"     gorm:"column:updated;autoUpdateTime;not null"`
	Description string    `json:"description" gorm:"column:description;type:text"`
	Actor       int64     `json:"actor"       gorm:"column:actor;not null;index"`
	NumItems    int       `json:"num_items"   gorm:"column:num_items"`
	Type        string    `json:"type"        gorm:"column:type;not null"`
}

func (Collection) TableName() string { return "core__collections" }
func (Collection) DeletionMode() DeletionMode { return SoftDeletion }
func (Collection) ObjectType() string { return "collection" }
func (c *Collection) OwnerID() int64 { return c.Actor }
func (c *Collection) PublicIdentifier() string { return stringValue(c.PublicID) }
func (c *Collection) SetPublicIdentifier(id string) {
	c.PublicID = stringPtr(id)
}

// CollectionItem places a referenced object in a collection.
type CollectionItem struct {
	Base
	CollectionID int64     `json:"collection" gorm:"column:collection;not null;index"`
	Note         string    `json:"note"       gorm:"column:note;type:text"`
	Added        time.Time `json:"added"      gorm:"column:added;autoCreateTime;not null"`
	Position     int       `json:"position"   gorm:"column:position"`
	ObjectID     int64     `json:"object_id"  gorm:"column:object_id;not null;index"`
}

func (CollectionItem) TableName() string { return "core__collection_items" }
