package models

// Base carries the integer primary key shared by every generically referenceable entity.
type Base struct {
	ID int64 `json:"id" gorm:"primaryKey;autoIncrement"`
}

// PrimaryKey returns the row id, zero while the entity is unsaved.
func (b *Base) PrimaryKey() int64 { return b.ID }

// DeletionMode is the default for entities that do not declare one.
func (Base) DeletionMode() DeletionMode { return HardDeletion }

// DeletionMode selects how an entity is removed.
type DeletionMode string

const (
	// DeletionDefault defers to the entity's declared mode.
	DeletionDefault DeletionMode = ""
	HardDeletion    DeletionMode = "hard-deletion"
	SoftDeletion    DeletionMode = "soft-deletion"
)

// Referenceable is any entity a GenericModelReference may point at.
type Referenceable interface {
	TableName() string
	PrimaryKey() int64
}

// Deletable entities declare their default deletion mode.
type Deletable interface {
	DeletionMode() DeletionMode
}

// Owned entities belong to a user (the activity-streams actor).
type Owned interface {
	OwnerID() int64
}

// Federated entities carry a public id and an activity-streams object type.
type Federated interface {
	PublicIdentifier() string
	SetPublicIdentifier(id string)
	ObjectType() string
}

// Referenceables lists a prototype of every entity type that can be referenced generically.
func Referenceables() []Referenceable {
	return []Referenceable{
		&User{},
		&LocalUser{},
		&RemoteUser{},
		&MediaEntry{},
		&TextComment{},
		&Comment{},
		&Collection{},
		&CollectionItem{},
		&Activity{},
		&Generator{},
		&Graveyard{},
		&Report{},
		&Notification{},
		&CommentSubscription{},
		&Privilege{},
		&Tag{},
		&MediaTag{},
		&FileKeyname{},
		&MediaAttachmentFile{},
		&ProcessingMetaData{},
	}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
