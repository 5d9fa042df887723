package models

import "time"

// Graveyard is the tombstone left behind by a soft-deleted entity.
type Graveyard struct {
	Base
	PublicID   *string   `json:"public_id"   gorm:"column:public_id;uniqueIndex"`
	Deleted    time.Time `json:"deleted"     gorm:"column:deleted;not null"`
	ObjectType string    `json:"object_type" gorm:"column:object_type;not null"`
	ActorID    *int64    `json:"actor_id"    gorm:"column:actor_id"`
}

func (Graveyard) TableName() string { return "core__graveyard" }
