package models

import (
	"time"

	"gorm.io/gorm"
)

// Activity records that an actor performed a verb on an object, optionally
// toward a target.
type Activity struct {
	Base
	PublicID  *string   `json:"public_id" gorm:"column:public_id;uniqueIndex"`
	Actor     int64     `json:"actor"     gorm:"column:actor;not null;index"`
	Published time.Time `json:"published" gorm:"column:published;not null"`
	Updated   time.Time `json:"updated"   gorm:"column:updated;not null"`
	Verb      string    `json:"verb"      gorm:"column:verb;not null"`
	Content   string    `json:"content"   gorm:"column:content;type:text"`
	Title     string    `json:"title"     gorm:"column:title"`
	Generator *int64    `json:"generator" gorm:"column:generator"`
	ObjectID  int64     `json:"object_id" gorm:"column:object_id;not null"`
	TargetID  *int64    `json:"target_id" gorm:"column:target_id"`
}

func (Activity) TableName() string { return "core__activities" }
func (Activity) DeletionMode() DeletionMode { return SoftDeletion }
func (Activity) ObjectType() string { return "activity" }
func (a *Activity) OwnerID() int64 { return a.Actor }
func (a *Activity) PublicIdentifier() string { return stringValue(a.PublicID) }
func (a *Activity) SetPublicIdentifier(id string) {
	a.PublicID = stringPtr(id)
}

// BeforeSave refreshes Updated on every save so feeds sort by last touch.
func (a *Activity) BeforeSave(tx *gorm.DB) error {
	now := time.Now()
	if a.Published.IsZero() {
		a.Published = now
	}
	a.Updated = now
	return nil
}

// Generator is the application or service that produced an activity.
type Generator struct {
	Base
	Name       string    `json:"name"        gorm:"column:name;not null"`
	Published  time.Time `json:"published"   gorm:"column:published;autoCreateTime"`
	Updated    time.Time `json:"updated"     gorm:"column:updated;autoUpdateTime"`
	ObjectType string    `json:"object_type" gorm:"column:object_type"`
}

func (Generator) TableName() string { return "core__generators" }
