package models

import "time"

// TextComment is a plain text comment written by a user.
type TextComment struct {
	Base
	PublicID *string   `json:"public_id" gorm:"column:public_id;uniqueIndex"`
	Actor    int64     `json:"actor"     gorm:"column:actor;not null;index"`
	Created  time.Time `json:"created"   gorm:"column:created;autoCreateTime;not null"`
	Updated  time.Time `json:"updated"   gorm:"column:updated;autoUpdateTime;not null"`
	Content  string    `json:"content"   gorm:"column:content;type:text;not null"`
}

func (TextComment) TableName() string { return "core__media_comments" }
func (TextComment) DeletionMode() DeletionMode { return SoftDeletion }
func (TextComment) ObjectType() string { return "comment" }
func (c *TextComment) OwnerID() int64 { return c.Actor }
func (c *TextComment) PublicIdentifier() string { return stringValue(c.PublicID) }
func (c *TextComment) SetPublicIdentifier(id string) {
	c.PublicID = stringPtr(id)
}

// Comment links a comment object to the object it was made on. Both sides
// are generic references so any referenceable can comment or be commented on.
type Comment struct {
	Base
	TargetID  int64     `json:"target_id"  gorm:"column:target_id;not null;index"`
	CommentID int64     `json:"comment_id" gorm:"column:comment_id;not null;index"`
	Added     time.Time `json:"added"      gorm:"column:added;autoCreateTime;not null"`
}

func (Comment) TableName() string { return "core__comment_links" }
