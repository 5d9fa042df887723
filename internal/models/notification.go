package models

import "time"

// Notification tells a user about an event, pointing at it through a generic reference.
type Notification struct {
	Base
	ObjectID int64     `json:"object_id" gorm:"column:object_id;not null"`
	Created  time.Time `json:"created"   gorm:"column:created;autoCreateTime;not null"`
	UserID   int64     `json:"user_id"   gorm:"column:user_id;not null;index"`
	Seen     bool      `json:"seen"      gorm:"column:seen;index"`
}

func (Notification) TableName() string { return "core__notifications" }

// CommentSubscription opts a user into notifications about comments on an entry.
type CommentSubscription struct {
	Base
	Created      time.Time `json:"created"        gorm:"column:created;autoCreateTime;not null"`
	MediaEntryID int64     `json:"media_entry_id" gorm:"column:media_entry_id;not null"`
	UserID       int64     `json:"user_id"        gorm:"column:user_id;not null"`
	Notify       bool      `json:"notify"         gorm:"column:notify;not null"`
	SendEmail    bool      `json:"send_email"     gorm:"column:send_email;not null"`
}

func (CommentSubscription) TableName() string { return "core__comment_subscriptions" }
