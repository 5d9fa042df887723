package models

import "time"

// Report is a moderation report. ObjectID is nulled when the reported object is
// deleted; the report itself is kept.
type Report struct {
	Base
	ReporterID     int64      `json:"reporter_id"      gorm:"column:reporter_id;not null"`
	ReportContent  string     `json:"report_content"   gorm:"column:report_content;type:text"`
	ReportedUserID int64      `json:"reported_user_id" gorm:"column:reported_user_id;not null"`
	Created        time.Time  `json:"created"          gorm:"column:created;autoCreateTime;not null"`
	ResolverID     *int64     `json:"resolver_id"      gorm:"column:resolver_id"`
	Resolved       *time.Time `json:"resolved"         gorm:"column:resolved"`
	Result         string     `json:"result"           gorm:"column:result;type:text"`
	ObjectID       *int64     `json:"object_id"        gorm:"column:object_id"`
}

func (Report) TableName() string { return "core__reports" }

// IsArchived reports whether a moderator has resolved the report.
func (r *Report) IsArchived() bool { return r.Resolved != nil }
