package models

import (
	"time"

	"gorm.io/datatypes"
)

// MediaState tracks an entry through the processing pipeline.
type MediaState string

const (
	MediaUnprocessed MediaState = "unprocessed"
	MediaProcessing  MediaState = "processing"
	MediaProcessed   MediaState = "processed"
	MediaFailed      MediaState = "failed"
)

// Media types with their own schema branch.
const (
	MediaTypeImage = "mediagoblin.media_types.image"
	MediaTypeVideo = "mediagoblin.media_types.video"
)

// MediaEntry is a piece of uploaded media.
type MediaEntry struct {
	Base
	PublicID                *string        `json:"public_id"                 gorm:"column:public_id;uniqueIndex"`
	Actor                   int64          `json:"actor"                     gorm:"column:actor;not null;index"`
	Title                   string         `json:"title"                     gorm:"column:title;not null"`
	Slug                    string         `json:"slug"                      gorm:"column:slug"`
	Description             string         `json:"description"               gorm:"column:description;type:text"`
	MediaType               string         `json:"media_type"                gorm:"column:media_type;not null"`
	State                   MediaState     `json:"state"                     gorm:"column:state;not null"`
	License                 string         `json:"license"                   gorm:"column:license"`
	FileSize                int64          `json:"file_size"                 gorm:"column:file_size"`
	Created                 time.Time      `json:"created"                   gorm:"column:created;autoCreateTime;not null"`
	Updated                 time.Time      `json:"updated"                   gorm:"column:updated;autoUpdateTime;not null"`
	FailErrorType           string         `json:"fail_error"                gorm:"column:fail_error"`
	FailMetadata            datatypes.JSON `json:"fail_metadata"             gorm:"column:fail_metadata"`
	TranscodingProgress     float64        `json:"transcoding_progress"      gorm:"column:transcoding_progress"`
	MainTranscodingProgress float64        `json:"main_transcoding_progress" gorm:"column:main_transcoding_progress"`
	QueuedTaskID            string         `json:"queued_task_id"            gorm:"column:queued_task_id"`
}

func (MediaEntry) TableName() string { return "core__media_entries" }
func (MediaEntry) DeletionMode() DeletionMode { return SoftDeletion }
func (m *MediaEntry) OwnerID() int64 { return m.Actor }
func (m *MediaEntry) PublicIdentifier() string { return stringValue(m.PublicID) }
func (m *MediaEntry) SetPublicIdentifier(id string) {
	m.PublicID = stringPtr(id)
}

// ObjectType maps the media type onto its activity-streams object type.
func (m *MediaEntry) ObjectType() string {
	switch m.MediaType {
	case MediaTypeImage:
		return "image"
	case MediaTypeVideo:
		return "video"
	default:
		return "file"
	}
}

// FileKeyname names a derived file slot ("original", "thumb", "medium", ...).
type FileKeyname struct {
	Base
	Name string `json:"name" gorm:"column:name;uniqueIndex;not null"`
}

func (FileKeyname) TableName() string { return "core__file_keynames" }

// MediaFile maps a keyname to a stored file of an entry. Its key is composite,
// so it cannot be the target of a generic reference.
type MediaFile struct {
	MediaEntry   int64          `json:"media_entry"   gorm:"column:media_entry;primaryKey;autoIncrement:false"`
	NameID       int64          `json:"name_id"       gorm:"column:name_id;primaryKey;autoIncrement:false"`
	FilePath     string         `json:"file_path"     gorm:"column:file_path"`
	FileMetadata datatypes.JSON `json:"file_metadata" gorm:"column:file_metadata"`
}

func (MediaFile) TableName() string { return "core__mediafiles" }

// MediaAttachmentFile is an extra file uploaded alongside an entry.
type MediaAttachmentFile struct {
	Base
	MediaEntry int64     `json:"media_entry" gorm:"column:media_entry;not null"`
	Name       string    `json:"name"        gorm:"column:name;not null"`
	Filepath   string    `json:"filepath"    gorm:"column:filepath"`
	Created    time.Time `json:"created"     gorm:"column:created;autoCreateTime;not null"`
}

func (MediaAttachmentFile) TableName() string { return "core__attachment_files" }

type Tag struct {
	Base
	Slug string `json:"slug" gorm:"column:slug;uniqueIndex;not null"`
}

func (Tag) TableName() string { return "core__tags" }

// MediaTag attaches a tag to an entry, keeping the display name the user typed.
type MediaTag struct {
	Base
	Tag        int64  `json:"tag"         gorm:"column:tag;not null"`
	MediaEntry int64  `json:"media_entry" gorm:"column:media_entry;not null"`
	Name       string `json:"name"        gorm:"column:name"`
}

func (MediaTag) TableName() string { return "core__media_tags" }

// ProcessingMetaData stores the callback for a queued processing job.
type ProcessingMetaData struct {
	Base
	MediaEntryID int64  `json:"media_entry_id" gorm:"column:media_entry_id;not null"`
	CallbackURL  string `json:"callback_url"   gorm:"column:callback_url"`
}

func (ProcessingMetaData) TableName() string { return "core__processing_metadata" }

// ImageData holds image specific columns.
type ImageData struct {
	MediaEntry int64          `json:"media_entry" gorm:"column:media_entry;primaryKey;autoIncrement:false"`
	Width      int            `json:"width"       gorm:"column:width"`
	Height     int            `json:"height"      gorm:"column:height"`
	ExifAll    datatypes.JSON `json:"exif_all"    gorm:"column:exif_all"`
}

func (ImageData) TableName() string { return "image__mediadata" }

// VideoData holds video specific columns.
type VideoData struct {
	MediaEntry   int64          `json:"media_entry"   gorm:"column:media_entry;primaryKey;autoIncrement:false"`
	Width        int            `json:"width"         gorm:"column:width"`
	Height       int            `json:"height"        gorm:"column:height"`
	OrigMetadata datatypes.JSON `json:"orig_metadata" gorm:"column:orig_metadata"`
}

func (VideoData) TableName() string { return "video__mediadata" }
