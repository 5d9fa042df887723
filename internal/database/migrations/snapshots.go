package migrations

import (
	"time"

	"gorm.io/datatypes"
)

// Frozen table layouts. Revisions must never use the runtime models: those
// follow the newest schema while a revision has to create exactly what
// existed at its point in history.

type userV0 struct {
	ID      int64     `gorm:"primaryKey;autoIncrement"`
	URL     string    `gorm:"column:url"`
	Bio     string    `gorm:"column:bio;type:text"`
	Name    string    `gorm:"column:name"`
	Type    string    `gorm:"column:type;size:50"`
	Created time.Time `gorm:"column:created;not null"`
	Updated time.Time `gorm:"column:updated;not null"`
}

func (userV0) TableName() string { return "core__users" }

type localUserV0 struct {
	ID                       int64  `gorm:"primaryKey;autoIncrement:false"`
	Username                 string `gorm:"column:username;uniqueIndex;not null"`
	Email                    string `gorm:"column:email;not null"`
	PwHash                   string `gorm:"column:pw_hash"`
	WantsCommentNotification bool   `gorm:"column:wants_comment_notification"`
	WantsNotifications       bool   `gorm:"column:wants_notifications"`
	LicensePreference        string `gorm:"column:license_preference"`
	Uploaded                 int    `gorm:"column:uploaded"`
	UploadLimit              *int   `gorm:"column:upload_limit"`
}

func (localUserV0) TableName() string { return "core__local_users" }

type remoteUserV0 struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"`
	Webfinger string `gorm:"column:webfinger;uniqueIndex"`
}

func (remoteUserV0) TableName() string { return "core__remote_users" }

type fileKeynameV0 struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"column:name;uniqueIndex;not null"`
}

func (fileKeynameV0) TableName() string { return "core__file_keynames" }

type mediaEntryV0 struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	PublicID      *string        `gorm:"column:public_id;uniqueIndex"`
	Actor         int64          `gorm:"column:actor;not null;index"`
	Title         string         `gorm:"column:title;not null"`
	Slug          string         `gorm:"column:slug"`
	Description   string         `gorm:"column:description;type:text"`
	MediaType     string         `gorm:"column:media_type;not null"`
	State         string         `gorm:"column:state;not null"`
	License       string         `gorm:"column:license"`
	FileSize      int64          `gorm:"column:file_size"`
	Created       time.Time      `gorm:"column:created;not null"`
	Updated       time.Time      `gorm:"column:updated;not null"`
	FailErrorType string         `gorm:"column:fail_error"`
	FailMetadata  datatypes.JSON `gorm:"column:fail_metadata"`
	QueuedTaskID  string         `gorm:"column:queued_task_id"`

	ActorUser userV0 `gorm:"foreignKey:Actor"`
}

func (mediaEntryV0) TableName() string { return "core__media_entries" }

// mediaEntryV1 carries only the columns added by 010.
type mediaEntryV1 struct {
	ID                      int64   `gorm:"primaryKey;autoIncrement"`
	TranscodingProgress     float64 `gorm:"column:transcoding_progress"`
	MainTranscodingProgress float64 `gorm:"column:main_transcoding_progress"`
}

func (mediaEntryV1) TableName() string { return "core__media_entries" }

type mediaFileV0 struct {
	MediaEntry   int64          `gorm:"column:media_entry;primaryKey;autoIncrement:false"`
	NameID       int64          `gorm:"column:name_id;primaryKey;autoIncrement:false"`
	FilePath     string         `gorm:"column:file_path"`
	FileMetadata datatypes.JSON `gorm:"column:file_metadata"`

	Entry   mediaEntryV0  `gorm:"foreignKey:MediaEntry"`
	Keyname fileKeynameV0 `gorm:"foreignKey:NameID"`
}

func (mediaFileV0) TableName() string { return "core__mediafiles" }

type attachmentFileV0 struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	MediaEntry int64     `gorm:"column:media_entry;not null"`
	Name       string    `gorm:"column:name;not null"`
	Filepath   string    `gorm:"column:filepath"`
	Created    time.Time `gorm:"column:created;not null"`

	Entry mediaEntryV0 `gorm:"foreignKey:MediaEntry"`
}

func (attachmentFileV0) TableName() string { return "core__attachment_files" }

type tagV0 struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Slug string `gorm:"column:slug;uniqueIndex;not null"`
}

func (tagV0) TableName() string { return "core__tags" }

type mediaTagV0 struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Tag        int64  `gorm:"column:tag;not null"`
	MediaEntry int64  `gorm:"column:media_entry;not null"`
	Name       string `gorm:"column:name"`

	TagRow tagV0        `gorm:"foreignKey:Tag"`
	Entry  mediaEntryV0 `gorm:"foreignKey:MediaEntry"`
}

func (mediaTagV0) TableName() string { return "core__media_tags" }

type processingMetaDataV0 struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	MediaEntryID int64  `gorm:"column:media_entry_id;not null"`
	CallbackURL  string `gorm:"column:callback_url"`

	Entry mediaEntryV0 `gorm:"foreignKey:MediaEntryID"`
}

func (processingMetaDataV0) TableName() string { return "core__processing_metadata" }

type privilegeV0 struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	PrivilegeName string `gorm:"column:privilege_name;uniqueIndex;not null"`
}

func (privilegeV0) TableName() string { return "core__privileges" }

type privilegeUserV0 struct {
	UserID      int64 `gorm:"column:user;primaryKey;autoIncrement:false"`
	PrivilegeID int64 `gorm:"column:privilege;primaryKey;autoIncrement:false"`

	User      userV0      `gorm:"foreignKey:UserID"`
	Privilege privilegeV0 `gorm:"foreignKey:PrivilegeID"`
}

func (privilegeUserV0) TableName() string { return "core__privileges_users" }

type userBanV0 struct {
	UserID         int64      `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	ExpirationDate *time.Time `gorm:"column:expiration_date"`
	Reason         string     `gorm:"column:reason;type:text"`

	User userV0 `gorm:"foreignKey:UserID"`
}

func (userBanV0) TableName() string { return "core__user_bans" }

type gmrV0 struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ObjPK     int64  `gorm:"column:obj_pk;not null;uniqueIndex:core__generic_model_reference_model_type_obj_pk_key,priority:2"`
	ModelType string `gorm:"column:model_type;size:128;not null;uniqueIndex:core__generic_model_reference_model_type_obj_pk_key,priority:1"`
}

func (gmrV0) TableName() string { return "core__generic_model_reference" }

type textCommentV0 struct {
	ID       int64     `gorm:"primaryKey;autoIncrement"`
	PublicID *string   `gorm:"column:public_id;uniqueIndex"`
	Actor    int64     `gorm:"column:actor;not null;index"`
	Created  time.Time `gorm:"column:created;not null"`
	Updated  time.Time `gorm:"column:updated;not null"`
	Content  string    `gorm:"column:content;type:text;not null"`

	ActorUser userV0 `gorm:"foreignKey:Actor"`
}

func (textCommentV0) TableName() string { return "core__media_comments" }

type commentLinkV0 struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	TargetID  int64     `gorm:"column:target_id;not null;index"`
	CommentID int64     `gorm:"column:comment_id;not null;index"`
	Added     time.Time `gorm:"column:added;not null"`

	Target  gmrV0 `gorm:"foreignKey:TargetID"`
	Comment gmrV0 `gorm:"foreignKey:CommentID"`
}

func (commentLinkV0) TableName() string { return "core__comment_links" }

type commentSubscriptionV0 struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Created      time.Time `gorm:"column:created;not null"`
	MediaEntryID int64     `gorm:"column:media_entry_id;not null"`
	UserID       int64     `gorm:"column:user_id;not null"`
	Notify       bool      `gorm:"column:notify;not null"`
	SendEmail    bool      `gorm:"column:send_email;not null"`

	Entry mediaEntryV0 `gorm:"foreignKey:MediaEntryID"`
	User  userV0       `gorm:"foreignKey:UserID"`
}

func (commentSubscriptionV0) TableName() string { return "core__comment_subscriptions" }

type collectionV0 struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	PublicID    *string   `gorm:"column:public_id;uniqueIndex"`
	Title       string    `gorm:"column:title;not null"`
	Slug        string    `gorm:"column:slug"`
	Created     time.Time `gorm:"column:created;not null"`
	Updated     time.Time `gorm:"column:updated;not null"`
	Description string    `gorm:"column:description;type:text"`
	Actor       int64     `gorm:"column:actor;not null;index"`
	NumItems    int       `gorm:"column:num_items"`
	Type        string    `gorm:"column:type;not null"`

	ActorUser userV0 `gorm:"foreignKey:Actor"`
}

func (collectionV0) TableName() string { return "core__collections" }

type collectionItemV0 struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	CollectionID int64     `gorm:"column:collection;not null;index"`
	Note         string    `gorm:"column:note;type:text"`
	Added        time.Time `gorm:"column:added;not null"`
	Position     int       `gorm:"column:position"`
	ObjectID     int64     `gorm:"column:object_id;not null;index"`

	Collection collectionV0 `gorm:"foreignKey:CollectionID"`
	Object     gmrV0        `gorm:"foreignKey:ObjectID"`
}

func (collectionItemV0) TableName() string { return "core__collection_items" }

type notificationV0 struct {
	ID       int64     `gorm:"primaryKey;autoIncrement"`
	ObjectID int64     `gorm:"column:object_id;not null"`
	Created  time.Time `gorm:"column:created;not null"`
	UserID   int64     `gorm:"column:user_id;not null;index"`
	Seen     bool      `gorm:"column:seen;index"`

	Object gmrV0  `gorm:"foreignKey:ObjectID"`
	User   userV0 `gorm:"foreignKey:UserID"`
}

func (notificationV0) TableName() string { return "core__notifications" }

type reportV0 struct {
	ID             int64      `gorm:"primaryKey;autoIncrement"`
	ReporterID     int64      `gorm:"column:reporter_id;not null"`
	ReportContent  string     `gorm:"column:report_content;type:text"`
	ReportedUserID int64      `gorm:"column:reported_user_id;not null"`
	Created        time.Time  `gorm:"column:created;not null"`
	ResolverID     *int64     `gorm:"column:resolver_id"`
	Resolved       *time.Time `gorm:"column:resolved"`
	Result         string     `gorm:"column:result;type:text"`
	ObjectID       *int64     `gorm:"column:object_id"`

	Reporter     userV0 `gorm:"foreignKey:ReporterID"`
	ReportedUser userV0 `gorm:"foreignKey:ReportedUserID"`
	Resolver     userV0 `gorm:"foreignKey:ResolverID"`
	Object       gmrV0  `gorm:"foreignKey:ObjectID"`
}

func (reportV0) TableName() string { return "core__reports" }

type generatorV0 struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Name       string    `gorm:"column:name;not null"`
	Published  time.Time `gorm:"column:published"`
	Updated    time.Time `gorm:"column:updated"`
	ObjectType string    `gorm:"column:object_type"`
}

func (generatorV0) TableName() string { return "core__generators" }

type activityV0 struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	PublicID  *string   `gorm:"column:public_id;uniqueIndex"`
	Actor     int64     `gorm:"column:actor;not null;index"`
	Published time.Time `gorm:"column:published;not null"`
	Updated   time.Time `gorm:"column:updated;not null"`
	Verb      string    `gorm:"column:verb;not null"`
	Content   string    `gorm:"column:content;type:text"`
	Title     string    `gorm:"column:title"`
	Generator *int64    `gorm:"column:generator"`
	ObjectID  int64     `gorm:"column:object_id;not null"`
	TargetID  *int64    `gorm:"column:target_id"`

	ActorUser    userV0      `gorm:"foreignKey:Actor"`
	GeneratorRow generatorV0 `gorm:"foreignKey:Generator"`
	Object       gmrV0       `gorm:"foreignKey:ObjectID"`
	Target       gmrV0       `gorm:"foreignKey:TargetID"`
}

func (activityV0) TableName() string { return "core__activities" }

type graveyardV0 struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	PublicID   *string   `gorm:"column:public_id;uniqueIndex"`
	Deleted    time.Time `gorm:"column:deleted;not null"`
	ObjectType string    `gorm:"column:object_type;not null"`
	ActorID    *int64    `gorm:"column:actor_id"`

	Actor gmrV0 `gorm:"foreignKey:ActorID"`
}

func (graveyardV0) TableName() string { return "core__graveyard" }

type imageDataV0 struct {
	MediaEntry int64          `gorm:"column:media_entry;primaryKey;autoIncrement:false"`
	Width      int            `gorm:"column:width"`
	Height     int            `gorm:"column:height"`
	ExifAll    datatypes.JSON `gorm:"column:exif_all"`

	Entry mediaEntryV0 `gorm:"foreignKey:MediaEntry"`
}

func (imageDataV0) TableName() string { return "image__mediadata" }

type videoDataV0 struct {
	MediaEntry int64 `gorm:"column:media_entry;primaryKey;autoIncrement:false"`
	Width      int   `gorm:"column:width"`
	Height     int   `gorm:"column:height"`

	Entry mediaEntryV0 `gorm:"foreignKey:MediaEntry"`
}

func (videoDataV0) TableName() string { return "video__mediadata" }

// videoDataV1 carries only the column added by the second video revision.
type videoDataV1 struct {
	MediaEntry   int64          `gorm:"column:media_entry;primaryKey;autoIncrement:false"`
	OrigMetadata datatypes.JSON `gorm:"column:orig_metadata"`
}

func (videoDataV1) TableName() string { return "video__mediadata" }
