package models

import "time"

// User discriminator values stored in core__users.type.
const (
	UserTypeLocal  = "user_local"
	UserTypeRemote = "user_remote"
)

// User is the shared base row of local and remote accounts.
type User struct {
	Base
	URL     string    `json:"url"     gorm:"column:url"`
	Bio     string    `json:"bio"     gorm:"column:bio;type:text"`
	Name    string    `json:"name"    gorm:"column:name"`
	Type    string    `json:"type"    gorm:"column:type;size:50"`
	Created time.Time `json:"created" gorm:"column:created;autoCreateTime;not null"`
	Updated time.Time `json:"updated" gorm:"column:updated;autoUpdateTime;not null"`
}

func (User) TableName() string { return "core__users" }
func (User) DeletionMode() DeletionMode { return SoftDeletion }
func (User) ObjectType() string { return "person" }
func (u *User) IsLocal() bool { return u.Type == UserTypeLocal }
func (u *User) IsRemote() bool { return u.Type == UserTypeRemote }

// LocalUser holds the account data of users registered on this instance.
type LocalUser struct {
	ID                       int64  `json:"id"                         gorm:"primaryKey;autoIncrement:false"`
	Username                 string `json:"username"                   gorm:"column:username;uniqueIndex;not null"`
	Email                    string `json:"email"                      gorm:"column:email;not null"`
	PwHash                   string `json:"-"                          gorm:"column:pw_hash"`
	WantsCommentNotification bool   `json:"wants_comment_notification" gorm:"column:wants_comment_notification"`
	WantsNotifications       bool   `json:"wants_notifications"        gorm:"column:wants_notifications"`
	LicensePreference        string `json:"license_preference"         gorm:"column:license_preference"`
	Uploaded                 int    `json:"uploaded"                   gorm:"column:uploaded"`
	UploadLimit              *int   `json:"upload_limit"               gorm:"column:upload_limit"`
}

func (LocalUser) TableName() string { return "core__local_users" }
func (l *LocalUser) PrimaryKey() int64 { return l.ID }

// RemoteUser is a federated account known by its webfinger address.
type RemoteUser struct {
	ID        int64  `json:"id"        gorm:"primaryKey;autoIncrement:false"`
	Webfinger string `json:"webfinger" gorm:"column:webfinger;uniqueIndex"`
}

func (RemoteUser) TableName() string { return "core__remote_users" }
func (r *RemoteUser) PrimaryKey() int64 { return r.ID }

// Privilege names seeded on a fresh database.
const (
	PrivilegeAdmin     = "admin"
	PrivilegeModerator = "moderator"
	PrivilegeUploader  = "uploader"
	PrivilegeReporter  = "reporter"
	PrivilegeCommenter = "commenter"
	PrivilegeActive    = "active"
)

// FoundationPrivileges lists every privilege in seeding order.
var FoundationPrivileges = []string{
	PrivilegeAdmin,
	PrivilegeModerator,
	PrivilegeUploader,
	PrivilegeReporter,
	PrivilegeCommenter,
	PrivilegeActive,
}

// DefaultUserPrivileges are granted to newly created accounts.
var DefaultUserPrivileges = []string{
	PrivilegeCommenter,
	PrivilegeUploader,
	PrivilegeReporter,
	PrivilegeActive,
}

type Privilege struct {
	Base
	PrivilegeName string `json:"privilege_name" gorm:"column:privilege_name;uniqueIndex;not null"`
}

func (Privilege) TableName() string { return "core__privileges" }

// PrivilegeUserAssociation links users to privileges.
type PrivilegeUserAssociation struct {
	UserID      int64 `json:"user"      gorm:"column:user;primaryKey;autoIncrement:false"`
	PrivilegeID int64 `json:"privilege" gorm:"column:privilege;primaryKey;autoIncrement:false"`
}

func (PrivilegeUserAssociation) TableName() string { return "core__privileges_users" }

// UserBan records a (possibly expiring) ban.
type UserBan struct {
	UserID         int64      `json:"user_id"         gorm:"column:user_id;primaryKey;autoIncrement:false"`
	ExpirationDate *time.Time `json:"expiration_date" gorm:"column:expiration_date"`
	Reason         string     `json:"reason"          gorm:"column:reason;type:text"`
}

func (UserBan) TableName() string { return "core__user_bans" }
