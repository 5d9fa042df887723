package migrations

import (
	"github.com/goblin-space/core/internal/pkg/migrate"
)

// The sequential engine ended at step 44 with the graveyard and activity
// cleanup in place, which is the schema 009_graveyard arrives at. Later
// revisions never had a legacy number and always run after adoption.
func coreRevisions() []*migrate.Revision {
	return []*migrate.Revision{
		{
			ID:          "001_core_tables",
			Description: "create users, media entries and their files",
			Action: createTables(
				&userV0{},
				&localUserV0{},
				&remoteUserV0{},
				&fileKeynameV0{},
				&mediaEntryV0{},
				&mediaFileV0{},
				&attachmentFileV0{},
				&tagV0{},
				&mediaTagV0{},
				&processingMetaDataV0{},
			),
		},
		{
			ID:          "002_privileges",
			Parent:      "001_core_tables",
			Description: "create privileges and user bans",
			Action:      createTables(&privilegeV0{}, &privilegeUserV0{}, &userBanV0{}),
		},
		{
			ID:          "003_generic_model_reference",
			Parent:      "002_privileges",
			Description: "create the generic model reference table",
			Action:      createTables(&gmrV0{}),
		},
		{
			ID:          "004_comments",
			Parent:      "003_generic_model_reference",
			Description: "create comments, comment links and subscriptions",
			Action:      createTables(&textCommentV0{}, &commentLinkV0{}, &commentSubscriptionV0{}),
		},
		{
			ID:          "005_collections",
			Parent:      "004_comments",
			Description: "create collections",
			Action:      createTables(&collectionV0{}, &collectionItemV0{}),
		},
		{
			ID:          "006_notifications",
			Parent:      "005_collections",
			Description: "create notifications",
			Action:      createTables(&notificationV0{}),
		},
		{
			ID:          "007_reports",
			Parent:      "006_notifications",
			Description: "create reports",
			Action:      createTables(&reportV0{}),
		},
		{
			ID:          "008_activities",
			Parent:      "007_reports",
			Description: "create generators and activities",
			Action:      createTables(&generatorV0{}, &activityV0{}),
		},
		{
			ID:          "009_graveyard",
			Parent:      "008_activities",
			Legacy:      44,
			Description: "create the graveyard",
			Action:      createTables(&graveyardV0{}),
		},
		{
			ID:          "010_transcoding_progress",
			Parent:      "009_graveyard",
			Description: "track transcoding progress on media entries",
			Action:      addColumns(&mediaEntryV1{}, "TranscodingProgress", "MainTranscodingProgress"),
		},
		{
			ID:          "011_remove_graveyard_from_collections",
			Parent:      "010_transcoding_progress",
			Description: "drop collection items that point at tombstones",
			Action:      migrate.Func(removeGraveyardFromCollections),
		},
		{
			ID:          "012_remove_graveyard_notifications",
			Parent:      "011_remove_graveyard_from_collections",
			Description: "drop notifications about tombstones and detach reports",
			Action:      migrate.Func(removeGraveyardNotifications),
		},
		{
			ID:          "013_remove_tombstone_comment_wrappers",
			Parent:      "012_remove_graveyard_notifications",
			Description: "drop comment links whose comment is a tombstone",
			Action:      migrate.Func(removeTombstoneCommentWrappers),
		},
		{
			ID:          "014_activity_cleanup",
			Parent:      "013_remove_tombstone_comment_wrappers",
			Description: "drop activities whose object no longer exists",
			Action:      migrate.Func(cleanupBrokenActivities),
		},
	}
}
