package migrations

import (
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/pkg/migrate"
)

// Media type branches are named after the media type they serve, which is
// also the name the sequential engine tracked them under. Only video had
// steps there; its first one added orig_metadata.

func imageRevisions() []*migrate.Revision {
	return []*migrate.Revision{
		{
			ID:          "image_001_mediadata",
			Branch:      models.MediaTypeImage,
			DependsOn:   []string{"001_core_tables"},
			Description: "create image media data",
			Action:      createTables(&imageDataV0{}),
		},
	}
}

func videoRevisions() []*migrate.Revision {
	return []*migrate.Revision{
		{
			ID:          "video_001_mediadata",
			Branch:      models.MediaTypeVideo,
			DependsOn:   []string{"001_core_tables"},
			Description: "create video media data",
			Action:      createTables(&videoDataV0{}),
		},
		{
			ID:          "video_002_orig_metadata",
			Parent:      "video_001_mediadata",
			Branch:      models.MediaTypeVideo,
			Legacy:      1,
			Description: "keep the original container metadata",
			Action:      addColumns(&videoDataV1{}, "OrigMetadata"),
		},
	}
}
