package media

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
)

var transitions = map[models.MediaState][]models.MediaState{
	models.MediaUnprocessed: {models.MediaProcessing},
	models.MediaProcessing:  {models.MediaProcessed, models.MediaFailed},
	models.MediaFailed:      {models.MediaProcessing},
}

// CanTransition reports whether an entry may move from one state to another.
func CanTransition(from, to models.MediaState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Service) transition(sess *database.Session, m *models.MediaEntry, to models.MediaState, fields map[string]interface{}) error {
	if !CanTransition(m.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.State, to)
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["state"] = to
	if err := sess.DB().Model(m).Updates(fields).Error; err != nil {
		return err
	}
	m.State = to
	s.log.Debug("media state changed", zap.Int64("id", m.ID), zap.String("state", string(to)))
	return nil
}

// MarkProcessing starts (or retries) processing, remembering the queued task.
func (s *Service) MarkProcessing(sess *database.Session, m *models.MediaEntry, taskID string) error {
	return s.transition(sess, m, models.MediaProcessing, map[string]interface{}{
		"queued_task_id":            taskID,
		"transcoding_progress":      0,
		"main_transcoding_progress": 0,
	})
}

func (s *Service) MarkProcessed(sess *database.Session, m *models.MediaEntry) error {
	return s.transition(sess, m, models.MediaProcessed, map[string]interface{}{
		"fail_error":                "",
		"fail_metadata":             nil,
		"transcoding_progress":      100,
		"main_transcoding_progress": 100,
	})
}

// MarkFailed records why processing failed. The entry may be retried.
func (s *Service) MarkFailed(sess *database.Session, m *models.MediaEntry, errorType string, metadata map[string]interface{}) error {
	fields := map[string]interface{}{"fail_error": errorType}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		fields["fail_metadata"] = datatypes.JSON(raw)
	}
	return s.transition(sess, m, models.MediaFailed, fields)
}

// SetProgress updates the transcoding progress of an entry being processed.
func (s *Service) SetProgress(sess *database.Session, m *models.MediaEntry, progress, mainProgress float64) error {
	if m.State != models.MediaProcessing {
		return fmt.Errorf("%w: progress on %s entry", ErrInvalidTransition, m.State)
	}
	return sess.DB().Model(m).Updates(map[string]interface{}{
		"transcoding_progress":      progress,
		"main_transcoding_progress": mainProgress,
	}).Error
}

// SetImageData stores the image specific columns of an entry.
func (s *Service) SetImageData(sess *database.Session, m *models.MediaEntry, width, height int, exif map[string]interface{}) error {
	row := &models.ImageData{MediaEntry: m.ID, Width: width, Height: height}
	if exif != nil {
		raw, err := json.Marshal(exif)
		if err != nil {
			return err
		}
		row.ExifAll = datatypes.JSON(raw)
	}
	return sess.DB().Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

// SetVideoData stores the video specific columns of an entry.
func (s *Service) SetVideoData(sess *database.Session, m *models.MediaEntry, width, height int, metadata map[string]interface{}) error {
	row := &models.VideoData{MediaEntry: m.ID, Width: width, Height: height}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		row.OrigMetadata = datatypes.JSON(raw)
	}
	return sess.DB().Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}
