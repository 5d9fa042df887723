package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/pkg/storage"
)

// Well known file keynames.
const (
	FileOriginal = "original"
	FileMedium   = "medium"
	FileThumb    = "thumb"
)

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// AddFile stores the content of r as the entry's keyname file (original,
// thumb, ...). Originals count against the owner's upload limit. Replacing a
// file removes the previous object once the session commits.
func (s *Service) AddFile(ctx context.Context, sess *database.Session, m *models.MediaEntry, keyname, filename string, r io.Reader, metadata map[string]interface{}) (*models.MediaFile, error) {
	if s.files == nil {
		return nil, errors.New("media: no file store configured")
	}
	tx := sess.DB()

	var kn models.FileKeyname
	if err := tx.Where(models.FileKeyname{Name: keyname}).FirstOrCreate(&kn).Error; err != nil {
		return nil, err
	}

	// Each upload gets a fresh key so a rejected replacement never touches
	// the file currently in use.
	key := storage.Key("media_entries", strconv.FormatInt(m.ID, 10), keyname+"-"+uuid.NewString()+path.Ext(filename))
	cr := &countingReader{r: r}
	if err := s.files.Put(ctx, key, cr); err != nil {
		return nil, fmt.Errorf("store %s: %w", key, err)
	}
	discard := func() {
		if err := s.files.Delete(ctx, key); err != nil {
			s.log.Warn("failed to remove stored file", zap.String("key", key), zap.Error(err))
		}
	}

	var previous models.MediaFile
	if err := tx.Where("media_entry = ? AND name_id = ?", m.ID, kn.ID).Limit(1).Find(&previous).Error; err != nil {
		discard()
		return nil, err
	}

	if keyname == FileOriginal {
		if err := s.chargeUpload(tx, m, cr.n); err != nil {
			discard()
			return nil, err
		}
	}

	f := &models.MediaFile{MediaEntry: m.ID, NameID: kn.ID, FilePath: key}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			discard()
			return nil, err
		}
		f.FileMetadata = datatypes.JSON(raw)
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "media_entry"}, {Name: "name_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"file_path", "file_metadata"}),
	}).Create(f).Error
	if err != nil {
		discard()
		return nil, err
	}

	if old := previous.FilePath; old != "" {
		sess.AfterCommit(func(ctx context.Context) {
			if err := s.files.Delete(ctx, old); err != nil {
				s.log.Warn("failed to remove replaced file", zap.String("key", old), zap.Error(err))
			}
		})
	}
	return f, nil
}

// chargeUpload adds size bytes to the entry and its owner's upload total.
func (s *Service) chargeUpload(tx *gorm.DB, m *models.MediaEntry, size int64) error {
	var owner models.LocalUser
	if err := tx.Where("id = ?", m.Actor).Limit(1).Find(&owner).Error; err != nil {
		return err
	}
	if owner.ID != 0 && owner.UploadLimit != nil && int64(owner.Uploaded)+size > int64(*owner.UploadLimit) {
		return fmt.Errorf("%w: %d of %d bytes used", ErrUploadLimit, owner.Uploaded, *owner.UploadLimit)
	}
	if owner.ID != 0 {
		err := tx.Model(&models.LocalUser{}).Where("id = ?", owner.ID).
			UpdateColumn("uploaded", gorm.Expr("uploaded + ?", size)).Error
		if err != nil {
			return err
		}
	}
	m.FileSize += size
	return tx.Model(m).UpdateColumn("file_size", m.FileSize).Error
}

// File returns the entry's keyname file, nil if there is none.
func (s *Service) File(tx *gorm.DB, m *models.MediaEntry, keyname string) (*models.MediaFile, error) {
	var f models.MediaFile
	err := tx.Joins("JOIN core__file_keynames ON core__file_keynames.id = core__mediafiles.name_id").
		Where("core__mediafiles.media_entry = ? AND core__file_keynames.name = ?", m.ID, keyname).
		Limit(1).Find(&f).Error
	if err != nil || f.FilePath == "" {
		return nil, err
	}
	return &f, nil
}

// Attach stores an extra file shown alongside the entry.
func (s *Service) Attach(ctx context.Context, sess *database.Session, m *models.MediaEntry, name string, r io.Reader) (*models.MediaAttachmentFile, error) {
	if s.files == nil {
		return nil, errors.New("media: no file store configured")
	}
	a := &models.MediaAttachmentFile{MediaEntry: m.ID, Name: name}
	if err := sess.DB().Create(a).Error; err != nil {
		return nil, err
	}
	key := storage.Key("media_entries", strconv.FormatInt(m.ID, 10), "attachments", strconv.FormatInt(a.ID, 10)+path.Ext(name))
	if err := s.files.Put(ctx, key, r); err != nil {
		return nil, fmt.Errorf("store %s: %w", key, err)
	}
	a.Filepath = key
	if err := sess.DB().Model(a).Update("filepath", key).Error; err != nil {
		return nil, err
	}
	return a, nil
}
