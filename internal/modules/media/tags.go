package media

import (
	"strings"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
)

// SetTags replaces the entry's tags. Tags no entry uses any more are removed.
func (s *Service) SetTags(sess *database.Session, m *models.MediaEntry, names []string) error {
	tx := sess.DB()

	var old []models.MediaTag
	if err := tx.Where("media_entry = ?", m.ID).Find(&old).Error; err != nil {
		return err
	}
	dropped := make([]int64, 0, len(old))
	for i := range old {
		dropped = append(dropped, old[i].Tag)
		if err := s.store.HardDelete(sess, &old[i], false); err != nil {
			return err
		}
	}

	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := slugify(name)
		if name == "" || seen[slug] {
			continue
		}
		seen[slug] = true

		var tag models.Tag
		if err := tx.Where(models.Tag{Slug: slug}).FirstOrCreate(&tag).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.MediaTag{Tag: tag.ID, MediaEntry: m.ID, Name: name}).Error; err != nil {
			return err
		}
	}
	return s.dropOrphanTags(sess, dropped)
}

// Tags returns the display names of the entry's tags.
func (s *Service) Tags(sess *database.Session, m *models.MediaEntry) ([]string, error) {
	var names []string
	err := sess.DB().Model(&models.MediaTag{}).Where("media_entry = ?", m.ID).Order("id").Pluck("name", &names).Error
	return names, err
}

func (s *Service) dropOrphanTags(sess *database.Session, tagIDs []int64) error {
	tx := sess.DB()
	for _, id := range tagIDs {
		var uses int64
		if err := tx.Model(&models.MediaTag{}).Where("tag = ?", id).Count(&uses).Error; err != nil {
			return err
		}
		if uses > 0 {
			continue
		}
		var tag models.Tag
		if err := tx.Where("id = ?", id).Limit(1).Find(&tag).Error; err != nil {
			return err
		}
		if tag.ID == 0 {
			continue
		}
		if err := s.store.HardDelete(sess, &tag, false); err != nil {
			return err
		}
	}
	return nil
}
