// Package moderation files reports against users and content and lets
// moderators act on them.
package moderation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/entity"
	"github.com/goblin-space/core/internal/modules/reference"
)

var (
	ErrNotReportable   = errors.New("moderation: object has no owner to report")
	ErrAlreadyResolved = errors.New("moderation: report already resolved")
	ErrEmptyReport     = errors.New("moderation: report content is empty")
)

// ResolveDTO describes what a moderator did about a report.
type ResolveDTO struct {
	Result        string     `json:"result"`
	DeleteContent bool       `json:"delete_content"`
	Ban           bool       `json:"ban"`
	BanReason     string     `json:"ban_reason"`
	BanUntil      *time.Time `json:"ban_until"`
}

type Service struct {
	store    *entity.Store
	resolver *reference.Resolver
	now      func() time.Time
	log      *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Named("ModerationService")
		}
	}
}

func NewService(store *entity.Store, opts ...Option) *Service {
	s := &Service{store: store, resolver: store.Resolver(), now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// File reports obj on behalf of reporter. Users are reported directly; any
// other object is reported together with its owner.
func (s *Service) File(sess *database.Session, reporter *models.User, obj models.Referenceable, content string) (*models.Report, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyReport
	}
	var reported int64
	switch v := obj.(type) {
	case *models.User:
		reported = v.ID
	case models.Owned:
		reported = v.OwnerID()
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotReportable, obj.TableName())
	}

	tx := sess.DB()
	ref, err := s.resolver.FindOrCreate(tx, obj)
	if err != nil {
		return nil, err
	}
	r := &models.Report{
		ReporterID:     reporter.ID,
		ReportedUserID: reported,
		ReportContent:  content,
		ObjectID:       &ref.ID,
	}
	if err := tx.Create(r).Error; err != nil {
		return nil, err
	}
	s.log.Info("report filed", zap.Int64("report", r.ID), zap.Int64("reported_user", reported))
	return r, nil
}

// Reports lists open or archived reports, newest first.
func (s *Service) Reports(tx *gorm.DB, archived bool) ([]models.Report, error) {
	q := tx.Order("created DESC").Order("id DESC")
	if archived {
		q = q.Where("resolved IS NOT NULL")
	} else {
		q = q.Where("resolved IS NULL")
	}
	var reports []models.Report
	if err := q.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// Object returns what the report is about, nil once it was deleted.
func (s *Service) Object(tx *gorm.DB, r *models.Report) (models.Referenceable, error) {
	if r.ObjectID == nil {
		return nil, nil
	}
	return s.resolver.ResolveID(tx, *r.ObjectID)
}

// Resolve archives r after applying the moderator's decision.
func (s *Service) Resolve(sess *database.Session, r *models.Report, moderator *models.User, dto *ResolveDTO) error {
	if r.IsArchived() {
		return ErrAlreadyResolved
	}
	tx := sess.DB()

	if dto.DeleteContent {
		obj, err := s.Object(tx, r)
		if err != nil {
			return err
		}
		if _, isUser := obj.(*models.User); obj != nil && !isUser {
			if err := s.store.Delete(sess, obj, false, models.DeletionDefault); err != nil {
				return err
			}
		}
	}
	if dto.Ban {
		if err := s.Ban(sess, r.ReportedUserID, dto.BanReason, dto.BanUntil); err != nil {
			return err
		}
	}

	now := s.now()
	err := tx.Model(r).Updates(map[string]interface{}{
		"resolver_id": moderator.ID,
		"resolved":    now,
		"result":      dto.Result,
	}).Error
	if err != nil {
		return err
	}
	r.ResolverID = &moderator.ID
	r.Resolved = &now
	r.Result = dto.Result
	return nil
}

// Ban bans userID until the given time, or for good when until is nil.
func (s *Service) Ban(sess *database.Session, userID int64, reason string, until *time.Time) error {
	return sess.DB().Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&models.UserBan{UserID: userID, Reason: reason, ExpirationDate: until}).Error
}

func (s *Service) Unban(sess *database.Session, userID int64) error {
	return sess.DB().Where("user_id = ?", userID).Delete(&models.UserBan{}).Error
}

// IsBanned reports whether userID is under a ban. Expired bans are lifted.
func (s *Service) IsBanned(sess *database.Session, userID int64) (bool, error) {
	tx := sess.DB()
	var ban models.UserBan
	if err := tx.Where("user_id = ?", userID).Limit(1).Find(&ban).Error; err != nil {
		return false, err
	}
	if ban.UserID == 0 {
		return false, nil
	}
	if ban.ExpirationDate != nil && !ban.ExpirationDate.After(s.now()) {
		return false, s.Unban(sess, userID)
	}
	return true, nil
}
