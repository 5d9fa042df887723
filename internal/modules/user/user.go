// Package user manages local accounts and their privileges.
package user

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/entity"
)

var (
	ErrUsernameTaken    = errors.New("username already taken")
	ErrEmailTaken       = errors.New("email already registered")
	ErrNotFound         = errors.New("user not found")
	ErrWrongPassword    = errors.New("wrong password")
	ErrUnknownPrivilege = errors.New("unknown privilege")
)

type CreateUserDTO struct {
	Username string `json:"username" validate:"required,min=3,max=64,excludesall=/@"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"`
}

var validate = validator.New()

type Service struct {
	store *entity.Store
	cost  int
	log   *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Named("UserService")
		}
	}
}

// WithHashCost overrides the bcrypt cost, mostly so tests run fast.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(store *entity.Store, opts ...Option) *Service {
	s := &Service{store: store, cost: bcrypt.DefaultCost, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a local account with the default privileges.
func (s *Service) Create(sess *database.Session, dto *CreateUserDTO) (*models.User, error) {
	dto.Username = strings.TrimSpace(dto.Username)
	dto.Email = strings.ToLower(strings.TrimSpace(dto.Email))
	if err := validate.Struct(dto); err != nil {
		return nil, err
	}
	tx := sess.DB()

	var n int64
	if err := tx.Model(&models.LocalUser{}).Where("username = ?", dto.Username).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrUsernameTaken
	}
	if err := tx.Model(&models.LocalUser{}).Where("email = ?", dto.Email).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Type: models.UserTypeLocal, Name: dto.Name}
	if err := s.store.Create(sess, u, false); err != nil {
		return nil, err
	}
	local := &models.LocalUser{
		ID:                       u.ID,
		Username:                 dto.Username,
		Email:                    dto.Email,
		PwHash:                   string(hash),
		WantsCommentNotification: true,
		WantsNotifications:       true,
	}
	if err := tx.Create(local).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	for _, name := range models.DefaultUserPrivileges {
		if err := s.Grant(sess, u, name); err != nil {
			return nil, err
		}
	}
	s.log.Info("user created", zap.String("username", local.Username), zap.Int64("id", u.ID))
	return u, nil
}

// ByUsername returns the user and its local account, or nils if unknown.
func (s *Service) ByUsername(tx *gorm.DB, username string) (*models.User, *models.LocalUser, error) {
	var local models.LocalUser
	if err := tx.Where("username = ?", username).First(&local).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	var u models.User
	if err := tx.First(&u, local.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return &u, &local, nil
}

func (s *Service) mustFind(tx *gorm.DB, username string) (*models.User, *models.LocalUser, error) {
	u, local, err := s.ByUsername(tx, username)
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	return u, local, nil
}

// CheckPassword returns the user when password matches.
func (s *Service) CheckPassword(tx *gorm.DB, username, password string) (*models.User, error) {
	u, local, err := s.mustFind(tx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(local.PwHash), []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}
	return u, nil
}

func (s *Service) ChangePassword(sess *database.Session, username, password string) error {
	if err := validate.Var(password, "required,min=6"); err != nil {
		return err
	}
	_, local, err := s.mustFind(sess.DB(), username)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return sess.DB().Model(local).Update("pw_hash", string(hash)).Error
}

// MakeAdmin grants the admin privilege to username.
func (s *Service) MakeAdmin(sess *database.Session, username string) error {
	u, _, err := s.mustFind(sess.DB(), username)
	if err != nil {
		return err
	}
	return s.Grant(sess, u, models.PrivilegeAdmin)
}

// Grant gives u the named privilege. Granting twice is harmless.
func (s *Service) Grant(sess *database.Session, u *models.User, name string) error {
	tx := sess.DB()
	var p models.Privilege
	if err := tx.Where("privilege_name = ?", name).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownPrivilege, name)
		}
		return err
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PrivilegeUserAssociation{UserID: u.ID, PrivilegeID: p.ID}).Error
}

func (s *Service) Revoke(sess *database.Session, u *models.User, name string) error {
	tx := sess.DB()
	var ids []int64
	if err := tx.Model(&models.Privilege{}).Where("privilege_name = ?", name).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return tx.Where(&models.PrivilegeUserAssociation{UserID: u.ID, PrivilegeID: ids[0]}).
		Delete(&models.PrivilegeUserAssociation{}).Error
}

// HasPrivilege reports whether userID holds any of names. Admins hold every
// privilege.
func (s *Service) HasPrivilege(tx *gorm.DB, userID int64, names ...string) (bool, error) {
	names = append(names, models.PrivilegeAdmin)
	var n int64
	err := tx.Model(&models.PrivilegeUserAssociation{}).
		Joins("JOIN core__privileges ON core__privileges.id = core__privileges_users.privilege").
		Where("core__privileges_users.user = ? AND core__privileges.privilege_name IN ?", userID, names).
		Count(&n).Error
	return n > 0, err
}

// Privileges lists the privilege names u holds.
func (s *Service) Privileges(tx *gorm.DB, userID int64) ([]string, error) {
	var names []string
	err := tx.Model(&models.Privilege{}).
		Joins("JOIN core__privileges_users ON core__privileges_users.privilege = core__privileges.id").
		Where("core__privileges_users.user = ?", userID).
		Order("core__privileges.privilege_name").
		Pluck("core__privileges.privilege_name", &names).Error
	return names, err
}

// Delete removes the account with its media, collections, comments and
// activities. The user's references are redirected to a tombstone.
func (s *Service) Delete(sess *database.Session, username string, commit bool) error {
	u, _, err := s.mustFind(sess.DB(), username)
	if err != nil {
		return err
	}
	if err := s.store.Delete(sess, u, commit, models.DeletionDefault); err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("username", username), zap.Int64("id", u.ID))
	return nil
}
