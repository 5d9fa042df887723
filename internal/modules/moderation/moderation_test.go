package moderation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/database/dbtest"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/deletion"
	"github.com/goblin-space/core/internal/modules/entity"
	"github.com/goblin-space/core/internal/modules/moderation"
	"github.com/goblin-space/core/internal/modules/reference"
)

type fixture struct {
	sess    *database.Session
	store   *entity.Store
	service *moderation.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	store := entity.NewStore(reference.NewResolver(nil))
	deletion.NewEngine(store)
	sess := database.Begin(context.Background(), db)
	t.Cleanup(func() { _ = sess.Close() })
	return &fixture{
		sess:    sess,
		store:   store,
		service: moderation.NewService(store, moderation.WithLogger(zaptest.NewLogger(t))),
	}
}

func (f *fixture) user(t *testing.T) *models.User {
	t.Helper()
	u := &models.User{Type: models.UserTypeRemote}
	require.NoError(t, f.store.Save(f.sess, u, false))
	return u
}

func (f *fixture) media(t *testing.T, owner *models.User) *models.MediaEntry {
	t.Helper()
	m := &models.MediaEntry{Actor: owner.ID, Title: "Spam", MediaType: models.MediaTypeImage, State: models.MediaProcessed}
	require.NoError(t, f.store.Save(f.sess, m, false))
	return m
}

func TestFileReportsOwner(t *testing.T) {
	f := setup(t)
	reporter, spammer := f.user(t), f.user(t)
	m := f.media(t, spammer)

	r, err := f.service.File(f.sess, reporter, m, "buy pills")
	require.NoError(t, err)
	assert.Equal(t, spammer.ID, r.ReportedUserID)

	obj, err := f.service.Object(f.sess.DB(), r)
	require.NoError(t, err)
	assert.Equal(t, m.ID, obj.PrimaryKey())

	byUser, err := f.service.File(f.sess, reporter, spammer, "spam account")
	require.NoError(t, err)
	assert.Equal(t, spammer.ID, byUser.ReportedUserID)

	_, err = f.service.File(f.sess, reporter, &models.Tag{Base: models.Base{ID: 1}}, "bad tag")
	assert.ErrorIs(t, err, moderation.ErrNotReportable)
	_, err = f.service.File(f.sess, reporter, m, "   ")
	assert.ErrorIs(t, err, moderation.ErrEmptyReport)
}

func TestResolveDeletesContentAndKeepsReport(t *testing.T) {
	f := setup(t)
	reporter, spammer, mod := f.user(t), f.user(t), f.user(t)
	m := f.media(t, spammer)
	r, err := f.service.File(f.sess, reporter, m, "buy pills")
	require.NoError(t, err)

	until := time.Now().Add(24 * time.Hour)
	require.NoError(t, f.service.Resolve(f.sess, r, mod, &moderation.ResolveDTO{
		Result:        "removed",
		DeleteContent: true,
		Ban:           true,
		BanReason:     "spam",
		BanUntil:      &until,
	}))
	assert.ErrorIs(t, f.service.Resolve(f.sess, r, mod, &moderation.ResolveDTO{}), moderation.ErrAlreadyResolved)

	var stored models.Report
	require.NoError(t, f.sess.DB().First(&stored, r.ID).Error)
	assert.Nil(t, stored.ObjectID, "the report outlives its object")
	assert.True(t, stored.IsArchived())
	require.NotNil(t, stored.ResolverID)
	assert.Equal(t, mod.ID, *stored.ResolverID)

	open, err := f.service.Reports(f.sess.DB(), false)
	require.NoError(t, err)
	assert.Empty(t, open)
	archived, err := f.service.Reports(f.sess.DB(), true)
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	banned, err := f.service.IsBanned(f.sess, spammer.ID)
	require.NoError(t, err)
	assert.True(t, banned)
}

func TestExpiredBanIsLifted(t *testing.T) {
	f := setup(t)
	u := f.user(t)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.service.Ban(f.sess, u.ID, "cool off", &past))

	banned, err := f.service.IsBanned(f.sess, u.ID)
	require.NoError(t, err)
	assert.False(t, banned)

	var n int64
	require.NoError(t, f.sess.DB().Model(&models.UserBan{}).Count(&n).Error)
	assert.Zero(t, n)

	require.NoError(t, f.service.Ban(f.sess, u.ID, "for good", nil))
	require.NoError(t, f.service.Ban(f.sess, u.ID, "still for good", nil))
	banned, err = f.service.IsBanned(f.sess, u.ID)
	require.NoError(t, err)
	assert.True(t, banned)

	require.NoError(t, f.service.Unban(f.sess, u.ID))
	banned, err = f.service.IsBanned(f.sess, u.ID)
	require.NoError(t, err)
	assert.False(t, banned)
}
