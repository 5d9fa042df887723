package collection_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/database/dbtest"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/activity"
	"github.com/goblin-space/core/internal/modules/collection"
	"github.com/goblin-space/core/internal/modules/deletion"
	"github.com/goblin-space/core/internal/modules/entity"
	"github.com/goblin-space/core/internal/modules/reference"
)

type fixture struct {
	sess    *database.Session
	store   *entity.Store
	service *collection.Service
	owner   *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	store := entity.NewStore(reference.NewResolver(nil), entity.WithBaseURL("https://goblin.test"))
	deletion.NewEngine(store)
	sess := database.Begin(context.Background(), db)
	t.Cleanup(func() { _ = sess.Close() })

	owner := &models.User{Type: models.UserTypeLocal}
	require.NoError(t, store.Save(sess, owner, false))
	require.NoError(t, sess.DB().Create(&models.LocalUser{ID: owner.ID, Username: "alice", Email: "alice@goblin.test"}).Error)

	return &fixture{
		sess:  sess,
		store: store,
		service: collection.NewService(store,
			collection.WithLogger(zaptest.NewLogger(t)),
			collection.WithActivities(activity.NewService(store)),
		),
		owner: owner,
	}
}

func (f *fixture) media(t *testing.T, title string) *models.MediaEntry {
	t.Helper()
	m := &models.MediaEntry{Actor: f.owner.ID, Title: title, MediaType: models.MediaTypeImage, State: models.MediaProcessed}
	require.NoError(t, f.store.Save(f.sess, m, false))
	return m
}

func (f *fixture) collection(t *testing.T) *models.Collection {
	t.Helper()
	c, err := f.service.Create(f.sess, f.owner, &collection.CreateCollectionDTO{Title: "My Faves"})
	require.NoError(t, err)
	return c
}

func numItems(t *testing.T, f *fixture, c *models.Collection) int {
	t.Helper()
	var stored models.Collection
	require.NoError(t, f.sess.DB().First(&stored, c.ID).Error)
	return stored.NumItems
}

func TestAddKeepsOrderAndCount(t *testing.T) {
	f := setup(t)
	c := f.collection(t)
	assert.Equal(t, "my-faves", c.Slug)
	assert.Equal(t, models.CollectionUserDefined, c.Type)

	first := f.media(t, "One")
	second := f.media(t, "Two")
	_, err := f.service.Add(f.sess, f.owner, c, first, "")
	require.NoError(t, err)
	item, err := f.service.Add(f.sess, f.owner, c, second, "the best")
	require.NoError(t, err)
	assert.Equal(t, 1, item.Position)

	_, err = f.service.Add(f.sess, f.owner, c, first, "")
	assert.ErrorIs(t, err, collection.ErrAlreadyCollected)

	assert.Equal(t, 2, numItems(t, f, c))
	assert.Equal(t, 2, c.NumItems)

	items, err := f.service.Items(f.sess.DB(), c)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].Object.PrimaryKey())
	assert.Equal(t, "the best", items[1].Note)

	var adds []models.Activity
	require.NoError(t, f.sess.DB().Where("verb = ?", activity.VerbAdd).Find(&adds).Error)
	require.Len(t, adds, 2)
	assert.Equal(t, "alice added an image to a collection", adds[0].Content)
}

func TestRemove(t *testing.T) {
	f := setup(t)
	c := f.collection(t)
	m := f.media(t, "One")
	_, err := f.service.Add(f.sess, f.owner, c, m, "")
	require.NoError(t, err)

	require.NoError(t, f.service.Remove(f.sess, c, m))
	assert.Zero(t, numItems(t, f, c))
	assert.ErrorIs(t, f.service.Remove(f.sess, c, m), collection.ErrNotCollected)
	assert.ErrorIs(t, f.service.Remove(f.sess, c, f.media(t, "Never added")), collection.ErrNotCollected)
}

func TestCollectionsNeverHoldTombstones(t *testing.T) {
	f := setup(t)
	c := f.collection(t)
	m := f.media(t, "One")
	keep := f.media(t, "Two")
	_, err := f.service.Add(f.sess, f.owner, c, m, "")
	require.NoError(t, err)
	_, err = f.service.Add(f.sess, f.owner, c, keep, "")
	require.NoError(t, err)

	require.NoError(t, f.store.Delete(f.sess, m, false, models.DeletionDefault))

	items, err := f.service.Items(f.sess.DB(), c)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, keep.ID, items[0].Object.PrimaryKey())
	assert.Equal(t, 1, numItems(t, f, c))

	var tomb models.Graveyard
	require.NoError(t, f.sess.DB().First(&tomb).Error)
	_, err = f.service.Add(f.sess, f.owner, c, &tomb, "")
	assert.ErrorIs(t, err, collection.ErrTombstone)
}

func TestCreateValidatesType(t *testing.T) {
	f := setup(t)
	_, err := f.service.Create(f.sess, f.owner, &collection.CreateCollectionDTO{Title: "x", Type: "bogus"})
	assert.Error(t, err)

	inbox, err := f.service.Create(f.sess, f.owner, &collection.CreateCollectionDTO{Title: "Inbox", Type: models.CollectionInbox})
	require.NoError(t, err)
	assert.Equal(t, models.CollectionInbox, inbox.Type)
}

func TestDeleteCollectionRemovesItems(t *testing.T) {
	f := setup(t)
	c := f.collection(t)
	m := f.media(t, "One")
	_, err := f.service.Add(f.sess, f.owner, c, m, "")
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(f.sess, c, true))

	var n int64
	require.NoError(t, f.sess.DB().Model(&models.CollectionItem{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, f.sess.DB().Model(&models.MediaEntry{}).Where("id = ?", m.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n, "collected media survives")
}
