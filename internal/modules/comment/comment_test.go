package comment_test

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
	"github.com/goblin-space/core/internal/modules/comment"
	"github.com/goblin-space/core/internal/modules/deletion"
	"github.com/goblin-space/core/internal/modules/entity"
	"github.com/goblin-space/core/internal/modules/notification"
	"github.com/goblin-space/core/internal/modules/reference"
)

type countingDispatcher struct{ calls int }

func (d *countingDispatcher) DispatchCommentEmail(context.Context, notification.CommentEmail) error {
	d.calls++
	return nil
}

type fixture struct {
	sess          *database.Session
	store         *entity.Store
	notifications *notification.Service
	dispatcher    *countingDispatcher
	service       *comment.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	resolver := reference.NewResolver(nil)
	store := entity.NewStore(resolver, entity.WithBaseURL("https://goblin.test"))
	deletion.NewEngine(store)
	dispatcher := &countingDispatcher{}
	notifications := notification.NewService(resolver, notification.WithDispatcher(dispatcher))
	sess := database.Begin(context.Background(), db)
	t.Cleanup(func() { _ = sess.Close() })
	return &fixture{
		sess:          sess,
		store:         store,
		notifications: notifications,
		dispatcher:    dispatcher,
		service: comment.NewService(store,
			comment.WithLogger(zaptest.NewLogger(t)),
			comment.WithActivities(activity.NewService(store)),
			comment.WithNotifications(notifications),
		),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Type: models.UserTypeLocal}
	require.NoError(t, f.store.Save(f.sess, u, false))
	require.NoError(t, f.sess.DB().Create(&models.LocalUser{
		ID:                       u.ID,
		Username:                 name,
		Email:                    name + "@goblin.test",
		WantsNotifications:       true,
		WantsCommentNotification: true,
	}).Error)
	return u
}

func TestPostOnMediaNotifiesAndSubscribes(t *testing.T) {
	f := setup(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	m := &models.MediaEntry{Actor: alice.ID, Title: "Sunset", MediaType: models.MediaTypeImage, State: models.MediaProcessed}
	require.NoError(t, f.store.Save(f.sess, m, false))
	_, err := f.notifications.Subscribe(f.sess, alice, m)
	require.NoError(t, err)

	c, link, err := f.service.Post(f.sess, bob, m, "  lovely  ")
	require.NoError(t, err)
	assert.Equal(t, "lovely", c.Content)
	assert.NotEmpty(t, c.PublicIdentifier())

	sub, err := f.notifications.Subscription(f.sess.DB(), bob.ID, m.ID)
	require.NoError(t, err)
	require.NotNil(t, sub, "the author is subscribed")

	aliceCount, err := f.notifications.Count(f.sess.DB(), alice.ID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, *aliceCount)
	bobCount, err := f.notifications.Count(f.sess.DB(), bob.ID, true)
	require.NoError(t, err)
	assert.Zero(t, *bobCount)

	var post models.Activity
	require.NoError(t, f.sess.DB().Where("verb = ?", activity.VerbPost).First(&post).Error)
	assert.Equal(t, "bob posted a comment on an image", post.Content)

	require.NoError(t, f.sess.Commit())
	assert.Equal(t, 1, f.dispatcher.calls)

	threads, err := f.service.On(f.sess.DB(), m)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, link.ID, threads[0].Link.ID)
	assert.Equal(t, c.ID, threads[0].Comment.PrimaryKey())
}

func TestPostRejectsEmptyContent(t *testing.T) {
	f := setup(t)
	alice := f.user(t, "alice")
	_, _, err := f.service.Post(f.sess, alice, alice, " \n ")
	assert.ErrorIs(t, err, comment.ErrEmptyComment)
}

func TestDeletedCommentLeavesThread(t *testing.T) {
	f := setup(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	m := &models.MediaEntry{Actor: alice.ID, Title: "Sunset", MediaType: models.MediaTypeImage, State: models.MediaProcessed}
	require.NoError(t, f.store.Save(f.sess, m, false))
	_, err := f.notifications.Subscribe(f.sess, alice, m)
	require.NoError(t, err)

	first, _, err := f.service.Post(f.sess, bob, m, "first")
	require.NoError(t, err)
	second, _, err := f.service.Post(f.sess, bob, m, "second")
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(f.sess, first, false))

	threads, err := f.service.On(f.sess.DB(), m)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, second.ID, threads[0].Comment.PrimaryKey())

	count, err := f.notifications.Count(f.sess.DB(), alice.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, *count, "the notification about the deleted comment is gone")
}

func TestCommentOnNonMediaSkipsNotifications(t *testing.T) {
	f := setup(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	c := &models.Collection{Actor: alice.ID, Title: "Faves", Type: models.CollectionUserDefined}
	require.NoError(t, f.store.Save(f.sess, c, false))

	_, _, err := f.service.Post(f.sess, bob, c, "nice picks")
	require.NoError(t, err)

	var n int64
	require.NoError(t, f.sess.DB().Model(&models.Notification{}).Count(&n).Error)
	assert.Zero(t, n)
	threads, err := f.service.On(f.sess.DB(), c)
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}
