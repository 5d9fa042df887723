package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goblin-space/core/internal/config"
	"github.com/goblin-space/core/internal/database/dbtest"
	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/modules/mailer"
	"github.com/goblin-space/core/internal/modules/media"
	"github.com/goblin-space/core/internal/modules/user"
	"github.com/goblin-space/core/internal/pkg/mail"
	"github.com/goblin-space/core/internal/pkg/storage"
)

type fakeSender struct{ sent []mail.Message }

func (f *fakeSender) Send(msg mail.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func newApp(t *testing.T, yml string, withRedis bool) *App {
	t.Helper()
	cfg, err := config.Parse([]byte(yml))
	require.NoError(t, err)
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	var rc *redis.Client
	if withRedis {
		mr := miniredis.RunT(t)
		rc = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rc.Close() })
	}
	return assemble(zaptest.NewLogger(t), cfg, dbtest.Open(t), rc, files)
}

func TestCommentEmailFlowsThroughQueue(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, "base_url: https://goblin.test\nmail:\n  enable: true\n  host: smtp.goblin.test\n", true)

	sess := a.Begin(ctx)
	alice, err := a.Users.Create(sess, &user.CreateUserDTO{Username: "alice", Email: "alice@goblin.test", Password: "secret1"})
	require.NoError(t, err)
	bob, err := a.Users.Create(sess, &user.CreateUserDTO{Username: "bob", Email: "bob@goblin.test", Password: "secret2"})
	require.NoError(t, err)
	m, err := a.Media.Create(sess, alice, &media.CreateMediaDTO{Title: "Sunset", MediaType: models.MediaTypeImage})
	require.NoError(t, err)
	_, _, err = a.Comments.Post(sess, bob, m, "lovely colours")
	require.NoError(t, err)

	pending, err := a.queue.Pending(ctx, mailer.TaskCommentEmail)
	require.NoError(t, err)
	assert.Zero(t, pending, "emails wait for the commit")
	require.NoError(t, sess.Commit())
	require.NoError(t, sess.Close())

	count, err := a.Notifications.Count(a.DB(), alice.ID, true)
	require.NoError(t, err)
	require.NotNil(t, count)
	assert.EqualValues(t, 1, *count)

	sender := &fakeSender{}
	n, err := mailer.NewWorker(a.queue, sender).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"alice@goblin.test"}, sender.sent[0].To)
	assert.Contains(t, sender.sent[0].HTML, "lovely colours")

	assert.NotNil(t, a.Worker())
	require.NoError(t, a.Scheduler().RunNow(ctx, JobPurgeTasks))
}

func TestCleanupJobRemovesBrokenActivities(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, "", false)
	assert.Nil(t, a.Worker())

	states := a.Scheduler().List()
	require.Len(t, states, 1)
	assert.Equal(t, JobCleanupActivities, states[0].Name)

	sess := a.Begin(ctx)
	alice, err := a.Users.Create(sess, &user.CreateUserDTO{Username: "alice", Email: "alice@goblin.test", Password: "secret1"})
	require.NoError(t, err)
	_, err = a.Media.Create(sess, alice, &media.CreateMediaDTO{Title: "Sunset", MediaType: models.MediaTypeImage})
	require.NoError(t, err)
	require.NoError(t, sess.Commit())
	require.NoError(t, sess.Close())

	// Drop the entry behind the store's back so its activity dangles.
	require.NoError(t, a.DB().Exec("DELETE FROM core__comment_subscriptions").Error)
	require.NoError(t, a.DB().Exec("DELETE FROM core__media_entries").Error)
	require.NoError(t, a.Scheduler().RunNow(ctx, JobCleanupActivities))

	var left int64
	require.NoError(t, a.DB().Model(&models.Activity{}).Count(&left).Error)
	assert.Zero(t, left)
}
