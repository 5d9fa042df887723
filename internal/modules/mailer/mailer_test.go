package mailer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goblin-space/core/internal/modules/mailer"
	"github.com/goblin-space/core/internal/modules/notification"
	"github.com/goblin-space/core/internal/pkg/mail"
	"github.com/goblin-space/core/internal/pkg/taskqueue"
)

type fakeSender struct {
	sent   []mail.Message
	failTo string
}

func (f *fakeSender) Send(msg mail.Message) error {
	if len(msg.To) > 0 && msg.To[0] == f.failTo {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newQueue(t *testing.T) *taskqueue.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return taskqueue.NewService(rdb)
}

func email(to string) notification.CommentEmail {
	return notification.CommentEmail{
		UserID:     1,
		To:         to,
		Username:   "alice",
		Commenter:  "bob",
		MediaTitle: "Sunset",
		Content:    "nice one",
	}
}

func TestQueuedEmailsAreSentByWorker(t *testing.T) {
	ctx := context.Background()
	queue := newQueue(t)
	sender := &fakeSender{}
	d := mailer.NewQueued(queue)

	require.NoError(t, d.DispatchCommentEmail(ctx, email("alice@goblin.test")))
	require.NoError(t, d.DispatchCommentEmail(ctx, email("carol@goblin.test")))
	pending, err := queue.Pending(ctx, mailer.TaskCommentEmail)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)

	w := mailer.NewWorker(queue, sender, mailer.WithLogger(zaptest.NewLogger(t)), mailer.WithSiteName("Goblin"))
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, []string{"alice@goblin.test"}, sender.sent[0].To)
	assert.Equal(t, "Goblin - bob commented on your post", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].HTML, "nice one")

	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkerMarksFailedDeliveries(t *testing.T) {
	ctx := context.Background()
	queue := newQueue(t)
	sender := &fakeSender{failTo: "broken@goblin.test"}

	failing, err := queue.Enqueue(ctx, mailer.TaskCommentEmail, email("broken@goblin.test"), "")
	require.NoError(t, err)
	fine, err := queue.Enqueue(ctx, mailer.TaskCommentEmail, email("alice@goblin.test"), "")
	require.NoError(t, err)

	n, err := mailer.NewWorker(queue, sender).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := queue.GetByID(ctx, failing.ID)
	require.NoError(t, err)
	assert.Equal(t, taskqueue.TaskFailed, got.Status)
	assert.True(t, strings.Contains(got.Error, "mailbox unavailable"))

	got, err = queue.GetByID(ctx, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, taskqueue.TaskCompleted, got.Status)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := mailer.NewWorker(newQueue(t), &fakeSender{})
	assert.NoError(t, w.Run(ctx))
}

func TestDirectSendsImmediately(t *testing.T) {
	sender := &fakeSender{}
	d := mailer.NewDirect(sender, "")
	require.NoError(t, d.DispatchCommentEmail(context.Background(), email("alice@goblin.test")))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "GNU MediaGoblin - bob commented on your post", sender.sent[0].Subject)

	assert.Error(t, d.DispatchCommentEmail(context.Background(), email("")))
}
