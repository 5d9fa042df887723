// Package mailer delivers comment notification emails. Notifications hand
// emails to a Dispatcher after commit; the queued dispatcher parks them in
// the task queue and a Worker sends them.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goblin-space/core/internal/modules/notification"
	"github.com/goblin-space/core/internal/pkg/mail"
	"github.com/goblin-space/core/internal/pkg/taskqueue"
)

// TaskCommentEmail is the task queue type of comment emails.
const TaskCommentEmail = "comment_email"

const defaultPollInterval = 5 * time.Second

// Sender delivers a rendered message.
type Sender interface {
	Send(msg mail.Message) error
}

// Queued is a notification.Dispatcher that enqueues emails for a Worker.
type Queued struct {
	queue *taskqueue.Service
}

func NewQueued(queue *taskqueue.Service) *Queued {
	return &Queued{queue: queue}
}

func (q *Queued) DispatchCommentEmail(ctx context.Context, email notification.CommentEmail) error {
	_, err := q.queue.Enqueue(ctx, TaskCommentEmail, email, "")
	return err
}

// Direct is a notification.Dispatcher that sends right away. It serves
// deployments without Redis.
type Direct struct {
	sender   Sender
	siteName string
}

func NewDirect(sender Sender, siteName string) *Direct {
	return &Direct{sender: sender, siteName: siteName}
}

func (d *Direct) DispatchCommentEmail(_ context.Context, email notification.CommentEmail) error {
	return deliver(d.sender, d.siteName, email)
}

func deliver(sender Sender, siteName string, email notification.CommentEmail) error {
	if email.To == "" {
		return errors.New("comment email without recipient")
	}
	msg, err := mail.CommentNotification(email.To, mail.CommentNotifyData{
		Username:   email.Username,
		Commenter:  email.Commenter,
		MediaTitle: email.MediaTitle,
		MediaURL:   email.MediaURL,
		Content:    email.Content,
		SiteName:   siteName,
	})
	if err != nil {
		return fmt.Errorf("render comment email: %w", err)
	}
	return sender.Send(msg)
}

// Worker drains queued comment emails.
type Worker struct {
	queue    *taskqueue.Service
	sender   Sender
	siteName string
	interval time.Duration
	log      *zap.Logger
}

type Option func(*Worker)

func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.log = l.Named("MailWorker")
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithSiteName(name string) Option {
	return func(w *Worker) { w.siteName = name }
}

func NewWorker(queue *taskqueue.Service, sender Sender, opts ...Option) *Worker {
	w := &Worker{queue: queue, sender: sender, interval: defaultPollInterval, log: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunOnce sends every pending email and returns how many were delivered.
// Delivery failures mark the task failed and do not stop the run.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		task, err := w.queue.Claim(ctx, TaskCommentEmail)
		if err != nil {
			return sent, fmt.Errorf("claim comment email: %w", err)
		}
		if task == nil {
			return sent, nil
		}

		var email notification.CommentEmail
		err = task.Decode(&email)
		if err == nil {
			err = deliver(w.sender, w.siteName, email)
		}
		if err != nil {
			w.log.Warn("comment email failed", zap.String("task", task.ID), zap.String("to", email.To), zap.Error(err))
			if ferr := w.queue.Fail(ctx, task.ID, err); ferr != nil {
				return sent, ferr
			}
			continue
		}
		if err := w.queue.Complete(ctx, task.ID); err != nil {
			return sent, err
		}
		sent++
	}
}

// Run polls the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("mail worker started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if n, err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error("mail worker run failed", zap.Error(err))
		} else if n > 0 {
			w.log.Info("comment emails sent", zap.Int("count", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
