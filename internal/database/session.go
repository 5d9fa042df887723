package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrSessionClosed is returned when committing a session after Close.
var ErrSessionClosed = errors.New("database: session is closed")

// Session is an explicit unit of work threaded through every call that reads
// or writes. Operations flush into the current transaction; only Commit makes
// them durable. After Commit the session stays usable and the next operation
// opens a fresh transaction.
type Session struct {
	ctx    context.Context
	db     *gorm.DB
	tx     *gorm.DB
	closed bool
	hooks  []func(ctx context.Context)
}

// Begin starts a session. The underlying transaction opens on first use.
func Begin(ctx context.Context, db *gorm.DB) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Session{ctx: ctx, db: db}
}

// Context returns the context the session was started with.
func (s *Session) Context() context.Context { return s.ctx }

// Active reports whether the session can still be used.
func (s *Session) Active() bool { return s != nil && !s.closed }

// DB returns the open transaction, starting one if needed. It panics on a
// closed session: using one is a programming error.
func (s *Session) DB() *gorm.DB {
	if !s.Active() {
		panic(ErrSessionClosed)
	}
	if s.tx == nil {
		s.tx = s.db.WithContext(s.ctx).Begin()
	}
	return s.tx
}

// AfterCommit registers fn to run once the current transaction commits. It is
// dropped if the transaction rolls back.
func (s *Session) AfterCommit(fn func(ctx context.Context)) {
	s.hooks = append(s.hooks, fn)
}

// Commit commits pending work and runs the after-commit hooks.
func (s *Session) Commit() error {
	if !s.Active() {
		return ErrSessionClosed
	}
	hooks := s.hooks
	s.hooks = nil
	if s.tx == nil {
		s.runHooks(hooks)
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit().Error; err != nil {
		return err
	}
	s.runHooks(hooks)
	return nil
}

// Rollback discards pending work and after-commit hooks.
func (s *Session) Rollback() error {
	s.hooks = nil
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Rollback().Error
}

// Close rolls back anything uncommitted and detaches the session.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	err := s.Rollback()
	s.closed = true
	return err
}

func (s *Session) runHooks(hooks []func(ctx context.Context)) {
	for _, fn := range hooks {
		fn(s.ctx)
	}
}

// Transaction runs fn inside a session and commits when it returns nil.
func Transaction(ctx context.Context, db *gorm.DB, fn func(sess *Session) error) error {
	sess := Begin(ctx, db)
	defer func() {
		if r := recover(); r != nil {
			_ = sess.Close()
			panic(r)
		}
	}()

	if err := fn(sess); err != nil {
		_ = sess.Close()
		return err
	}
	if err := sess.Commit(); err != nil {
		_ = sess.Close()
		return err
	}
	return sess.Close()
}
