package migrate

import (
	"context"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Action is something that needs to be done.
type Action interface {
	Run(ctx context.Context, log *zap.Logger, tx *gorm.DB) error
}

// SQL statements that are executed on the database.
type SQL []string

// Run runs the SQL statements.
func (sql SQL) Run(ctx context.Context, log *zap.Logger, tx *gorm.DB) error {
	for _, query := range sql {
		if err := tx.WithContext(ctx).Exec(query).Error; err != nil {
			return errs.Wrap(err)
		}
	}
	return nil
}

// Func is an arbitrary operation.
type Func func(ctx context.Context, log *zap.Logger, tx *gorm.DB) error

// Run runs the migration.
func (fn Func) Run(ctx context.Context, log *zap.Logger, tx *gorm.DB) error {
	return fn(ctx, log, tx)
}
