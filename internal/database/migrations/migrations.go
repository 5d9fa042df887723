// Package migrations holds the schema history of the database: the core
// chain, one branch per media type, and the foundation data seeded into a
// fresh database.
package migrations

import (
	"context"

	"github.com/goblin-space/core/internal/models"
	"github.com/goblin-space/core/internal/pkg/migrate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// New returns a migrator loaded with every known revision and foundation.
func New(db *gorm.DB, log *zap.Logger) *migrate.Migrator {
	return migrate.New(db,
		migrate.WithLogger(log),
		migrate.WithRevisions(Revisions()...),
		migrate.WithFoundations(Foundations()...),
	)
}

// Revisions returns all revisions of all branches.
func Revisions() []*migrate.Revision {
	var out []*migrate.Revision
	out = append(out, coreRevisions()...)
	out = append(out, imageRevisions()...)
	out = append(out, videoRevisions()...)
	return out
}

// Foundations returns the data seeded into a freshly created database.
func Foundations() []migrate.Foundation {
	return []migrate.Foundation{
		{Name: "privileges", Action: migrate.Func(seedPrivileges)},
	}
}

func seedPrivileges(ctx context.Context, log *zap.Logger, tx *gorm.DB) error {
	for _, name := range models.FoundationPrivileges {
		row := privilegeV0{PrivilegeName: name}
		if err := tx.Where(privilegeV0{PrivilegeName: name}).FirstOrCreate(&row).Error; err != nil {
			return err
		}
	}
	log.Debug("privileges seeded", zap.Int("count", len(models.FoundationPrivileges)))
	return nil
}

// createTables creates each table that does not exist yet. Tables are
// checked one by one so a database half-built by another tool still converges.
func createTables(tables ...interface{}) migrate.Action {
	return migrate.Func(func(ctx context.Context, log *zap.Logger, tx *gorm.DB) error {
		m := tx.Migrator()
		for _, table := range tables {
			if m.HasTable(table) {
				log.Debug("table exists", zap.String("table", tableName(tx, table)))
				continue
			}
			if err := m.CreateTable(table); err != nil {
				return err
			}
		}
		return nil
	})
}

// addColumns adds the named fields of model unless present.
func addColumns(model interface{}, fields ...string) migrate.Action {
	return migrate.Func(func(ctx context.Context, log *zap.Logger, tx *gorm.DB) error {
		m := tx.Migrator()
		for _, field := range fields {
			if m.HasColumn(model, field) {
				continue
			}
			if err := m.AddColumn(model, field); err != nil {
				return err
			}
		}
		return nil
	})
}

func tableName(tx *gorm.DB, model interface{}) string {
	stmt := &gorm.Statement{DB: tx}
	if err := stmt.Parse(model); err != nil {
		return ""
	}
	return stmt.Schema.Table
}
