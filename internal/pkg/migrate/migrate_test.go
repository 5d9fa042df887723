package migrate_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/goblin-space/core/internal/pkg/migrate"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func noop() migrate.Action {
	return migrate.Func(func(context.Context, *zap.Logger, *gorm.DB) error { return nil })
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		revisions []*migrate.Revision
	}{
		{
			name: "duplicate id",
			revisions: []*migrate.Revision{
				{ID: "a", Action: noop()},
				{ID: "a", Parent: "a", Action: noop()},
			},
		},
		{
			name: "unknown parent",
			revisions: []*migrate.Revision{
				{ID: "a", Action: noop()},
				{ID: "b", Parent: "x", Action: noop()},
			},
		},
		{
			name: "fork",
			revisions: []*migrate.Revision{
				{ID: "a", Action: noop()},
				{ID: "b", Parent: "a", Action: noop()},
				{ID: "c", Parent: "a", Action: noop()},
			},
		},
		{
			name: "two roots",
			revisions: []*migrate.Revision{
				{ID: "a", Action: noop()},
				{ID: "b", Action: noop()},
			},
		},
		{
			name: "parent on other branch",
			revisions: []*migrate.Revision{
				{ID: "a", Action: noop()},
				{ID: "b", Parent: "a", Branch: "image", Action: noop()},
			},
		},
		{
			name: "unknown dependency",
			revisions: []*migrate.Revision{
				{ID: "a", DependsOn: []string{"zzz"}, Action: noop()},
			},
		},
		{
			name: "dependency cycle",
			revisions: []*migrate.Revision{
				{ID: "a", DependsOn: []string{"img"}, Action: noop()},
				{ID: "img", Branch: "image", DependsOn: []string{"a"}, Action: noop()},
			},
		},
		{
			name: "legacy going backwards",
			revisions: []*migrate.Revision{
				{ID: "a", Legacy: 5, Action: noop()},
				{ID: "b", Parent: "a", Legacy: 3, Action: noop()},
			},
		},
		{
			name: "legacy after untracked revision",
			revisions: []*migrate.Revision{
				{ID: "a", Legacy: 1, Action: noop()},
				{ID: "b", Parent: "a", Action: noop()},
				{ID: "c", Parent: "b", Legacy: 2, Action: noop()},
			},
		},
		{
			name: "missing action",
			revisions: []*migrate.Revision{
				{ID: "a"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := migrate.New(nil, migrate.WithRevisions(tt.revisions...))
			err := m.Validate()
			require.Error(t, err)
			assert.True(t, migrate.ErrValidation.Has(err), err.Error())
		})
	}
}

func TestPlanOrdersDependencies(t *testing.T) {
	m := migrate.New(nil, migrate.WithRevisions(
		&migrate.Revision{ID: "img1", Branch: "image", DependsOn: []string{"core2"}, Action: noop()},
		&migrate.Revision{ID: "core1", Action: noop()},
		&migrate.Revision{ID: "core2", Parent: "core1", Action: noop()},
		&migrate.Revision{ID: "img2", Branch: "image", Parent: "img1", Action: noop()},
	))
	plan, err := m.Plan()
	require.NoError(t, err)

	var ids []string
	for _, rev := range plan {
		ids = append(ids, rev.ID)
	}
	assert.Equal(t, []string{"core1", "core2", "img1", "img2"}, ids)
}

func TestUp(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	var seeded int
	m := migrate.New(db,
		migrate.WithLogger(zaptest.NewLogger(t)),
		migrate.WithRevisions(
			&migrate.Revision{ID: "001", Legacy: 1, Action: migrate.SQL{
				`CREATE TABLE IF NOT EXISTS widgets (id INTEGER PRIMARY KEY, name TEXT)`,
			}},
			&migrate.Revision{ID: "002", Parent: "001", Legacy: 2, Action: migrate.SQL{
				`INSERT INTO widgets (name) VALUES ('first')`,
			}},
			&migrate.Revision{ID: "img1", Branch: "image", DependsOn: []string{"001"}, Action: migrate.SQL{
				`CREATE TABLE IF NOT EXISTS image_widgets (widget INTEGER PRIMARY KEY)`,
			}},
		),
		migrate.WithFoundations(migrate.Foundation{
			Name: "seed",
			Action: migrate.Func(func(_ context.Context, _ *zap.Logger, tx *gorm.DB) error {
				seeded++
				return tx.Exec(`INSERT INTO widgets (name) VALUES ('seed')`).Error
			}),
		}),
	)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	require.NoError(t, m.Up(ctx))

	heads, err := m.Heads(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{migrate.MainBranch: "002", "image": "img1"}, heads)
	assert.Equal(t, 1, seeded)

	var count int64
	require.NoError(t, db.Table("widgets").Count(&count).Error)
	assert.EqualValues(t, 2, count)

	t.Run("second run is a no-op", func(t *testing.T) {
		require.NoError(t, m.Up(ctx))
		assert.Equal(t, 1, seeded)
		require.NoError(t, db.Table("widgets").Count(&count).Error)
		assert.EqualValues(t, 2, count)

		pending, err := m.Pending(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("new revision applies alone", func(t *testing.T) {
		m.Add(&migrate.Revision{ID: "003", Parent: "002", Action: migrate.SQL{
			`ALTER TABLE widgets ADD COLUMN color TEXT`,
		}})
		require.NoError(t, m.Up(ctx))
		assert.True(t, db.Migrator().HasColumn("widgets", "color"))
		assert.Equal(t, 1, seeded)

		heads, err := m.Heads(ctx)
		require.NoError(t, err)
		assert.Equal(t, "003", heads[migrate.MainBranch])
	})
}

func TestUpFailureKeepsHead(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	boom := errors.New("boom")
	m := migrate.New(db, migrate.WithRevisions(
		&migrate.Revision{ID: "001", Action: migrate.SQL{
			`CREATE TABLE widgets (id INTEGER PRIMARY KEY)`,
		}},
		&migrate.Revision{ID: "002", Parent: "001", Action: migrate.Func(func(_ context.Context, _ *zap.Logger, tx *gorm.DB) error {
			if err := tx.Exec(`CREATE TABLE gadgets (id INTEGER PRIMARY KEY)`).Error; err != nil {
				return err
			}
			return boom
		})},
	))

	err := m.Up(ctx)
	require.Error(t, err)
	assert.True(t, migrate.Error.Has(err))
	assert.ErrorIs(t, err, boom)

	heads, err := m.Heads(ctx)
	require.NoError(t, err)
	assert.Equal(t, "001", heads[migrate.MainBranch])
	assert.True(t, db.Migrator().HasTable("widgets"))
	assert.False(t, db.Migrator().HasTable("gadgets"))
}

func TestUpAdoptsLegacyVersions(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	require.NoError(t, db.Exec(`CREATE TABLE core__migrations (name VARCHAR(100) PRIMARY KEY, version INTEGER NOT NULL)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO core__migrations (name, version) VALUES ('__main__', 2), ('image', 1)`).Error)

	var ran []string
	record := func(id string) migrate.Action {
		return migrate.Func(func(context.Context, *zap.Logger, *gorm.DB) error {
			ran = append(ran, id)
			return nil
		})
	}
	var seeded bool
	m := migrate.New(db,
		migrate.WithRevisions(
			&migrate.Revision{ID: "001", Legacy: 1, Action: record("001")},
			&migrate.Revision{ID: "002", Parent: "001", Legacy: 2, Action: record("002")},
			&migrate.Revision{ID: "003", Parent: "002", Legacy: 3, Action: record("003")},
			&migrate.Revision{ID: "004", Parent: "003", Action: record("004")},
			&migrate.Revision{ID: "img1", Branch: "image", Legacy: 1, DependsOn: []string{"001"}, Action: record("img1")},
			&migrate.Revision{ID: "img2", Branch: "image", Parent: "img1", Legacy: 2, Action: record("img2")},
			&migrate.Revision{ID: "vid1", Branch: "video", Legacy: 1, Action: record("vid1")},
		),
		migrate.WithFoundations(migrate.Foundation{Name: "seed", Action: migrate.Func(func(context.Context, *zap.Logger, *gorm.DB) error {
			seeded = true
			return nil
		})}),
	)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	var ids []string
	for _, rev := range pending {
		ids = append(ids, rev.ID)
	}
	assert.Equal(t, []string{"003", "004", "img2", "vid1"}, ids)

	require.NoError(t, m.Up(ctx))
	assert.Equal(t, []string{"003", "004", "img2", "vid1"}, ran)
	assert.False(t, seeded)
}

func TestUpAdoptsSparseLegacySteps(t *testing.T) {
	revisions := func(ran *[]string) []*migrate.Revision {
		record := func(id string) migrate.Action {
			return migrate.Func(func(context.Context, *zap.Logger, *gorm.DB) error {
				*ran = append(*ran, id)
				return nil
			})
		}
		return []*migrate.Revision{
			{ID: "tables", Action: record("tables")},
			{ID: "graveyard", Parent: "tables", Legacy: 44, Action: record("graveyard")},
			{ID: "progress", Parent: "graveyard", Action: record("progress")},
			{ID: "repair", Parent: "progress", Action: record("repair")},
		}
	}

	for _, tt := range []struct {
		version int
		want    []string
	}{
		{version: 44, want: []string{"progress", "repair"}},
		{version: 50, want: []string{"progress", "repair"}},
		{version: 43, want: []string{"tables", "graveyard", "progress", "repair"}},
	} {
		t.Run(fmt.Sprint(tt.version), func(t *testing.T) {
			ctx := context.Background()
			db := openDB(t)
			require.NoError(t, db.Exec(`CREATE TABLE core__migrations (name VARCHAR(100) PRIMARY KEY, version INTEGER NOT NULL)`).Error)
			require.NoError(t, db.Exec(`INSERT INTO core__migrations (name, version) VALUES ('__main__', ?)`, tt.version).Error)

			var ran []string
			m := migrate.New(db, migrate.WithRevisions(revisions(&ran)...))
			require.NoError(t, m.Up(ctx))
			assert.Equal(t, tt.want, ran)

			heads, err := m.Heads(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{migrate.MainBranch: "repair"}, heads)
		})
	}
}

func TestUpSeedsAfterInterruptedCreate(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	fail := true
	seeded := 0
	m := migrate.New(db,
		migrate.WithRevisions(
			&migrate.Revision{ID: "001", Action: migrate.SQL{
				`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)`,
			}},
			&migrate.Revision{ID: "002", Parent: "001", Action: migrate.Func(func(context.Context, *zap.Logger, *gorm.DB) error {
				if fail {
					return errors.New("interrupted")
				}
				return nil
			})},
		),
		migrate.WithFoundations(migrate.Foundation{
			Name: "seed",
			Action: migrate.Func(func(_ context.Context, _ *zap.Logger, tx *gorm.DB) error {
				seeded++
				return tx.Exec(`INSERT INTO widgets (name) VALUES ('seed')`).Error
			}),
		}),
	)

	require.Error(t, m.Up(ctx))
	assert.Zero(t, seeded)

	heads, err := m.Heads(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{migrate.MainBranch: "001"}, heads)

	fail = false
	require.NoError(t, m.Up(ctx))
	assert.Equal(t, 1, seeded)

	require.NoError(t, m.Up(ctx))
	assert.Equal(t, 1, seeded)

	var count int64
	require.NoError(t, db.Table("widgets").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	heads, err = m.Heads(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{migrate.MainBranch: "002"}, heads)
}

func TestUpRejectsUnknownHead(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	m := migrate.New(db, migrate.WithRevisions(&migrate.Revision{ID: "001", Action: noop()}))
	require.NoError(t, m.Up(ctx))
	require.NoError(t, db.Exec(`UPDATE gmg_revisions SET revision = 'gone'`).Error)

	err := m.Up(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown revision")
}
