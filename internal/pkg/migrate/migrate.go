package migrate

import (
	"context"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// Error is the class of migration run failures.
	Error = errs.Class("migrate")
	// ErrValidation is returned for a malformed revision set.
	ErrValidation = errs.Class("migrate validation")
)

const (
	// VersionTable holds the current head revision of every branch.
	VersionTable = "gmg_revisions"
	// LegacyTable is where the sequential engine kept one version per branch.
	LegacyTable = "core__migrations"

	// seedMarker is a row of VersionTable, not a branch. It exists while
	// the foundations of a freshly created database are still unseeded.
	seedMarker = "__foundations__"
)

type revisionRow struct {
	Branch   string    `gorm:"column:branch;primaryKey;size:191"`
	Revision string    `gorm:"column:revision;size:191;not null"`
	Updated  time.Time `gorm:"column:updated;not null"`
}

func (revisionRow) TableName() string { return VersionTable }

type legacyRow struct {
	Name    string `gorm:"column:name;primaryKey;size:191"`
	Version int    `gorm:"column:version;not null"`
}

func (legacyRow) TableName() string { return LegacyTable }

// Migrator applies revisions to a database and records per-branch heads.
// It expects exclusive access to the schema while running.
type Migrator struct {
	db          *gorm.DB
	log         *zap.Logger
	revisions   []*Revision
	foundations []Foundation
}

type Option func(*Migrator)

func WithLogger(l *zap.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.log = l.Named("migrate")
		}
	}
}

func WithRevisions(revisions ...*Revision) Option {
	return func(m *Migrator) { m.revisions = append(m.revisions, revisions...) }
}

// WithFoundations sets data that is seeded only when the database is created
// from scratch.
func WithFoundations(foundations ...Foundation) Option {
	return func(m *Migrator) { m.foundations = append(m.foundations, foundations...) }
}

func New(db *gorm.DB, opts ...Option) *Migrator {
	m := &Migrator{db: db, log: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add appends revisions to the set.
func (m *Migrator) Add(revisions ...*Revision) {
	m.revisions = append(m.revisions, revisions...)
}

// Validate checks that the revision set forms one linear chain per branch,
// that dependencies exist and are acyclic, and that legacy step numbers
// increase along each chain.
func (m *Migrator) Validate() error {
	_, err := buildGraph(m.revisions)
	return err
}

// Plan returns every revision in application order.
func (m *Migrator) Plan() ([]*Revision, error) {
	g, err := buildGraph(m.revisions)
	if err != nil {
		return nil, err
	}
	return g.order, nil
}

// Heads returns the recorded head revision of each branch. A database that
// was never migrated has no heads.
func (m *Migrator) Heads(ctx context.Context) (map[string]string, error) {
	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(VersionTable) {
		return map[string]string{}, nil
	}
	return readHeads(db)
}

// Pending lists the revisions Up would apply, in order. Legacy versions are
// taken into account when the database has not been adopted yet.
func (m *Migrator) Pending(ctx context.Context) ([]*Revision, error) {
	g, err := buildGraph(m.revisions)
	if err != nil {
		return nil, err
	}
	heads, err := m.Heads(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if len(heads) == 0 {
		legacy, err := m.legacyHeads(m.db.WithContext(ctx), g)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		heads = legacy
	}
	return pending(g, heads)
}

// Up brings every branch to its head. Each revision runs in its own
// transaction together with the head update, so a failure leaves the
// recorded head at the last revision that completed.
func (m *Migrator) Up(ctx context.Context) error {
	g, err := buildGraph(m.revisions)
	if err != nil {
		return err
	}
	db := m.db.WithContext(ctx)

	fresh := !db.Migrator().HasTable(VersionTable) && !db.Migrator().HasTable(LegacyTable)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := m.ensureVersionTable(tx); err != nil {
			return err
		}
		if fresh {
			return Error.Wrap(setHead(tx, seedMarker, "pending"))
		}
		return nil
	})
	if err != nil {
		return err
	}

	heads, err := readHeads(db)
	if err != nil {
		return Error.Wrap(err)
	}
	if len(heads) == 0 && !fresh {
		if heads, err = m.adoptLegacy(db, g); err != nil {
			return err
		}
	}

	todo, err := pending(g, heads)
	if err != nil {
		return err
	}
	for _, rev := range todo {
		rev := rev
		revLog := m.log.Named(rev.ID)
		if !fresh {
			revLog.Info(rev.Description, zap.String("branch", rev.branch()))
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := rev.Action.Run(ctx, revLog, tx); err != nil {
				return err
			}
			return setHead(tx, rev.branch(), rev.ID)
		})
		if err != nil {
			return Error.New("revision %s: %w", rev.ID, err)
		}
	}

	unseeded, err := hasSeedMarker(db)
	if err != nil {
		return Error.Wrap(err)
	}
	if unseeded {
		if err := m.seed(ctx, db); err != nil {
			return err
		}
		m.log.Info("database created", zap.Int("revisions", len(todo)), zap.Int("foundations", len(m.foundations)))
		return nil
	}
	if len(todo) == 0 {
		m.log.Debug("database is up to date")
	} else {
		m.log.Info("database migrated", zap.Int("revisions", len(todo)))
	}
	return nil
}

// seed runs every foundation and clears the marker in one transaction, so
// an interrupted seed is retried as a whole by the next Up.
func (m *Migrator) seed(ctx context.Context, db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, f := range m.foundations {
			if err := f.Action.Run(ctx, m.log.Named(f.Name), tx); err != nil {
				return Error.New("foundation %s: %w", f.Name, err)
			}
		}
		return Error.Wrap(tx.Where("branch = ?", seedMarker).Delete(&revisionRow{}).Error)
	})
}

func hasSeedMarker(db *gorm.DB) (bool, error) {
	var n int64
	err := db.Model(&revisionRow{}).Where("branch = ?", seedMarker).Count(&n).Error
	return n > 0, err
}

func (m *Migrator) ensureVersionTable(db *gorm.DB) error {
	if db.Migrator().HasTable(VersionTable) {
		return nil
	}
	if err := db.Migrator().CreateTable(&revisionRow{}); err != nil {
		return Error.New("creating version table failed: %w", err)
	}
	return nil
}

// adoptLegacy stamps each branch with the last revision covered by the
// version the sequential engine recorded for it. Revisions after that one,
// including every revision without a legacy number, still run.
func (m *Migrator) adoptLegacy(db *gorm.DB, g *graph) (map[string]string, error) {
	heads, err := m.legacyHeads(db, g)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if len(heads) == 0 {
		return heads, nil
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		for branch, id := range heads {
			if err := setHead(tx, branch, id); err != nil {
				return err
			}
			m.log.Info("adopted legacy version", zap.String("branch", branch), zap.String("revision", id))
		}
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return heads, nil
}

func (m *Migrator) legacyHeads(db *gorm.DB, g *graph) (map[string]string, error) {
	heads := map[string]string{}
	if !db.Migrator().HasTable(LegacyTable) {
		return heads, nil
	}
	var rows []legacyRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		for _, rev := range g.chains[row.Name] {
			if rev.Legacy > 0 && rev.Legacy <= row.Version {
				heads[row.Name] = rev.ID
			}
		}
	}
	return heads, nil
}

func readHeads(db *gorm.DB) (map[string]string, error) {
	var rows []revisionRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	heads := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.Branch == seedMarker {
			continue
		}
		heads[row.Branch] = row.Revision
	}
	return heads, nil
}

func setHead(tx *gorm.DB, branch, id string) error {
	row := revisionRow{Branch: branch, Revision: id, Updated: time.Now().UTC()}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "branch"}},
		DoUpdates: clause.AssignmentColumns([]string{"revision", "updated"}),
	}).Create(&row).Error
}

func pending(g *graph, heads map[string]string) ([]*Revision, error) {
	for branch, head := range heads {
		rev, ok := g.byID[head]
		if !ok {
			return nil, Error.New("branch %q is at unknown revision %q", branch, head)
		}
		if rev.branch() != branch {
			return nil, Error.New("revision %q recorded as head of %q belongs to %q", head, branch, rev.branch())
		}
	}
	var out []*Revision
	for _, rev := range g.order {
		head, ok := heads[rev.branch()]
		if ok && g.index[rev.ID] <= g.index[head] {
			continue
		}
		out = append(out, rev)
	}
	return out, nil
}

