package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationLockKey  = "schema-migrations"
	migrationLockTTL  = 5 * time.Minute
	migrationLockWait = 2 * time.Minute
)

// Migration is one versioned schema change. Up runs inside its own transaction.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

// SchemaMigration records an applied migration.
type SchemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName implements gorm's tabler.
func (SchemaMigration) TableName() string { return "schema_migrations" }

// Migrator applies pending migrations in version order.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
	locker     Locker
	logger     *zap.Logger
	now        func() time.Time
}

// MigratorOption customises a Migrator.
type MigratorOption func(*Migrator)

// WithLocker serialises runs across instances.
func WithLocker(locker Locker) MigratorOption {
	return func(m *Migrator) {
		if locker != nil {
			m.locker = locker
		}
	}
}

// WithMigrationLogger sets the logger.
func WithMigrationLogger(logger *zap.Logger) MigratorOption {
	return func(m *Migrator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMigrationClock overrides the applied_at clock.
func WithMigrationClock(now func() time.Time) MigratorOption {
	return func(m *Migrator) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMigrator validates that versions are positive and strictly increasing.
func NewMigrator(db *gorm.DB, migrations []Migration, opts ...MigratorOption) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("database: migrator requires a db")
	}
	last := 0
	for _, migration := range migrations {
		if migration.Version <= last {
			return nil, fmt.Errorf("database: migration %d (%s) is duplicated or out of order", migration.Version, migration.Name)
		}
		if migration.Up == nil {
			return nil, fmt.Errorf("database: migration %d (%s) has no Up step", migration.Version, migration.Name)
		}
		last = migration.Version
	}
	m := &Migrator{
		db:         db,
		migrations: append([]Migration(nil), migrations...),
		locker:     NoopLocker{},
		logger:     zap.NewNop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Up applies every migration not yet recorded in schema_migrations and returns the applied versions.
func (m *Migrator) Up(ctx context.Context) ([]int, error) {
	unlock, err := m.locker.Obtain(ctx, migrationLockKey, migrationLockTTL, migrationLockWait)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("database: release migration lock failed", zap.Error(err))
		}
	}()

	db := m.db.WithContext(ctx)
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return nil, WrapError("migrate.bootstrap", err)
	}

	done, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, migration := range m.migrations {
		if _, ok := done[migration.Version]; ok {
			continue
		}
		start := time.Now()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:   migration.Version,
				Name:      migration.Name,
				AppliedAt: m.now(),
			}).Error
		})
		if err != nil {
			return applied, WrapError(fmt.Sprintf("migrate.%d_%s", migration.Version, migration.Name), err)
		}
		m.logger.Info("database: migration applied",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
		applied = append(applied, migration.Version)
	}
	return applied, nil
}

// Applied lists recorded migrations ordered by version.
func (m *Migrator) Applied(ctx context.Context) ([]SchemaMigration, error) {
	var rows []SchemaMigration
	if err := m.db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		return nil, WrapError("migrate.applied", err)
	}
	return rows, nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]struct{}, error) {
	rows, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int]struct{}, len(rows))
	for _, row := range rows {
		out[row.Version] = struct{}{}
	}
	return out, nil
}
