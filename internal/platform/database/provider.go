package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/config"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/observability"
)

const defaultPingTimeout = 5 * time.Second

// Provider owns the shared gorm handle and its connection pool.
type Provider struct {
	db     *gorm.DB
	driver string
}

// Dialector selects the gorm dialect for driver.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case config.DriverMySQL:
		return mysql.Open(dsn), nil
	case config.DriverPostgres:
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}
}

// Open connects to the configured database, tunes the pool, routes SQL logs through zap and
// installs the otelgorm tracing plugin.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialector, err := Dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 observability.NewGormLogger(logger, cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: access pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
		logger.Warn("database: otelgorm plugin not installed", zap.Error(pluginErr))
	}

	provider := &Provider{db: db, driver: cfg.Driver}
	if err := provider.Ping(ctx); err != nil {
		_ = provider.Close()
		return nil, err
	}
	return provider, nil
}

// NewProvider wraps an existing gorm handle.
func NewProvider(db *gorm.DB) *Provider {
	driver := ""
	if db != nil && db.Dialector != nil {
		driver = db.Dialector.Name()
	}
	return &Provider{db: db, driver: driver}
}

// DB returns the shared gorm handle.
func (p *Provider) DB() *gorm.DB {
	if p == nil {
		return nil
	}
	return p.db
}

// Driver reports the dialect name.
func (p *Provider) Driver() string {
	if p == nil {
		return ""
	}
	return p.driver
}

// Ping verifies connectivity with a bounded timeout.
func (p *Provider) Ping(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("database: provider not initialised")
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return WrapError("ping", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return &Error{op: "ping", err: err, unavailable: true}
	}
	return nil
}

// RunInTx executes fn in a transaction on the provider's handle.
func (p *Provider) RunInTx(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	return RunInTx(ctx, p.DB(), fn, opts...)
}

// Close releases the connection pool.
func (p *Provider) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
