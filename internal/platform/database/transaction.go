package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	defaultTxAttempts = 3
	defaultTxTimeout  = 15 * time.Second
)

type txContextKey struct{}

// TxFunc is executed within a database transaction. Repository calls made with ctx join it.
type TxFunc func(ctx context.Context) error

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	attempts  int
	timeout   time.Duration
	isolation sql.IsolationLevel
}

// WithTxAttempts overrides how many times a deadlocked transaction is retried.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout sets a timeout for the transaction context.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithIsolation sets the isolation level for the transaction.
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(cfg *txConfig) {
		cfg.isolation = level
	}
}

// WithTx stores tx on ctx.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// Conn returns the transaction carried by ctx or base bound to ctx.
func Conn(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return base.WithContext(ctx)
}

// RunInTx executes fn inside a transaction. A context that already carries a transaction
// joins it instead of opening a nested one. Deadlocks and serialization failures are
// retried up to the configured number of attempts; any other error rolls back and returns.
func RunInTx(ctx context.Context, db *gorm.DB, fn TxFunc, opts ...TxOption) error {
	if db == nil {
		return WrapError("transaction", errors.New("database: db is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("database: transaction function is nil"))
	}
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	cfg := txConfig{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	txnCtx := ctx
	if cfg.timeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > cfg.timeout {
			var cancel context.CancelFunc
			txnCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
			defer cancel()
		}
	}

	var sqlOpts *sql.TxOptions
	if cfg.isolation != sql.LevelDefault {
		sqlOpts = &sql.TxOptions{Isolation: cfg.isolation}
	}

	var err, fnErr error
	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		fnErr = nil
		err = db.WithContext(txnCtx).Transaction(func(tx *gorm.DB) error {
			fnErr = fn(WithTx(txnCtx, tx))
			return fnErr
		}, sqlOpts)
		if err == nil || !IsRetryable(err) || txnCtx.Err() != nil {
			break
		}
	}
	if fnErr != nil {
		// errors raised by fn keep their identity so callers can branch on domain sentinels
		return fnErr
	}
	return WrapError("transaction", err)
}
