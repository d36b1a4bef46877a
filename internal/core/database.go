// AngelaMos | 2026
// database.go

package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/harvest-table/internal/config"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// probeTimeout bounds every connectivity check against a backing service.
const probeTimeout = 5 * time.Second

func probe(ctx context.Context, what string, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", what, err)
	}
	return nil
}

type Database struct {
	DB *sqlx.DB
}

// NewDatabase opens the pgx pool and fails fast when Postgres does not
// answer within probeTimeout.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(jitteredDuration(cfg.ConnMaxLifetime))
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	d := &Database{DB: db}
	if err := d.Ping(ctx); err != nil {
		//nolint:errcheck // pool never became usable
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

func (d *Database) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return probe(ctx, "database", d.DB.PingContext)
}

func (d *Database) Stats() sql.DBStats {
	return d.DB.Stats()
}

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	sqlx.ExtContext
	sqlx.ExecerContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(
		ctx context.Context,
		dest any,
		query string,
		args ...any,
	) error
}

// TxRunner hands a transaction-scoped DBTX to fn and commits when fn
// returns nil.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx DBTX) error) error
}

type txRunner struct {
	db *sqlx.DB
}

func NewTxRunner(db *sqlx.DB) TxRunner {
	return txRunner{db: db}
}

func (r txRunner) InTx(ctx context.Context, fn func(tx DBTX) error) error {
	return InTx(ctx, r.db, func(tx *sqlx.Tx) error { return fn(tx) })
}

// InTx commits when fn returns nil. Any other exit, a panic included, rolls
// the transaction back; a failed rollback is joined onto the returned error.
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	done = true

	return nil
}

func IsDuplicateKeyError(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func IsForeignKeyError(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

func IsCheckViolation(err error) bool {
	return pgErrorCode(err) == pgCheckViolation
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func jitteredDuration(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	//nolint:gosec // G404: non-security-sensitive jitter for connection pool
	jitter := time.Duration(rand.Int64N(int64(base/7) + 1))
	return base + jitter
}
