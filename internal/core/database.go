// AngelaMos | 2026
// database.go

package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/bookshelf/internal/config"
)

// Database wraps the pgx-backed pool. Repositories take a DBTX so the same
// code runs inside or outside a transaction.
type Database struct {
	DB *sqlx.DB
}

func NewDatabase(
	ctx context.Context,
	cfg config.DatabaseConfig,
) (*Database, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	// Jitter keeps pooled connections from all recycling in the same tick.
	db.SetConnMaxLifetime(jitteredDuration(cfg.ConnMaxLifetime))
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	d := &Database{DB: db}
	if err := d.Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // cleanup on connection failure
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
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (d *Database) Stats() sql.DBStats {
	return d.DB.Stats()
}

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

// InTx runs fn in a transaction, committing when fn returns nil and rolling
// back on error or panic.
func InTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			err = fmt.Errorf("%w (rollback: %w)", err, rbErr)
		}
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func IsDuplicateKey(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

// IsForeignKeyViolation reports a write that referenced a missing row.
func IsForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// EscapeLike quotes LIKE metacharacters in user-supplied search text.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

func jitteredDuration(base time.Duration) time.Duration {
	if base < 7 {
		return base
	}
	//nolint:gosec // G404: pool jitter is not security sensitive
	return base + time.Duration(rand.Int64N(int64(base/7)))
}
