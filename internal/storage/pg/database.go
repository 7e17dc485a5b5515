package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/reseich/reseich-api/internal/config"
	pgdb "github.com/reseich/reseich-api/internal/storage/pg/sqlc"
)

// Store is the Querier plus a unit-of-work for writes that must commit together.
type Store interface {
	pgdb.Querier
	ExecTx(ctx context.Context, fn func(q pgdb.Querier) error) error
}

type Database struct {
	DB      *sql.DB
	Queries *pgdb.Queries
	// Migrated lists the migration versions applied at startup.
	Migrated []int64
}

// InitDatabase initializes the database connection and runs migrations.
func InitDatabase(ctx context.Context, cfg *config.Config) (*Database, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Minute)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Minute)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	applied, err := RunMigrations(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	database := NewDatabase(db)
	database.Migrated = applied
	return database, nil
}

// NewDatabase wraps an open connection pool without touching the schema.
func NewDatabase(db *sql.DB) *Database {
	return &Database{
		DB:      db,
		Queries: pgdb.New(db),
	}
}

// ExecTx runs fn inside a single database transaction. The transaction is
// rolled back when fn returns an error and committed otherwise.
func (d *Database) ExecTx(ctx context.Context, fn func(q pgdb.Querier) error) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(d.Queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}

// Store returns the database as a Store. Queries outside ExecTx use the pool.
func (d *Database) Store() Store {
	return &store{Queries: d.Queries, db: d}
}

type store struct {
	*pgdb.Queries
	db *Database
}

func (s *store) ExecTx(ctx context.Context, fn func(q pgdb.Querier) error) error {
	return s.db.ExecTx(ctx, fn)
}

// IsUniqueViolation reports whether err is a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// IsCheckViolation reports whether err is a Postgres check_violation, such as
// a credit balance going negative.
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23514"
	}
	return false
}
