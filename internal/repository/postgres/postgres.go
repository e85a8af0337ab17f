package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/repository"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

const dialectPostgres = "postgres"

var dialect = goqu.Dialect(dialectPostgres)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a unit of work.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	repository.UserRepository
	repository.BookRepository
	repository.TransactionRepository
	repository.NotificationRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                     db,
		UserRepository:         NewUserRepository(db),
		BookRepository:         NewBookRepository(db),
		TransactionRepository:  NewTransactionRepository(db),
		NotificationRepository: NewNotificationRepository(db),
	}
}

func newRepositories(db DBTX) repository.Repositories {
	return repository.Repositories{
		Users:         NewUserRepository(db),
		Books:         NewBookRepository(db),
		Transactions:  NewTransactionRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}

func (s *Store) Repos() repository.Repositories {
	return repository.Repositories{
		Users:         s.UserRepository,
		Books:         s.BookRepository,
		Transactions:  s.TransactionRepository,
		Notifications: s.NotificationRepository,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx runs fn inside a database transaction. Row locks taken with
// SELECT ... FOR UPDATE are held until commit or rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	logger.DatabaseCall("BEGIN", "unit of work")

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, newRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Rollback failed", "error", rbErr, "cause", err)
		}
		logger.Debug("Unit of work rolled back", "error", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	logger.Debug("Unit of work committed")
	return nil
}

type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects with the configured driver ("postgres" for lib/pq, "pgx" for
// pgx stdlib), applies pool limits and pings the server.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
