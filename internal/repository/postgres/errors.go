package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"booksphere-backend/internal/domain"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Constraint names from schema.sql that carry business meaning.
const (
	constraintOpenRental = "transactions_one_open_rental_idx"
	constraintBookISBN   = "books_isbn_key"
	constraintUsername   = "users_username_key"
	constraintUserEmail  = "users_email_key"
	constraintDueDate    = "transactions_due_check"
)

// sqlState extracts the SQLSTATE and constraint name from a lib/pq or pgx error.
func sqlState(err error) (code, constraint string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}

// classify maps constraint violations onto domain errors. Anything else is returned as is.
func classify(err error) error {
	code, constraint, ok := sqlState(err)
	if !ok {
		return err
	}
	switch code {
	case pgerrcode.UniqueViolation:
		switch constraint {
		case constraintOpenRental:
			return fmt.Errorf("%w: %v", domain.ErrDuplicateRental, err)
		case constraintBookISBN:
			return fmt.Errorf("%w: %v", domain.ErrDuplicateISBN, err)
		case constraintUsername, constraintUserEmail:
			return fmt.Errorf("%w: %v", domain.ErrDuplicateUser, err)
		}
	case pgerrcode.CheckViolation:
		if constraint == constraintDueDate {
			return fmt.Errorf("%w: %v", domain.ErrInvalidDueDate, err)
		}
		return fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return err
}

func notFound(err error, target *domain.Error, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id %v", target, id)
	}
	return err
}
