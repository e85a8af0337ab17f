package postgres_test

import (
	"context"
	"testing"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/repository"
	"booksphere-backend/internal/repository/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookRowColumns = []string{"id", "title", "isbn", "author_id", "total_copies", "available_copies", "rental_price", "active", "created_on", "updated_on"}

func TestBookRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewBookRepository(db)
	ctx := context.Background()
	book := &domain.Book{
		Title:           "Dune",
		ISBN:            "978-0441013593",
		AuthorID:        2,
		TotalCopies:     3,
		AvailableCopies: 3,
		RentalPrice:     decimal.RequireFromString("3.99"),
		Active:          true,
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO books").
			WithArgs(book.Title, book.ISBN, book.AuthorID, book.TotalCopies, book.AvailableCopies, book.RentalPrice, book.Active, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		err := repo.Create(ctx, book)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), book.ID)
	})

	t.Run("Duplicate ISBN", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO books").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "books_isbn_key"})

		err := repo.Create(ctx, book)
		assert.ErrorIs(t, err, domain.ErrDuplicateISBN)
	})

	t.Run("Duplicate ISBN Through pgx", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO books").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "books_isbn_key"})

		err := repo.Create(ctx, book)
		assert.ErrorIs(t, err, domain.ErrDuplicateISBN)
	})

	t.Run("Unknown Author", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO books").
			WillReturnError(&pq.Error{Code: "23503", Constraint: "books_author_id_fkey"})

		err := repo.Create(ctx, book)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_GetByIDForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewBookRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		rows := sqlmock.NewRows(bookRowColumns).
			AddRow(5, "Dune", "978-0441013593", 2, 3, 1, "3.99", true, now, now)
		mock.ExpectQuery("SELECT (.+) FROM books WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(5)).
			WillReturnRows(rows)

		book, err := repo.GetByIDForUpdate(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), book.ID)
		assert.Equal(t, int32(1), book.AvailableCopies)
		assert.Equal(t, "3.99", book.RentalPrice.String())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM books WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(6)).
			WillReturnRows(sqlmock.NewRows(bookRowColumns))

		_, err := repo.GetByIDForUpdate(ctx, 6)
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_UpdateCopies(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewBookRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE books SET total_copies=\\$1, available_copies=\\$2").
			WithArgs(int32(3), int32(2), sqlmock.AnyArg(), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateCopies(ctx, 5, 3, 2))
	})

	t.Run("Missing Book", func(t *testing.T) {
		mock.ExpectExec("UPDATE books SET total_copies").
			WithArgs(int32(3), int32(2), sqlmock.AnyArg(), int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdateCopies(ctx, 9, 3, 2), domain.ErrBookNotFound)
	})

	t.Run("Check Constraint", func(t *testing.T) {
		mock.ExpectExec("UPDATE books SET total_copies").
			WillReturnError(&pq.Error{Code: "23514", Constraint: "books_copies_check"})

		err := repo.UpdateCopies(ctx, 5, 3, 4)
		assert.ErrorIs(t, err, domain.ErrInvariantViolation)
		assert.Equal(t, domain.KindInvariantViolation, domain.KindOf(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewBookRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM \"books\"").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, title(.+) FROM \"books\"").
		WillReturnRows(sqlmock.NewRows(bookRowColumns).AddRow(5, "Dune", "978-0441013593", 2, 3, 3, "3.99", true, now, now))

	books, total, err := repo.List(context.Background(), repository.BookFilter{AuthorID: 2}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepository_ListInventoryAudit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewBookRepository(db)
	mock.ExpectQuery("SELECT b.id, b.total_copies, b.available_copies").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_copies", "available_copies", "open_rentals"}).
			AddRow(1, 3, 1, 2).
			AddRow(2, 3, 3, 1))

	audits, err := repo.ListInventoryAudit(context.Background())
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.True(t, audits[0].Consistent)
	assert.False(t, audits[1].Consistent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
