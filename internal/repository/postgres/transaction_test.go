package postgres_test

import (
	"context"
	"errors"
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

var transactionRowColumns = []string{"id", "user_id", "book_id", "type", "issue_date", "due_date", "return_date", "rental_price", "late_fee", "paid", "created_on", "updated_on"}

func TestTransactionRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	tx := &domain.Transaction{
		UserID:      3,
		BookID:      5,
		Type:        domain.TransactionTypeIssue,
		IssueDate:   now,
		DueDate:     now.Add(14 * 24 * time.Hour),
		RentalPrice: decimal.RequireFromString("3.99"),
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(tx.UserID, tx.BookID, tx.Type, tx.IssueDate, tx.DueDate, sqlmock.AnyArg(), tx.RentalPrice, sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

		require.NoError(t, repo.Create(ctx, tx))
		assert.Equal(t, int64(11), tx.ID)
	})

	t.Run("Second Open Rental", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO transactions").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "transactions_one_open_rental_idx"})

		err := repo.Create(ctx, tx)
		assert.ErrorIs(t, err, domain.ErrDuplicateRental)
	})

	t.Run("Due Date Before Issue Date", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO transactions").
			WillReturnError(&pq.Error{Code: "23514", Constraint: "transactions_due_check"})

		err := repo.Create(ctx, tx)
		assert.ErrorIs(t, err, domain.ErrInvalidDueDate)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("Other Check Violation", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO transactions").
			WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "transactions_state_check"})

		err := repo.Create(ctx, tx)
		assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	now := time.Now().UTC()

	t.Run("Returned With Fee", func(t *testing.T) {
		returned := now
		rows := sqlmock.NewRows(transactionRowColumns).
			AddRow(11, 3, 5, "RETURN", now.Add(-96*time.Hour), now.Add(-72*time.Hour), returned, "3.99", "4.50", false, now, now)
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1").
			WithArgs(int64(11)).
			WillReturnRows(rows)

		tx, err := repo.GetByID(context.Background(), 11)
		require.NoError(t, err)
		assert.Equal(t, domain.TransactionTypeReturn, tx.Type)
		require.NotNil(t, tx.ReturnDate)
		assert.False(t, tx.IsOpen())
		require.True(t, tx.LateFee.Valid)
		assert.Equal(t, "4.5", tx.LateFee.Decimal.String())
	})

	t.Run("Open Without Fee", func(t *testing.T) {
		rows := sqlmock.NewRows(transactionRowColumns).
			AddRow(12, 3, 5, "ISSUE", now, now.Add(24*time.Hour), nil, "3.99", nil, false, now, now)
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1").
			WithArgs(int64(12)).
			WillReturnRows(rows)

		tx, err := repo.GetByID(context.Background(), 12)
		require.NoError(t, err)
		assert.True(t, tx.IsOpen())
		assert.False(t, tx.LateFee.Valid)
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows(transactionRowColumns))

		_, err := repo.GetByID(context.Background(), 99)
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Queries(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewTransactionRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("HasOpenRental", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM transactions WHERE user_id = \\$1 AND book_id = \\$2 AND return_date IS NULL\\)").
			WithArgs(int64(3), int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		open, err := repo.HasOpenRental(ctx, 3, 5)
		require.NoError(t, err)
		assert.True(t, open)
	})

	t.Run("CountOpenByBook", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE book_id = \\$1 AND return_date IS NULL").
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		n, err := repo.CountOpenByBook(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int32(2), n)
	})

	t.Run("ListOverdue", func(t *testing.T) {
		rows := sqlmock.NewRows(transactionRowColumns).
			AddRow(12, 3, 5, "ISSUE", now.Add(-72*time.Hour), now.Add(-24*time.Hour), nil, "3.99", nil, false, now, now)
		mock.ExpectQuery("SELECT (.+) FROM transactions\\s+WHERE type = 'ISSUE' AND return_date IS NULL AND due_date < \\$1").
			WithArgs(now).
			WillReturnRows(rows)

		txs, err := repo.ListOverdue(ctx, now)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.True(t, txs[0].IsOverdue(now))
	})

	t.Run("List By Author", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM \"transactions\" AS \"t\" INNER JOIN \"books\" AS \"b\"").
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT \"t\".\"id\"(.+) FROM \"transactions\" AS \"t\"").
			WillReturnRows(sqlmock.NewRows(transactionRowColumns).
				AddRow(12, 3, 5, "ISSUE", now, now.Add(24*time.Hour), nil, "3.99", nil, false, now, now))

		txs, total, err := repo.List(ctx, domain.TransactionFilter{AuthorID: 2, OpenOnly: true}, 20, 0)
		require.NoError(t, err)
		assert.Equal(t, int32(1), total)
		require.Len(t, txs, 1)
		assert.Equal(t, int64(12), txs[0].ID)
	})

	t.Run("CountOverdue", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions WHERE type = 'ISSUE'").
			WithArgs(now).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

		n, err := repo.CountOverdue(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx(t *testing.T) {
	t.Run("Commit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := postgres.NewStore(db)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM books WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(bookRowColumns).AddRow(5, "Dune", "978-0441013593", 2, 3, 1, "3.99", true, now, now))
		mock.ExpectExec("UPDATE books SET total_copies").
			WithArgs(int32(3), int32(0), sqlmock.AnyArg(), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = store.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
			b, err := repos.Books.GetByIDForUpdate(ctx, 5)
			if err != nil {
				return err
			}
			return repos.Books.UpdateCopies(ctx, b.ID, b.TotalCopies, b.AvailableCopies-1)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback On Error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := postgres.NewStore(db)

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = store.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback On Panic", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := postgres.NewStore(db)

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = store.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
				panic("boom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
