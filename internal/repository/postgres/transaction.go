package postgres

import (
	"context"
	"fmt"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/repository"

	"github.com/doug-martin/goqu/v9"
)

type transactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, user_id, book_id, type, issue_date, due_date, return_date, rental_price, late_fee, paid, created_on, updated_on`

var qualifiedTransactionColumns = []any{
	goqu.I("t.id"), goqu.I("t.user_id"), goqu.I("t.book_id"), goqu.I("t.type"),
	goqu.I("t.issue_date"), goqu.I("t.due_date"), goqu.I("t.return_date"), goqu.I("t.rental_price"),
	goqu.I("t.late_fee"), goqu.I("t.paid"), goqu.I("t.created_on"), goqu.I("t.updated_on"),
}

func (r *transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (user_id, book_id, type, issue_date, due_date, return_date, rental_price, late_fee, paid, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	now := time.Now().UTC()
	t.CreatedOn = now
	t.UpdatedOn = now
	logger.DatabaseCall("INSERT", "transactions", "userID", t.UserID, "bookID", t.BookID)
	err := r.db.QueryRowContext(ctx, query, t.UserID, t.BookID, t.Type, t.IssueDate, t.DueDate, t.ReturnDate, t.RentalPrice, t.LateFee, t.Paid, t.CreatedOn, t.UpdatedOn).Scan(&t.ID)
	logger.DatabaseResult("INSERT", 1, err, "transactionID", t.ID)
	return classify(err)
}

func (r *transactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound, id)
	}
	return t, nil
}

func (r *transactionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	logger.DatabaseCall("SELECT FOR UPDATE", "transactions", "transactionID", id)
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound, id)
	}
	return t, nil
}

func (r *transactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	query := `UPDATE transactions SET type=$1, return_date=$2, late_fee=$3, paid=$4, updated_on=$5 WHERE id=$6`
	t.UpdatedOn = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, t.Type, t.ReturnDate, t.LateFee, t.Paid, t.UpdatedOn, t.ID)
	if err != nil {
		return classify(err)
	}
	return expectOneRow(result, domain.ErrTransactionNotFound, t.ID)
}

func (r *transactionRepository) HasOpenRental(ctx context.Context, userID, bookID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM transactions WHERE user_id = $1 AND book_id = $2 AND return_date IS NULL)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, userID, bookID).Scan(&exists)
	return exists, err
}

func (r *transactionRepository) CountOpenByBook(ctx context.Context, bookID int64) (int32, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE book_id = $1 AND return_date IS NULL`
	var count int32
	err := r.db.QueryRowContext(ctx, query, bookID).Scan(&count)
	return count, err
}

func (r *transactionRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
	          WHERE type = 'ISSUE' AND return_date IS NULL AND due_date < $1
	          ORDER BY due_date ASC`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *transactionRepository) List(ctx context.Context, filter domain.TransactionFilter, limit, offset int32) ([]domain.Transaction, int32, error) {
	ds := dialect.From(goqu.T("transactions").As("t"))
	if filter.AuthorID != 0 {
		ds = ds.Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("t.book_id")))).
			Where(goqu.I("b.author_id").Eq(filter.AuthorID))
	}
	if filter.UserID != 0 {
		ds = ds.Where(goqu.I("t.user_id").Eq(filter.UserID))
	}
	if filter.BookID != 0 {
		ds = ds.Where(goqu.I("t.book_id").Eq(filter.BookID))
	}
	if filter.OpenOnly {
		ds = ds.Where(goqu.I("t.return_date").IsNull())
	}
	if filter.ClosedOnly {
		ds = ds.Where(goqu.I("t.return_date").IsNotNull())
	}
	if filter.CreatedFrom != nil {
		ds = ds.Where(goqu.I("t.created_on").Gte(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		ds = ds.Where(goqu.I("t.created_on").Lte(*filter.CreatedTo))
	}
	if filter.DueFrom != nil {
		ds = ds.Where(goqu.I("t.due_date").Gte(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		ds = ds.Where(goqu.I("t.due_date").Lte(*filter.DueTo))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var count int32
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&count); err != nil {
		return nil, 0, err
	}

	sel := ds.Select(qualifiedTransactionColumns...).Order(goqu.I("t.created_on").Desc(), goqu.I("t.id").Desc())
	if limit > 0 {
		sel = sel.Limit(uint(limit)).Offset(uint(offset))
	}
	query, args, err := sel.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	logger.DatabaseCall("SELECT", "transactions", "query", query)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	txs, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txs, count, nil
}

func (r *transactionRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE return_date IS NULL`).Scan(&count)
	return count, err
}

func (r *transactionRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE type = 'ISSUE' AND return_date IS NULL AND due_date < $1`
	var count int64
	err := r.db.QueryRowContext(ctx, query, now).Scan(&count)
	return count, err
}

type rowsIterator interface {
	rowScanner
	Next() bool
	Err() error
}

func collectTransactions(rows rowsIterator) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(&t.ID, &t.UserID, &t.BookID, &t.Type, &t.IssueDate, &t.DueDate, &t.ReturnDate, &t.RentalPrice, &t.LateFee, &t.Paid, &t.CreatedOn, &t.UpdatedOn)
	if err != nil {
		return nil, err
	}
	return t, nil
}
