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

type bookRepository struct {
	db DBTX
}

func NewBookRepository(db DBTX) repository.BookRepository {
	return &bookRepository{db: db}
}

const bookColumns = `id, title, isbn, author_id, total_copies, available_copies, rental_price, active, created_on, updated_on`

func (r *bookRepository) Create(ctx context.Context, b *domain.Book) error {
	query := `INSERT INTO books (title, isbn, author_id, total_copies, available_copies, rental_price, active, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	now := time.Now().UTC()
	b.CreatedOn = now
	b.UpdatedOn = now
	err := r.db.QueryRowContext(ctx, query, b.Title, b.ISBN, b.AuthorID, b.TotalCopies, b.AvailableCopies, b.RentalPrice, b.Active, b.CreatedOn, b.UpdatedOn).Scan(&b.ID)
	return classify(err)
}

func (r *bookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	b, err := scanBook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, domain.ErrBookNotFound, id)
	}
	return b, nil
}

func (r *bookRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1 FOR UPDATE`
	logger.DatabaseCall("SELECT FOR UPDATE", "books", "bookID", id)
	b, err := scanBook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		logger.DatabaseResult("SELECT FOR UPDATE", 0, err, "bookID", id)
		return nil, notFound(err, domain.ErrBookNotFound, id)
	}
	logger.DatabaseResult("SELECT FOR UPDATE", 1, nil, "bookID", id, "available", b.AvailableCopies)
	return b, nil
}

func (r *bookRepository) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE isbn = $1`
	b, err := scanBook(r.db.QueryRowContext(ctx, query, isbn))
	if err != nil {
		return nil, notFound(err, domain.ErrBookNotFound, isbn)
	}
	return b, nil
}

func (r *bookRepository) Update(ctx context.Context, b *domain.Book) error {
	query := `UPDATE books SET title=$1, isbn=$2, total_copies=$3, available_copies=$4, rental_price=$5, active=$6, updated_on=$7 WHERE id=$8`
	b.UpdatedOn = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, b.Title, b.ISBN, b.TotalCopies, b.AvailableCopies, b.RentalPrice, b.Active, b.UpdatedOn, b.ID)
	if err != nil {
		return classify(err)
	}
	return expectOneRow(result, domain.ErrBookNotFound, b.ID)
}

func (r *bookRepository) UpdateCopies(ctx context.Context, id int64, total, available int32) error {
	query := `UPDATE books SET total_copies=$1, available_copies=$2, updated_on=$3 WHERE id=$4`
	logger.DatabaseCall("UPDATE", "books", "bookID", id, "total", total, "available", available)
	result, err := r.db.ExecContext(ctx, query, total, available, time.Now().UTC(), id)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "bookID", id)
		return classify(err)
	}
	return expectOneRow(result, domain.ErrBookNotFound, id)
}

func (r *bookRepository) List(ctx context.Context, filter repository.BookFilter, limit, offset int32) ([]domain.Book, int32, error) {
	ds := dialect.From("books")
	if filter.AuthorID != 0 {
		ds = ds.Where(goqu.C("author_id").Eq(filter.AuthorID))
	}
	if filter.Title != "" {
		ds = ds.Where(goqu.C("title").ILike("%" + filter.Title + "%"))
	}
	if filter.ActiveOnly {
		ds = ds.Where(goqu.C("active").IsTrue())
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var count int32
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&count); err != nil {
		return nil, 0, err
	}

	sel := ds.Select(goqu.L(bookColumns)).Order(goqu.C("title").Asc(), goqu.C("id").Asc())
	if limit > 0 {
		sel = sel.Limit(uint(limit)).Offset(uint(offset))
	}
	query, args, err := sel.Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var books []domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		books = append(books, *b)
	}
	return books, count, rows.Err()
}

func (r *bookRepository) ListMostPopular(ctx context.Context, limit int32) ([]domain.BookPopularity, error) {
	query := `SELECT b.id, b.title, b.isbn, b.author_id, b.total_copies, b.available_copies, b.rental_price, b.active, b.created_on, b.updated_on,
	                 COUNT(t.id) AS rental_count
	          FROM books b
	          JOIN transactions t ON t.book_id = b.id
	          GROUP BY b.id
	          ORDER BY rental_count DESC, b.id ASC
	          LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BookPopularity
	for rows.Next() {
		var p domain.BookPopularity
		b := &p.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.ISBN, &b.AuthorID, &b.TotalCopies, &b.AvailableCopies, &b.RentalPrice, &b.Active, &b.CreatedOn, &b.UpdatedOn, &p.RentalCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *bookRepository) ListInventoryAudit(ctx context.Context) ([]domain.InventoryAudit, error) {
	query := `SELECT b.id, b.total_copies, b.available_copies,
	                 COUNT(t.id) FILTER (WHERE t.return_date IS NULL) AS open_rentals
	          FROM books b
	          LEFT JOIN transactions t ON t.book_id = b.id
	          GROUP BY b.id
	          ORDER BY b.id`
	logger.DatabaseCall("SELECT", "books audit")
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InventoryAudit
	for rows.Next() {
		var id int64
		var total, available, open int32
		if err := rows.Scan(&id, &total, &available, &open); err != nil {
			return nil, err
		}
		out = append(out, domain.NewInventoryAudit(id, total, available, open))
	}
	return out, rows.Err()
}

func scanBook(row rowScanner) (*domain.Book, error) {
	b := &domain.Book{}
	err := row.Scan(&b.ID, &b.Title, &b.ISBN, &b.AuthorID, &b.TotalCopies, &b.AvailableCopies, &b.RentalPrice, &b.Active, &b.CreatedOn, &b.UpdatedOn)
	if err != nil {
		return nil, err
	}
	return b, nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func expectOneRow(result rowsAffecter, target *domain.Error, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: id %d", target, id)
	}
	return nil
}
