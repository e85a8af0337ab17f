package repository

import (
	"context"
	"time"

	"booksphere-backend/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type BookFilter struct {
	AuthorID   int64
	Title      string
	ActiveOnly bool
}

type BookRepository interface {
	Create(ctx context.Context, book *domain.Book) error
	GetByID(ctx context.Context, id int64) (*domain.Book, error)
	// GetByIDForUpdate loads the book and holds its row lock until the unit of work ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Book, error)
	GetByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	Update(ctx context.Context, book *domain.Book) error
	UpdateCopies(ctx context.Context, id int64, total, available int32) error
	List(ctx context.Context, filter BookFilter, limit, offset int32) ([]domain.Book, int32, error)
	ListMostPopular(ctx context.Context, limit int32) ([]domain.BookPopularity, error)
	ListInventoryAudit(ctx context.Context) ([]domain.InventoryAudit, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	// GetByIDForUpdate loads the transaction and holds its row lock until the unit of work ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Transaction, error)
	Update(ctx context.Context, t *domain.Transaction) error
	HasOpenRental(ctx context.Context, userID, bookID int64) (bool, error)
	CountOpenByBook(ctx context.Context, bookID int64) (int32, error)
	ListOverdue(ctx context.Context, now time.Time) ([]domain.Transaction, error)
	List(ctx context.Context, filter domain.TransactionFilter, limit, offset int32) ([]domain.Transaction, int32, error)
	CountActive(ctx context.Context) (int64, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, userID int64) error
	MarkAllAsRead(ctx context.Context, userID int64) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	ExistsUnread(ctx context.Context, userID, bookID int64, category domain.NotificationCategory) (bool, error)
}

// Repositories is the set of repositories bound to one unit of work.
type Repositories struct {
	Users         UserRepository
	Books         BookRepository
	Transactions  TransactionRepository
	Notifications NotificationRepository
}

// UnitOfWork runs fn atomically. Everything fn does through repos commits
// together when fn returns nil and is discarded otherwise. Row locks taken
// with GetByIDForUpdate are released when fn returns.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Store is a storage backend: repositories for single statements plus a unit of work.
type Store interface {
	UnitOfWork
	Repos() Repositories
	Ping(ctx context.Context) error
}
