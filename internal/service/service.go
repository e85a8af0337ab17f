package service

import (
	"context"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/repository"

	"github.com/shopspring/decimal"
)

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, login, password string) (*domain.User, string, string, error) // user, access, refresh
	RefreshToken(ctx context.Context, userID int64) (string, string, error)
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
}

// InventoryLedger owns the copy counters of a book. Every method expects the
// caller's unit of work to already hold the book's row lock.
type InventoryLedger interface {
	Checkout(ctx context.Context, books repository.BookRepository, book *domain.Book) (bool, error)
	ReturnCopy(ctx context.Context, books repository.BookRepository, book *domain.Book, openRentals int32) error
	SetTotalCopies(ctx context.Context, books repository.BookRepository, book *domain.Book, newTotal, checkedOut int32) error
}

type CatalogService interface {
	CreateBook(ctx context.Context, actorID int64, input NewBook) (*domain.Book, error)
	GetBook(ctx context.Context, bookID int64) (*domain.Book, error)
	ListBooks(ctx context.Context, filter repository.BookFilter, page, pageSize int32) ([]domain.Book, int32, error)
	MostPopular(ctx context.Context, limit int32) ([]domain.BookPopularity, error)
	SetTotalCopies(ctx context.Context, actorID, bookID int64, total int32) (*domain.Book, error)
	UpdateRentalPrice(ctx context.Context, actorID, bookID int64, price decimal.Decimal) (*domain.Book, error)
	SetActive(ctx context.Context, actorID, bookID int64, active bool) (*domain.Book, error)
	AuditInventory(ctx context.Context, bookID int64) (*domain.InventoryAudit, error)
	AuditAllInventory(ctx context.Context) ([]domain.InventoryAudit, error)
}

type RentalService interface {
	IssueBook(ctx context.Context, userID, bookID int64, dueDate time.Time) (*domain.Transaction, error)
	ReturnBook(ctx context.Context, actorID, transactionID int64) (*domain.Transaction, error)
	CalculateLateFee(ctx context.Context, transactionID int64) (*domain.Transaction, error)
	PayFees(ctx context.Context, actorID, transactionID int64) (*domain.Transaction, error)

	GetTransaction(ctx context.Context, actorID, transactionID int64) (*domain.Transaction, error)
	FindActiveRentalsByUser(ctx context.Context, userID int64) ([]domain.Transaction, error)
	FindActiveRentalsByBook(ctx context.Context, bookID int64) ([]domain.Transaction, error)
	FindOverdueTransactions(ctx context.Context) ([]domain.Transaction, error)
	FindTransactionsBetween(ctx context.Context, from, to time.Time) ([]domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter, page, pageSize int32) ([]domain.Transaction, int32, error)
	CountActiveRentals(ctx context.Context) (int64, error)
	CountOverdue(ctx context.Context) (int64, error)
	Summary(ctx context.Context) (*domain.RentalSummary, error)
}

// NotificationSink receives rental events. Delivery is best effort: Notify
// never fails the caller.
type NotificationSink interface {
	Notify(ctx context.Context, event domain.NotificationEvent)
}

type NotificationService interface {
	GetNotifications(ctx context.Context, userID int64, unreadOnly bool, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, userID, notificationID int64) error
	MarkAllAsRead(ctx context.Context, userID int64) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	CreateOverdueNotifications(ctx context.Context) (int, error)
	CreateDueReminders(ctx context.Context, window time.Duration) (int, error)
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.UserRole
}

type NewBook struct {
	Title       string
	ISBN        string
	AuthorID    int64
	TotalCopies int32
	RentalPrice decimal.Decimal
}

// Clock is the source of "now" for due dates and late fees.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func NewSystemClock() Clock { return systemClock{} }

func pageOffset(page, pageSize int32) int32 {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
