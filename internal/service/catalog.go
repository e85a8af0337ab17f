package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/repository"

	"github.com/shopspring/decimal"
)

type catalogService struct {
	store  repository.Store
	ledger InventoryLedger
	sink   NotificationSink
}

func NewCatalogService(store repository.Store, ledger InventoryLedger, sink NotificationSink) CatalogService {
	return &catalogService{store: store, ledger: ledger, sink: sink}
}

func (s *catalogService) CreateBook(ctx context.Context, actorID int64, input NewBook) (*domain.Book, error) {
	logger.EnterMethod("catalogService.CreateBook", "actorID", actorID, "isbn", input.ISBN)

	repos := s.store.Repos()
	actor, err := repos.Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if input.AuthorID == 0 {
		input.AuthorID = actorID
	}
	if !actor.IsAdmin() && (actor.Role != domain.UserRoleAuthor || input.AuthorID != actorID) {
		err := fmt.Errorf("%w: user %d cannot add books for author %d", domain.ErrForbidden, actorID, input.AuthorID)
		logger.ExitMethodWithError("catalogService.CreateBook", err)
		return nil, err
	}

	book := &domain.Book{
		Title:           strings.TrimSpace(input.Title),
		ISBN:            strings.TrimSpace(input.ISBN),
		AuthorID:        input.AuthorID,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: input.TotalCopies,
		RentalPrice:     input.RentalPrice,
		Active:          true,
	}
	if book.Title == "" || book.ISBN == "" {
		return nil, fmt.Errorf("%w: title and isbn are required", domain.ErrInvalidInput)
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}

	if _, err := repos.Books.GetByISBN(ctx, book.ISBN); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateISBN, book.ISBN)
	} else if !errors.Is(err, domain.ErrBookNotFound) {
		return nil, err
	}

	if err := repos.Books.Create(ctx, book); err != nil {
		logger.ExitMethodWithError("catalogService.CreateBook", err, "isbn", book.ISBN)
		return nil, err
	}

	s.sink.Notify(ctx, domain.NotificationEvent{
		RecipientID:   book.AuthorID,
		Message:       fmt.Sprintf("Your book '%s' has been added to the catalog.", book.Title),
		Category:      domain.NotificationNewBookAdded,
		RelatedBookID: &book.ID,
	})

	logger.ExitMethod("catalogService.CreateBook", "bookID", book.ID)
	return book, nil
}

func (s *catalogService) GetBook(ctx context.Context, bookID int64) (*domain.Book, error) {
	return s.store.Repos().Books.GetByID(ctx, bookID)
}

func (s *catalogService) ListBooks(ctx context.Context, filter repository.BookFilter, page, pageSize int32) ([]domain.Book, int32, error) {
	return s.store.Repos().Books.List(ctx, filter, pageSize, pageOffset(page, pageSize))
}

func (s *catalogService) MostPopular(ctx context.Context, limit int32) ([]domain.BookPopularity, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.Repos().Books.ListMostPopular(ctx, limit)
}

// SetTotalCopies reconciles the shelf count against the rentals still open.
func (s *catalogService) SetTotalCopies(ctx context.Context, actorID, bookID int64, total int32) (*domain.Book, error) {
	logger.EnterMethod("catalogService.SetTotalCopies", "actorID", actorID, "bookID", bookID, "total", total)

	if total < 0 {
		return nil, fmt.Errorf("%w: total copies %d", domain.ErrNegativeCopies, total)
	}
	book, err := s.mutateBook(ctx, actorID, bookID, func(ctx context.Context, repos repository.Repositories, b *domain.Book) error {
		open, err := repos.Transactions.CountOpenByBook(ctx, b.ID)
		if err != nil {
			return err
		}
		return s.ledger.SetTotalCopies(ctx, repos.Books, b, total, open)
	})
	if err != nil {
		logger.ExitMethodWithError("catalogService.SetTotalCopies", err, "bookID", bookID)
		return nil, err
	}

	logger.ExitMethod("catalogService.SetTotalCopies", "bookID", bookID, "available", book.AvailableCopies)
	return book, nil
}

// UpdateRentalPrice affects future rentals only. Open rentals keep the price
// they were issued at.
func (s *catalogService) UpdateRentalPrice(ctx context.Context, actorID, bookID int64, price decimal.Decimal) (*domain.Book, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: rental price %s", domain.ErrNegativePrice, price.String())
	}
	return s.mutateBook(ctx, actorID, bookID, func(ctx context.Context, repos repository.Repositories, b *domain.Book) error {
		b.RentalPrice = price
		return repos.Books.Update(ctx, b)
	})
}

func (s *catalogService) SetActive(ctx context.Context, actorID, bookID int64, active bool) (*domain.Book, error) {
	return s.mutateBook(ctx, actorID, bookID, func(ctx context.Context, repos repository.Repositories, b *domain.Book) error {
		b.Active = active
		return repos.Books.Update(ctx, b)
	})
}

// mutateBook locks the book, checks the actor may manage it and runs fn in
// the same unit of work.
func (s *catalogService) mutateBook(ctx context.Context, actorID, bookID int64, fn func(context.Context, repository.Repositories, *domain.Book) error) (*domain.Book, error) {
	var out domain.Book
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		actor, err := repos.Users.GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		b, err := repos.Books.GetByIDForUpdate(ctx, bookID)
		if err != nil {
			return err
		}
		if !actor.CanManageBook(b) {
			return fmt.Errorf("%w: user %d cannot manage book %d", domain.ErrForbidden, actorID, bookID)
		}
		if err := fn(ctx, repos, b); err != nil {
			return err
		}
		out = *b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *catalogService) AuditInventory(ctx context.Context, bookID int64) (*domain.InventoryAudit, error) {
	repos := s.store.Repos()
	b, err := repos.Books.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	open, err := repos.Transactions.CountOpenByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	audit := domain.NewInventoryAudit(b.ID, b.TotalCopies, b.AvailableCopies, open)
	return &audit, nil
}

// AuditAllInventory returns only the books whose counters disagree with their open rentals.
func (s *catalogService) AuditAllInventory(ctx context.Context) ([]domain.InventoryAudit, error) {
	audits, err := s.store.Repos().Books.ListInventoryAudit(ctx)
	if err != nil {
		return nil, err
	}
	var broken []domain.InventoryAudit
	for _, a := range audits {
		if !a.Consistent {
			logger.Error("Inventory counters out of line", "bookID", a.BookID, "total", a.TotalCopies, "available", a.AvailableCopies, "openRentals", a.OpenRentals)
			broken = append(broken, a)
		}
	}
	return broken, nil
}
