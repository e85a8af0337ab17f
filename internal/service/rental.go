package service

import (
	"context"
	"fmt"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/repository"

	"github.com/shopspring/decimal"
)

type rentalService struct {
	store  repository.Store
	ledger InventoryLedger
	fees   LateFeePolicy
	sink   NotificationSink
	clock  Clock
}

func NewRentalService(store repository.Store, ledger InventoryLedger, fees LateFeePolicy, sink NotificationSink, clock Clock) RentalService {
	return &rentalService{
		store:  store,
		ledger: ledger,
		fees:   fees,
		sink:   sink,
		clock:  clock,
	}
}

func (s *rentalService) IssueBook(ctx context.Context, userID, bookID int64, dueDate time.Time) (*domain.Transaction, error) {
	logger.EnterMethod("rentalService.IssueBook", "userID", userID, "bookID", bookID, "dueDate", dueDate)

	now := s.clock.Now()
	if !dueDate.After(now) {
		err := fmt.Errorf("%w: %s", domain.ErrInvalidDueDate, dueDate.Format(time.RFC3339))
		logger.ExitMethodWithError("rentalService.IssueBook", err)
		return nil, err
	}

	var (
		issued domain.Transaction
		book   domain.Book
		renter domain.User
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		user, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !user.Active {
			return fmt.Errorf("%w: user %d is inactive", domain.ErrForbidden, userID)
		}

		b, err := repos.Books.GetByIDForUpdate(ctx, bookID)
		if err != nil {
			return err
		}
		if !b.IsAvailable() {
			return fmt.Errorf("%w: %s", domain.ErrBookUnavailable, b.Title)
		}

		dup, err := repos.Transactions.HasOpenRental(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateRental, b.Title)
		}

		ok, err := s.ledger.Checkout(ctx, repos.Books, b)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrBookUnavailable, b.Title)
		}

		t := &domain.Transaction{
			UserID:      userID,
			BookID:      bookID,
			Type:        domain.TransactionTypeIssue,
			IssueDate:   now,
			DueDate:     dueDate,
			RentalPrice: b.RentalPrice,
		}
		if err := repos.Transactions.Create(ctx, t); err != nil {
			return err
		}

		issued, book, renter = t.Clone(), *b, *user
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.IssueBook", err, "userID", userID, "bookID", bookID)
		return nil, err
	}

	s.sink.Notify(ctx, domain.NotificationEvent{
		RecipientID:   book.AuthorID,
		Message:       fmt.Sprintf("Your book '%s' has been rented by %s", book.Title, renter.FullName()),
		Category:      domain.NotificationAuthorUpdate,
		RelatedBookID: &book.ID,
	})

	logger.ExitMethod("rentalService.IssueBook", "transactionID", issued.ID, "available", book.AvailableCopies)
	return &issued, nil
}

func (s *rentalService) ReturnBook(ctx context.Context, actorID, transactionID int64) (*domain.Transaction, error) {
	logger.EnterMethod("rentalService.ReturnBook", "actorID", actorID, "transactionID", transactionID)

	var (
		returned domain.Transaction
		book     domain.Book
		renter   domain.User
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		t, err := repos.Transactions.GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := s.authorizeRenter(ctx, repos, actorID, t); err != nil {
			return err
		}
		if !t.IsOpen() {
			return fmt.Errorf("%w: transaction %d", domain.ErrAlreadyReturned, transactionID)
		}

		b, err := repos.Books.GetByIDForUpdate(ctx, t.BookID)
		if err != nil {
			return err
		}
		open, err := repos.Transactions.CountOpenByBook(ctx, t.BookID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if fee, ok := s.fees.Fee(t.DueDate, now); ok {
			t.LateFee = decimal.NewNullDecimal(fee)
		}
		t.Close(now)
		if err := repos.Transactions.Update(ctx, t); err != nil {
			return err
		}
		if err := s.ledger.ReturnCopy(ctx, repos.Books, b, open); err != nil {
			return err
		}

		u, err := repos.Users.GetByID(ctx, t.UserID)
		if err != nil {
			return err
		}
		returned, book, renter = t.Clone(), *b, *u
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.ReturnBook", err, "transactionID", transactionID)
		return nil, err
	}

	s.sink.Notify(ctx, domain.NotificationEvent{
		RecipientID:   renter.ID,
		Message:       fmt.Sprintf("You have successfully returned '%s'.", book.Title),
		Category:      domain.NotificationSystemNotification,
		RelatedBookID: &book.ID,
	})
	s.sink.Notify(ctx, domain.NotificationEvent{
		RecipientID:   book.AuthorID,
		Message:       fmt.Sprintf("Your book '%s' has been returned by %s", book.Title, renter.FullName()),
		Category:      domain.NotificationAuthorUpdate,
		RelatedBookID: &book.ID,
	})

	logger.ExitMethod("rentalService.ReturnBook", "transactionID", transactionID, "lateFee", returned.LateFee.Decimal.String())
	return &returned, nil
}

func (s *rentalService) CalculateLateFee(ctx context.Context, transactionID int64) (*domain.Transaction, error) {
	var out domain.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		t, err := repos.Transactions.GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if !t.IsOverdue(now) {
			out = t.Clone()
			return nil
		}
		fee, ok := s.fees.Fee(t.DueDate, now)
		if ok && !(t.LateFee.Valid && t.LateFee.Decimal.Equal(fee)) {
			t.LateFee = decimal.NewNullDecimal(fee)
			if err := repos.Transactions.Update(ctx, t); err != nil {
				return err
			}
		}
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *rentalService) PayFees(ctx context.Context, actorID, transactionID int64) (*domain.Transaction, error) {
	logger.EnterMethod("rentalService.PayFees", "actorID", actorID, "transactionID", transactionID)

	var (
		paid  domain.Transaction
		title string
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		t, err := repos.Transactions.GetByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := s.authorizeRenter(ctx, repos, actorID, t); err != nil {
			return err
		}
		t.Paid = true
		if err := repos.Transactions.Update(ctx, t); err != nil {
			return err
		}
		b, err := repos.Books.GetByID(ctx, t.BookID)
		if err != nil {
			return err
		}
		paid, title = t.Clone(), b.Title
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("rentalService.PayFees", err, "transactionID", transactionID)
		return nil, err
	}

	s.sink.Notify(ctx, domain.NotificationEvent{
		RecipientID:   paid.UserID,
		Message:       fmt.Sprintf("Payment received for '%s'.", title),
		Category:      domain.NotificationSystemNotification,
		RelatedBookID: &paid.BookID,
	})

	logger.ExitMethod("rentalService.PayFees", "transactionID", transactionID)
	return &paid, nil
}

// authorizeRenter lets the renter and administrators act on a rental.
func (s *rentalService) authorizeRenter(ctx context.Context, repos repository.Repositories, actorID int64, t *domain.Transaction) error {
	if t.UserID == actorID {
		return nil
	}
	actor, err := repos.Users.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: user %d cannot act on transaction %d", domain.ErrForbidden, actorID, t.ID)
	}
	return nil
}

func (s *rentalService) GetTransaction(ctx context.Context, actorID, transactionID int64) (*domain.Transaction, error) {
	repos := s.store.Repos()
	t, err := repos.Transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.UserID == actorID {
		return t, nil
	}
	actor, err := repos.Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return t, nil
	}
	book, err := repos.Books.GetByID(ctx, t.BookID)
	if err != nil {
		return nil, err
	}
	if book.AuthorID != actorID {
		return nil, fmt.Errorf("%w: transaction %d", domain.ErrForbidden, transactionID)
	}
	return t, nil
}

func (s *rentalService) FindActiveRentalsByUser(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	txs, _, err := s.store.Repos().Transactions.List(ctx, domain.TransactionFilter{UserID: userID, OpenOnly: true}, 0, 0)
	return txs, err
}

func (s *rentalService) FindActiveRentalsByBook(ctx context.Context, bookID int64) ([]domain.Transaction, error) {
	txs, _, err := s.store.Repos().Transactions.List(ctx, domain.TransactionFilter{BookID: bookID, OpenOnly: true}, 0, 0)
	return txs, err
}

func (s *rentalService) FindOverdueTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.store.Repos().Transactions.ListOverdue(ctx, s.clock.Now())
}

func (s *rentalService) FindTransactionsBetween(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s is before start %s", domain.ErrInvalidInput, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	txs, _, err := s.store.Repos().Transactions.List(ctx, domain.TransactionFilter{CreatedFrom: &from, CreatedTo: &to}, 0, 0)
	return txs, err
}

func (s *rentalService) ListTransactions(ctx context.Context, filter domain.TransactionFilter, page, pageSize int32) ([]domain.Transaction, int32, error) {
	if filter.OpenOnly && filter.ClosedOnly {
		return nil, 0, fmt.Errorf("%w: open and closed filters are exclusive", domain.ErrInvalidInput)
	}
	return s.store.Repos().Transactions.List(ctx, filter, pageSize, pageOffset(page, pageSize))
}

func (s *rentalService) CountActiveRentals(ctx context.Context) (int64, error) {
	return s.store.Repos().Transactions.CountActive(ctx)
}

func (s *rentalService) CountOverdue(ctx context.Context) (int64, error) {
	return s.store.Repos().Transactions.CountOverdue(ctx, s.clock.Now())
}

func (s *rentalService) Summary(ctx context.Context) (*domain.RentalSummary, error) {
	active, err := s.CountActiveRentals(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.CountOverdue(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.RentalSummary{ActiveRentals: active, OverdueCount: overdue}, nil
}
