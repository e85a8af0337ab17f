package service

import (
	"context"
	"fmt"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/notify"
	"booksphere-backend/internal/repository"
)

// EmailEnqueuer is the part of notify.EmailQueue the sink needs.
type EmailEnqueuer interface {
	Enqueue(msg notify.Message) (string, error)
}

type notificationSink struct {
	noteRepo repository.NotificationRepository
	userRepo repository.UserRepository
	mailer   EmailEnqueuer
}

// NewNotificationSink records events in the recipient's inbox and, when
// mailer is not nil, queues an email copy.
func NewNotificationSink(noteRepo repository.NotificationRepository, userRepo repository.UserRepository, mailer EmailEnqueuer) NotificationSink {
	return &notificationSink{noteRepo: noteRepo, userRepo: userRepo, mailer: mailer}
}

func (s *notificationSink) Notify(ctx context.Context, event domain.NotificationEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Notification sink panicked", "recipientID", event.RecipientID, "category", event.Category, "panic", r)
		}
	}()

	if event.RecipientID == 0 {
		logger.Debug("Notification without recipient dropped", "category", event.Category)
		return
	}

	n := &domain.Notification{
		UserID:        event.RecipientID,
		Message:       event.Message,
		Category:      event.Category,
		RelatedBookID: event.RelatedBookID,
	}
	if err := s.noteRepo.Create(ctx, n); err != nil {
		logger.Warn("Failed to record notification", "recipientID", event.RecipientID, "category", event.Category, "error", err)
	}

	if s.mailer == nil {
		return
	}
	user, err := s.userRepo.GetByID(ctx, event.RecipientID)
	if err != nil {
		logger.Warn("Failed to look up notification recipient", "recipientID", event.RecipientID, "error", err)
		return
	}
	if user.Email == "" {
		return
	}
	if _, err := s.mailer.Enqueue(notify.Message{
		To:      user.Email,
		ToName:  user.FullName(),
		Subject: subjectFor(event.Category),
		Body:    event.Message,
	}); err != nil {
		logger.Warn("Failed to queue notification email", "recipientID", event.RecipientID, "error", err)
	}
}

func subjectFor(category domain.NotificationCategory) string {
	switch category {
	case domain.NotificationOverdueAlert:
		return "Your rental is overdue"
	case domain.NotificationDueReminder:
		return "Your rental is due soon"
	case domain.NotificationAuthorUpdate:
		return "News about your book"
	case domain.NotificationBookAvailable:
		return "A book is available"
	case domain.NotificationNewBookAdded:
		return "Your book was added to the catalog"
	default:
		return "BookSphere notification"
	}
}

type notificationService struct {
	store repository.Store
	sink  NotificationSink
	clock Clock
}

func NewNotificationService(store repository.Store, sink NotificationSink, clock Clock) NotificationService {
	return &notificationService{store: store, sink: sink, clock: clock}
}

func (s *notificationService) GetNotifications(ctx context.Context, userID int64, unreadOnly bool, page, pageSize int32) ([]domain.Notification, int32, error) {
	return s.store.Repos().Notifications.List(ctx, userID, unreadOnly, pageSize, pageOffset(page, pageSize))
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID int64) error {
	return s.store.Repos().Notifications.MarkAsRead(ctx, notificationID, userID)
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	return s.store.Repos().Notifications.MarkAllAsRead(ctx, userID)
}

func (s *notificationService) CountUnread(ctx context.Context, userID int64) (int64, error) {
	return s.store.Repos().Notifications.CountUnread(ctx, userID)
}

// CreateOverdueNotifications alerts every renter holding an overdue book,
// unless an unread alert for the same book is still waiting in their inbox.
func (s *notificationService) CreateOverdueNotifications(ctx context.Context) (int, error) {
	repos := s.store.Repos()
	overdue, err := repos.Transactions.ListOverdue(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue transactions: %w", err)
	}
	return s.notifyRenters(ctx, repos, overdue, domain.NotificationOverdueAlert, func(b *domain.Book, t *domain.Transaction) string {
		return fmt.Sprintf("Your book '%s' is overdue. Please return it as soon as possible to avoid additional late fees.", b.Title)
	})
}

// CreateDueReminders reminds renters whose books fall due within window.
func (s *notificationService) CreateDueReminders(ctx context.Context, window time.Duration) (int, error) {
	repos := s.store.Repos()
	now := s.clock.Now()
	until := now.Add(window)
	due, _, err := repos.Transactions.List(ctx, domain.TransactionFilter{OpenOnly: true, DueFrom: &now, DueTo: &until}, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list rentals due soon: %w", err)
	}
	return s.notifyRenters(ctx, repos, due, domain.NotificationDueReminder, func(b *domain.Book, t *domain.Transaction) string {
		return fmt.Sprintf("Your book '%s' is due on %s.", b.Title, t.DueDate.Format("2006-01-02 15:04 MST"))
	})
}

func (s *notificationService) notifyRenters(ctx context.Context, repos repository.Repositories, txs []domain.Transaction, category domain.NotificationCategory, message func(*domain.Book, *domain.Transaction) string) (int, error) {
	books := make(map[int64]*domain.Book)
	sent := 0
	for i := range txs {
		t := &txs[i]
		exists, err := repos.Notifications.ExistsUnread(ctx, t.UserID, t.BookID, category)
		if err != nil {
			return sent, err
		}
		if exists {
			continue
		}

		book, ok := books[t.BookID]
		if !ok {
			book, err = repos.Books.GetByID(ctx, t.BookID)
			if err != nil {
				logger.Warn("Skipping notification, book lookup failed", "bookID", t.BookID, "error", err)
				continue
			}
			books[t.BookID] = book
		}

		bookID := t.BookID
		s.sink.Notify(ctx, domain.NotificationEvent{
			RecipientID:   t.UserID,
			Message:       message(book, t),
			Category:      category,
			RelatedBookID: &bookID,
		})
		sent++
	}
	return sent, nil
}
