package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/repository"
)

type userRepository struct{ v *view }

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	keys := []string{"username:" + strings.ToLower(u.Username), "email:" + strings.ToLower(u.Email)}
	return r.v.exclusive(ctx, keys, func() error {
		for _, existing := range r.v.users.all() {
			if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateUser, u.Username)
			}
		}
		u.ID = r.v.store.nextID()
		if u.CreatedOn.IsZero() {
			u.CreatedOn = r.v.store.now()
		}
		r.v.users.put(u.ID, *u)
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, ok := r.v.users.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrUserNotFound, id)
	}
	return &u, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range r.v.users.all() {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: id %s", domain.ErrUserNotFound, username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.v.users.all() {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: id %s", domain.ErrUserNotFound, email)
}

type bookRepository struct{ v *view }

func bookKey(id int64) string { return fmt.Sprintf("book:%d", id) }

func isbnKey(isbn string) string { return "isbn:" + isbn }

// checkCounters mirrors the books_copies_check constraint.
func checkCounters(total, available int32) error {
	if total < 0 || available < 0 || available > total {
		return fmt.Errorf("%w: total=%d available=%d", domain.ErrInvariantViolation, total, available)
	}
	return nil
}

func (r *bookRepository) Create(ctx context.Context, b *domain.Book) error {
	if err := checkCounters(b.TotalCopies, b.AvailableCopies); err != nil {
		return err
	}
	if _, ok := r.v.users.get(b.AuthorID); !ok {
		return fmt.Errorf("%w: author %d does not exist", domain.ErrInvalidInput, b.AuthorID)
	}
	return r.v.exclusive(ctx, []string{isbnKey(b.ISBN)}, func() error {
		for _, existing := range r.v.books.all() {
			if existing.ISBN == b.ISBN {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateISBN, b.ISBN)
			}
		}
		now := r.v.store.now()
		b.ID = r.v.store.nextID()
		b.CreatedOn = now
		b.UpdatedOn = now
		r.v.books.put(b.ID, *b)
		return nil
	})
}

func (r *bookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	b, ok := r.v.books.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrBookNotFound, id)
	}
	return &b, nil
}

func (r *bookRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Book, error) {
	if err := r.v.lock(ctx, bookKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *bookRepository) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	for _, b := range r.v.books.all() {
		if b.ISBN == isbn {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("%w: id %s", domain.ErrBookNotFound, isbn)
}

func (r *bookRepository) Update(ctx context.Context, b *domain.Book) error {
	if _, ok := r.v.books.get(b.ID); !ok {
		return fmt.Errorf("%w: id %d", domain.ErrBookNotFound, b.ID)
	}
	if err := checkCounters(b.TotalCopies, b.AvailableCopies); err != nil {
		return err
	}
	return r.v.exclusive(ctx, []string{isbnKey(b.ISBN)}, func() error {
		for _, existing := range r.v.books.all() {
			if existing.ISBN == b.ISBN && existing.ID != b.ID {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateISBN, b.ISBN)
			}
		}
		b.UpdatedOn = r.v.store.now()
		r.v.books.put(b.ID, *b)
		return nil
	})
}

func (r *bookRepository) UpdateCopies(ctx context.Context, id int64, total, available int32) error {
	b, ok := r.v.books.get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", domain.ErrBookNotFound, id)
	}
	if err := checkCounters(total, available); err != nil {
		return err
	}
	b.TotalCopies = total
	b.AvailableCopies = available
	b.UpdatedOn = r.v.store.now()
	r.v.books.put(id, b)
	return nil
}

func (r *bookRepository) List(ctx context.Context, filter repository.BookFilter, limit, offset int32) ([]domain.Book, int32, error) {
	title := strings.ToLower(filter.Title)
	var matched []domain.Book
	for _, b := range r.v.books.all() {
		if filter.AuthorID != 0 && b.AuthorID != filter.AuthorID {
			continue
		}
		if filter.ActiveOnly && !b.Active {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(b.Title), title) {
			continue
		}
		matched = append(matched, b)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })
	return page(matched, limit, offset), int32(len(matched)), nil
}

func (r *bookRepository) ListMostPopular(ctx context.Context, limit int32) ([]domain.BookPopularity, error) {
	counts := make(map[int64]int64)
	for _, t := range r.v.transactions.all() {
		counts[t.BookID]++
	}
	var out []domain.BookPopularity
	for _, b := range r.v.books.all() {
		if n := counts[b.ID]; n > 0 {
			out = append(out, domain.BookPopularity{Book: b, RentalCount: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RentalCount > out[j].RentalCount })
	return page(out, limit, 0), nil
}

func (r *bookRepository) ListInventoryAudit(ctx context.Context) ([]domain.InventoryAudit, error) {
	open := make(map[int64]int32)
	for _, t := range r.v.transactions.all() {
		if t.IsOpen() {
			open[t.BookID]++
		}
	}
	var out []domain.InventoryAudit
	for _, b := range r.v.books.all() {
		out = append(out, domain.NewInventoryAudit(b.ID, b.TotalCopies, b.AvailableCopies, open[b.ID]))
	}
	return out, nil
}

type transactionRepository struct{ v *view }

func transactionKey(id int64) string { return fmt.Sprintf("transaction:%d", id) }

func (r *transactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	if t.IsOpen() {
		open, err := r.HasOpenRental(ctx, t.UserID, t.BookID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: user %d book %d", domain.ErrDuplicateRental, t.UserID, t.BookID)
		}
	}
	now := r.v.store.now()
	t.ID = r.v.store.nextID()
	t.CreatedOn = now
	t.UpdatedOn = now
	r.v.transactions.put(t.ID, t.Clone())
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	t, ok := r.v.transactions.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrTransactionNotFound, id)
	}
	t = t.Clone()
	return &t, nil
}

func (r *transactionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	if err := r.v.lock(ctx, transactionKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *transactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	if _, ok := r.v.transactions.get(t.ID); !ok {
		return fmt.Errorf("%w: id %d", domain.ErrTransactionNotFound, t.ID)
	}
	t.UpdatedOn = r.v.store.now()
	r.v.transactions.put(t.ID, t.Clone())
	return nil
}

func (r *transactionRepository) HasOpenRental(ctx context.Context, userID, bookID int64) (bool, error) {
	for _, t := range r.v.transactions.all() {
		if t.UserID == userID && t.BookID == bookID && t.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (r *transactionRepository) CountOpenByBook(ctx context.Context, bookID int64) (int32, error) {
	var n int32
	for _, t := range r.v.transactions.all() {
		if t.BookID == bookID && t.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (r *transactionRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range r.v.transactions.all() {
		if t.IsOverdue(now) {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (r *transactionRepository) List(ctx context.Context, filter domain.TransactionFilter, limit, offset int32) ([]domain.Transaction, int32, error) {
	var matched []domain.Transaction
	for _, t := range r.v.transactions.all() {
		var authorID int64
		if b, ok := r.v.books.get(t.BookID); ok {
			authorID = b.AuthorID
		}
		if filter.Matches(&t, authorID) {
			matched = append(matched, t.Clone())
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedOn.Equal(matched[j].CreatedOn) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedOn.After(matched[j].CreatedOn)
	})
	return page(matched, limit, offset), int32(len(matched)), nil
}

func (r *transactionRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	for _, t := range r.v.transactions.all() {
		if t.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (r *transactionRepository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, t := range r.v.transactions.all() {
		if t.IsOverdue(now) {
			n++
		}
	}
	return n, nil
}

type notificationRepository struct{ v *view }

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	n.ID = r.v.store.nextID()
	if n.CreatedOn.IsZero() {
		n.CreatedOn = r.v.store.now()
	}
	r.v.notifications.put(n.ID, *n)
	return nil
}

func (r *notificationRepository) forUser(userID int64, unreadOnly bool) []domain.Notification {
	var out []domain.Notification
	for _, n := range r.v.notifications.all() {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (r *notificationRepository) List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int32) ([]domain.Notification, int32, error) {
	notes := r.forUser(userID, unreadOnly)
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].CreatedOn.Equal(notes[j].CreatedOn) {
			return notes[i].ID > notes[j].ID
		}
		return notes[i].CreatedOn.After(notes[j].CreatedOn)
	})
	return page(notes, limit, offset), int32(len(notes)), nil
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, userID int64) error {
	n, ok := r.v.notifications.get(id)
	if !ok || n.UserID != userID {
		return fmt.Errorf("%w: id %d", domain.ErrNotificationNotFound, id)
	}
	n.IsRead = true
	r.v.notifications.put(id, n)
	return nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	var updated int64
	for _, n := range r.forUser(userID, true) {
		n.IsRead = true
		r.v.notifications.put(n.ID, n)
		updated++
	}
	return updated, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	return int64(len(r.forUser(userID, true))), nil
}

func (r *notificationRepository) ExistsUnread(ctx context.Context, userID, bookID int64, category domain.NotificationCategory) (bool, error) {
	for _, n := range r.forUser(userID, true) {
		if n.Category == category && n.RelatedBookID != nil && *n.RelatedBookID == bookID {
			return true, nil
		}
	}
	return false, nil
}
