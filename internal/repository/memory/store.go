package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/repository"
)

// Store keeps everything in process memory. Units of work stage their writes
// and apply them in one step on commit. Row locks are per book and per
// transaction, so unrelated rentals never wait on each other.
type Store struct {
	mu            sync.RWMutex
	users         map[int64]domain.User
	books         map[int64]domain.Book
	transactions  map[int64]domain.Transaction
	notifications map[int64]domain.Notification

	seq   atomic.Int64
	locks *rowLocks
	now   func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for created_on and updated_on stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		users:         make(map[int64]domain.User),
		books:         make(map[int64]domain.Book),
		transactions:  make(map[int64]domain.Transaction),
		notifications: make(map[int64]domain.Notification),
		locks:         &rowLocks{locks: make(map[string]chan struct{})},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Repos() repository.Repositories {
	return s.bind(nil)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	uow := &unitOfWork{
		store:         s,
		held:          make(map[string]chan struct{}),
		users:         newLayer(&s.mu, s.users, true),
		books:         newLayer(&s.mu, s.books, true),
		transactions:  newLayer(&s.mu, s.transactions, true),
		notifications: newLayer(&s.mu, s.notifications, true),
	}
	defer uow.release()

	if err := fn(ctx, s.bind(uow)); err != nil {
		logger.Debug("Unit of work rolled back", "error", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	uow.users.commit()
	uow.books.commit()
	uow.transactions.commit()
	uow.notifications.commit()
	s.mu.Unlock()
	return nil
}

func (s *Store) bind(uow *unitOfWork) repository.Repositories {
	v := &view{store: s, uow: uow}
	if uow != nil {
		v.users, v.books, v.transactions, v.notifications = uow.users, uow.books, uow.transactions, uow.notifications
	} else {
		v.users = newLayer(&s.mu, s.users, false)
		v.books = newLayer(&s.mu, s.books, false)
		v.transactions = newLayer(&s.mu, s.transactions, false)
		v.notifications = newLayer(&s.mu, s.notifications, false)
	}
	return repository.Repositories{
		Users:         &userRepository{v},
		Books:         &bookRepository{v},
		Transactions:  &transactionRepository{v},
		Notifications: &notificationRepository{v},
	}
}

func (s *Store) nextID() int64 {
	return s.seq.Add(1)
}

// view is what a repository sees: either the committed tables directly or a
// unit of work's staged layer on top of them.
type view struct {
	store         *Store
	uow           *unitOfWork
	users         *layer[domain.User]
	books         *layer[domain.Book]
	transactions  *layer[domain.Transaction]
	notifications *layer[domain.Notification]
}

// lock takes a row lock for the rest of the unit of work. Outside a unit of
// work there is nothing to hold it for, so it is a no-op.
func (v *view) lock(ctx context.Context, key string) error {
	if v.uow == nil {
		return nil
	}
	return v.uow.lock(ctx, key)
}

// exclusive runs fn while holding the given keys. Inside a unit of work the
// keys stay held until it ends, so a staged row is committed before anyone
// else can check the same key. Keys must be passed in a fixed order.
func (v *view) exclusive(ctx context.Context, keys []string, fn func() error) error {
	if v.uow != nil {
		for _, key := range keys {
			if err := v.uow.lock(ctx, key); err != nil {
				return err
			}
		}
		return fn()
	}

	held := make([]chan struct{}, 0, len(keys))
	defer func() {
		for _, ch := range held {
			<-ch
		}
	}()
	for _, key := range keys {
		ch := v.store.locks.get(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fn()
}

type unitOfWork struct {
	store         *Store
	held          map[string]chan struct{}
	users         *layer[domain.User]
	books         *layer[domain.Book]
	transactions  *layer[domain.Transaction]
	notifications *layer[domain.Notification]
}

func (u *unitOfWork) lock(ctx context.Context, key string) error {
	if _, ok := u.held[key]; ok {
		return nil
	}
	ch := u.store.locks.get(key)
	select {
	case ch <- struct{}{}:
		u.held[key] = ch
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *unitOfWork) release() {
	for key, ch := range u.held {
		<-ch
		delete(u.held, key)
	}
}

type rowLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func (r *rowLocks) get(key string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		r.locks[key] = ch
	}
	return ch
}

// layer is one table. With staging on, writes go to staged and reads fall
// through to the committed rows.
type layer[T any] struct {
	mu     *sync.RWMutex
	base   map[int64]T
	staged map[int64]T
}

func newLayer[T any](mu *sync.RWMutex, base map[int64]T, staging bool) *layer[T] {
	l := &layer[T]{mu: mu, base: base}
	if staging {
		l.staged = make(map[int64]T)
	}
	return l
}

func (l *layer[T]) get(id int64) (T, bool) {
	if l.staged != nil {
		if v, ok := l.staged[id]; ok {
			return v, true
		}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.base[id]
	return v, ok
}

func (l *layer[T]) put(id int64, v T) {
	if l.staged != nil {
		l.staged[id] = v
		return
	}
	l.mu.Lock()
	l.base[id] = v
	l.mu.Unlock()
}

// all returns every row ordered by id.
func (l *layer[T]) all() []T {
	merged := make(map[int64]T)
	l.mu.RLock()
	for id, v := range l.base {
		merged[id] = v
	}
	l.mu.RUnlock()
	for id, v := range l.staged {
		merged[id] = v
	}

	ids := make([]int64, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, merged[id])
	}
	return out
}

// commit applies staged rows. The caller holds the store's write lock.
func (l *layer[T]) commit() {
	for id, v := range l.staged {
		l.base[id] = v
	}
}

func page[T any](rows []T, limit, offset int32) []T {
	if offset > 0 {
		if int(offset) >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && int(limit) < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
