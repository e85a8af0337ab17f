package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/notify"
	"booksphere-backend/internal/repository/memory"
	"booksphere-backend/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Notify(ctx context.Context, event domain.NotificationEvent) {
	m.Called(ctx, event)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Enqueue(msg notify.Message) (string, error) {
	args := m.Called(msg)
	return args.String(0), args.Error(1)
}

var lateFeeRate = decimal.RequireFromString("1.50")

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	clock   *fakeClock
	sink    *MockSink
	rentals service.RentalService
	catalog service.CatalogService

	author *domain.User
	reader *domain.User
	admin  *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithClock(clock.Now))
	sink := new(MockSink)
	sink.On("Notify", mock.Anything, mock.Anything).Return()

	ledger := service.NewInventoryLedger()
	f := &fixture{
		ctx:     context.Background(),
		store:   store,
		clock:   clock,
		sink:    sink,
		rentals: service.NewRentalService(store, ledger, service.NewLateFeePolicy(lateFeeRate), sink, clock),
		catalog: service.NewCatalogService(store, ledger, sink),
	}
	f.author = f.addUser(t, "hherbert", domain.UserRoleAuthor)
	f.reader = f.addUser(t, "ada", domain.UserRoleUser)
	f.admin = f.addUser(t, "root", domain.UserRoleAdmin)
	return f
}

func (f *fixture) addUser(t *testing.T, username string, role domain.UserRole) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: username,
		LastName:  "Tester",
		Role:      role,
		Active:    true,
	}
	require.NoError(t, f.store.Repos().Users.Create(f.ctx, u))
	return u
}

func (f *fixture) addBook(t *testing.T, title string, copies int32) *domain.Book {
	t.Helper()
	b := &domain.Book{
		Title:           title,
		ISBN:            "978-" + title,
		AuthorID:        f.author.ID,
		TotalCopies:     copies,
		AvailableCopies: copies,
		RentalPrice:     decimal.RequireFromString("3.99"),
		Active:          true,
	}
	require.NoError(t, f.store.Repos().Books.Create(f.ctx, b))
	return b
}

func (f *fixture) book(t *testing.T, id int64) *domain.Book {
	t.Helper()
	b, err := f.store.Repos().Books.GetByID(f.ctx, id)
	require.NoError(t, err)
	return b
}

func (f *fixture) dueIn(d time.Duration) time.Time {
	return f.clock.Now().Add(d)
}
