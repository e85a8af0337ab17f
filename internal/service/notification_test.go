package service_test

import (
	"errors"
	"testing"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/notify"
	"booksphere-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNotificationSink_Notify(t *testing.T) {
	t.Run("Records And Mails", func(t *testing.T) {
		f := newFixture(t)
		repos := f.store.Repos()
		mailer := new(MockMailer)
		mailer.On("Enqueue", notify.Message{
			To:      "ada@example.com",
			ToName:  "ada Tester",
			Subject: "Your rental is overdue",
			Body:    "Your book 'Dune' is overdue.",
		}).Return("job-1", nil).Once()

		sink := service.NewNotificationSink(repos.Notifications, repos.Users, mailer)
		sink.Notify(f.ctx, domain.NotificationEvent{
			RecipientID: f.reader.ID,
			Message:     "Your book 'Dune' is overdue.",
			Category:    domain.NotificationOverdueAlert,
		})

		notes, total, err := repos.Notifications.List(f.ctx, f.reader.ID, true, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int32(1), total)
		require.Len(t, notes, 1)
		assert.Equal(t, domain.NotificationOverdueAlert, notes[0].Category)
		mailer.AssertExpectations(t)
	})

	t.Run("Mail Failure Is Swallowed", func(t *testing.T) {
		f := newFixture(t)
		repos := f.store.Repos()
		mailer := new(MockMailer)
		mailer.On("Enqueue", mock.Anything).Return("", notify.ErrQueueFull)

		sink := service.NewNotificationSink(repos.Notifications, repos.Users, mailer)
		assert.NotPanics(t, func() {
			sink.Notify(f.ctx, domain.NotificationEvent{RecipientID: f.reader.ID, Message: "hi", Category: domain.NotificationSystemNotification})
		})

		unread, err := repos.Notifications.CountUnread(f.ctx, f.reader.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), unread)
	})

	t.Run("Panicking Mailer Is Contained", func(t *testing.T) {
		f := newFixture(t)
		repos := f.store.Repos()
		mailer := new(MockMailer)
		mailer.On("Enqueue", mock.Anything).Run(func(mock.Arguments) { panic(errors.New("boom")) })

		sink := service.NewNotificationSink(repos.Notifications, repos.Users, mailer)
		assert.NotPanics(t, func() {
			sink.Notify(f.ctx, domain.NotificationEvent{RecipientID: f.reader.ID, Message: "hi", Category: domain.NotificationSystemNotification})
		})
	})

	t.Run("Unknown Recipient", func(t *testing.T) {
		f := newFixture(t)
		repos := f.store.Repos()
		sink := service.NewNotificationSink(repos.Notifications, repos.Users, nil)
		assert.NotPanics(t, func() {
			sink.Notify(f.ctx, domain.NotificationEvent{RecipientID: 0, Message: "nobody", Category: domain.NotificationSystemNotification})
		})
	})
}

func newNotificationFixture(t *testing.T) (*fixture, service.NotificationService) {
	f := newFixture(t)
	repos := f.store.Repos()
	sink := service.NewNotificationSink(repos.Notifications, repos.Users, nil)
	return f, service.NewNotificationService(f.store, sink, f.clock)
}

func TestNotificationService_CreateOverdueNotifications(t *testing.T) {
	f, svc := newNotificationFixture(t)
	book := f.addBook(t, "Dune", 1)
	_, err := f.rentals.IssueBook(f.ctx, f.reader.ID, book.ID, f.dueIn(time.Hour))
	require.NoError(t, err)

	sent, err := svc.CreateOverdueNotifications(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	f.clock.Advance(2 * time.Hour)
	sent, err = svc.CreateOverdueNotifications(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	notes, _, err := svc.GetNotifications(f.ctx, f.reader.ID, true, 1, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Your book 'Dune' is overdue. Please return it as soon as possible to avoid additional late fees.", notes[0].Message)

	// unread alert already waiting
	sent, err = svc.CreateOverdueNotifications(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	require.NoError(t, svc.MarkAsRead(f.ctx, f.reader.ID, notes[0].ID))
	sent, err = svc.CreateOverdueNotifications(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestNotificationService_CreateDueReminders(t *testing.T) {
	f, svc := newNotificationFixture(t)
	soon := f.addBook(t, "Dune", 1)
	later := f.addBook(t, "Solaris", 1)
	_, err := f.rentals.IssueBook(f.ctx, f.reader.ID, soon.ID, f.dueIn(6*time.Hour))
	require.NoError(t, err)
	_, err = f.rentals.IssueBook(f.ctx, f.reader.ID, later.ID, f.dueIn(72*time.Hour))
	require.NoError(t, err)

	sent, err := svc.CreateDueReminders(f.ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	notes, _, err := svc.GetNotifications(f.ctx, f.reader.ID, false, 1, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationDueReminder, notes[0].Category)
	assert.Equal(t, "Your book 'Dune' is due on 2026-03-02 16:00 UTC.", notes[0].Message)
}

func TestNotificationService_Inbox(t *testing.T) {
	f, svc := newNotificationFixture(t)
	repos := f.store.Repos()
	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, repos.Notifications.Create(f.ctx, &domain.Notification{
			UserID: f.reader.ID, Message: msg, Category: domain.NotificationSystemNotification,
		}))
	}

	t.Run("Count Unread", func(t *testing.T) {
		n, err := svc.CountUnread(f.ctx, f.reader.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("Mark Someone Elses", func(t *testing.T) {
		notes, _, err := svc.GetNotifications(f.ctx, f.reader.ID, false, 1, 10)
		require.NoError(t, err)
		err = svc.MarkAsRead(f.ctx, f.author.ID, notes[0].ID)
		assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
	})

	t.Run("Mark All", func(t *testing.T) {
		n, err := svc.MarkAllAsRead(f.ctx, f.reader.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		unread, err := svc.CountUnread(f.ctx, f.reader.ID)
		require.NoError(t, err)
		assert.Zero(t, unread)
	})
}
