package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestEmailQueue_Delivers(t *testing.T) {
	sender := new(MockSender)
	msg := Message{To: "reader@example.com", Subject: "Returned", Body: "You have successfully returned 'Dune'."}
	sent := make(chan struct{})
	sender.On("Send", mock.Anything, msg).Return(nil).Run(func(args mock.Arguments) { close(sent) }).Once()

	q := NewEmailQueue(sender, 1, 4, 0)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	id, err := q.Enqueue(msg)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("email was not sent")
	}
	cancel()
	q.Wait()
	sender.AssertExpectations(t)
}

func TestEmailQueue_RetriesFailedSend(t *testing.T) {
	sender := new(MockSender)
	msg := Message{To: "reader@example.com", Subject: "Overdue"}
	done := make(chan struct{})
	sender.On("Send", mock.Anything, msg).Return(errors.New("smtp down")).Once()
	sender.On("Send", mock.Anything, msg).Return(nil).Run(func(args mock.Arguments) { close(done) }).Once()

	q := NewEmailQueue(sender, 1, 4, 2)
	q.backoff = func(int) time.Duration { return time.Millisecond }
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	_, err := q.Enqueue(msg)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("email was not retried")
	}
	cancel()
	q.Wait()
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestEmailQueue_Full(t *testing.T) {
	q := NewEmailQueue(new(MockSender), 1, 1, 0)

	_, err := q.Enqueue(Message{To: "a@example.com"})
	require.NoError(t, err)

	_, err = q.Enqueue(Message{To: "b@example.com"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestEmailQueue_Stopped(t *testing.T) {
	q := NewEmailQueue(new(MockSender), 1, 1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	cancel()
	q.Wait()

	_, err := q.Enqueue(Message{To: "a@example.com"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
