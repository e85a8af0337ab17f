package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"booksphere-backend/internal/logger"

	"github.com/google/uuid"
)

var (
	ErrQueueFull   = errors.New("email queue is full")
	ErrQueueClosed = errors.New("email queue is stopped")
)

// EmailJob is an email waiting to be sent.
type EmailJob struct {
	ID        string
	Message   Message
	Retries   int
	CreatedAt time.Time
}

// EmailQueue sends emails on a fixed set of worker goroutines and retries
// failed deliveries with quadratic backoff.
type EmailQueue struct {
	sender     Sender
	jobs       chan EmailJob
	workers    int
	maxRetries int
	backoff    func(retry int) time.Duration

	wg     sync.WaitGroup
	sendMu sync.Mutex
	closed bool
}

func NewEmailQueue(sender Sender, workers, queueSize, maxRetries int) *EmailQueue {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &EmailQueue{
		sender:     sender,
		jobs:       make(chan EmailJob, queueSize),
		workers:    workers,
		maxRetries: maxRetries,
		backoff: func(retry int) time.Duration {
			return time.Duration(retry*retry) * time.Second
		},
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (q *EmailQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (q *EmailQueue) Wait() {
	q.wg.Wait()
}

func (q *EmailQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	logger.Debug("Email worker started", "worker", id)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Email worker stopping", "worker", id)
			q.sendMu.Lock()
			q.closed = true
			q.sendMu.Unlock()
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *EmailQueue) process(ctx context.Context, job EmailJob) {
	err := q.sender.Send(ctx, job.Message)
	if err == nil {
		logger.Debug("Email sent", "job_id", job.ID, "to", job.Message.To)
		return
	}

	if job.Retries >= q.maxRetries {
		logger.Error("Email dropped after retries", "job_id", job.ID, "to", job.Message.To, "retries", job.Retries, "error", err)
		return
	}
	job.Retries++
	delay := q.backoff(job.Retries)
	logger.Warn("Email send failed, retrying", "job_id", job.ID, "attempt", job.Retries, "max_retries", q.maxRetries, "delay", delay, "error", err)
	time.AfterFunc(delay, func() {
		if err := q.push(job); err != nil {
			logger.Error("Email retry dropped", "job_id", job.ID, "error", err)
		}
	})
}

// Enqueue adds an email to the queue without blocking.
func (q *EmailQueue) Enqueue(msg Message) (string, error) {
	job := EmailJob{
		ID:        uuid.NewString(),
		Message:   msg,
		CreatedAt: time.Now(),
	}
	if err := q.push(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (q *EmailQueue) push(job EmailJob) error {
	q.sendMu.Lock()
	defer q.sendMu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}
