package postgres

import (
	"context"
	"time"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/repository"
)

type notificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	logger.EnterMethod("notificationRepository.Create", "userID", n.UserID, "category", n.Category)

	query := `INSERT INTO notifications (user_id, message, category, related_book_id, is_read, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	logger.DatabaseCall("INSERT", "notifications", "userID", n.UserID)

	if n.CreatedOn.IsZero() {
		n.CreatedOn = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, query, n.UserID, n.Message, n.Category, n.RelatedBookID, n.IsRead, n.CreatedOn).Scan(&n.ID)
	logger.DatabaseResult("INSERT", 1, err, "notificationID", n.ID)

	if err != nil {
		logger.ExitMethodWithError("notificationRepository.Create", err, "userID", n.UserID)
		return classify(err)
	}
	logger.ExitMethod("notificationRepository.Create", "notificationID", n.ID)
	return nil
}

func (r *notificationRepository) List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int32) ([]domain.Notification, int32, error) {
	where := ` WHERE user_id = $1`
	if unreadOnly {
		where += ` AND is_read = FALSE`
	}

	var count int32
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM notifications`+where, userID).Scan(&count); err != nil {
		return nil, 0, err
	}

	// LIMIT NULL is no limit
	var pageLimit any
	if limit > 0 {
		pageLimit = limit
	}
	query := `SELECT id, user_id, message, category, related_book_id, is_read, created_on FROM notifications` +
		where + ` ORDER BY created_on DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, pageLimit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notes []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Category, &n.RelatedBookID, &n.IsRead, &n.CreatedOn); err != nil {
			return nil, 0, err
		}
		notes = append(notes, n)
	}
	return notes, count, rows.Err()
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, userID int64) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrNotificationNotFound, id)
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&count)
	return count, err
}

func (r *notificationRepository) ExistsUnread(ctx context.Context, userID, bookID int64, category domain.NotificationCategory) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM notifications
	          WHERE user_id = $1 AND related_book_id = $2 AND category = $3 AND is_read = FALSE)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, userID, bookID, category).Scan(&exists)
	return exists, err
}
