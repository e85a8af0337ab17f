package domain

import "time"

type NotificationCategory string

const (
	NotificationDueReminder        NotificationCategory = "DUE_REMINDER"
	NotificationOverdueAlert       NotificationCategory = "OVERDUE_ALERT"
	NotificationBookAvailable      NotificationCategory = "BOOK_AVAILABLE"
	NotificationNewBookAdded       NotificationCategory = "NEW_BOOK_ADDED"
	NotificationAuthorUpdate       NotificationCategory = "AUTHOR_UPDATE"
	NotificationSystemNotification NotificationCategory = "SYSTEM_NOTIFICATION"
)

type Notification struct {
	ID            int64                `json:"id"`
	UserID        int64                `json:"user_id"`
	Message       string               `json:"message"`
	Category      NotificationCategory `json:"category"`
	RelatedBookID *int64               `json:"related_book_id,omitempty"`
	IsRead        bool                 `json:"is_read"`
	CreatedOn     time.Time            `json:"created_on"`
}

// NotificationEvent is what the rental engine hands to the notification sink.
type NotificationEvent struct {
	RecipientID   int64
	Message       string
	Category      NotificationCategory
	RelatedBookID *int64
}
