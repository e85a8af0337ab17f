package jobs

import (
	"context"
	"time"

	"booksphere-backend/internal/logger"
)

// NotifyOverdueRentals alerts renters whose books are past due
func (jr *JobRunner) NotifyOverdueRentals() {
	jr.runWithRecovery("NotifyOverdueRentals", func() {
		ctx := context.Background()

		count, err := jr.services.Notification.CreateOverdueNotifications(ctx)
		if err != nil {
			logger.Error("Failed to send overdue alerts", "sent", count, "error", err)
			return
		}
		logger.Info("Overdue alerts sent", "count", count)
	})
}

// SendDueReminders reminds renters of books falling due within the configured window
func (jr *JobRunner) SendDueReminders() {
	jr.runWithRecovery("SendDueReminders", func() {
		ctx := context.Background()
		window := time.Duration(jr.config.Rental.ReminderWindowHours) * time.Hour

		count, err := jr.services.Notification.CreateDueReminders(ctx, window)
		if err != nil {
			logger.Error("Failed to send due reminders", "sent", count, "error", err)
			return
		}
		logger.Info("Due reminders sent", "count", count, "window", window)
	})
}
