package jobs

import (
	"context"

	"booksphere-backend/internal/logger"
)

// RecalculateLateFees refreshes the running late fee of every overdue rental
func (jr *JobRunner) RecalculateLateFees() {
	jr.runWithRecovery("RecalculateLateFees", func() {
		ctx := context.Background()
		log := logger.WithJob("RecalculateLateFees")

		overdue, err := jr.services.Rental.FindOverdueTransactions(ctx)
		if err != nil {
			log.Error("Failed to find overdue rentals", "error", err)
			return
		}

		updated := 0
		for _, t := range overdue {
			tx, err := jr.services.Rental.CalculateLateFee(ctx, t.ID)
			if err != nil {
				log.Error("Failed to recalculate late fee", "transaction_id", t.ID, "error", err)
				continue
			}
			if tx.LateFee.Valid {
				updated++
				log.Debug("Late fee recalculated",
					"transaction_id", tx.ID,
					"user_id", tx.UserID,
					"late_fee", tx.LateFee.Decimal.String())
			}
		}

		log.Info("Late fees recalculated", "overdue", len(overdue), "charged", updated)
	})
}

// AuditInventory reports books whose copy counters disagree with their open rentals
func (jr *JobRunner) AuditInventory() {
	jr.runWithRecovery("AuditInventory", func() {
		ctx := context.Background()
		log := logger.WithJob("AuditInventory")

		broken, err := jr.services.Catalog.AuditAllInventory(ctx)
		if err != nil {
			log.Error("Failed to audit inventory", "error", err)
			return
		}
		if len(broken) > 0 {
			log.Error("Inventory audit found inconsistent books", "count", len(broken))
			return
		}
		log.Info("Inventory audit clean")
	})
}
