package service

import (
	"context"

	"booksphere-backend/internal/domain"
	"booksphere-backend/internal/logger"
	"booksphere-backend/internal/repository"
)

type inventoryLedger struct{}

func NewInventoryLedger() InventoryLedger {
	return &inventoryLedger{}
}

func (l *inventoryLedger) Checkout(ctx context.Context, books repository.BookRepository, book *domain.Book) (bool, error) {
	if !book.Checkout() {
		logger.Debug("Checkout refused, no copies left", "bookID", book.ID)
		return false, nil
	}
	if err := books.UpdateCopies(ctx, book.ID, book.TotalCopies, book.AvailableCopies); err != nil {
		return false, err
	}
	return true, nil
}

func (l *inventoryLedger) ReturnCopy(ctx context.Context, books repository.BookRepository, book *domain.Book, openRentals int32) error {
	retired, err := book.ReturnCopy(openRentals)
	if err != nil {
		logger.Error("Inventory invariant violated on return", "bookID", book.ID, "total", book.TotalCopies, "available", book.AvailableCopies, "error", err)
		return err
	}
	if retired {
		logger.Info("Returned copy retired", "bookID", book.ID, "total", book.TotalCopies, "openRentals", openRentals)
		return nil
	}
	return books.UpdateCopies(ctx, book.ID, book.TotalCopies, book.AvailableCopies)
}

func (l *inventoryLedger) SetTotalCopies(ctx context.Context, books repository.BookRepository, book *domain.Book, newTotal, checkedOut int32) error {
	if err := book.SetTotalCopies(newTotal, checkedOut); err != nil {
		return err
	}
	if checkedOut > newTotal {
		logger.Warn("Total copies below checked out copies, available clamped to zero",
			"bookID", book.ID, "total", newTotal, "checkedOut", checkedOut)
	}
	return books.UpdateCopies(ctx, book.ID, book.TotalCopies, book.AvailableCopies)
}
