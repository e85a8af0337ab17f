package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeIssue  TransactionType = "ISSUE"
	TransactionTypeReturn TransactionType = "RETURN"
)

type Transaction struct {
	ID          int64               `json:"id"`
	UserID      int64               `json:"user_id"`
	BookID      int64               `json:"book_id"`
	Type        TransactionType     `json:"type"`
	IssueDate   time.Time           `json:"issue_date"`
	DueDate     time.Time           `json:"due_date"`
	ReturnDate  *time.Time          `json:"return_date"`
	RentalPrice decimal.Decimal     `json:"rental_price"`
	LateFee     decimal.NullDecimal `json:"late_fee"`
	Paid        bool                `json:"paid"`
	CreatedOn   time.Time           `json:"created_on"`
	UpdatedOn   time.Time           `json:"updated_on"`
}

// IsOpen reports whether the book is still out on this rental.
func (t *Transaction) IsOpen() bool {
	return t.ReturnDate == nil
}

// IsOverdue reports whether the rental is open and past its due date at now.
func (t *Transaction) IsOverdue(now time.Time) bool {
	return t.Type == TransactionTypeIssue && t.ReturnDate == nil && now.After(t.DueDate)
}

// Close marks the rental returned at the given time. It must only be called on an open rental.
func (t *Transaction) Close(at time.Time) {
	returned := at
	t.ReturnDate = &returned
	t.Type = TransactionTypeReturn
}

// Clone returns a copy that shares no pointers with t.
func (t Transaction) Clone() Transaction {
	if t.ReturnDate != nil {
		rd := *t.ReturnDate
		t.ReturnDate = &rd
	}
	return t
}

// TransactionFilter narrows transaction listings. Zero values mean "any".
type TransactionFilter struct {
	UserID      int64
	BookID      int64
	AuthorID    int64
	OpenOnly    bool
	ClosedOnly  bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	DueFrom     *time.Time
	DueTo       *time.Time
}

// Matches applies the filter to a transaction whose book author is authorID.
func (f TransactionFilter) Matches(t *Transaction, authorID int64) bool {
	if f.UserID != 0 && t.UserID != f.UserID {
		return false
	}
	if f.BookID != 0 && t.BookID != f.BookID {
		return false
	}
	if f.AuthorID != 0 && authorID != f.AuthorID {
		return false
	}
	if f.OpenOnly && !t.IsOpen() {
		return false
	}
	if f.ClosedOnly && t.IsOpen() {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedOn.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedOn.After(*f.CreatedTo) {
		return false
	}
	if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && t.DueDate.After(*f.DueTo) {
		return false
	}
	return true
}

// RentalSummary carries the aggregate counts used by reporting.
type RentalSummary struct {
	ActiveRentals int64 `json:"active_rentals"`
	OverdueCount  int64 `json:"overdue_count"`
}
