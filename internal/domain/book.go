package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Book struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	ISBN            string          `json:"isbn"`
	AuthorID        int64           `json:"author_id"`
	TotalCopies     int32           `json:"total_copies"`
	AvailableCopies int32           `json:"available_copies"`
	RentalPrice     decimal.Decimal `json:"rental_price"`
	Active          bool            `json:"active"`
	CreatedOn       time.Time       `json:"created_on"`
	UpdatedOn       time.Time       `json:"updated_on"`
}

// IsAvailable reports whether a copy can be rented right now.
func (b *Book) IsAvailable() bool {
	return b.Active && b.AvailableCopies > 0
}

// CheckedOut is the number of copies currently out on loan according to the counters.
func (b *Book) CheckedOut() int32 {
	return b.TotalCopies - b.AvailableCopies
}

// Checkout takes one copy off the shelf. It returns false and leaves the
// book untouched when no copy is available.
func (b *Book) Checkout() bool {
	if b.AvailableCopies <= 0 {
		return false
	}
	b.AvailableCopies--
	return true
}

// ReturnCopy puts one copy back. openRentals is the number of open rentals
// of this book including the one being closed. While more rentals are open
// than copies are owned (copies were retired while on loan) the returned copy
// is the retired one and the shelf count does not move; retired is true then.
// Going above TotalCopies otherwise means a copy was credited twice somewhere
// upstream and is reported, not absorbed.
func (b *Book) ReturnCopy(openRentals int32) (retired bool, err error) {
	if openRentals > b.TotalCopies {
		return true, nil
	}
	if b.AvailableCopies+1 > b.TotalCopies {
		return false, fmt.Errorf("%w: book %d would have %d of %d copies available",
			ErrInvariantViolation, b.ID, b.AvailableCopies+1, b.TotalCopies)
	}
	b.AvailableCopies++
	return false, nil
}

// SetTotalCopies changes the owned copy count and reconciles the available
// count against the copies still checked out. Retiring more copies than are
// on the shelf leaves zero available rather than failing.
func (b *Book) SetTotalCopies(total, checkedOut int32) error {
	if total < 0 {
		return fmt.Errorf("%w: total copies %d", ErrNegativeCopies, total)
	}
	if checkedOut < 0 {
		return fmt.Errorf("%w: checked out copies %d", ErrNegativeCopies, checkedOut)
	}
	available := total - checkedOut
	if available < 0 {
		available = 0
	}
	b.TotalCopies = total
	b.AvailableCopies = available
	return nil
}

// Validate checks the counters and price before a book is stored.
func (b *Book) Validate() error {
	if b.TotalCopies < 0 || b.AvailableCopies < 0 {
		return fmt.Errorf("%w: total=%d available=%d", ErrNegativeCopies, b.TotalCopies, b.AvailableCopies)
	}
	if b.AvailableCopies > b.TotalCopies {
		return fmt.Errorf("%w: available copies %d exceed total %d", ErrInvalidInput, b.AvailableCopies, b.TotalCopies)
	}
	if b.RentalPrice.IsNegative() {
		return fmt.Errorf("%w: rental price %s", ErrNegativePrice, b.RentalPrice.String())
	}
	return nil
}

// BookPopularity is one row of the most rented books report.
type BookPopularity struct {
	Book        Book  `json:"book"`
	RentalCount int64 `json:"rental_count"`
}

// InventoryAudit compares a book's counters with its open rentals.
type InventoryAudit struct {
	BookID          int64 `json:"book_id"`
	TotalCopies     int32 `json:"total_copies"`
	AvailableCopies int32 `json:"available_copies"`
	OpenRentals     int32 `json:"open_rentals"`
	Consistent      bool  `json:"consistent"`
}

// NewInventoryAudit checks available against total minus open rentals. When
// copies were retired below the number on loan, zero available is expected.
func NewInventoryAudit(bookID int64, total, available, open int32) InventoryAudit {
	expected := total - open
	if expected < 0 {
		expected = 0
	}
	return InventoryAudit{
		BookID:          bookID,
		TotalCopies:     total,
		AvailableCopies: available,
		OpenRentals:     open,
		Consistent:      available >= 0 && available <= total && available == expected,
	}
}
