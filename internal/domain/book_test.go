package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_Checkout(t *testing.T) {
	b := &Book{TotalCopies: 1, AvailableCopies: 1, Active: true}
	assert.True(t, b.IsAvailable())
	assert.True(t, b.Checkout())
	assert.Equal(t, int32(0), b.AvailableCopies)
	assert.False(t, b.IsAvailable())
	assert.False(t, b.Checkout())
	assert.Equal(t, int32(0), b.AvailableCopies)
}

func TestBook_ReturnCopy(t *testing.T) {
	t.Run("Back On The Shelf", func(t *testing.T) {
		b := &Book{TotalCopies: 2, AvailableCopies: 1}
		retired, err := b.ReturnCopy(1)
		require.NoError(t, err)
		assert.False(t, retired)
		assert.Equal(t, int32(2), b.AvailableCopies)
	})

	t.Run("Retired Copy", func(t *testing.T) {
		b := &Book{TotalCopies: 1, AvailableCopies: 0}
		retired, err := b.ReturnCopy(2)
		require.NoError(t, err)
		assert.True(t, retired)
		assert.Equal(t, int32(0), b.AvailableCopies)
	})

	t.Run("Over Credit", func(t *testing.T) {
		b := &Book{ID: 4, TotalCopies: 2, AvailableCopies: 2}
		_, err := b.ReturnCopy(1)
		assert.ErrorIs(t, err, ErrInvariantViolation)
		assert.Equal(t, int32(2), b.AvailableCopies)
		assert.Equal(t, KindInvariantViolation, KindOf(err))
	})
}

func TestBook_SetTotalCopies(t *testing.T) {
	tests := []struct {
		name       string
		total      int32
		checkedOut int32
		available  int32
		err        error
	}{
		{"grow", 5, 2, 3, nil},
		{"shrink to checked out", 2, 2, 0, nil},
		{"shrink below checked out", 1, 3, 0, nil},
		{"negative total", -1, 0, 1, ErrNegativeCopies},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Book{TotalCopies: 3, AvailableCopies: 1}
			err := b.SetTotalCopies(tt.total, tt.checkedOut)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Equal(t, int32(3), b.TotalCopies)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.total, b.TotalCopies)
			assert.Equal(t, tt.available, b.AvailableCopies)
		})
	}
}

func TestBook_Validate(t *testing.T) {
	assert.NoError(t, (&Book{TotalCopies: 2, AvailableCopies: 2, RentalPrice: decimal.NewFromInt(1)}).Validate())
	assert.ErrorIs(t, (&Book{TotalCopies: 2, AvailableCopies: 3}).Validate(), ErrInvalidInput)
	assert.ErrorIs(t, (&Book{TotalCopies: 1, AvailableCopies: 1, RentalPrice: decimal.NewFromInt(-1)}).Validate(), ErrNegativePrice)
}

func TestNewInventoryAudit(t *testing.T) {
	assert.True(t, NewInventoryAudit(1, 3, 1, 2).Consistent)
	assert.True(t, NewInventoryAudit(1, 1, 0, 3).Consistent)
	assert.False(t, NewInventoryAudit(1, 3, 3, 1).Consistent)
	assert.False(t, NewInventoryAudit(1, 3, 4, 0).Consistent)
}
