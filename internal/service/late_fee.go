package service

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// LateFeePolicy charges a flat rate for every full day past the due date.
type LateFeePolicy struct {
	RatePerDay decimal.Decimal
}

func NewLateFeePolicy(ratePerDay decimal.Decimal) LateFeePolicy {
	return LateFeePolicy{RatePerDay: ratePerDay}
}

// DaysOverdue counts whole 24h periods between due and at. Partial days are dropped.
func (p LateFeePolicy) DaysOverdue(due, at time.Time) int64 {
	if !at.After(due) {
		return 0
	}
	return int64(at.Sub(due) / day)
}

// Fee returns the late fee for a rental due at due and returned (or
// checked) at at. The second result is false when no fee applies.
func (p LateFeePolicy) Fee(due, at time.Time) (decimal.Decimal, bool) {
	days := p.DaysOverdue(due, at)
	if days <= 0 {
		return decimal.Zero, false
	}
	return p.RatePerDay.Mul(decimal.NewFromInt(days)), true
}
