// Package pricing computes booking totals.
package pricing

import (
	"fmt"
	"math"

	"github.com/iliyamo/tour-booking-engine/internal/model"
)

// ComputeTotal returns (basePrice + transportSurcharge) * headcount.  Amounts
// are in the smallest currency unit.  A headcount below one fails with
// model.ErrInvalidHeadcount; negative amounts or an overflowing total fail
// with model.ErrInvalidPrice.
func ComputeTotal(basePrice int64, headcount int, transportSurcharge int64) (int64, error) {
	if headcount < 1 {
		return 0, model.ErrInvalidHeadcount
	}
	if basePrice < 0 || transportSurcharge < 0 {
		return 0, fmt.Errorf("%w: negative amount", model.ErrInvalidPrice)
	}
	if basePrice > math.MaxInt64-transportSurcharge {
		return 0, fmt.Errorf("%w: unit price overflows", model.ErrInvalidPrice)
	}
	unit := basePrice + transportSurcharge
	if unit != 0 && int64(headcount) > math.MaxInt64/unit {
		return 0, fmt.Errorf("%w: total overflows", model.ErrInvalidPrice)
	}
	return unit * int64(headcount), nil
}
