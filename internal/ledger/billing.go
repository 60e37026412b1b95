package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

var minutesPerHour = decimal.NewFromInt(60)

// BilledMinutes returns the elapsed time rounded up to whole minutes.
// Any started minute is billed in full; zero elapsed time bills nothing.
func BilledMinutes(start, end time.Time) int64 {
	elapsed := end.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	minutes := int64(elapsed / time.Minute)
	if elapsed%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// ChargeFor returns minutes * pricePerHour / 60 rounded half away from zero to 2 places
func ChargeFor(minutes int64, pricePerHour decimal.Decimal) decimal.Decimal {
	if minutes <= 0 {
		return decimal.Zero.Round(2)
	}
	exact := decimal.NewFromInt(minutes).Mul(pricePerHour).DivRound(minutesPerHour, 16)
	return exact.Round(2)
}

// ComputeCharge returns the billed minutes and amount owed for a session spanning start..end
func ComputeCharge(start, end time.Time, pricePerHour decimal.Decimal) (int64, decimal.Decimal) {
	minutes := BilledMinutes(start, end)
	return minutes, ChargeFor(minutes, pricePerHour)
}

// validMoney reports whether d has at most two decimal places
func validMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
