package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const displayTimeLayout = "2006-01-02 15:04"

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), a.timeout)
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

// parseTimeFlag accepts RFC 3339 or "YYYY-MM-DD HH:MM" in local time. Empty means nil.
func parseTimeFlag(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(displayTimeLayout, raw, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: use RFC 3339 or %q", name, raw, displayTimeLayout)
	}
	return &t, nil
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", name, raw)
	}
	return d, nil
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatNullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return formatMoney(d.Decimal)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(displayTimeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatMinutes(m *int64) string {
	if m == nil {
		return "-"
	}
	return strconv.FormatInt(*m, 10)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
