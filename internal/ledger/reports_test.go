package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavkata12/app/internal/models"
)

func TestDailyReport(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	// Europe/Sofia is UTC+2 on 2024-03-01
	c1 := env.computer(t, "PC-01", "192.168.1.101")
	c2 := env.computer(t, "PC-02", "192.168.1.102")
	tariff := env.tariff(t, "Standard", "2.00")

	closed := env.mustClose(t, c1.ID, tariff.ID, baseTime, baseTime.Add(30*time.Minute+30*time.Second))
	env.now = baseTime.Add(time.Hour)
	_, err := env.ledger.RecordPayment(ctx, closed.ID, decimal.RequireFromString("1.00"), models.PaymentCash)
	require.NoError(t, err)

	// Still active, counted but not billed
	_, err = env.ledger.OpenSession(ctx, c2.ID, tariff.ID, baseTime.Add(2*time.Hour))
	require.NoError(t, err)

	// 23:30 UTC is already the next local day
	env.mustClose(t, c1.ID, tariff.ID, baseTime.Add(13*time.Hour+30*time.Minute), baseTime.Add(14*time.Hour+30*time.Minute))

	report, err := env.ledger.DailyReport(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", report.Date)
	assert.Equal(t, "Europe/Sofia", report.Timezone)
	assert.Equal(t, "BGN", report.Currency)
	assert.Equal(t, 2, report.TotalSessions)
	assert.Equal(t, 1, report.ClosedSessions)
	assert.Equal(t, int64(31), report.TotalMinutes)
	assert.Equal(t, "1.03", report.TotalRevenue.StringFixed(2))
	assert.Equal(t, "1.00", report.PaymentsReceived.StringFixed(2))

	next, err := env.ledger.DailyReport(ctx, "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, 1, next.TotalSessions)
	assert.Equal(t, int64(60), next.TotalMinutes)
	assert.Equal(t, "2.00", next.TotalRevenue.StringFixed(2))

	_, err = env.ledger.DailyReport(ctx, "01/03/2024")
	assert.True(t, IsValidationError(err))
}

func TestDailyReport_DefaultsToToday(t *testing.T) {
	env := setupLedger(t)

	_, err := env.ledger.SetSetting(context.Background(), SettingTimezone, "UTC")
	require.NoError(t, err)

	report, err := env.ledger.DailyReport(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", report.Date)
	assert.Equal(t, 0, report.TotalSessions)
	assert.True(t, report.TotalRevenue.IsZero())
}

func TestComputerUsageReport(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	_, err := env.ledger.SetSetting(ctx, SettingTimezone, "UTC")
	require.NoError(t, err)

	c := env.computer(t, "PC-01", "192.168.1.101")
	other := env.computer(t, "PC-02", "192.168.1.102")
	tariff := env.tariff(t, "Standard", "2.00")

	env.mustClose(t, c.ID, tariff.ID, baseTime, baseTime.Add(time.Hour))
	env.mustClose(t, c.ID, tariff.ID, baseTime.Add(2*time.Hour), baseTime.Add(2*time.Hour+30*time.Minute))
	env.mustClose(t, c.ID, tariff.ID, baseTime.AddDate(0, 0, 2), baseTime.AddDate(0, 0, 2).Add(15*time.Minute))
	env.mustClose(t, other.ID, tariff.ID, baseTime, baseTime.Add(time.Hour))

	days, err := env.ledger.ComputerUsageReport(ctx, c.ID, "2024-03-01", "2024-03-05")
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, "2024-03-01", days[0].Date)
	assert.Equal(t, 2, days[0].SessionsCount)
	assert.Equal(t, int64(90), days[0].TotalMinutes)
	assert.Equal(t, "3.00", days[0].TotalRevenue.StringFixed(2))

	assert.Equal(t, "2024-03-03", days[1].Date)
	assert.Equal(t, 1, days[1].SessionsCount)
	assert.Equal(t, "0.50", days[1].TotalRevenue.StringFixed(2))

	_, err = env.ledger.ComputerUsageReport(ctx, 999, "", "")
	assert.True(t, IsNotFoundError(err))

	_, err = env.ledger.ComputerUsageReport(ctx, c.ID, "2024-03-05", "2024-03-01")
	assert.True(t, IsValidationError(err))

	_, err = env.ledger.ComputerUsageReport(ctx, c.ID, "2022-01-01", "2024-03-01")
	assert.True(t, IsValidationError(err))
}

func (env *testEnv) mustClose(t *testing.T, computerID, tariffID int64, start, end time.Time) *models.Session {
	t.Helper()
	ctx := context.Background()
	s, err := env.ledger.OpenSession(ctx, computerID, tariffID, start)
	require.NoError(t, err)
	closed, err := env.ledger.CloseSession(ctx, s.ID, end)
	require.NoError(t, err)
	return closed
}
