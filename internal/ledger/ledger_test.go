package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavkata12/app/internal/database"
	"github.com/pavkata12/app/internal/events"
	"github.com/pavkata12/app/internal/models"
)

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]events.Type, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

type testEnv struct {
	ledger    *Ledger
	db        *database.BunDB
	publisher *recordingPublisher
	now       time.Time
}

func setupLedger(t *testing.T) *testEnv {
	t.Helper()
	return setupLedgerAt(t, ":memory:")
}

func setupLedgerAt(t *testing.T, dsn string, opts ...database.Option) *testEnv {
	t.Helper()

	db, err := database.New(dsn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db, publisher: &recordingPublisher{}, now: baseTime}
	env.ledger = New(db,
		WithPublisher(env.publisher),
		WithClock(func() time.Time { return env.now }),
	)
	return env
}

func (env *testEnv) computer(t *testing.T, name, ip string) *models.Computer {
	t.Helper()
	c, err := env.ledger.RegisterComputer(context.Background(), name, ip)
	require.NoError(t, err)
	return c
}

func (env *testEnv) tariff(t *testing.T, name, price string) *models.Tariff {
	t.Helper()
	tariff, err := env.ledger.CreateTariff(context.Background(), TariffInput{
		Name:         name,
		PricePerHour: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return tariff
}

// closedSession opens and closes the reference session: 2.00/h for 10:00:00..10:30:30
func (env *testEnv) closedSession(t *testing.T) *models.Session {
	t.Helper()
	ctx := context.Background()
	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")

	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)

	closed, err := env.ledger.CloseSession(ctx, s.ID, baseTime.Add(30*time.Minute+30*time.Second))
	require.NoError(t, err)
	return closed
}

func TestOpenSession(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")

	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)

	assert.NotZero(t, s.ID)
	assert.Equal(t, models.SessionActive, s.Status)
	assert.True(t, s.StartTime.Equal(baseTime))
	assert.Nil(t, s.EndTime)
	assert.Nil(t, s.DurationMinutes)
	assert.False(t, s.AmountPaid.Valid)

	stored, err := env.ledger.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, stored.Status)
	assert.True(t, stored.StartTime.Equal(baseTime))
	assert.Nil(t, stored.EndTime)
	assert.False(t, stored.AmountPaid.Valid)

	assert.Equal(t, []events.Type{events.SessionOpened}, env.publisher.types())
}

func TestOpenSession_DefaultsToNow(t *testing.T) {
	env := setupLedger(t)
	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")

	s, err := env.ledger.OpenSession(context.Background(), c.ID, tariff.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, s.StartTime.Equal(env.now))
}

func TestOpenSession_Conflict(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")

	first, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)

	_, err = env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, IsConflictError(err), "got %v", err)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, c.ID, conflict.ComputerID)
	assert.Equal(t, first.ID, conflict.ActiveSessionID)

	// Once the first session is settled the computer is free again
	_, err = env.ledger.CancelSession(ctx, first.ID)
	require.NoError(t, err)
	_, err = env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime.Add(2*time.Minute))
	require.NoError(t, err)
}

func TestOpenSession_NotFound(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")

	_, err := env.ledger.OpenSession(ctx, 999, tariff.ID, baseTime)
	assert.True(t, IsNotFoundError(err), "unknown computer: %v", err)

	_, err = env.ledger.OpenSession(ctx, c.ID, 999, baseTime)
	assert.True(t, IsNotFoundError(err), "unknown tariff: %v", err)

	_, err = env.ledger.DeactivateTariff(ctx, tariff.ID)
	require.NoError(t, err)
	_, err = env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	assert.True(t, IsNotFoundError(err), "inactive tariff: %v", err)

	assert.Empty(t, env.publisher.types())
}

func TestOpenSession_ConcurrentOnSameComputer(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		assertSingleWinner(t, setupLedger(t))
	})
	t.Run("file with larger pool", func(t *testing.T) {
		dsn := "file:" + filepath.Join(t.TempDir(), "gc.db")
		assertSingleWinner(t, setupLedgerAt(t, dsn, database.WithMaxOpenConns(4)))
	})
}

// assertSingleWinner races OpenSession on one computer; exactly one caller wins
// and every other caller gets a ConflictError.
func assertSingleWinner(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")

	const callers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case IsConflictError(err):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)

	active, err := env.db.Sessions.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

func TestCloseSession_Example(t *testing.T) {
	env := setupLedger(t)

	closed := env.closedSession(t)

	assert.Equal(t, models.SessionClosed, closed.Status)
	require.NotNil(t, closed.EndTime)
	require.NotNil(t, closed.DurationMinutes)
	assert.Equal(t, int64(31), *closed.DurationMinutes)
	require.True(t, closed.AmountPaid.Valid)
	assert.Equal(t, "1.03", closed.AmountPaid.Decimal.StringFixed(2))

	stored, err := env.ledger.GetSession(context.Background(), closed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionClosed, stored.Status)
	require.NotNil(t, stored.EndTime)
	assert.False(t, stored.EndTime.Before(stored.StartTime))
	require.NotNil(t, stored.DurationMinutes)
	assert.Equal(t, int64(31), *stored.DurationMinutes)
	assert.True(t, stored.AmountPaid.Decimal.Equal(decimal.RequireFromString("1.03")))

	assert.Equal(t, []events.Type{events.SessionOpened, events.SessionClosed}, env.publisher.types())
}

func TestCloseSession_SubMicrosecondStart(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")

	start := baseTime.Add(123456789 * time.Nanosecond)
	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, start)
	require.NoError(t, err)

	stored, err := env.ledger.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, s.StartTime.Equal(stored.StartTime), "returned %s, stored %s", s.StartTime, stored.StartTime)

	closed, err := env.ledger.CloseSession(ctx, s.ID, start.Add(30*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, closed.DurationMinutes)
	assert.Equal(t, int64(30), *closed.DurationMinutes)
	assert.Equal(t, "1.00", closed.AmountPaid.Decimal.StringFixed(2))

	stored, err = env.ledger.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EndTime)
	assert.True(t, closed.EndTime.Equal(*stored.EndTime))
	assert.Equal(t, int64(30), *stored.DurationMinutes)
}

func TestCloseSession_ZeroDuration(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")
	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)

	closed, err := env.ledger.CloseSession(ctx, s.ID, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(0), *closed.DurationMinutes)
	assert.True(t, closed.AmountPaid.Decimal.IsZero())
}

func TestCloseSession_EndBeforeStart(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")
	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)

	_, err = env.ledger.CloseSession(ctx, s.ID, baseTime.Add(-time.Second))
	assert.True(t, IsValidationError(err), "got %v", err)

	stored, err := env.ledger.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, stored.Status)
}

func TestCloseSession_InvalidState(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	closed := env.closedSession(t)
	_, err := env.ledger.CloseSession(ctx, closed.ID, baseTime.Add(time.Hour))
	assert.True(t, IsInvalidStateError(err), "closing a closed session: %v", err)

	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, models.SessionClosed, stateErr.Status)

	c := env.computer(t, "PC-02", "192.168.1.102")
	tariff := env.tariff(t, "Night", "1.50")
	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)
	_, err = env.ledger.CancelSession(ctx, s.ID)
	require.NoError(t, err)

	_, err = env.ledger.CloseSession(ctx, s.ID, baseTime.Add(time.Hour))
	assert.True(t, IsInvalidStateError(err), "closing a cancelled session: %v", err)

	_, err = env.ledger.CloseSession(ctx, 999, baseTime)
	assert.True(t, IsNotFoundError(err))
}

func TestCloseSession_UsesPriceAtClose(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")
	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)

	// A retired tariff still bills the sessions already running under it
	_, err = env.ledger.DeactivateTariff(ctx, tariff.ID)
	require.NoError(t, err)

	closed, err := env.ledger.CloseSession(ctx, s.ID, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "2.00", closed.AmountPaid.Decimal.StringFixed(2))
}

func TestCancelSession(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")
	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)

	cancelled, err := env.ledger.CancelSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, cancelled.Status)

	stored, err := env.ledger.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, stored.Status)
	assert.Nil(t, stored.EndTime)
	assert.Nil(t, stored.DurationMinutes)
	assert.False(t, stored.AmountPaid.Valid)

	_, err = env.ledger.CancelSession(ctx, s.ID)
	assert.True(t, IsInvalidStateError(err))

	_, err = env.ledger.CancelSession(ctx, 999)
	assert.True(t, IsNotFoundError(err))

	assert.Equal(t, []events.Type{events.SessionOpened, events.SessionCancelled}, env.publisher.types())
}

func TestRecordPayment_Example(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	closed := env.closedSession(t)

	payment, err := env.ledger.RecordPayment(ctx, closed.ID, decimal.RequireFromString("1.03"), models.PaymentCash)
	require.NoError(t, err)
	assert.NotZero(t, payment.ID)
	assert.Equal(t, models.PaymentCash, payment.Method)

	_, err = env.ledger.RecordPayment(ctx, closed.ID, decimal.RequireFromString("0.01"), models.PaymentCash)
	require.Error(t, err)
	assert.True(t, IsOverpaymentError(err), "got %v", err)

	var over *OverpaymentError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, "1.03", over.Billed.StringFixed(2))
	assert.Equal(t, "1.03", over.Paid.StringFixed(2))
	assert.Equal(t, "0.01", over.Attempted.StringFixed(2))

	payments, err := env.ledger.ListPayments(ctx, closed.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestRecordPayment_Partial(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	closed := env.closedSession(t)

	_, err := env.ledger.RecordPayment(ctx, closed.ID, decimal.RequireFromString("0.50"), models.PaymentCash)
	require.NoError(t, err)
	_, err = env.ledger.RecordPayment(ctx, closed.ID, decimal.RequireFromString("0.54"), models.PaymentCard)
	assert.True(t, IsOverpaymentError(err))
	_, err = env.ledger.RecordPayment(ctx, closed.ID, decimal.RequireFromString("0.53"), models.PaymentCard)
	require.NoError(t, err)

	summary, err := env.ledger.PaymentSummary(ctx, closed.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.03", summary.Billed.StringFixed(2))
	assert.Equal(t, "1.03", summary.Paid.StringFixed(2))
	assert.True(t, summary.Outstanding.IsZero())
	assert.Len(t, summary.Payments, 2)
}

func TestRecordPayment_InvalidState(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")
	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)

	_, err = env.ledger.RecordPayment(ctx, s.ID, decimal.RequireFromString("1.00"), models.PaymentCash)
	assert.True(t, IsInvalidStateError(err), "active session: %v", err)

	_, err = env.ledger.CancelSession(ctx, s.ID)
	require.NoError(t, err)
	_, err = env.ledger.RecordPayment(ctx, s.ID, decimal.RequireFromString("1.00"), models.PaymentCash)
	assert.True(t, IsInvalidStateError(err), "cancelled session: %v", err)

	_, err = env.ledger.RecordPayment(ctx, 999, decimal.RequireFromString("1.00"), models.PaymentCash)
	assert.True(t, IsNotFoundError(err))
}

func TestRecordPayment_Validation(t *testing.T) {
	env := setupLedger(t)
	closed := env.closedSession(t)

	tests := []struct {
		name   string
		amount string
		method string
		field  string
	}{
		{"zero amount", "0", models.PaymentCash, "amount"},
		{"negative amount", "-1.00", models.PaymentCash, "amount"},
		{"sub-cent amount", "0.005", models.PaymentCash, "amount"},
		{"empty method", "0.50", "  ", "payment_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.RecordPayment(context.Background(), closed.ID, decimal.RequireFromString(tt.amount), tt.method)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestPaymentsNeverExceedBilled(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()
	closed := env.closedSession(t)

	cent := decimal.RequireFromString("0.01")
	for i := 0; i < 200; i++ {
		_, err := env.ledger.RecordPayment(ctx, closed.ID, cent, models.PaymentCash)
		if err != nil {
			require.True(t, IsOverpaymentError(err), "got %v", err)
		}
	}

	summary, err := env.ledger.PaymentSummary(ctx, closed.ID)
	require.NoError(t, err)
	assert.True(t, summary.Paid.Equal(summary.Billed), "paid %s billed %s", summary.Paid, summary.Billed)
	assert.Len(t, summary.Payments, 103)
}

func TestGetActiveSession(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")

	_, err := env.ledger.GetActiveSession(ctx, c.ID)
	assert.True(t, IsNotFoundError(err), "no session yet: %v", err)

	_, err = env.ledger.GetActiveSession(ctx, 999)
	assert.True(t, IsNotFoundError(err), "unknown computer: %v", err)

	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)

	active, err := env.ledger.GetActiveSession(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, active.ID)

	_, err = env.ledger.CloseSession(ctx, s.ID, baseTime.Add(time.Minute))
	require.NoError(t, err)
	_, err = env.ledger.GetActiveSession(ctx, c.ID)
	assert.True(t, IsNotFoundError(err))
}

func TestListSessions(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	pc1 := env.computer(t, "PC-01", "192.168.1.101")
	pc2 := env.computer(t, "PC-02", "192.168.1.102")
	tariff := env.tariff(t, "Standard", "2.00")

	s1, err := env.ledger.OpenSession(ctx, pc1.ID, tariff.ID, baseTime)
	require.NoError(t, err)
	_, err = env.ledger.CloseSession(ctx, s1.ID, baseTime.Add(10*time.Minute))
	require.NoError(t, err)
	_, err = env.ledger.OpenSession(ctx, pc1.ID, tariff.ID, baseTime.Add(20*time.Minute))
	require.NoError(t, err)
	_, err = env.ledger.OpenSession(ctx, pc2.ID, tariff.ID, baseTime.Add(30*time.Minute))
	require.NoError(t, err)

	all, err := env.ledger.ListSessions(ctx, SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onPC1, err := env.ledger.ListSessions(ctx, SessionFilter{ComputerID: pc1.ID})
	require.NoError(t, err)
	assert.Len(t, onPC1, 2)

	closed, err := env.ledger.ListSessions(ctx, SessionFilter{Status: models.SessionClosed})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, s1.ID, closed[0].ID)

	active, err := env.ledger.ListActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "PC-01", active[0].ComputerName)
	assert.Equal(t, "Standard", active[0].TariffName)
	assert.Equal(t, "PC-02", active[1].ComputerName)

	_, err = env.ledger.ListSessions(ctx, SessionFilter{Limit: -1})
	assert.True(t, IsValidationError(err))
}

func TestPaymentSummary_Unbilled(t *testing.T) {
	env := setupLedger(t)
	ctx := context.Background()

	c := env.computer(t, "PC-01", "192.168.1.101")
	tariff := env.tariff(t, "Standard", "2.00")
	s, err := env.ledger.OpenSession(ctx, c.ID, tariff.ID, baseTime)
	require.NoError(t, err)

	summary, err := env.ledger.PaymentSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, summary.Billed.IsZero())
	assert.True(t, summary.Outstanding.IsZero())
	assert.Empty(t, summary.Payments)

	_, err = env.ledger.PaymentSummary(ctx, 999)
	assert.True(t, IsNotFoundError(err))
}
