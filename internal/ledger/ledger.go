package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/pavkata12/app/internal/database"
	"github.com/pavkata12/app/internal/events"
	"github.com/pavkata12/app/internal/metrics"
	"github.com/pavkata12/app/internal/models"
)

// Publisher receives ledger and registry events after the change is committed
type Publisher interface {
	Publish(event events.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// SessionFilter narrows ListSessions
type SessionFilter = database.SessionFilter

// Ledger owns session lifecycle, billing and payments, plus the computer, tariff
// and settings registries those depend on.
type Ledger struct {
	db        *database.BunDB
	publisher Publisher
	now       func() time.Time
}

// Option is a functional option for configuring the ledger
type Option func(*Ledger)

// WithPublisher sends committed changes to p
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) {
		if p != nil {
			l.publisher = p
		}
	}
}

// WithClock overrides the time source used when callers do not supply a timestamp
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a ledger backed by db
func New(db *database.BunDB, opts ...Option) *Ledger {
	l := &Ledger{
		db:        db,
		publisher: nopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// storedTime normalises t to what the database keeps: UTC with microsecond precision.
// Billing must run on this value so the returned and the stored session agree.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Ping checks that the database is reachable
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.DB().PingContext(ctx)
}

// OpenSession starts a session for computerID under tariffID. A zero startTime means now.
func (l *Ledger) OpenSession(ctx context.Context, computerID, tariffID int64, startTime time.Time) (_ *models.Session, err error) {
	defer l.observe("open_session", time.Now(), &err)

	if startTime.IsZero() {
		startTime = l.now()
	}
	now := storedTime(l.now())

	session := &models.Session{
		ComputerID: computerID,
		TariffID:   tariffID,
		StartTime:  storedTime(startTime),
		Status:     models.SessionActive,
		CreatedAt:  now,
	}

	err = l.db.RunInTx(ctx, func(ctx context.Context, repos database.Repositories) error {
		if _, err := repos.Computers.Get(ctx, computerID); err != nil {
			return lookupError(err, "computer", computerID)
		}

		tariff, err := repos.Tariffs.Get(ctx, tariffID)
		if err != nil {
			return lookupError(err, "tariff", tariffID)
		}
		if !tariff.IsActive {
			return &NotFoundError{Entity: "active tariff", ID: tariffID}
		}

		active, err := repos.Sessions.GetActiveByComputer(ctx, computerID)
		switch {
		case err == nil:
			return &ConflictError{ComputerID: computerID, ActiveSessionID: active.ID}
		case !errors.Is(err, database.ErrNotFound):
			return fmt.Errorf("check active session: %w", err)
		}

		if err := repos.Sessions.Create(ctx, session); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return &ConflictError{ComputerID: computerID}
			}
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("session_id", session.ID).
		Int64("computer_id", computerID).
		Int64("tariff_id", tariffID).
		Time("start_time", session.StartTime).
		Msg("Session opened")

	l.publisher.Publish(events.Event{
		Type:       events.SessionOpened,
		At:         now,
		ComputerID: computerID,
		SessionID:  session.ID,
		Data:       session,
	})
	return session, nil
}

// CloseSession ends an active session and bills it. A zero endTime means now.
func (l *Ledger) CloseSession(ctx context.Context, sessionID int64, endTime time.Time) (_ *models.Session, err error) {
	defer l.observe("close_session", time.Now(), &err)

	if endTime.IsZero() {
		endTime = l.now()
	}
	endTime = storedTime(endTime)

	var session *models.Session
	err = l.db.RunInTx(ctx, func(ctx context.Context, repos database.Repositories) error {
		var err error
		session, err = repos.Sessions.Get(ctx, sessionID)
		if err != nil {
			return lookupError(err, "session", sessionID)
		}
		if session.Status != models.SessionActive {
			return &InvalidStateError{SessionID: sessionID, Status: session.Status, Operation: "close"}
		}
		if endTime.Before(session.StartTime) {
			return newValidationError("end_time", fmt.Sprintf("%s is before start time %s",
				endTime.Format(time.RFC3339), session.StartTime.Format(time.RFC3339)))
		}

		tariff, err := repos.Tariffs.Get(ctx, session.TariffID)
		if err != nil {
			return lookupError(err, "tariff", session.TariffID)
		}

		minutes, amount := ComputeCharge(session.StartTime, endTime, tariff.PricePerHour)
		if err := repos.Sessions.Close(ctx, sessionID, endTime, minutes, amount); err != nil {
			return l.staleError(ctx, repos, err, sessionID, "close")
		}

		session.EndTime = &endTime
		session.DurationMinutes = &minutes
		session.AmountPaid = decimal.NewNullDecimal(amount)
		session.Status = models.SessionClosed
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SessionsSettledTotal.WithLabelValues(string(models.SessionClosed)).Inc()
	metrics.BilledMinutesTotal.Add(float64(*session.DurationMinutes))
	metrics.BilledAmountTotal.Add(session.AmountPaid.Decimal.InexactFloat64())

	log.Info().
		Int64("session_id", sessionID).
		Int64("computer_id", session.ComputerID).
		Int64("duration_minutes", *session.DurationMinutes).
		Str("amount", session.AmountPaid.Decimal.StringFixed(2)).
		Msg("Session closed")

	l.publisher.Publish(events.Event{
		Type:       events.SessionClosed,
		ComputerID: session.ComputerID,
		SessionID:  sessionID,
		Data:       session,
	})
	return session, nil
}

// CancelSession ends an active session without billing it
func (l *Ledger) CancelSession(ctx context.Context, sessionID int64) (_ *models.Session, err error) {
	defer l.observe("cancel_session", time.Now(), &err)

	var session *models.Session
	err = l.db.RunInTx(ctx, func(ctx context.Context, repos database.Repositories) error {
		var err error
		session, err = repos.Sessions.Get(ctx, sessionID)
		if err != nil {
			return lookupError(err, "session", sessionID)
		}
		if session.Status != models.SessionActive {
			return &InvalidStateError{SessionID: sessionID, Status: session.Status, Operation: "cancel"}
		}
		if err := repos.Sessions.Cancel(ctx, sessionID); err != nil {
			return l.staleError(ctx, repos, err, sessionID, "cancel")
		}
		session.Status = models.SessionCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SessionsSettledTotal.WithLabelValues(string(models.SessionCancelled)).Inc()
	log.Info().
		Int64("session_id", sessionID).
		Int64("computer_id", session.ComputerID).
		Msg("Session cancelled")

	l.publisher.Publish(events.Event{
		Type:       events.SessionCancelled,
		ComputerID: session.ComputerID,
		SessionID:  sessionID,
		Data:       session,
	})
	return session, nil
}

// RecordPayment records a payment against a closed session. The running total of
// payments may reach but never exceed the billed amount.
func (l *Ledger) RecordPayment(ctx context.Context, sessionID int64, amount decimal.Decimal, method string) (_ *models.Payment, err error) {
	defer l.observe("record_payment", time.Now(), &err)

	method = strings.TrimSpace(method)
	switch {
	case !amount.IsPositive():
		return nil, newValidationError("amount", "must be greater than zero")
	case !validMoney(amount):
		return nil, newValidationError("amount", "must have at most 2 decimal places")
	case method == "":
		return nil, newValidationError("payment_method", "must not be empty")
	}

	payment := &models.Payment{
		SessionID: sessionID,
		Amount:    amount,
		Method:    method,
		CreatedAt: storedTime(l.now()),
	}

	var session *models.Session
	err = l.db.RunInTx(ctx, func(ctx context.Context, repos database.Repositories) error {
		var err error
		session, err = repos.Sessions.Get(ctx, sessionID)
		if err != nil {
			return lookupError(err, "session", sessionID)
		}
		if session.Status != models.SessionClosed {
			return &InvalidStateError{SessionID: sessionID, Status: session.Status, Operation: "record payment"}
		}

		billed := session.AmountPaid.Decimal
		paid, err := repos.Payments.SumBySession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("sum payments: %w", err)
		}
		if paid.Add(amount).GreaterThan(billed) {
			return &OverpaymentError{SessionID: sessionID, Billed: billed, Paid: paid, Attempted: amount}
		}

		if err := repos.Payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PaymentsTotal.WithLabelValues(method).Inc()
	metrics.PaymentsAmountTotal.WithLabelValues(method).Add(amount.InexactFloat64())

	log.Info().
		Int64("payment_id", payment.ID).
		Int64("session_id", sessionID).
		Str("amount", amount.StringFixed(2)).
		Str("method", method).
		Msg("Payment recorded")

	l.publisher.Publish(events.Event{
		Type:       events.PaymentRecorded,
		At:         payment.CreatedAt,
		ComputerID: session.ComputerID,
		SessionID:  sessionID,
		Data:       payment,
	})
	return payment, nil
}

// GetActiveSession returns the active session on a computer
func (l *Ledger) GetActiveSession(ctx context.Context, computerID int64) (*models.Session, error) {
	if _, err := l.db.Computers.Get(ctx, computerID); err != nil {
		return nil, lookupError(err, "computer", computerID)
	}
	session, err := l.db.Sessions.GetActiveByComputer(ctx, computerID)
	if err != nil {
		return nil, lookupError(err, "active session for computer", computerID)
	}
	return session, nil
}

// GetSession returns a session in any state
func (l *Ledger) GetSession(ctx context.Context, sessionID int64) (*models.Session, error) {
	session, err := l.db.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, lookupError(err, "session", sessionID)
	}
	return session, nil
}

// ListActiveSessions returns every active session with its computer and tariff names
func (l *Ledger) ListActiveSessions(ctx context.Context) ([]*models.ActiveSessionView, error) {
	sessions, err := l.db.Sessions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// ListSessions returns sessions newest first
func (l *Ledger) ListSessions(ctx context.Context, filter SessionFilter) ([]*models.Session, error) {
	if filter.Limit < 0 {
		return nil, newValidationError("limit", "must not be negative")
	}
	sessions, err := l.db.Sessions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ListPayments returns the payments recorded against a session, oldest first
func (l *Ledger) ListPayments(ctx context.Context, sessionID int64) ([]*models.Payment, error) {
	if _, err := l.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	payments, err := l.db.Payments.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// PaymentSummary reports billed, paid and outstanding amounts. Sessions that were
// never billed report zero for all three.
func (l *Ledger) PaymentSummary(ctx context.Context, sessionID int64) (*models.PaymentSummary, error) {
	session, err := l.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	payments, err := l.db.Payments.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	billed := decimal.Zero
	if session.AmountPaid.Valid {
		billed = session.AmountPaid.Decimal
	}
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}

	return &models.PaymentSummary{
		SessionID:   sessionID,
		Billed:      billed,
		Paid:        paid,
		Outstanding: billed.Sub(paid),
		Payments:    payments,
	}, nil
}

// staleError turns a guarded update that matched nothing into the state error the
// caller would have seen had it read after the competing writer.
func (l *Ledger) staleError(ctx context.Context, repos database.Repositories, err error, sessionID int64, operation string) error {
	if !errors.Is(err, database.ErrStale) {
		return fmt.Errorf("%s session: %w", operation, err)
	}
	current, getErr := repos.Sessions.Get(ctx, sessionID)
	if getErr != nil {
		return lookupError(getErr, "session", sessionID)
	}
	return &InvalidStateError{SessionID: sessionID, Status: current.Status, Operation: operation}
}

func (l *Ledger) observe(operation string, start time.Time, err *error) {
	metrics.LedgerOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	metrics.LedgerOperationsTotal.WithLabelValues(operation, outcome(*err)).Inc()
}

// outcome classifies an error for metric labels
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsNotFoundError(err):
		return "not_found"
	case IsConflictError(err):
		return "conflict"
	case IsDuplicateError(err):
		return "duplicate"
	case IsInvalidStateError(err):
		return "invalid_state"
	case IsOverpaymentError(err):
		return "overpayment"
	case IsValidationError(err):
		return "invalid"
	default:
		return "error"
	}
}

// lookupError maps a repository miss to NotFoundError and wraps anything else
func lookupError(err error, entity string, id interface{}) error {
	if errors.Is(err, database.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return fmt.Errorf("get %s %v: %w", entity, id, err)
}
