package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ComputerStatus string

const (
	ComputerOffline ComputerStatus = "offline"
	ComputerOnline  ComputerStatus = "online"
	ComputerInUse   ComputerStatus = "in-use"
)

// ParseComputerStatus validates a status string reported by an operator or a heartbeat
func ParseComputerStatus(s string) (ComputerStatus, error) {
	switch status := ComputerStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case ComputerOffline, ComputerOnline, ComputerInUse:
		return status, nil
	default:
		return "", fmt.Errorf("unknown computer status %q", s)
	}
}

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionClosed    SessionStatus = "closed"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transition can leave this status
func (s SessionStatus) Terminal() bool {
	return s == SessionClosed || s == SessionCancelled
}

// ParseSessionStatus validates a session status filter
func ParseSessionStatus(s string) (SessionStatus, error) {
	switch status := SessionStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case SessionActive, SessionClosed, SessionCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("unknown session status %q", s)
	}
}

// Well-known payment methods. Any non-empty method is accepted.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

type Computer struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	IPAddress string         `json:"ip_address"`
	Status    ComputerStatus `json:"status"`
	LastSeen  *time.Time     `json:"last_seen,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Tariff struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
	Description  string          `json:"description,omitempty"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Session is one metered usage period of a computer under a tariff.
// EndTime, DurationMinutes and AmountPaid stay nil/invalid until the session is closed.
type Session struct {
	ID              int64               `json:"id"`
	ComputerID      int64               `json:"computer_id"`
	TariffID        int64               `json:"tariff_id"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         *time.Time          `json:"end_time"`
	DurationMinutes *int64              `json:"duration_minutes"`
	AmountPaid      decimal.NullDecimal `json:"amount_paid"`
	Status          SessionStatus       `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ActiveSessionView is an active session joined with display names
type ActiveSessionView struct {
	Session
	ComputerName string          `json:"computer_name"`
	TariffName   string          `json:"tariff_name"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
}

type Payment struct {
	ID        int64           `json:"id"`
	SessionID int64           `json:"session_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"payment_method"`
	CreatedAt time.Time       `json:"created_at"`
}

// PaymentSummary reports how much of a closed session's charge has been settled
type PaymentSummary struct {
	SessionID   int64           `json:"session_id"`
	Billed      decimal.Decimal `json:"billed"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Payments    []*Payment      `json:"payments"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailyReport aggregates the sessions started on one local calendar day
type DailyReport struct {
	Date             string          `json:"date"`
	Timezone         string          `json:"timezone"`
	Currency         string          `json:"currency"`
	TotalSessions    int             `json:"total_sessions"`
	ClosedSessions   int             `json:"closed_sessions"`
	TotalMinutes     int64           `json:"total_minutes"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	PaymentsReceived decimal.Decimal `json:"payments_received"`
}

// UsageDay is one row of a computer usage report
type UsageDay struct {
	Date          string          `json:"date"`
	SessionsCount int             `json:"sessions_count"`
	TotalMinutes  int64           `json:"total_minutes"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

// AuthClaims are the claims carried by an operator token
type AuthClaims struct {
	Operator string    `json:"operator"`
	UUID     uuid.UUID `json:"jti"`
}
