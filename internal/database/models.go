package database

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/pavkata12/app/internal/models"
)

// Computer represents a registered workstation
type Computer struct {
	bun.BaseModel `bun:"table:computers"`

	ID        int64      `bun:"id,pk,autoincrement"`
	Name      string     `bun:"name,unique,notnull"`
	IPAddress string     `bun:"ip_address,unique,notnull"`
	Status    string     `bun:"status,notnull,default:'offline'"`
	LastSeen  *time.Time `bun:"last_seen"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ToModel converts database Computer to domain model
func (c *Computer) ToModel() *models.Computer {
	return &models.Computer{
		ID:        c.ID,
		Name:      c.Name,
		IPAddress: c.IPAddress,
		Status:    models.ComputerStatus(c.Status),
		LastSeen:  c.LastSeen,
		CreatedAt: c.CreatedAt,
	}
}

// ComputerFromModel converts domain model to database Computer
func ComputerFromModel(m *models.Computer) *Computer {
	return &Computer{
		ID:        m.ID,
		Name:      m.Name,
		IPAddress: m.IPAddress,
		Status:    string(m.Status),
		LastSeen:  m.LastSeen,
		CreatedAt: m.CreatedAt,
	}
}

// Tariff represents a billing rate
type Tariff struct {
	bun.BaseModel `bun:"table:tariffs"`

	ID           int64           `bun:"id,pk,autoincrement"`
	Name         string          `bun:"name,notnull"`
	PricePerHour decimal.Decimal `bun:"price_per_hour,type:decimal(10,2),notnull"`
	Description  string          `bun:"description,nullzero"`
	IsActive     bool            `bun:"is_active,notnull,default:true"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ToModel converts database Tariff to domain model
func (t *Tariff) ToModel() *models.Tariff {
	return &models.Tariff{
		ID:           t.ID,
		Name:         t.Name,
		PricePerHour: t.PricePerHour,
		Description:  t.Description,
		IsActive:     t.IsActive,
		CreatedAt:    t.CreatedAt,
	}
}

// TariffFromModel converts domain model to database Tariff
func TariffFromModel(m *models.Tariff) *Tariff {
	return &Tariff{
		ID:           m.ID,
		Name:         m.Name,
		PricePerHour: m.PricePerHour,
		Description:  m.Description,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
	}
}

// Session represents a metered usage period
type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	ID              int64               `bun:"id,pk,autoincrement"`
	ComputerID      int64               `bun:"computer_id,notnull"`
	TariffID        int64               `bun:"tariff_id,notnull"`
	StartTime       time.Time           `bun:"start_time,notnull"`
	EndTime         *time.Time          `bun:"end_time"`
	DurationMinutes *int64              `bun:"duration_minutes"`
	AmountPaid      decimal.NullDecimal `bun:"amount_paid,type:decimal(10,2)"`
	Status          string              `bun:"status,notnull,default:'active'"`
	CreatedAt       time.Time           `bun:"created_at,nullzero,notnull,default:current_timestamp"`

	// Relations
	Computer *Computer `bun:"rel:belongs-to,join:computer_id=id"`
	Tariff   *Tariff   `bun:"rel:belongs-to,join:tariff_id=id"`
}

// ToModel converts database Session to domain model
func (s *Session) ToModel() *models.Session {
	return &models.Session{
		ID:              s.ID,
		ComputerID:      s.ComputerID,
		TariffID:        s.TariffID,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationMinutes: s.DurationMinutes,
		AmountPaid:      s.AmountPaid,
		Status:          models.SessionStatus(s.Status),
		CreatedAt:       s.CreatedAt,
	}
}

// ToActiveView converts a session loaded with its Computer and Tariff relations
func (s *Session) ToActiveView() *models.ActiveSessionView {
	view := &models.ActiveSessionView{Session: *s.ToModel()}
	if s.Computer != nil {
		view.ComputerName = s.Computer.Name
	}
	if s.Tariff != nil {
		view.TariffName = s.Tariff.Name
		view.PricePerHour = s.Tariff.PricePerHour
	}
	return view
}

// SessionFromModel converts domain model to database Session
func SessionFromModel(m *models.Session) *Session {
	return &Session{
		ID:              m.ID,
		ComputerID:      m.ComputerID,
		TariffID:        m.TariffID,
		StartTime:       m.StartTime,
		EndTime:         m.EndTime,
		DurationMinutes: m.DurationMinutes,
		AmountPaid:      m.AmountPaid,
		Status:          string(m.Status),
		CreatedAt:       m.CreatedAt,
	}
}

// Payment represents money received against a closed session
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID            int64           `bun:"id,pk,autoincrement"`
	SessionID     int64           `bun:"session_id,notnull"`
	Amount        decimal.Decimal `bun:"amount,type:decimal(10,2),notnull"`
	PaymentMethod string          `bun:"payment_method,notnull"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ToModel converts database Payment to domain model
func (p *Payment) ToModel() *models.Payment {
	return &models.Payment{
		ID:        p.ID,
		SessionID: p.SessionID,
		Amount:    p.Amount,
		Method:    p.PaymentMethod,
		CreatedAt: p.CreatedAt,
	}
}

// PaymentFromModel converts domain model to database Payment
func PaymentFromModel(m *models.Payment) *Payment {
	return &Payment{
		ID:            m.ID,
		SessionID:     m.SessionID,
		Amount:        m.Amount,
		PaymentMethod: m.Method,
		CreatedAt:     m.CreatedAt,
	}
}

// Setting is a key/value pair
type Setting struct {
	bun.BaseModel `bun:"table:settings"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// ToModel converts database Setting to domain model
func (s *Setting) ToModel() *models.Setting {
	return &models.Setting{
		Key:       s.Key,
		Value:     s.Value,
		UpdatedAt: s.UpdatedAt,
	}
}
