package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/pavkata12/app/internal/models"
)

// ComputerRepository provides database operations for computers
type ComputerRepository interface {
	Get(ctx context.Context, id int64) (*models.Computer, error)
	GetByAddress(ctx context.Context, ipAddress string) (*models.Computer, error)
	List(ctx context.Context) ([]*models.Computer, error)
	Create(ctx context.Context, computer *models.Computer) error
	UpdateStatus(ctx context.Context, id int64, status models.ComputerStatus, seenAt time.Time) error
	MarkStaleOffline(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[models.ComputerStatus]int, error)
}

type computerRepository struct {
	db bun.IDB
}

// NewComputerRepository creates a new computer repository
func NewComputerRepository(db bun.IDB) ComputerRepository {
	return &computerRepository{db: db}
}

func (r *computerRepository) Get(ctx context.Context, id int64) (*models.Computer, error) {
	computer := new(Computer)
	err := r.db.NewSelect().
		Model(computer).
		Where("id = ?", id).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("computer", id)
	}
	if err != nil {
		return nil, err
	}
	return computer.ToModel(), nil
}

func (r *computerRepository) GetByAddress(ctx context.Context, ipAddress string) (*models.Computer, error) {
	computer := new(Computer)
	err := r.db.NewSelect().
		Model(computer).
		Where("ip_address = ?", ipAddress).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("computer", ipAddress)
	}
	if err != nil {
		return nil, err
	}
	return computer.ToModel(), nil
}

func (r *computerRepository) List(ctx context.Context) ([]*models.Computer, error) {
	var computers []*Computer
	err := r.db.NewSelect().
		Model(&computers).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*models.Computer, len(computers))
	for i, c := range computers {
		result[i] = c.ToModel()
	}
	return result, nil
}

func (r *computerRepository) Create(ctx context.Context, computer *models.Computer) error {
	dbComputer := ComputerFromModel(computer)
	_, err := r.db.NewInsert().
		Model(dbComputer).
		Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("computer %q (%s): %w", computer.Name, computer.IPAddress, ErrDuplicate)
	}
	if err != nil {
		return err
	}
	computer.ID = dbComputer.ID
	return nil
}

func (r *computerRepository) UpdateStatus(ctx context.Context, id int64, status models.ComputerStatus, seenAt time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*Computer)(nil)).
		Set("status = ?", string(status)).
		Set("last_seen = ?", seenAt.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, notFound("computer", id))
}

// MarkStaleOffline flags every non-offline computer not seen since cutoff as offline.
// Computers that never reported are left alone.
func (r *computerRepository) MarkStaleOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*Computer)(nil)).
		Set("status = ?", string(models.ComputerOffline)).
		Where("status != ?", string(models.ComputerOffline)).
		Where("last_seen IS NOT NULL").
		Where("last_seen < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *computerRepository) CountByStatus(ctx context.Context) (map[models.ComputerStatus]int, error) {
	var rows []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}
	err := r.db.NewSelect().
		Model((*Computer)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	counts := map[models.ComputerStatus]int{
		models.ComputerOffline: 0,
		models.ComputerOnline:  0,
		models.ComputerInUse:   0,
	}
	for _, row := range rows {
		counts[models.ComputerStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// TariffRepository provides database operations for tariffs
type TariffRepository interface {
	Get(ctx context.Context, id int64) (*models.Tariff, error)
	List(ctx context.Context, includeInactive bool) ([]*models.Tariff, error)
	Create(ctx context.Context, tariff *models.Tariff) error
	Update(ctx context.Context, tariff *models.Tariff) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type tariffRepository struct {
	db bun.IDB
}

// NewTariffRepository creates a new tariff repository
func NewTariffRepository(db bun.IDB) TariffRepository {
	return &tariffRepository{db: db}
}

func (r *tariffRepository) Get(ctx context.Context, id int64) (*models.Tariff, error) {
	tariff := new(Tariff)
	err := r.db.NewSelect().
		Model(tariff).
		Where("id = ?", id).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("tariff", id)
	}
	if err != nil {
		return nil, err
	}
	return tariff.ToModel(), nil
}

func (r *tariffRepository) List(ctx context.Context, includeInactive bool) ([]*models.Tariff, error) {
	var tariffs []*Tariff
	q := r.db.NewSelect().
		Model(&tariffs).
		Order("name ASC", "id ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*models.Tariff, len(tariffs))
	for i, t := range tariffs {
		result[i] = t.ToModel()
	}
	return result, nil
}

func (r *tariffRepository) Create(ctx context.Context, tariff *models.Tariff) error {
	dbTariff := TariffFromModel(tariff)
	if _, err := r.db.NewInsert().Model(dbTariff).Exec(ctx); err != nil {
		return err
	}
	tariff.ID = dbTariff.ID
	return nil
}

// Update rewrites name, price and description. The active flag only moves through SetActive.
func (r *tariffRepository) Update(ctx context.Context, tariff *models.Tariff) error {
	res, err := r.db.NewUpdate().
		Model(TariffFromModel(tariff)).
		Column("name", "price_per_hour", "description").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, notFound("tariff", tariff.ID))
}

func (r *tariffRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.NewUpdate().
		Model((*Tariff)(nil)).
		Set("is_active = ?", active).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, notFound("tariff", id))
}

// SessionFilter narrows session listings. Zero values mean "any".
type SessionFilter struct {
	ComputerID  int64
	Status      models.SessionStatus
	StartedFrom time.Time
	StartedTo   time.Time
	Limit       int
}

// SessionRepository provides database operations for sessions
type SessionRepository interface {
	Get(ctx context.Context, id int64) (*models.Session, error)
	GetActiveByComputer(ctx context.Context, computerID int64) (*models.Session, error)
	ListActive(ctx context.Context) ([]*models.ActiveSessionView, error)
	List(ctx context.Context, filter SessionFilter) ([]*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Close(ctx context.Context, id int64, endTime time.Time, durationMinutes int64, amount decimal.Decimal) error
	Cancel(ctx context.Context, id int64) error
	CountActive(ctx context.Context) (int, error)
	CountActiveStartedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type sessionRepository struct {
	db bun.IDB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db bun.IDB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Get(ctx context.Context, id int64) (*models.Session, error) {
	session := new(Session)
	err := r.db.NewSelect().
		Model(session).
		Where("id = ?", id).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("session", id)
	}
	if err != nil {
		return nil, err
	}
	return session.ToModel(), nil
}

func (r *sessionRepository) GetActiveByComputer(ctx context.Context, computerID int64) (*models.Session, error) {
	session := new(Session)
	err := r.db.NewSelect().
		Model(session).
		Where("computer_id = ?", computerID).
		Where("status = ?", string(models.SessionActive)).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("active session for computer", computerID)
	}
	if err != nil {
		return nil, err
	}
	return session.ToModel(), nil
}

func (r *sessionRepository) ListActive(ctx context.Context) ([]*models.ActiveSessionView, error) {
	var sessions []*Session
	err := r.db.NewSelect().
		Model(&sessions).
		Relation("Computer").
		Relation("Tariff").
		Where("session.status = ?", string(models.SessionActive)).
		Order("session.start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*models.ActiveSessionView, len(sessions))
	for i, s := range sessions {
		result[i] = s.ToActiveView()
	}
	return result, nil
}

func (r *sessionRepository) List(ctx context.Context, filter SessionFilter) ([]*models.Session, error) {
	var sessions []*Session
	q := r.db.NewSelect().
		Model(&sessions).
		Order("start_time DESC", "id DESC")

	if filter.ComputerID != 0 {
		q = q.Where("computer_id = ?", filter.ComputerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if !filter.StartedFrom.IsZero() {
		q = q.Where("start_time >= ?", filter.StartedFrom.UTC())
	}
	if !filter.StartedTo.IsZero() {
		q = q.Where("start_time < ?", filter.StartedTo.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*models.Session, len(sessions))
	for i, s := range sessions {
		result[i] = s.ToModel()
	}
	return result, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	dbSession := SessionFromModel(session)
	_, err := r.db.NewInsert().
		Model(dbSession).
		Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("active session for computer %d: %w", session.ComputerID, ErrDuplicate)
	}
	if err != nil {
		return err
	}
	session.ID = dbSession.ID
	return nil
}

// Close settles an active session. It only matches rows still active, so a concurrent
// close or cancel surfaces as ErrStale instead of overwriting the first result.
func (r *sessionRepository) Close(ctx context.Context, id int64, endTime time.Time, durationMinutes int64, amount decimal.Decimal) error {
	res, err := r.db.NewUpdate().
		Model((*Session)(nil)).
		Set("end_time = ?", endTime.UTC()).
		Set("duration_minutes = ?", durationMinutes).
		Set("amount_paid = ?", amount).
		Set("status = ?", string(models.SessionClosed)).
		Where("id = ?", id).
		Where("status = ?", string(models.SessionActive)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, fmt.Errorf("close session %d: %w", id, ErrStale))
}

func (r *sessionRepository) Cancel(ctx context.Context, id int64) error {
	res, err := r.db.NewUpdate().
		Model((*Session)(nil)).
		Set("status = ?", string(models.SessionCancelled)).
		Where("id = ?", id).
		Where("status = ?", string(models.SessionActive)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRows(res, fmt.Errorf("cancel session %d: %w", id, ErrStale))
}

func (r *sessionRepository) CountActive(ctx context.Context) (int, error) {
	return r.db.NewSelect().
		Model((*Session)(nil)).
		Where("status = ?", string(models.SessionActive)).
		Count(ctx)
}

func (r *sessionRepository) CountActiveStartedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return r.db.NewSelect().
		Model((*Session)(nil)).
		Where("status = ?", string(models.SessionActive)).
		Where("start_time < ?", cutoff.UTC()).
		Count(ctx)
}

// PaymentRepository provides database operations for payments
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	ListBySession(ctx context.Context, sessionID int64) ([]*models.Payment, error)
	SumBySession(ctx context.Context, sessionID int64) (decimal.Decimal, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.Payment, error)
}

type paymentRepository struct {
	db bun.IDB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db bun.IDB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	dbPayment := PaymentFromModel(payment)
	if _, err := r.db.NewInsert().Model(dbPayment).Exec(ctx); err != nil {
		return err
	}
	payment.ID = dbPayment.ID
	return nil
}

func (r *paymentRepository) ListBySession(ctx context.Context, sessionID int64) ([]*models.Payment, error) {
	var payments []*Payment
	err := r.db.NewSelect().
		Model(&payments).
		Where("session_id = ?", sessionID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return paymentsToModels(payments), nil
}

// SumBySession adds payment amounts in decimal arithmetic rather than SQL SUM, which
// would go through floating point.
func (r *paymentRepository) SumBySession(ctx context.Context, sessionID int64) (decimal.Decimal, error) {
	payments, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (r *paymentRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*models.Payment, error) {
	var payments []*Payment
	err := r.db.NewSelect().
		Model(&payments).
		Where("created_at >= ?", from.UTC()).
		Where("created_at < ?", to.UTC()).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return paymentsToModels(payments), nil
}

func paymentsToModels(payments []*Payment) []*models.Payment {
	result := make([]*models.Payment, len(payments))
	for i, p := range payments {
		result[i] = p.ToModel()
	}
	return result
}

// SettingRepository provides database operations for settings
type SettingRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	List(ctx context.Context) ([]*models.Setting, error)
	Set(ctx context.Context, key, value string, at time.Time) error
	SeedDefaults(ctx context.Context, defaults map[string]string) error
}

type settingRepository struct {
	db bun.IDB
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db bun.IDB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	setting := new(Setting)
	err := r.db.NewSelect().
		Model(setting).
		Where("? = ?", bun.Ident("key"), key).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("setting", key)
	}
	if err != nil {
		return nil, err
	}
	return setting.ToModel(), nil
}

func (r *settingRepository) List(ctx context.Context) ([]*models.Setting, error) {
	var settings []*Setting
	err := r.db.NewSelect().
		Model(&settings).
		OrderExpr("? ASC", bun.Ident("key")).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*models.Setting, len(settings))
	for i, s := range settings {
		result[i] = s.ToModel()
	}
	return result, nil
}

func (r *settingRepository) Set(ctx context.Context, key, value string, at time.Time) error {
	_, err := r.db.NewInsert().
		Model(&Setting{Key: key, Value: value, UpdatedAt: at.UTC()}).
		On(`CONFLICT ("key") DO UPDATE`).
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *settingRepository) SeedDefaults(ctx context.Context, defaults map[string]string) error {
	now := time.Now().UTC()
	for key, value := range defaults {
		_, err := r.db.NewInsert().
			Model(&Setting{Key: key, Value: value, UpdatedAt: now}).
			On(`CONFLICT ("key") DO NOTHING`).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}
	return nil
}

func expectRows(res sql.Result, errIfNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errIfNone
	}
	return nil
}
