package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // report time zones must resolve on hosts without a zoneinfo database

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/pavkata12/app/internal/database"
	"github.com/pavkata12/app/internal/models"
)

// DateLayout is the calendar date format accepted and produced by reports
const DateLayout = "2006-01-02"

const maxReportDays = 366

// DailyReport aggregates the sessions started on one local calendar day. An empty
// date means today in the configured time zone.
func (l *Ledger) DailyReport(ctx context.Context, date string) (*models.DailyReport, error) {
	loc := l.location(ctx)

	day, err := parseDate(date, "date", loc, l.now())
	if err != nil {
		return nil, err
	}
	next := day.AddDate(0, 0, 1)

	sessions, err := l.db.Sessions.List(ctx, database.SessionFilter{StartedFrom: day, StartedTo: next})
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", day.Format(DateLayout), err)
	}
	payments, err := l.db.Payments.ListCreatedBetween(ctx, day, next)
	if err != nil {
		return nil, fmt.Errorf("list payments for %s: %w", day.Format(DateLayout), err)
	}

	report := &models.DailyReport{
		Date:             day.Format(DateLayout),
		Timezone:         loc.String(),
		Currency:         l.settingOr(ctx, SettingCurrency, database.DefaultSettings[SettingCurrency]),
		TotalSessions:    len(sessions),
		TotalRevenue:     decimal.Zero,
		PaymentsReceived: decimal.Zero,
	}
	for _, s := range sessions {
		if s.Status != models.SessionClosed {
			continue
		}
		report.ClosedSessions++
		if s.DurationMinutes != nil {
			report.TotalMinutes += *s.DurationMinutes
		}
		if s.AmountPaid.Valid {
			report.TotalRevenue = report.TotalRevenue.Add(s.AmountPaid.Decimal)
		}
	}
	for _, p := range payments {
		report.PaymentsReceived = report.PaymentsReceived.Add(p.Amount)
	}
	return report, nil
}

// ComputerUsageReport groups a computer's sessions by the local day they started on,
// for every day from fromDate to toDate inclusive. Days without sessions are omitted.
func (l *Ledger) ComputerUsageReport(ctx context.Context, computerID int64, fromDate, toDate string) ([]*models.UsageDay, error) {
	if _, err := l.GetComputer(ctx, computerID); err != nil {
		return nil, err
	}

	loc := l.location(ctx)
	now := l.now()

	to, err := parseDate(toDate, "to", loc, now)
	if err != nil {
		return nil, err
	}
	from := to.AddDate(0, 0, -6)
	if strings.TrimSpace(fromDate) != "" {
		if from, err = parseDate(fromDate, "from", loc, now); err != nil {
			return nil, err
		}
	}
	if to.Before(from) {
		return nil, newValidationError("to", "must not be before from")
	}
	if to.Sub(from) > maxReportDays*24*time.Hour {
		return nil, newValidationError("from", fmt.Sprintf("range exceeds %d days", maxReportDays))
	}

	sessions, err := l.db.Sessions.List(ctx, database.SessionFilter{
		ComputerID:  computerID,
		StartedFrom: from,
		StartedTo:   to.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions for computer %d: %w", computerID, err)
	}

	days := make(map[string]*models.UsageDay)
	for _, s := range sessions {
		key := s.StartTime.In(loc).Format(DateLayout)
		day, ok := days[key]
		if !ok {
			day = &models.UsageDay{Date: key, TotalRevenue: decimal.Zero}
			days[key] = day
		}
		day.SessionsCount++
		if s.DurationMinutes != nil {
			day.TotalMinutes += *s.DurationMinutes
		}
		if s.AmountPaid.Valid {
			day.TotalRevenue = day.TotalRevenue.Add(s.AmountPaid.Decimal)
		}
	}

	result := make([]*models.UsageDay, 0, len(days))
	for _, day := range days {
		result = append(result, day)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// location resolves the timezone setting, falling back to UTC
func (l *Ledger) location(ctx context.Context) *time.Location {
	name := l.settingOr(ctx, SettingTimezone, "UTC")
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn().Err(err).Str("timezone", name).Msg("Unknown report time zone, using UTC")
		return time.UTC
	}
	return loc
}

func (l *Ledger) settingOr(ctx context.Context, key, fallback string) string {
	setting, err := l.db.Settings.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("Failed to read setting")
		}
		return fallback
	}
	if setting.Value == "" {
		return fallback
	}
	return setting.Value
}

// parseDate returns local midnight of value in loc, or of today when value is empty
func parseDate(value, field string, loc *time.Location, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	day, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, newValidationError(field, fmt.Sprintf("%q is not a YYYY-MM-DD date", value))
	}
	return day, nil
}
