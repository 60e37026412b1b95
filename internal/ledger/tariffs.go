package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/pavkata12/app/internal/database"
	"github.com/pavkata12/app/internal/models"
)

// maxPricePerHour is the largest value a decimal(10,2) column holds
var maxPricePerHour = decimal.RequireFromString("99999999.99")

// TariffInput carries the editable fields of a tariff
type TariffInput struct {
	Name         string
	PricePerHour decimal.Decimal
	Description  string
}

func (in *TariffInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)

	switch {
	case in.Name == "":
		return newValidationError("name", "must not be empty")
	case in.PricePerHour.IsNegative():
		return newValidationError("price_per_hour", "must not be negative")
	case !validMoney(in.PricePerHour):
		return newValidationError("price_per_hour", "must have at most 2 decimal places")
	case in.PricePerHour.GreaterThan(maxPricePerHour):
		return newValidationError("price_per_hour", "exceeds "+maxPricePerHour.String())
	}
	return nil
}

// CreateTariff adds an active tariff
func (l *Ledger) CreateTariff(ctx context.Context, in TariffInput) (_ *models.Tariff, err error) {
	defer l.observe("create_tariff", time.Now(), &err)

	if err := in.normalize(); err != nil {
		return nil, err
	}

	tariff := &models.Tariff{
		Name:         in.Name,
		PricePerHour: in.PricePerHour,
		Description:  in.Description,
		IsActive:     true,
		CreatedAt:    storedTime(l.now()),
	}
	if err := l.db.Tariffs.Create(ctx, tariff); err != nil {
		return nil, fmt.Errorf("create tariff: %w", err)
	}

	log.Info().
		Int64("tariff_id", tariff.ID).
		Str("name", tariff.Name).
		Str("price_per_hour", tariff.PricePerHour.StringFixed(2)).
		Msg("Tariff created")
	return tariff, nil
}

// UpdateTariff rewrites a tariff's name, price and description. Sessions already
// closed keep the amount they were billed.
func (l *Ledger) UpdateTariff(ctx context.Context, id int64, in TariffInput) (_ *models.Tariff, err error) {
	defer l.observe("update_tariff", time.Now(), &err)

	if err := in.normalize(); err != nil {
		return nil, err
	}

	var tariff *models.Tariff
	err = l.db.RunInTx(ctx, func(ctx context.Context, repos database.Repositories) error {
		var err error
		tariff, err = repos.Tariffs.Get(ctx, id)
		if err != nil {
			return lookupError(err, "tariff", id)
		}

		tariff.Name = in.Name
		tariff.PricePerHour = in.PricePerHour
		tariff.Description = in.Description
		if err := repos.Tariffs.Update(ctx, tariff); err != nil {
			return lookupError(err, "tariff", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("tariff_id", id).
		Str("price_per_hour", tariff.PricePerHour.StringFixed(2)).
		Msg("Tariff updated")
	return tariff, nil
}

// GetTariff returns a tariff whether or not it is active
func (l *Ledger) GetTariff(ctx context.Context, id int64) (*models.Tariff, error) {
	tariff, err := l.db.Tariffs.Get(ctx, id)
	if err != nil {
		return nil, lookupError(err, "tariff", id)
	}
	return tariff, nil
}

// ListTariffs returns active tariffs, or all of them when includeInactive is set
func (l *Ledger) ListTariffs(ctx context.Context, includeInactive bool) ([]*models.Tariff, error) {
	tariffs, err := l.db.Tariffs.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}
	return tariffs, nil
}

// DeactivateTariff retires a tariff. Running sessions keep billing at its price;
// no new session may open under it.
func (l *Ledger) DeactivateTariff(ctx context.Context, id int64) (*models.Tariff, error) {
	return l.setTariffActive(ctx, id, false)
}

// ActivateTariff restores a retired tariff
func (l *Ledger) ActivateTariff(ctx context.Context, id int64) (*models.Tariff, error) {
	return l.setTariffActive(ctx, id, true)
}

func (l *Ledger) setTariffActive(ctx context.Context, id int64, active bool) (_ *models.Tariff, err error) {
	operation := "deactivate_tariff"
	if active {
		operation = "activate_tariff"
	}
	defer l.observe(operation, time.Now(), &err)

	var tariff *models.Tariff
	err = l.db.RunInTx(ctx, func(ctx context.Context, repos database.Repositories) error {
		if err := repos.Tariffs.SetActive(ctx, id, active); err != nil {
			return lookupError(err, "tariff", id)
		}
		var err error
		tariff, err = repos.Tariffs.Get(ctx, id)
		if err != nil {
			return lookupError(err, "tariff", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("tariff_id", id).Bool("active", active).Msg("Tariff activation changed")
	return tariff, nil
}
