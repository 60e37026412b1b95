package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pavkata12/app/internal/models"
)

const (
	SettingServerPort = "server_port"
	SettingClientPort = "client_port"
	SettingCurrency   = "currency"
	SettingTimezone   = "timezone"
)

// GetSetting returns one setting
func (l *Ledger) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	setting, err := l.db.Settings.Get(ctx, key)
	if err != nil {
		return nil, lookupError(err, "setting", key)
	}
	return setting, nil
}

// ListSettings returns every setting ordered by key
func (l *Ledger) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	settings, err := l.db.Settings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// SetSetting creates or replaces a setting. Well-known keys are validated.
func (l *Ledger) SetSetting(ctx context.Context, key, value string) (_ *models.Setting, err error) {
	defer l.observe("set_setting", time.Now(), &err)

	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return nil, newValidationError("key", "must not be empty")
	}
	if err := validateSetting(key, value); err != nil {
		return nil, err
	}

	now := storedTime(l.now())
	if err := l.db.Settings.Set(ctx, key, value, now); err != nil {
		return nil, fmt.Errorf("set setting %s: %w", key, err)
	}

	log.Info().Str("key", key).Str("value", value).Msg("Setting updated")
	return &models.Setting{Key: key, Value: value, UpdatedAt: now}, nil
}

func validateSetting(key, value string) error {
	switch key {
	case SettingServerPort, SettingClientPort:
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return newValidationError(key, fmt.Sprintf("%q is not a valid port", value))
		}
	case SettingCurrency:
		if value == "" {
			return newValidationError(key, "must not be empty")
		}
	case SettingTimezone:
		if _, err := time.LoadLocation(value); err != nil || value == "" {
			return newValidationError(key, fmt.Sprintf("unknown time zone %q", value))
		}
	}
	return nil
}
