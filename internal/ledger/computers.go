package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pavkata12/app/internal/database"
	"github.com/pavkata12/app/internal/events"
	"github.com/pavkata12/app/internal/metrics"
	"github.com/pavkata12/app/internal/models"
)

// RegisterComputer adds a station to the registry. New computers start offline.
func (l *Ledger) RegisterComputer(ctx context.Context, name, ipAddress string) (_ *models.Computer, err error) {
	defer l.observe("register_computer", time.Now(), &err)

	name = strings.TrimSpace(name)
	ipAddress = strings.TrimSpace(ipAddress)
	if name == "" {
		return nil, newValidationError("name", "must not be empty")
	}
	if net.ParseIP(ipAddress) == nil {
		return nil, newValidationError("ip_address", fmt.Sprintf("%q is not an IP address", ipAddress))
	}

	computer := &models.Computer{
		Name:      name,
		IPAddress: ipAddress,
		Status:    models.ComputerOffline,
		CreatedAt: storedTime(l.now()),
	}

	err = l.db.RunInTx(ctx, func(ctx context.Context, repos database.Repositories) error {
		_, err := repos.Computers.GetByAddress(ctx, ipAddress)
		switch {
		case err == nil:
			return &DuplicateError{Entity: "computer", Field: "ip_address", Value: ipAddress}
		case !errors.Is(err, database.ErrNotFound):
			return fmt.Errorf("check computer address: %w", err)
		}

		if err := repos.Computers.Create(ctx, computer); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return &DuplicateError{Entity: "computer", Field: "name", Value: name}
			}
			return fmt.Errorf("create computer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("computer_id", computer.ID).
		Str("name", name).
		Str("ip_address", ipAddress).
		Msg("Computer registered")
	return computer, nil
}

// GetComputer returns a registered computer
func (l *Ledger) GetComputer(ctx context.Context, id int64) (*models.Computer, error) {
	computer, err := l.db.Computers.Get(ctx, id)
	if err != nil {
		return nil, lookupError(err, "computer", id)
	}
	return computer, nil
}

// GetComputerByAddress returns the computer registered with ipAddress
func (l *Ledger) GetComputerByAddress(ctx context.Context, ipAddress string) (*models.Computer, error) {
	ipAddress = strings.TrimSpace(ipAddress)
	computer, err := l.db.Computers.GetByAddress(ctx, ipAddress)
	if err != nil {
		return nil, lookupError(err, "computer", ipAddress)
	}
	return computer, nil
}

// ListComputers returns every registered computer ordered by name
func (l *Ledger) ListComputers(ctx context.Context) ([]*models.Computer, error) {
	computers, err := l.db.Computers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list computers: %w", err)
	}
	return computers, nil
}

// UpdateComputerStatus sets a computer's status and stamps it as seen now
func (l *Ledger) UpdateComputerStatus(ctx context.Context, id int64, status models.ComputerStatus) (_ *models.Computer, err error) {
	defer l.observe("update_computer_status", time.Now(), &err)

	if _, err := models.ParseComputerStatus(string(status)); err != nil {
		return nil, newValidationError("status", err.Error())
	}
	load := func(repos database.Repositories) (*models.Computer, error) {
		computer, err := repos.Computers.Get(ctx, id)
		if err != nil {
			return nil, lookupError(err, "computer", id)
		}
		return computer, nil
	}
	return l.setComputerStatus(ctx, load, func(models.ComputerStatus) models.ComputerStatus {
		return status
	})
}

// Heartbeat marks the computer at ipAddress as seen. An offline computer comes back
// online; any other status is kept.
func (l *Ledger) Heartbeat(ctx context.Context, ipAddress string) (_ *models.Computer, err error) {
	defer l.observe("heartbeat", time.Now(), &err)

	ipAddress = strings.TrimSpace(ipAddress)
	if ipAddress == "" {
		return nil, newValidationError("ip_address", "must not be empty")
	}
	load := func(repos database.Repositories) (*models.Computer, error) {
		computer, err := repos.Computers.GetByAddress(ctx, ipAddress)
		if err != nil {
			return nil, lookupError(err, "computer", ipAddress)
		}
		return computer, nil
	}
	return l.setComputerStatus(ctx, load, func(current models.ComputerStatus) models.ComputerStatus {
		if current == models.ComputerOffline {
			return models.ComputerOnline
		}
		return current
	})
}

// setComputerStatus loads a computer, moves it to next(current) and stamps last_seen.
// A change of status is published.
func (l *Ledger) setComputerStatus(
	ctx context.Context,
	load func(database.Repositories) (*models.Computer, error),
	next func(models.ComputerStatus) models.ComputerStatus,
) (*models.Computer, error) {
	seenAt := storedTime(l.now())

	var (
		computer *models.Computer
		previous models.ComputerStatus
	)
	err := l.db.RunInTx(ctx, func(ctx context.Context, repos database.Repositories) error {
		var err error
		computer, err = load(repos)
		if err != nil {
			return err
		}
		previous = computer.Status
		computer.Status = next(previous)

		if err := repos.Computers.UpdateStatus(ctx, computer.ID, computer.Status, seenAt); err != nil {
			return lookupError(err, "computer", computer.ID)
		}
		computer.LastSeen = &seenAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previous != computer.Status {
		log.Info().
			Int64("computer_id", computer.ID).
			Str("from", string(previous)).
			Str("to", string(computer.Status)).
			Msg("Computer status changed")

		l.publisher.Publish(events.Event{
			Type:       events.ComputerStatus,
			At:         seenAt,
			ComputerID: computer.ID,
			Data:       computer,
		})
	}
	return computer, nil
}

// MarkStaleComputersOffline flags computers not seen within timeout as offline and
// returns how many changed.
func (l *Ledger) MarkStaleComputersOffline(ctx context.Context, timeout time.Duration) (_ int64, err error) {
	defer l.observe("mark_stale_offline", time.Now(), &err)

	if timeout <= 0 {
		return 0, newValidationError("heartbeat_timeout", "must be positive")
	}

	cutoff := l.now().Add(-timeout)
	n, err := l.db.Computers.MarkStaleOffline(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark stale computers offline: %w", err)
	}

	if n > 0 {
		metrics.ComputersMarkedOfflineTotal.Add(float64(n))
		log.Info().
			Int64("count", n).
			Time("cutoff", cutoff.UTC()).
			Msg("Marked unresponsive computers offline")

		l.publisher.Publish(events.Event{
			Type: events.ComputerStatus,
			Data: map[string]interface{}{
				"status": models.ComputerOffline,
				"count":  n,
			},
		})
	}
	return n, nil
}
