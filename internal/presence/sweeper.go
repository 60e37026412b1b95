package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Marker flags computers that have not reported within timeout as offline
type Marker interface {
	MarkStaleComputersOffline(ctx context.Context, timeout time.Duration) (int64, error)
}

// Sweeper periodically marks silent computers offline on a cron schedule
type Sweeper struct {
	marker  Marker
	timeout time.Duration
	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper running on schedule, which accepts standard five-field
// cron specs and descriptors such as "@every 30s".
func NewSweeper(marker Marker, schedule string, timeout time.Duration) (*Sweeper, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("heartbeat timeout must be positive, got %s", timeout)
	}

	s := &Sweeper{
		marker:  marker,
		timeout: timeout,
		cron:    cron.New(),
	}

	id, err := s.cron.AddFunc(schedule, s.runJob)
	if err != nil {
		return nil, fmt.Errorf("invalid presence schedule %q: %w", schedule, err)
	}
	s.entryID = id
	return s, nil
}

// Start starts the cron scheduler
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	log.Info().Dur("heartbeat_timeout", s.timeout).Msg("Presence sweeper started")
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Presence sweeper stopped")
}

// Next returns when the next sweep is due, or the zero time when not started
func (s *Sweeper) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Sweep runs one pass immediately
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	return s.marker.MarkStaleComputersOffline(ctx, s.timeout)
}

func (s *Sweeper) runJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Presence sweep failed")
		return
	}
	if n > 0 {
		log.Debug().Int64("marked_offline", n).Msg("Presence sweep completed")
	}
}
