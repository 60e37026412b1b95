package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pavkata12/app/internal/database"
)

// Collector periodically refreshes gauge metrics from database state
type Collector struct {
	db                 *database.BunDB
	interval           time.Duration
	maxSessionDuration time.Duration
	now                func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector. Sessions active for longer than
// maxSessionDuration are reported as overdue; zero disables that gauge.
func NewCollector(db *database.BunDB, interval, maxSessionDuration time.Duration) *Collector {
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &Collector{
		db:                 db,
		interval:           interval,
		maxSessionDuration: maxSessionDuration,
		now:                time.Now,
		stopCh:             make(chan struct{}),
	}
}

// Start collects once immediately and then on every tick until ctx is done or Stop is called
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

// Stop stops the metrics collector
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Collect updates all gauges once
func (c *Collector) Collect(ctx context.Context) {
	if err := c.collectSessionMetrics(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to collect session metrics")
	}

	if err := c.collectComputerMetrics(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to collect computer metrics")
	}

	DBConnections.Set(float64(c.db.DB().Stats().OpenConnections))
}

func (c *Collector) collectSessionMetrics(ctx context.Context) error {
	active, err := c.db.Sessions.CountActive(ctx)
	if err != nil {
		return err
	}
	ActiveSessions.Set(float64(active))

	if c.maxSessionDuration <= 0 {
		OverdueSessions.Set(0)
		return nil
	}

	overdue, err := c.db.Sessions.CountActiveStartedBefore(ctx, c.now().Add(-c.maxSessionDuration))
	if err != nil {
		return err
	}
	OverdueSessions.Set(float64(overdue))
	if overdue > 0 {
		log.Warn().
			Int("overdue", overdue).
			Dur("max_session_duration", c.maxSessionDuration).
			Msg("Active sessions exceed the maximum session duration")
	}
	return nil
}

func (c *Collector) collectComputerMetrics(ctx context.Context) error {
	counts, err := c.db.Computers.CountByStatus(ctx)
	if err != nil {
		return err
	}

	ComputersTotal.Reset()
	for status, count := range counts {
		ComputersTotal.WithLabelValues(string(status)).Set(float64(count))
	}
	return nil
}
