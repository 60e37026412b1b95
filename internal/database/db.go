package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("duplicate record")
	// ErrStale is returned when a guarded update matched no row in the expected state
	ErrStale = errors.New("record changed concurrently")
)

// DefaultSettings are seeded on every migration without overwriting existing values
var DefaultSettings = map[string]string{
	"server_port": "5000",
	"client_port": "5001",
	"currency":    "BGN",
	"timezone":    "Europe/Sofia",
}

// Repositories groups the typed repositories bound to one bun.IDB (the pool or a transaction)
type Repositories struct {
	Computers ComputerRepository
	Tariffs   TariffRepository
	Sessions  SessionRepository
	Payments  PaymentRepository
	Settings  SettingRepository
}

func newRepositories(db bun.IDB) Repositories {
	return Repositories{
		Computers: NewComputerRepository(db),
		Tariffs:   NewTariffRepository(db),
		Sessions:  NewSessionRepository(db),
		Payments:  NewPaymentRepository(db),
		Settings:  NewSettingRepository(db),
	}
}

// BunDB wraps bun.DB and provides repository access
type BunDB struct {
	db *bun.DB

	Repositories
}

// Option is a functional option for configuring the database
type Option func(*BunDB)

// WithDebug enables query logging for debugging
func WithDebug(enabled bool) Option {
	return func(db *BunDB) {
		if enabled {
			db.db.AddQueryHook(bundebug.NewQueryHook(
				bundebug.WithVerbose(true),
			))
			log.Info().Msg("Bun query logging enabled")
		}
	}
}

// WithMaxOpenConns sets the connection pool size. Only one connection is supported:
// pragmas are per connection and a second writer gets SQLITE_BUSY instead of waiting,
// so values above 1 are capped.
func WithMaxOpenConns(n int) Option {
	return func(db *BunDB) {
		if n > maxOpenConns {
			log.Warn().Int("requested", n).Int("max", maxOpenConns).Msg("Capping SQLite connection pool")
			n = maxOpenConns
		}
		if n > 0 {
			db.db.SetMaxOpenConns(n)
		}
	}
}

const (
	maxOpenConns  = 1
	busyTimeoutMS = 5000
)

// New opens the SQLite database at dsn, runs migrations and seeds default settings
func New(dsn string, opts ...Option) (*BunDB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqldb.SetMaxOpenConns(maxOpenConns)
	sqldb.SetMaxIdleConns(maxOpenConns)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	bunDB := &BunDB{
		db:           db,
		Repositories: newRepositories(db),
	}

	for _, opt := range opts {
		opt(bunDB)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	// other processes holding the file lock make us wait instead of failing
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := bunDB.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info().Str("dsn", dsn).Msg("Database initialized successfully")
	return bunDB, nil
}

// Close closes the database connection
func (db *BunDB) Close() error {
	return db.db.Close()
}

// DB returns the underlying bun.DB instance for advanced operations
func (db *BunDB) DB() *bun.DB {
	return db.db
}

// RunInTx runs fn inside a transaction with repositories bound to it.
// The transaction commits when fn returns nil and rolls back otherwise.
func (db *BunDB) RunInTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return db.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, newRepositories(tx))
	})
}

// Migrate creates tables, indexes and seeds settings
func (db *BunDB) Migrate(ctx context.Context) error {
	log.Debug().Msg("Running database migrations")

	tables := []struct {
		model       interface{}
		foreignKeys []string
	}{
		{model: (*Computer)(nil)},
		{model: (*Tariff)(nil)},
		{
			model: (*Session)(nil),
			foreignKeys: []string{
				`("computer_id") REFERENCES "computers" ("id")`,
				`("tariff_id") REFERENCES "tariffs" ("id")`,
			},
		},
		{
			model: (*Payment)(nil),
			foreignKeys: []string{
				`("session_id") REFERENCES "sessions" ("id")`,
			},
		},
		{model: (*Setting)(nil)},
	}

	for _, t := range tables {
		q := db.db.NewCreateTable().
			Model(t.model).
			IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_computers_status ON computers(status)",
		"CREATE INDEX IF NOT EXISTS idx_tariffs_is_active ON tariffs(is_active)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_computer_id ON sessions(computer_id)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_tariff_id ON sessions(tariff_id)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time)",
		"CREATE INDEX IF NOT EXISTS idx_payments_session_id ON payments(session_id)",
	}
	for _, idx := range indexes {
		if _, err := db.db.ExecContext(ctx, idx); err != nil {
			log.Warn().Err(err).Str("index", idx).Msg("Failed to create index (may already exist)")
		}
	}

	// At most one active session per computer. Unlike the plain indexes this one carries an
	// invariant, so failing to create it fails the migration.
	if _, err := db.db.ExecContext(ctx,
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active_per_computer ON sessions(computer_id) WHERE status = 'active'",
	); err != nil {
		return fmt.Errorf("failed to create active session index: %w", err)
	}

	if err := db.Settings.SeedDefaults(ctx, DefaultSettings); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	log.Debug().Msg("Database migrations completed successfully")
	return nil
}

// Clean removes all data from all tables (useful for development/testing).
// Settings are re-seeded afterwards.
func (db *BunDB) Clean(ctx context.Context) error {
	log.Warn().Msg("Cleaning all data from database")

	// Children first to respect foreign keys
	tables := []string{"payments", "sessions", "tariffs", "computers", "settings"}
	for _, table := range tables {
		if _, err := db.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clean table %s: %w", table, err)
		}
		log.Debug().Str("table", table).Msg("Cleaned table")
	}

	return db.Settings.SeedDefaults(ctx, DefaultSettings)
}

// isUniqueViolation recognises unique constraint failures from either SQLite driver
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(entity string, key interface{}) error {
	return fmt.Errorf("%s %v: %w", entity, key, ErrNotFound)
}
