package storage

import (
	"context"
	"errors"
	"fmt"

	"gds_terminal/internal/gds"
)

// FlightRepository is the flight and location data a backend serves.
type FlightRepository interface {
	FindFlights(ctx context.Context, q gds.FlightQuery) (gds.FlightPage, error)
	Location(ctx context.Context, code string) (*gds.Location, error)
	InsertFlight(ctx context.Context, f *gds.Flight) (int64, error)
	UpsertLocation(ctx context.Context, l gds.Location) error
}

// PNRStore persists booking records.
type PNRStore interface {
	GetByLocator(ctx context.Context, locator string) (*gds.PNR, error)
	Save(ctx context.Context, p *gds.PNR) (string, error)
	Update(ctx context.Context, id string, p *gds.PNR) error
	LocatorExists(ctx context.Context, locator string) (bool, error)
}

// Journal records executed commands.
type Journal interface {
	Record(ctx context.Context, e JournalEntry) error
}

// Config selects and configures the storage backends.
type Config struct {
	Driver     string // sqlite or postgres
	SQLitePath string
	Postgres   PostgresConfig

	// Mongo, when URI is set, stores PNRs instead of the SQL backend.
	Mongo MongoConfig

	// ClickHouse, when Host is set, receives the command journal.
	ClickHouse     ClickHouseConfig
	JournalBatch   int
	DisableJournal bool
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		Driver:     "sqlite",
		SQLitePath: "gds.db",
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "gds",
			User:     "gds",
			Password: "gds",
		},
		Mongo: MongoConfig{
			Database:   "gds",
			Collection: "pnrs",
		},
		ClickHouse: ClickHouseConfig{
			Port:     9000,
			Database: "gds",
			User:     "default",
		},
		JournalBatch: 50,
	}
}

// DB bundles the opened backends.
type DB struct {
	Flights FlightRepository
	PNRs    PNRStore
	Journal Journal

	closers []func() error
}

// Open opens the backends named by cfg and creates their schemas.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d := &DB{}

	switch cfg.Driver {
	case "", "sqlite":
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		d.closers = append(d.closers, s.Close)
		d.Flights, d.PNRs, d.Journal = s, s, s
	case "postgres":
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.closers = append(d.closers, pg.Close)
		if err := pg.CreateSchema(ctx); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		d.Flights, d.PNRs = pg, pg
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	if cfg.Mongo.URI != "" {
		m, err := OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("mongo: %w", err)
		}
		d.closers = append(d.closers, m.Close)
		d.PNRs = m
	}

	if cfg.ClickHouse.Host != "" {
		ch, err := OpenClickHouse(ctx, cfg.ClickHouse, cfg.JournalBatch)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		d.closers = append(d.closers, ch.Close)
		if err := ch.CreateSchema(ctx); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		d.Journal = ch
	}

	if cfg.DisableJournal {
		d.Journal = nil
	}
	return d, nil
}

// Close closes every opened backend, most recent first.
func (d *DB) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
