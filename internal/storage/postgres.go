package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gds_terminal/internal/gds"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// DSN returns the connection URL for the configuration.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// PostgresDB is the server backend for flights, locations and PNRs.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() error {
	d.pool.Close()
	return nil
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS flights (
		id                      BIGSERIAL PRIMARY KEY,
		airline                 TEXT NOT NULL,
		number                  TEXT NOT NULL,
		origin                  TEXT NOT NULL,
		origin_terminal         TEXT NOT NULL DEFAULT '',
		destination             TEXT NOT NULL,
		destination_terminal    TEXT NOT NULL DEFAULT '',
		departure_at            TIMESTAMPTZ NOT NULL,
		arrival_at              TIMESTAMPTZ NOT NULL,
		duration                INTEGER NOT NULL DEFAULT 0,
		equipment               TEXT NOT NULL DEFAULT '',
		classes                 JSONB NOT NULL DEFAULT '{}',
		operating_days          TEXT NOT NULL DEFAULT '',
		valid_from              TIMESTAMPTZ,
		valid_to                TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_flights_route ON flights(origin, destination, departure_at, id);

	CREATE TABLE IF NOT EXISTS locations (
		code        TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		city        TEXT NOT NULL DEFAULT '',
		country     TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS pnrs (
		id          BIGSERIAL PRIMARY KEY,
		locator     TEXT NOT NULL UNIQUE,
		status      TEXT NOT NULL,
		document    JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_pnrs_status ON pnrs(status);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// InsertFlight stores a flight row and returns its id.
func (d *PostgresDB) InsertFlight(ctx context.Context, f *gds.Flight) (int64, error) {
	classes, err := json.Marshal(f.Classes)
	if err != nil {
		return 0, fmt.Errorf("marshal classes: %w", err)
	}

	var id int64
	err = d.pool.QueryRow(ctx, `
		INSERT INTO flights (airline, number, origin, origin_terminal, destination, destination_terminal,
			departure_at, arrival_at, duration, equipment, classes, operating_days, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, f.Airline, f.Number, f.Origin, f.OriginTerminal, f.Destination, f.DestinationTerminal,
		f.DepartureAt.UTC(), f.ArrivalAt.UTC(), f.Duration, f.Equipment, classes, f.OperatingDays,
		nullTime(f.ValidFrom), nullTime(f.ValidTo)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert flight: %w", err)
	}
	return id, nil
}

// UpsertLocation inserts or updates a location record.
func (d *PostgresDB) UpsertLocation(ctx context.Context, l gds.Location) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO locations (code, name, city, country)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			city = EXCLUDED.city,
			country = EXCLUDED.country
	`, l.Code, l.Name, l.City, l.Country)
	return err
}

// FindFlights returns one page of flights matching q, sorted by departure
// then id.
func (d *PostgresDB) FindFlights(ctx context.Context, q gds.FlightQuery) (gds.FlightPage, error) {
	conditions := []string{"origin = $1", "destination = $2"}
	args := []interface{}{q.Origin, q.Destination}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.Airline != "" {
		conditions = append(conditions, "airline = "+arg(q.Airline))
	}
	if !q.Date.IsZero() {
		start, end := dayBounds(q.Date)
		conditions = append(conditions, fmt.Sprintf("departure_at >= %s AND departure_at < %s", arg(start), arg(end)))
	}
	if !q.From.IsZero() {
		conditions = append(conditions, "departure_at >= "+arg(q.From.UTC()))
	}
	if q.After != "" {
		m, err := decodeMarker(q.After)
		if err != nil {
			return gds.FlightPage{}, err
		}
		conditions = append(conditions, fmt.Sprintf("(departure_at, id) > (%s, %s)", arg(m.DepartureAt), arg(m.ID)))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	query := `SELECT id, airline, number, origin, origin_terminal, destination, destination_terminal,
			departure_at, arrival_at, duration, equipment, classes, operating_days, valid_from, valid_to
		FROM flights WHERE ` + strings.Join(conditions, " AND ") +
		" ORDER BY departure_at, id LIMIT " + arg(limit)

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return gds.FlightPage{}, fmt.Errorf("query flights: %w", err)
	}
	defer rows.Close()

	var flights []gds.Flight
	for rows.Next() {
		var f gds.Flight
		var classes []byte
		var from, to *time.Time
		err := rows.Scan(&f.ID, &f.Airline, &f.Number, &f.Origin, &f.OriginTerminal, &f.Destination,
			&f.DestinationTerminal, &f.DepartureAt, &f.ArrivalAt, &f.Duration, &f.Equipment, &classes,
			&f.OperatingDays, &from, &to)
		if err != nil {
			return gds.FlightPage{}, fmt.Errorf("scan flight: %w", err)
		}
		if err := json.Unmarshal(classes, &f.Classes); err != nil {
			return gds.FlightPage{}, fmt.Errorf("decode classes of flight %d: %w", f.ID, err)
		}
		f.DepartureAt, f.ArrivalAt = f.DepartureAt.UTC(), f.ArrivalAt.UTC()
		if from != nil {
			f.ValidFrom = from.UTC()
		}
		if to != nil {
			f.ValidTo = to.UTC()
		}
		flights = append(flights, f)
	}
	if err := rows.Err(); err != nil {
		return gds.FlightPage{}, err
	}

	return gds.FlightPage{Rows: flights, Next: nextMarker(flights, limit)}, nil
}

// Location retrieves a location by code.
func (d *PostgresDB) Location(ctx context.Context, code string) (*gds.Location, error) {
	var l gds.Location
	err := d.pool.QueryRow(ctx, `
		SELECT code, name, city, country FROM locations WHERE code = $1
	`, code).Scan(&l.Code, &l.Name, &l.City, &l.Country)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetByLocator retrieves a PNR by record locator.
func (d *PostgresDB) GetByLocator(ctx context.Context, locator string) (*gds.PNR, error) {
	var id int64
	var doc []byte
	err := d.pool.QueryRow(ctx, `SELECT id, document FROM pnrs WHERE locator = $1`, locator).Scan(&id, &doc)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p gds.PNR
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode pnr %s: %w", locator, err)
	}
	p.ID = strconv.FormatInt(id, 10)
	return &p, nil
}

// Save stores a new PNR and returns its id.
func (d *PostgresDB) Save(ctx context.Context, p *gds.PNR) (string, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal pnr: %w", err)
	}

	var id int64
	err = d.pool.QueryRow(ctx, `
		INSERT INTO pnrs (locator, status, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.Locator, string(p.Status), doc, p.CreatedAt, p.UpdatedAt).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert pnr: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Update replaces a stored PNR.
func (d *PostgresDB) Update(ctx context.Context, id string, p *gds.PNR) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("update pnr: bad id %q", id)
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pnr: %w", err)
	}

	tag, err := d.pool.Exec(ctx, `
		UPDATE pnrs SET locator = $1, status = $2, document = $3, updated_at = $4 WHERE id = $5
	`, p.Locator, string(p.Status), doc, p.UpdatedAt, n)
	if err != nil {
		return fmt.Errorf("update pnr: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update pnr %s: no such record", id)
	}
	return nil
}

// LocatorExists reports whether a locator is taken.
func (d *PostgresDB) LocatorExists(ctx context.Context, locator string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pnrs WHERE locator = $1)`, locator).Scan(&exists)
	return exists, err
}
