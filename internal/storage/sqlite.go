package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"gds_terminal/internal/gds"
)

// SQLiteDB is the embedded backend: flight repository, locations and PNR
// store in one database file.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at the given path. Use
// ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A memory database lives in a single connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	d := &SQLiteDB{db: db}
	if err := d.CreateSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return d, nil
}

// NewSQLite wraps an existing connection without touching the schema.
func NewSQLite(db *sql.DB) *SQLiteDB {
	return &SQLiteDB{db: db}
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

// CreateSchema creates the database tables and indices.
func (d *SQLiteDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS flights (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		airline TEXT NOT NULL,
		number TEXT NOT NULL,
		origin TEXT NOT NULL,
		origin_terminal TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL,
		destination_terminal TEXT NOT NULL DEFAULT '',
		departure_at TEXT NOT NULL,
		arrival_at TEXT NOT NULL,
		duration INTEGER NOT NULL DEFAULT 0,
		equipment TEXT NOT NULL DEFAULT '',
		classes TEXT NOT NULL DEFAULT '{}',
		operating_days TEXT NOT NULL DEFAULT '',
		valid_from TEXT NOT NULL DEFAULT '',
		valid_to TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_flights_route ON flights(origin, destination, departure_at, id);
	CREATE INDEX IF NOT EXISTS idx_flights_airline ON flights(airline);

	CREATE TABLE IF NOT EXISTS locations (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS pnrs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		locator TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		document TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS command_journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TEXT NOT NULL,
		session TEXT NOT NULL,
		command TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		response TEXT NOT NULL DEFAULT '',
		latency_us INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_journal_session ON command_journal(session, id);
	`
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// InsertFlight stores a flight row and returns its id.
func (d *SQLiteDB) InsertFlight(ctx context.Context, f *gds.Flight) (int64, error) {
	classes, err := json.Marshal(f.Classes)
	if err != nil {
		return 0, fmt.Errorf("marshal classes: %w", err)
	}

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO flights (airline, number, origin, origin_terminal, destination, destination_terminal,
			departure_at, arrival_at, duration, equipment, classes, operating_days, valid_from, valid_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.Airline, f.Number, f.Origin, f.OriginTerminal, f.Destination, f.DestinationTerminal,
		formatTime(f.DepartureAt), formatTime(f.ArrivalAt), f.Duration, f.Equipment, string(classes),
		f.OperatingDays, formatTime(f.ValidFrom), formatTime(f.ValidTo))
	if err != nil {
		return 0, fmt.Errorf("insert flight: %w", err)
	}
	return result.LastInsertId()
}

// UpsertLocation inserts or replaces a location record.
func (d *SQLiteDB) UpsertLocation(ctx context.Context, l gds.Location) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO locations (code, name, city, country) VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name, city = excluded.city, country = excluded.country
	`, l.Code, l.Name, l.City, l.Country)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

// FindFlights returns one page of flights matching q, sorted by departure
// then id.
func (d *SQLiteDB) FindFlights(ctx context.Context, q gds.FlightQuery) (gds.FlightPage, error) {
	conditions := []string{"origin = ?", "destination = ?"}
	args := []interface{}{q.Origin, q.Destination}

	if q.Airline != "" {
		conditions = append(conditions, "airline = ?")
		args = append(args, q.Airline)
	}
	if !q.Date.IsZero() {
		start, end := dayBounds(q.Date)
		conditions = append(conditions, "departure_at >= ? AND departure_at < ?")
		args = append(args, formatTime(start), formatTime(end))
	}
	if !q.From.IsZero() {
		conditions = append(conditions, "departure_at >= ?")
		args = append(args, formatTime(q.From))
	}
	if q.After != "" {
		m, err := decodeMarker(q.After)
		if err != nil {
			return gds.FlightPage{}, err
		}
		ts := formatTime(m.DepartureAt)
		conditions = append(conditions, "(departure_at > ? OR (departure_at = ? AND id > ?))")
		args = append(args, ts, ts, m.ID)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	query := `SELECT id, airline, number, origin, origin_terminal, destination, destination_terminal,
			departure_at, arrival_at, duration, equipment, classes, operating_days, valid_from, valid_to
			FROM flights WHERE ` + strings.Join(conditions, " AND ") +
		fmt.Sprintf(" ORDER BY departure_at, id LIMIT %d", limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return gds.FlightPage{}, fmt.Errorf("query flights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var flights []gds.Flight
	for rows.Next() {
		var f gds.Flight
		var dep, arr, classes, from, to string
		err := rows.Scan(&f.ID, &f.Airline, &f.Number, &f.Origin, &f.OriginTerminal, &f.Destination,
			&f.DestinationTerminal, &dep, &arr, &f.Duration, &f.Equipment, &classes, &f.OperatingDays, &from, &to)
		if err != nil {
			return gds.FlightPage{}, fmt.Errorf("scan flight: %w", err)
		}
		f.DepartureAt, f.ArrivalAt = parseTime(dep), parseTime(arr)
		f.ValidFrom, f.ValidTo = parseTime(from), parseTime(to)
		if err := json.Unmarshal([]byte(classes), &f.Classes); err != nil {
			return gds.FlightPage{}, fmt.Errorf("decode classes of flight %d: %w", f.ID, err)
		}
		flights = append(flights, f)
	}
	if err := rows.Err(); err != nil {
		return gds.FlightPage{}, err
	}

	return gds.FlightPage{Rows: flights, Next: nextMarker(flights, limit)}, nil
}

// Location retrieves a location by code.
func (d *SQLiteDB) Location(ctx context.Context, code string) (*gds.Location, error) {
	var l gds.Location
	err := d.db.QueryRowContext(ctx, `SELECT code, name, city, country FROM locations WHERE code = ?`, code).
		Scan(&l.Code, &l.Name, &l.City, &l.Country)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// GetByLocator retrieves a PNR by record locator.
func (d *SQLiteDB) GetByLocator(ctx context.Context, locator string) (*gds.PNR, error) {
	var id int64
	var doc string
	err := d.db.QueryRowContext(ctx, `SELECT id, document FROM pnrs WHERE locator = ?`, locator).Scan(&id, &doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var p gds.PNR
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decode pnr %s: %w", locator, err)
	}
	p.ID = strconv.FormatInt(id, 10)
	return &p, nil
}

// Save stores a new PNR and returns its id.
func (d *SQLiteDB) Save(ctx context.Context, p *gds.PNR) (string, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal pnr: %w", err)
	}

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO pnrs (locator, status, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.Locator, string(p.Status), string(doc), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return "", fmt.Errorf("insert pnr: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// Update replaces a stored PNR.
func (d *SQLiteDB) Update(ctx context.Context, id string, p *gds.PNR) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pnr: %w", err)
	}

	result, err := d.db.ExecContext(ctx, `
		UPDATE pnrs SET locator = ?, status = ?, document = ?, updated_at = ? WHERE id = ?
	`, p.Locator, string(p.Status), string(doc), formatTime(p.UpdatedAt), id)
	if err != nil {
		return fmt.Errorf("update pnr: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update pnr %s: no such record", id)
	}
	return nil
}

// LocatorExists reports whether a locator is taken.
func (d *SQLiteDB) LocatorExists(ctx context.Context, locator string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pnrs WHERE locator = ?`, locator).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Record appends an executed command to the journal table.
func (d *SQLiteDB) Record(ctx context.Context, e JournalEntry) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO command_journal (at, session, command, kind, outcome, response, latency_us)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, formatTime(e.At), e.Session, e.Command, e.Kind, e.Outcome, e.Response, e.Latency.Microseconds())
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns the latest journal entries of a session, newest first.
func (d *SQLiteDB) Recent(ctx context.Context, session string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT at, session, command, kind, outcome, response, latency_us
		FROM command_journal WHERE session = ? ORDER BY id DESC LIMIT ?
	`, session, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var at string
		var latency int64
		if err := rows.Scan(&at, &e.Session, &e.Command, &e.Kind, &e.Outcome, &e.Response, &latency); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.At = parseTime(at)
		e.Latency = time.Duration(latency) * time.Microsecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats summarises the stored data.
type Stats struct {
	Flights   int
	Locations int
	PNRs      int
	Commands  int
	ByStatus  map[string]int
}

// GetStats returns counts of stored rows.
func (d *SQLiteDB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[string]int)}

	for _, c := range []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM flights", &stats.Flights},
		{"SELECT COUNT(*) FROM locations", &stats.Locations},
		{"SELECT COUNT(*) FROM pnrs", &stats.PNRs},
		{"SELECT COUNT(*) FROM command_journal", &stats.Commands},
	} {
		if err := d.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	rows, err := d.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM pnrs GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
	}
	return stats, rows.Err()
}
