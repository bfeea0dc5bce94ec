package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// JournalEntry is one executed terminal command.
type JournalEntry struct {
	Session  string
	Command  string
	Kind     string
	Outcome  string
	Response string
	Latency  time.Duration
	At       time.Time
}

// ClickHouseJournal appends executed commands to the command_journal table.
// Entries are buffered and sent in batches.
type ClickHouseJournal struct {
	conn      driver.Conn
	batchSize int

	mu      sync.Mutex
	pending []JournalEntry
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig, batchSize int) (*ClickHouseJournal, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	if batchSize <= 0 {
		batchSize = 1
	}
	return &ClickHouseJournal{conn: conn, batchSize: batchSize}, nil
}

// CreateSchema creates the journal table.
func (j *ClickHouseJournal) CreateSchema(ctx context.Context) error {
	err := j.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS command_journal (
		at              DateTime64(3),
		session         String,
		command         String,
		kind            LowCardinality(String),
		outcome         LowCardinality(String),
		response        String,
		latency_us      UInt64
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(at)
	ORDER BY (session, at)`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Record queues an entry and sends the batch once it is full.
func (j *ClickHouseJournal) Record(ctx context.Context, e JournalEntry) error {
	j.mu.Lock()
	j.pending = append(j.pending, e)
	full := len(j.pending) >= j.batchSize
	j.mu.Unlock()

	if full {
		return j.Flush(ctx)
	}
	return nil
}

// Flush sends every queued entry.
func (j *ClickHouseJournal) Flush(ctx context.Context) error {
	j.mu.Lock()
	entries := j.pending
	j.pending = nil
	j.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	batch, err := j.conn.PrepareBatch(ctx, `
		INSERT INTO command_journal (at, session, command, kind, outcome, response, latency_us)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range entries {
		err := batch.Append(e.At, e.Session, e.Command, e.Kind, e.Outcome, e.Response, uint64(e.Latency.Microseconds()))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Recent returns the latest entries of a session, newest first.
func (j *ClickHouseJournal) Recent(ctx context.Context, session string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT at, session, command, kind, outcome, response, latency_us FROM command_journal
		WHERE session = ?` + fmt.Sprintf(" ORDER BY at DESC LIMIT %d", limit)

	rows, err := j.conn.Query(ctx, query, session)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var latency uint64
		if err := rows.Scan(&e.At, &e.Session, &e.Command, &e.Kind, &e.Outcome, &e.Response, &latency); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Latency = time.Duration(latency) * time.Microsecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close flushes pending entries and closes the connection.
func (j *ClickHouseJournal) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	flushErr := j.Flush(ctx)
	if err := j.conn.Close(); err != nil {
		return err
	}
	return flushErr
}
