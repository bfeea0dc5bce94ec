// Package search implements the availability, schedule and timetable query
// engine and its pagination cursor.
package search

import (
	"context"
	"fmt"
	"time"

	"gds_terminal/internal/gds"
	"gds_terminal/internal/grammar"
)

// DefaultPageSize is the number of flights requested per page.
const DefaultPageSize = 5

// Trainee-facing messages.
const (
	MsgNoFlights       = "NO FLIGHTS FOUND"
	MsgMoreFlights     = "MORE FLIGHTS - MD"
	MsgNoMoreFlights   = "NO MORE FLIGHTS"
	MsgNoPreviousPages = "NO PREVIOUS PAGES"
	MsgNoActiveSearch  = "NO ACTIVE SEARCH"
)

// FlightSource is the flight repository consumed by the engine.
type FlightSource interface {
	// FindFlights returns one page of flights matching q, sorted by departure
	// then id.
	FindFlights(ctx context.Context, q gds.FlightQuery) (gds.FlightPage, error)

	// Location returns the reference record for a code, or nil if unknown.
	Location(ctx context.Context, code string) (*gds.Location, error)
}

// Engine runs searches against a FlightSource.
type Engine struct {
	source   FlightSource
	pageSize int
	now      func() time.Time
}

// NewEngine creates an engine. A pageSize below 1 selects DefaultPageSize and
// a nil now selects time.Now.
func NewEngine(source FlightSource, pageSize int, now func() time.Time) *Engine {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{source: source, pageSize: pageSize, now: now}
}

// PageSize returns the configured page size.
func (e *Engine) PageSize() int {
	return e.pageSize
}

// Search starts a fresh search and returns its cursor positioned on the first
// page, numbered from 1.
func (e *Engine) Search(ctx context.Context, q grammar.Availability) (*Cursor, error) {
	now := e.now().UTC()
	filter := gds.FlightQuery{
		Origin:      q.Origin,
		Destination: q.Destination,
		Airline:     q.Airline,
		Limit:       e.pageSize,
	}
	if q.HasDate() {
		filter.Date = q.ResolveDate(now)
	} else {
		filter.From = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	c := &Cursor{Query: q, Filter: filter}

	page, err := e.fetch(ctx, c, "")
	if err != nil {
		return nil, err
	}
	page.Start = 1
	c.Current = page

	subject, err := e.subject(ctx, q.Destination)
	if err != nil {
		return nil, err
	}
	c.Subject = subject
	return c, nil
}

// Next moves the cursor one page forward. The cursor is unchanged when there
// is nothing after the current page.
func (e *Engine) Next(ctx context.Context, c *Cursor) error {
	if !c.HasNext() {
		return gds.Precondition(MsgNoMoreFlights)
	}
	page, fetched, err := e.fetchCounted(ctx, c, c.Current.Next)
	if err != nil {
		return err
	}
	if fetched == 0 {
		return gds.Precondition(MsgNoMoreFlights)
	}
	c.advance(page)
	return nil
}

func (e *Engine) fetch(ctx context.Context, c *Cursor, after string) (Page, error) {
	page, _, err := e.fetchCounted(ctx, c, after)
	return page, err
}

// fetchCounted issues one repository call and returns the displayable page
// plus the number of raw rows the repository returned.
func (e *Engine) fetchCounted(ctx context.Context, c *Cursor, after string) (Page, int, error) {
	q := c.Filter
	q.After = after
	res, err := e.source.FindFlights(ctx, q)
	if err != nil {
		return Page{}, 0, fmt.Errorf("find flights %s%s: %w", q.Origin, q.Destination, err)
	}
	rows := filterRows(c.Query, dedupe(res.Rows))
	return Page{Rows: rows, Next: res.Next}, len(res.Rows), nil
}

func (e *Engine) subject(ctx context.Context, code string) (string, error) {
	loc, err := e.source.Location(ctx, code)
	if err != nil {
		return "", fmt.Errorf("location %s: %w", code, err)
	}
	if loc == nil || loc.City == "" {
		return code, nil
	}
	s := code + " " + loc.City
	if loc.Country != "" {
		s += "." + loc.Country
	}
	return s, nil
}

// dedupe drops rows describing a physical flight already seen. First wins.
func dedupe(rows []gds.Flight) []gds.Flight {
	seen := make(map[string]bool, len(rows))
	out := make([]gds.Flight, 0, len(rows))
	for _, r := range rows {
		key := r.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// filterRows applies the class filter. Only seats-only availability drops
// rows; schedule and timetable modes show every flight.
func filterRows(q grammar.Availability, rows []gds.Flight) []gds.Flight {
	if q.Mode != grammar.ModeAvailability || q.Class == "" {
		return rows
	}
	class, ok := gds.ParseClass(q.Class)
	if !ok {
		return rows
	}
	out := rows[:0]
	for _, r := range rows {
		if n, ok := r.Classes.Seats(class); ok && n > 0 {
			out = append(out, r)
		}
	}
	return out
}
