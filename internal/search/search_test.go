package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"gds_terminal/internal/gds"
	"gds_terminal/internal/grammar"
)

// memorySource is an in-memory FlightSource. Flights must be added in
// departure order; markers are offsets into the filtered result.
type memorySource struct {
	flights   []gds.Flight
	locations map[string]gds.Location
	queries   []gds.FlightQuery
	err       error
}

func (m *memorySource) FindFlights(_ context.Context, q gds.FlightQuery) (gds.FlightPage, error) {
	m.queries = append(m.queries, q)
	if m.err != nil {
		return gds.FlightPage{}, m.err
	}
	var matched []gds.Flight
	for _, f := range m.flights {
		if f.Origin != q.Origin || f.Destination != q.Destination {
			continue
		}
		if q.Airline != "" && f.Airline != q.Airline {
			continue
		}
		if !q.Date.IsZero() && gds.DaysBetween(q.Date, f.DepartureAt) != 0 {
			continue
		}
		if !q.From.IsZero() && f.DepartureAt.Before(q.From) {
			continue
		}
		matched = append(matched, f)
	}
	start := 0
	if q.After != "" {
		start, _ = strconv.Atoi(q.After)
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+q.Limit, len(matched))
	page := gds.FlightPage{Rows: matched[start:end]}
	if len(page.Rows) == q.Limit {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

func (m *memorySource) Location(_ context.Context, code string) (*gds.Location, error) {
	if loc, ok := m.locations[code]; ok {
		return &loc, nil
	}
	return nil, nil
}

var testNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func ib6844(id int64, dep time.Time, classes map[string]int) gds.Flight {
	return gds.Flight{
		ID:          id,
		Airline:     "IB",
		Number:      "6844",
		Origin:      "BUE",
		Destination: "MAD",
		DepartureAt: dep,
		ArrivalAt:   dep.Add(695 * time.Minute),
		Duration:    695,
		Equipment:   "346",
		Classes:     gds.NormalizeClasses(classes),
	}
}

func madrid() map[string]gds.Location {
	return map[string]gds.Location{"MAD": {Code: "MAD", Name: "BARAJAS", City: "MADRID", Country: "ES"}}
}

func availability(t *testing.T, raw string) grammar.Availability {
	t.Helper()
	intent, err := grammar.Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q): %v", raw, err)
	}
	return intent.(grammar.Availability)
}

func TestEngine_SingleFlight(t *testing.T) {
	src := &memorySource{
		flights: []gds.Flight{
			ib6844(1, time.Date(2026, 11, 15, 23, 55, 0, 0, time.UTC), map[string]int{"Y": 9, "J": 2}),
		},
		locations: madrid(),
	}
	e := NewEngine(src, 5, fixedNow)

	c, err := e.Search(context.Background(), availability(t, "AN15NOVBUEMAD"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	got := strings.Split(e.Render(c), "\n")
	want := []string{
		"** GDS AVAILABILITY - AN ** MAD MADRID.ES       32 SU 15NOV 0930",
		"1  IB6844  J2 Y9                  BUE MAD 2355 1130+1 346 11:35",
	}
	if len(got) != len(want) {
		t.Fatalf("Render lines = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}

	q := src.queries[0]
	if !q.Date.Equal(time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)) || !q.From.IsZero() {
		t.Errorf("query date = %s from = %s", q.Date, q.From)
	}
	if q.Limit != 5 {
		t.Errorf("query limit = %d, want 5", q.Limit)
	}
}

func TestEngine_NoFlights(t *testing.T) {
	e := NewEngine(&memorySource{}, 5, fixedNow)
	c, err := e.Search(context.Background(), availability(t, "ANBUEMAD"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := e.Render(c); got != MsgNoFlights {
		t.Errorf("Render = %q, want %q", got, MsgNoFlights)
	}
}

func TestEngine_NoDateSearchesFromToday(t *testing.T) {
	src := &memorySource{}
	e := NewEngine(src, 5, fixedNow)
	if _, err := e.Search(context.Background(), availability(t, "ANBUEMAD")); err != nil {
		t.Fatalf("Search: %v", err)
	}
	q := src.queries[0]
	if !q.Date.IsZero() {
		t.Errorf("query date = %s, want zero", q.Date)
	}
	if !q.From.Equal(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("query from = %s, want start of today", q.From)
	}
}

// series returns n BUE-MAD flights on consecutive hours of 15NOV.
func series(n int) []gds.Flight {
	base := time.Date(2026, 11, 15, 6, 0, 0, 0, time.UTC)
	out := make([]gds.Flight, n)
	for i := range out {
		f := ib6844(int64(i+1), base.Add(time.Duration(i)*time.Hour), map[string]int{"Y": 4})
		f.Number = fmt.Sprintf("%d", 100+i)
		out[i] = f
	}
	return out
}

func indices(c *Cursor) []int {
	out := make([]int, len(c.Current.Rows))
	for i := range c.Current.Rows {
		out[i] = c.Current.Start + i
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEngine_PaginationNumberingIsStable(t *testing.T) {
	src := &memorySource{flights: series(12), locations: madrid()}
	e := NewEngine(src, 5, fixedNow)
	ctx := context.Background()

	c, err := e.Search(ctx, availability(t, "AN15NOVBUEMAD"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := indices(c); !equalInts(got, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("page 1 = %v", got)
	}
	if !strings.HasSuffix(e.Render(c), MsgMoreFlights) {
		t.Error("full page should end with the more hint")
	}

	if err := e.Next(ctx, c); err != nil {
		t.Fatalf("Next: %v", err)
	}
	page2 := indices(c)
	if !equalInts(page2, []int{6, 7, 8, 9, 10}) {
		t.Fatalf("page 2 = %v", page2)
	}
	rendered2 := e.Render(c)

	if err := e.Next(ctx, c); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := indices(c); !equalInts(got, []int{11, 12}) {
		t.Fatalf("page 3 = %v", got)
	}
	if strings.Contains(e.Render(c), MsgMoreFlights) {
		t.Error("short page should not carry the more hint")
	}

	err = e.Next(ctx, c)
	if err == nil || err.Error() != MsgNoMoreFlights {
		t.Errorf("Next at end = %v, want %s", err, MsgNoMoreFlights)
	}

	queries := len(src.queries)
	if err := c.Previous(); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if got := indices(c); !equalInts(got, page2) {
		t.Errorf("back on page 2 = %v, want %v", got, page2)
	}
	if got := e.Render(c); got != rendered2 {
		t.Errorf("page 2 re-render differs:\n%s\nwant\n%s", got, rendered2)
	}
	if len(src.queries) != queries {
		t.Error("Previous must not query the repository")
	}

	if err := c.Previous(); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if got := indices(c); !equalInts(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("back on page 1 = %v", got)
	}
	if err := c.Previous(); err == nil || err.Error() != MsgNoPreviousPages {
		t.Errorf("Previous at start = %v, want %s", err, MsgNoPreviousPages)
	}

	if err := e.Next(ctx, c); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := indices(c); !equalInts(got, page2) {
		t.Errorf("forward again = %v, want %v", got, page2)
	}
}

func TestEngine_NextOnEmptyPageKeepsCursor(t *testing.T) {
	src := &memorySource{flights: series(5)}
	e := NewEngine(src, 5, fixedNow)
	ctx := context.Background()

	c, err := e.Search(ctx, availability(t, "AN15NOVBUEMAD"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !c.HasNext() {
		t.Fatal("full page should carry a marker")
	}
	err = e.Next(ctx, c)
	if !gds.IsPrecondition(err) || err.Error() != MsgNoMoreFlights {
		t.Fatalf("Next = %v, want %s", err, MsgNoMoreFlights)
	}
	if c.Depth() != 0 || !equalInts(indices(c), []int{1, 2, 3, 4, 5}) {
		t.Errorf("cursor moved: depth=%d indices=%v", c.Depth(), indices(c))
	}
}

func TestEngine_DedupAndClassFilter(t *testing.T) {
	dep := time.Date(2026, 11, 15, 10, 0, 0, 0, time.UTC)
	dup := ib6844(1, dep, map[string]int{"Y": 3})
	dup2 := dup
	dup2.ID = 2
	noJ := ib6844(3, dep.Add(time.Hour), map[string]int{"Y": 3, "J": 0})
	noJ.Number = "6846"
	withJ := ib6844(4, dep.Add(2*time.Hour), map[string]int{"J": 12})
	withJ.Number = "6848"

	src := &memorySource{flights: []gds.Flight{dup, dup2, noJ, withJ}}
	e := NewEngine(src, 5, fixedNow)
	ctx := context.Background()

	c, err := e.Search(ctx, availability(t, "AN15NOVBUEMAD"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(c.Current.Rows) != 3 {
		t.Fatalf("dedup rows = %d, want 3", len(c.Current.Rows))
	}

	c, err = e.Search(ctx, availability(t, "AN15NOVBUEMAD/CJ"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(c.Current.Rows) != 1 || c.Current.Rows[0].Number != "6848" {
		t.Fatalf("class filter rows = %+v", c.Current.Rows)
	}
	if !strings.Contains(e.Render(c), "J9") {
		t.Error("seat counts above 9 should display as 9")
	}

	c, err = e.Search(ctx, availability(t, "SN15NOVBUEMAD/CJ"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(c.Current.Rows) != 3 {
		t.Fatalf("schedule mode rows = %d, want 3", len(c.Current.Rows))
	}
	lines := strings.Split(e.Render(c), "\n")
	if !strings.HasPrefix(lines[0], "** GDS SCHEDULE - SN ** MAD") {
		t.Errorf("banner = %q", lines[0])
	}
	if !strings.Contains(lines[2], "JL Y3") {
		t.Errorf("schedule line = %q, want closed J rendered JL", lines[2])
	}
}

func TestEngine_Timetable(t *testing.T) {
	f := ib6844(1, time.Date(2026, 11, 15, 23, 55, 0, 0, time.UTC), map[string]int{"Y": 9})
	f.OriginTerminal = "A"
	f.DestinationTerminal = "4"
	f.OperatingDays = "1357"
	f.ValidFrom = time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	f.ValidTo = time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC)
	e := NewEngine(&memorySource{flights: []gds.Flight{f}}, 5, fixedNow)

	c, err := e.Search(context.Background(), availability(t, "TN15NOVBUEMAD"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	lines := strings.Split(e.Render(c), "\n")
	want := "1  IB6844  BUE A  MAD 4  2355 1130+1 1.3.5.7 01NOV26 31MAR27 346"
	if len(lines) != 2 || lines[1] != want {
		t.Errorf("timetable = %q, want line %q", lines, want)
	}
	if !strings.HasPrefix(lines[0], "** GDS TIMETABLE - TN ** MAD ") {
		t.Errorf("banner = %q", lines[0])
	}
}

func TestCursor_Line(t *testing.T) {
	c := &Cursor{Current: Page{Start: 6, Rows: series(2)}}
	if _, ok := c.Line(5); ok {
		t.Error("line 5 is on a previous page")
	}
	f, ok := c.Line(7)
	if !ok || f.Number != "101" {
		t.Errorf("Line(7) = %+v, %v", f, ok)
	}
	if _, ok := c.Line(8); ok {
		t.Error("line 8 is past the page")
	}
}

func TestEngine_SourceError(t *testing.T) {
	boom := errors.New("connection refused")
	e := NewEngine(&memorySource{err: boom}, 5, fixedNow)
	_, err := e.Search(context.Background(), availability(t, "ANBUEMAD"))
	if !errors.Is(err, boom) {
		t.Errorf("Search error = %v, want wrapped %v", err, boom)
	}
	if gds.IsPrecondition(err) {
		t.Error("collaborator failure must not be a precondition error")
	}
}

func TestOperatingPattern(t *testing.T) {
	tests := map[string]string{
		"1357":    "1.3.5.7",
		"1234567": "1234567",
		"7":       "......7",
		"":        ".......",
	}
	for in, want := range tests {
		if got := OperatingPattern(in); got != want {
			t.Errorf("OperatingPattern(%q) = %q, want %q", in, got, want)
		}
	}
}
