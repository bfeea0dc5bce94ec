package pnr

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"gds_terminal/internal/gds"
	"gds_terminal/internal/grammar"
)

type memoryStore struct {
	records   map[string]*gds.PNR // by id
	nextID    int
	taken     int // LocatorExists reports true this many times
	checked   int
	saves     int
	updates   int
	saveErr   error
	lookupErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]*gds.PNR{}}
}

func (m *memoryStore) GetByLocator(_ context.Context, locator string) (*gds.PNR, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, p := range m.records {
		if p.Locator == locator {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memoryStore) Save(_ context.Context, p *gds.PNR) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saves++
	m.nextID++
	id := strconv.Itoa(m.nextID)
	c := p.Clone()
	c.ID = id
	m.records[id] = c
	return id, nil
}

func (m *memoryStore) Update(_ context.Context, id string, p *gds.PNR) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.records[id]; !ok {
		return errors.New("no such record")
	}
	m.updates++
	m.records[id] = p.Clone()
	return nil
}

func (m *memoryStore) LocatorExists(_ context.Context, locator string) (bool, error) {
	m.checked++
	if m.checked <= m.taken {
		return true, nil
	}
	for _, p := range m.records {
		if p.Locator == locator {
			return true, nil
		}
	}
	return false, nil
}

type fakeDisplay struct {
	mode  grammar.Mode
	start int
	rows  []gds.Flight
}

func (d *fakeDisplay) Mode() grammar.Mode { return d.mode }

func (d *fakeDisplay) Line(n int) (gds.Flight, bool) {
	i := n - d.start
	if i < 0 || i >= len(d.rows) {
		return gds.Flight{}, false
	}
	return d.rows[i], true
}

var testNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func newTestBuilder(store Store) *Builder {
	return NewBuilder(Options{
		Store:    store,
		Locators: gds.NewSeededLocatorGenerator(7),
		Now:      func() time.Time { return testNow },
		Header:   Header{OfficeID: "BUEAR0001", AgentSign: "0001AA/SU"},
	})
}

func buenosAiresMadrid() *fakeDisplay {
	dep := time.Date(2026, 11, 15, 23, 55, 0, 0, time.UTC)
	return &fakeDisplay{
		mode:  grammar.ModeAvailability,
		start: 1,
		rows: []gds.Flight{{
			ID: 1, Airline: "IB", Number: "6844", Origin: "BUE", Destination: "MAD",
			DepartureAt: dep, ArrivalAt: dep.Add(695 * time.Minute), Duration: 695, Equipment: "346",
			Classes: gds.ClassAvailability{'Y': 9, 'J': 2},
		}},
	}
}

func isPrecondition(t *testing.T, err error, msg string) {
	t.Helper()
	var pe *gds.PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want precondition %q", err, msg)
	}
	if pe.Msg != msg {
		t.Errorf("precondition = %q, want %q", pe.Msg, msg)
	}
}

func mustDo(t *testing.T) func(string, error) {
	t.Helper()
	return func(_ string, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

// complete sells one seat and adds every element required to finalize.
func complete(t *testing.T, b *Builder) {
	t.Helper()
	mustDo(t)(b.Sell(buenosAiresMadrid(), grammar.SellSegment{Quantity: 1, Class: "Y", Line: 1}))
	mustDo(t)(b.AddName(grammar.AddName{Quantity: 1, LastName: "GARCIA", FirstName: "JUAN", Title: "MR"}))
	mustDo(t)(b.AddContact(grammar.AddContact{City: "BUE", Phone: "12345678", Type: "M"}))
	mustDo(t)(b.ReceivedFrom(grammar.ReceivedFrom{Name: "JUAN PEREZ"}))
}

func TestBuilder_SellCreatesPNR(t *testing.T) {
	b := newTestBuilder(newMemoryStore())
	if b.Status() != gds.StatusEmpty {
		t.Fatalf("initial status = %s", b.Status())
	}

	out, err := b.Sell(buenosAiresMadrid(), grammar.SellSegment{Quantity: 1, Class: "Y", Line: 1})
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	p := b.Active()
	if p == nil || p.Status != gds.StatusInProgress {
		t.Fatalf("active = %+v", p)
	}
	if !p.Placeholder() {
		t.Errorf("locator = %q, want placeholder", p.Locator)
	}
	if len(p.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(p.Segments))
	}
	s := p.Segments[0]
	if s.Class != "Y" || s.Quantity != 1 || s.Status != gds.SegmentRequested {
		t.Errorf("segment = %+v", s)
	}
	want := " 1  IB6844 Y 15NOV 7 BUEMAD DK1  2355 1130+1 346"
	if out != want {
		t.Errorf("Sell output = %q, want %q", out, want)
	}
}

func TestBuilder_SellPreconditions(t *testing.T) {
	b := newTestBuilder(newMemoryStore())

	_, err := b.Sell(nil, grammar.SellSegment{Quantity: 1, Class: "Y", Line: 1})
	isPrecondition(t, err, MsgNoActiveSearch)

	tn := buenosAiresMadrid()
	tn.mode = grammar.ModeTimetable
	_, err = b.Sell(tn, grammar.SellSegment{Quantity: 1, Class: "Y", Line: 1})
	isPrecondition(t, err, MsgNoSellDisplay)

	d := buenosAiresMadrid()
	_, err = b.Sell(d, grammar.SellSegment{Quantity: 1, Class: "Y", Line: 2})
	isPrecondition(t, err, MsgInvalidLine)

	_, err = b.Sell(d, grammar.SellSegment{Quantity: 1, Class: "M", Line: 1})
	isPrecondition(t, err, MsgClassNotAvailable)

	_, err = b.Sell(d, grammar.SellSegment{Quantity: 3, Class: "J", Line: 1})
	isPrecondition(t, err, MsgInsufficientSeats)

	if b.Active() != nil {
		t.Error("failed sells must not create a PNR")
	}
}

func TestBuilder_SellNeverExceedsOrMutatesSeats(t *testing.T) {
	b := newTestBuilder(newMemoryStore())
	d := buenosAiresMadrid()

	mustDo(t)(b.Sell(d, grammar.SellSegment{Quantity: 2, Class: "J", Line: 1}))
	_, err := b.Sell(d, grammar.SellSegment{Quantity: 1, Class: "J", Line: 1})
	isPrecondition(t, err, MsgInsufficientSeats)

	if got := d.rows[0].Classes['J']; got != 2 {
		t.Errorf("source row J seats = %d, want 2", got)
	}
	if got := b.Active().SeatsSold(); got != 2 {
		t.Errorf("SeatsSold = %d, want 2", got)
	}
	mustDo(t)(b.Sell(d, grammar.SellSegment{Quantity: 9, Class: "Y", Line: 1}))
}

func TestBuilder_NameCeiling(t *testing.T) {
	b := newTestBuilder(newMemoryStore())

	_, err := b.AddName(grammar.AddName{Quantity: 1, LastName: "GARCIA", FirstName: "JUAN"})
	isPrecondition(t, err, MsgNoActivePNR)

	mustDo(t)(b.Sell(buenosAiresMadrid(), grammar.SellSegment{Quantity: 1, Class: "Y", Line: 1}))
	_, err = b.AddName(grammar.AddName{Quantity: 2, LastName: "GARCIA", FirstName: "JUAN", Title: "MR"})
	isPrecondition(t, err, MsgTooManyNames)
	if n := len(b.Active().Passengers); n != 0 {
		t.Errorf("passengers = %d, want 0", n)
	}
}

func TestBuilder_PassengersStaySorted(t *testing.T) {
	names := []grammar.AddName{
		{Quantity: 1, LastName: "PEREZ", FirstName: "ANA"},
		{Quantity: 2, LastName: "GARCIA", FirstName: "LUIS"},
		{Quantity: 1, LastName: "GARCIA", FirstName: "ANA"},
		{Quantity: 1, LastName: "ALVAREZ", FirstName: "ZOE"},
		{Quantity: 1, LastName: "PEREZ", FirstName: "AARON"},
	}
	orders := [][]int{{0, 1, 2, 3, 4}, {4, 3, 2, 1, 0}, {2, 0, 4, 1, 3}}

	for _, order := range orders {
		b := newTestBuilder(newMemoryStore())
		mustDo(t)(b.Sell(buenosAiresMadrid(), grammar.SellSegment{Quantity: 6, Class: "Y", Line: 1}))
		for _, i := range order {
			mustDo(t)(b.AddName(names[i]))
			ps := b.Active().Passengers
			if !sort.SliceIsSorted(ps, func(i, j int) bool {
				if ps[i].LastName != ps[j].LastName {
					return ps[i].LastName < ps[j].LastName
				}
				return ps[i].FirstName < ps[j].FirstName
			}) {
				t.Fatalf("order %v: passengers not sorted: %+v", order, ps)
			}
		}
		if first := b.Active().Passengers[0]; first.LastName != "ALVAREZ" {
			t.Errorf("order %v: first passenger = %+v", order, first)
		}
	}
}

func TestBuilder_FinalizePreconditions(t *testing.T) {
	store := newMemoryStore()
	b := newTestBuilder(store)

	_, err := b.Finalize(context.Background(), false)
	isPrecondition(t, err, MsgNoActivePNR)

	d := buenosAiresMadrid()
	steps := []struct {
		missing string
		apply   func()
	}{
		{MsgNeedName, func() { mustDo(t)(b.Sell(d, grammar.SellSegment{Quantity: 1, Class: "Y", Line: 1})) }},
		{MsgNeedContact, func() { mustDo(t)(b.AddName(grammar.AddName{Quantity: 1, LastName: "GARCIA", FirstName: "JUAN"})) }},
		{MsgNeedReceived, func() { mustDo(t)(b.AddContact(grammar.AddContact{City: "BUE", Phone: "12345678", Type: "H"})) }},
	}
	for _, step := range steps {
		step.apply()
		before := b.Active().Clone()
		for i := 0; i < 2; i++ {
			_, err := b.Finalize(context.Background(), false)
			isPrecondition(t, err, step.missing)
		}
		if b.Active().Status != before.Status || b.Active().Locator != before.Locator {
			t.Errorf("failed finalize mutated the PNR: %+v", b.Active())
		}
		if b.Active().Segments[0].Status != gds.SegmentRequested {
			t.Error("failed finalize confirmed segments")
		}
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0", store.saves)
	}

	b2 := newTestBuilder(store)
	b2.active = gds.NewPNR(testNow)
	_, err = b2.Finalize(context.Background(), false)
	isPrecondition(t, err, MsgNeedSegment)
}

func TestBuilder_EndTransaction(t *testing.T) {
	store := newMemoryStore()
	b := newTestBuilder(store)
	complete(t, b)

	out, err := b.Finalize(context.Background(), false)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	const prefix = "END OF TRANSACTION COMPLETE - "
	if !strings.HasPrefix(out, prefix) {
		t.Fatalf("ET output = %q", out)
	}
	loc := strings.TrimPrefix(out, prefix)
	if !gds.ValidLocator(loc) {
		t.Errorf("locator %q is not valid", loc)
	}
	if b.Active() != nil || b.Status() != gds.StatusEmpty {
		t.Error("ET must clear the active slot")
	}

	saved, _ := store.GetByLocator(context.Background(), loc)
	if saved == nil {
		t.Fatal("record not stored")
	}
	if saved.Status != gds.StatusConfirmed || saved.Segments[0].Status != gds.SegmentConfirmed {
		t.Errorf("stored = %+v", saved)
	}
	if saved.Ticketing == nil || !saved.Ticketing.TimeLimit.Equal(testNow.Add(72*time.Hour)) {
		t.Errorf("ticketing = %+v", saved.Ticketing)
	}

	events := b.DrainEvents()
	if len(events) != 1 || events[0].Type != "finalized" || events[0].PNR.Locator != loc {
		t.Errorf("events = %+v", events)
	}

	mustDo(t)(b.Sell(buenosAiresMadrid(), grammar.SellSegment{Quantity: 1, Class: "Y", Line: 1}))
	p := b.Active()
	if !p.Placeholder() || len(p.Passengers) != 0 || len(p.Segments) != 1 {
		t.Errorf("new sell after ET should start a fresh PNR: %+v", p)
	}
}

func TestBuilder_EndTransactionKeepOpen(t *testing.T) {
	store := newMemoryStore()
	b := newTestBuilder(store)
	complete(t, b)

	out, err := b.Finalize(context.Background(), true)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	p := b.Active()
	if p == nil || p.Status != gds.StatusConfirmed {
		t.Fatalf("ER must keep the PNR active and confirmed: %+v", p)
	}
	lines := strings.Split(out, "\n")
	want := []string{
		render64("RP/BUEAR0001/BUEAR0001", "0001AA/SU 14OCT26/0930Z   "+p.Locator),
		" 1.GARCIA/JUAN MR",
		" 2  IB6844 Y 15NOV 7 BUEMAD HK1  2355 1130+1 346",
		" 3 AP BUE 12345678-M",
		" 4 TK TL17OCT/0930",
		" 5 RF JUAN PEREZ",
	}
	if len(lines) != len(want) {
		t.Fatalf("ER output = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	// Editing after ER then finalizing again updates the same record.
	mustDo(t)(b.AddContact(grammar.AddContact{City: "MAD", Phone: "5550000", Type: "B"}))
	if b.Active().Status != gds.StatusInProgress {
		t.Error("edits reopen the PNR")
	}
	out, err = b.Finalize(context.Background(), false)
	if err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	if out != "END OF TRANSACTION COMPLETE - "+p.Locator {
		t.Errorf("second ET = %q, want same locator %s", out, p.Locator)
	}
	if store.saves != 1 || store.updates != 1 {
		t.Errorf("saves=%d updates=%d, want 1 and 1", store.saves, store.updates)
	}
}

func render64(left, right string) string {
	return left + strings.Repeat(" ", 64-len(left)-len(right)) + right
}

func TestBuilder_FinalizeStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.saveErr = errors.New("disk full")
	b := newTestBuilder(store)
	complete(t, b)

	_, err := b.Finalize(context.Background(), false)
	if !errors.Is(err, store.saveErr) {
		t.Fatalf("Finalize error = %v, want wrapped disk full", err)
	}
	p := b.Active()
	if p == nil || !p.Placeholder() || p.Status != gds.StatusInProgress || p.Ticketing != nil {
		t.Errorf("failed persistence mutated the PNR: %+v", p)
	}
	if len(b.DrainEvents()) != 0 {
		t.Error("no event expected on failure")
	}
}

func TestBuilder_LocatorCollision(t *testing.T) {
	store := newMemoryStore()
	store.taken = 3
	b := newTestBuilder(store)
	complete(t, b)
	if _, err := b.Finalize(context.Background(), false); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if store.checked != 4 {
		t.Errorf("locator checks = %d, want 4", store.checked)
	}

	store.taken = 100
	store.checked = 0
	complete(t, b)
	if _, err := b.Finalize(context.Background(), false); err == nil {
		t.Error("expected failure when every locator is taken")
	}
	if store.checked != maxLocatorAttempts {
		t.Errorf("locator checks = %d, want %d", store.checked, maxLocatorAttempts)
	}
}

func TestBuilder_Retrieve(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	b := newTestBuilder(store)

	_, err := b.Retrieve(ctx, grammar.RetrievePNR{})
	isPrecondition(t, err, MsgNoActivePNR)

	complete(t, b)
	_, err = b.Retrieve(ctx, grammar.RetrievePNR{Locator: "ABC234"})
	isPrecondition(t, err, MsgFinishOrIgnore)

	out, err := b.Retrieve(ctx, grammar.RetrievePNR{})
	if err != nil || !strings.HasPrefix(out, "RP/") || !strings.Contains(out, "******") {
		t.Errorf("RT redisplay = %q, %v", out, err)
	}

	done, err := b.Finalize(ctx, false)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	loc := strings.TrimPrefix(done, "END OF TRANSACTION COMPLETE - ")

	if _, err := b.Retrieve(ctx, grammar.RetrievePNR{Locator: "ZZZZZZ"}); !errors.Is(err, ErrNoMatch) {
		t.Errorf("unknown locator error = %v", err)
	}

	out, err = b.Retrieve(ctx, grammar.RetrievePNR{Locator: loc})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !strings.Contains(out, loc) || !strings.Contains(out, "HK1") {
		t.Errorf("retrieved record = %q", out)
	}
	if b.Status() != gds.StatusInProgress || b.Dirty() {
		t.Errorf("status=%s dirty=%v", b.Status(), b.Dirty())
	}

	// A clean retrieved record may be swapped for another without IG.
	if _, err := b.Retrieve(ctx, grammar.RetrievePNR{Locator: loc}); err != nil {
		t.Errorf("second Retrieve: %v", err)
	}

	out, err = b.Cancel(ctx)
	if err != nil || out != "PNR CANCELLED - "+loc {
		t.Fatalf("Cancel = %q, %v", out, err)
	}
	_, err = b.Retrieve(ctx, grammar.RetrievePNR{Locator: loc})
	isPrecondition(t, err, MsgRecordCancelled)

	store.lookupErr = errors.New("timeout")
	if _, err := b.Retrieve(ctx, grammar.RetrievePNR{Locator: loc}); !errors.Is(err, store.lookupErr) || gds.IsPrecondition(err) {
		t.Errorf("lookup failure = %v", err)
	}
}

func TestBuilder_CancelAndIgnore(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	b := newTestBuilder(store)

	_, err := b.Cancel(ctx)
	isPrecondition(t, err, MsgNoActivePNR)
	_, err = b.Ignore()
	isPrecondition(t, err, MsgNoActivePNR)

	complete(t, b)
	if out, err := b.Cancel(ctx); err != nil || out != "PNR CANCELLED" {
		t.Errorf("Cancel unsaved = %q, %v", out, err)
	}
	if store.saves != 0 || b.Active() != nil {
		t.Errorf("unsaved cancel should clear without storing")
	}

	complete(t, b)
	if out, err := b.Ignore(); err != nil || out != MsgIgnored {
		t.Errorf("Ignore = %q, %v", out, err)
	}
	if b.Active() != nil || store.saves != 0 {
		t.Error("IG must discard without saving")
	}
}

func TestBuilder_Delete(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(newMemoryStore())

	_, err := b.Delete(grammar.DeleteElement{From: 1, To: 1})
	isPrecondition(t, err, MsgNoActivePNR)

	d := buenosAiresMadrid()
	mustDo(t)(b.Sell(d, grammar.SellSegment{Quantity: 1, Class: "Y", Line: 1}))
	mustDo(t)(b.Sell(d, grammar.SellSegment{Quantity: 1, Class: "J", Line: 1}))
	mustDo(t)(b.AddName(grammar.AddName{Quantity: 2, LastName: "GARCIA", FirstName: "JUAN"}))
	mustDo(t)(b.AddContact(grammar.AddContact{City: "BUE", Phone: "12345678", Type: "H"}))
	// 1-2 names, 3-4 segments, 5 contact.

	_, err = b.Delete(grammar.DeleteElement{From: 4, To: 4})
	isPrecondition(t, err, MsgTooManyNames)
	_, err = b.Delete(grammar.DeleteElement{From: 6, To: 6})
	isPrecondition(t, err, MsgInvalidElement)

	mustDo(t)(b.Delete(grammar.DeleteElement{From: 2, To: 2}))
	mustDo(t)(b.Delete(grammar.DeleteElement{From: 3, To: 3}))
	p := b.Active()
	if len(p.Passengers) != 1 || len(p.Segments) != 1 || p.Segments[0].Class != "Y" {
		t.Errorf("after deletes = %+v", p)
	}

	mustDo(t)(b.ReceivedFrom(grammar.ReceivedFrom{Name: "JUAN"}))
	mustDo(t)(b.Finalize(ctx, true))
	// 1 name, 2 segment, 3 contact, 4 ticketing, 5 received-from.
	_, err = b.Delete(grammar.DeleteElement{From: 4, To: 4})
	isPrecondition(t, err, MsgRestrictedElement)
	_, err = b.Delete(grammar.DeleteElement{From: 3, To: 5})
	isPrecondition(t, err, MsgRestrictedElement)
	if len(b.Active().Contacts) != 1 {
		t.Error("rejected delete must not remove anything")
	}
}

func TestShort_Numbering(t *testing.T) {
	p := gds.NewPNR(testNow)
	p.Passengers = []gds.Passenger{
		{LastName: "GARCIA", FirstName: "JUAN", Title: "MR", Type: gds.Adult},
		{LastName: "LOPEZ", FirstName: "ANA", Title: "MISS", Type: gds.Child, SubtypeInfo: "05MAR20"},
	}
	p.Contacts = []gds.Contact{{City: "BUE", Phone: "12345678", Type: "M"}}
	want := " 1.GARCIA/JUAN MR\n 2.LOPEZ/ANA MISS(CHD/05MAR20)\n 3 AP BUE 12345678-M"
	if got := Short(p); got != want {
		t.Errorf("Short = %q, want %q", got, want)
	}
}
