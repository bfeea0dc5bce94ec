// Package pnr implements the booking-record builder: the state machine that
// owns a session's active PNR and its two text renderings.
package pnr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gds_terminal/internal/gds"
	"gds_terminal/internal/grammar"
)

// Trainee-facing messages.
const (
	MsgNoActivePNR       = "NO ACTIVE PNR"
	MsgNoActiveSearch    = "NO ACTIVE SEARCH"
	MsgNoSellDisplay     = "SELL FROM AN OR SN DISPLAY"
	MsgInvalidLine       = "INVALID LINE NUMBER"
	MsgClassNotAvailable = "CLASS NOT AVAILABLE"
	MsgInsufficientSeats = "INSUFFICIENT SEATS"
	MsgTooManyNames      = "NAMES EXCEED SEATS SOLD"
	MsgNeedSegment       = "NEED ITINERARY"
	MsgNeedName          = "NEED NAME"
	MsgNeedContact       = "NEED PHONE"
	MsgNeedReceived      = "NEED RECEIVED FROM"
	MsgFinishOrIgnore    = "FINISH OR IGNORE"
	MsgRecordCancelled   = "RECORD CANCELLED"
	MsgInvalidElement    = "INVALID ELEMENT NUMBER"
	MsgRestrictedElement = "RESTRICTED ELEMENT - NOT DELETED"
	MsgIgnored           = "IGNORED"
)

// ErrNoMatch is returned when no stored record has the requested locator.
var ErrNoMatch = errors.New("NO MATCH FOR RECORD LOCATOR")

// TicketingWindow is the time limit granted on finalize.
const TicketingWindow = 72 * time.Hour

// maxLocatorAttempts bounds regeneration on locator collisions.
const maxLocatorAttempts = 10

// Store persists finalized records.
type Store interface {
	// GetByLocator returns the record or nil if none exists.
	GetByLocator(ctx context.Context, locator string) (*gds.PNR, error)
	// Save stores a new record and returns its id.
	Save(ctx context.Context, p *gds.PNR) (string, error)
	// Update replaces a stored record.
	Update(ctx context.Context, id string, p *gds.PNR) error
	// LocatorExists reports whether a locator is already taken.
	LocatorExists(ctx context.Context, locator string) (bool, error)
}

// Display is the snapshot of a search page a sell reads from.
type Display interface {
	Mode() grammar.Mode
	Line(n int) (gds.Flight, bool)
}

// Event describes a lifecycle change of a stored record.
type Event struct {
	Type string // "finalized" or "cancelled"
	PNR  *gds.PNR
}

// Options configures a Builder.
type Options struct {
	Store    Store
	Locators *gds.LocatorGenerator
	Now      func() time.Time
	Header   Header
}

// Builder owns the active PNR of one session. It is not safe for concurrent
// use; the session serializes commands.
type Builder struct {
	store    Store
	locators *gds.LocatorGenerator
	now      func() time.Time
	header   Header

	active *gds.PNR
	dirty  bool // active has changes not yet persisted
	events []Event
}

// NewBuilder creates a builder with no active PNR.
func NewBuilder(opts Options) *Builder {
	b := &Builder{
		store:    opts.Store,
		locators: opts.Locators,
		now:      opts.Now,
		header:   opts.Header,
	}
	if b.locators == nil {
		b.locators = gds.NewLocatorGenerator()
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Active returns the active PNR or nil.
func (b *Builder) Active() *gds.PNR {
	return b.active
}

// Status returns the lifecycle state of the active slot.
func (b *Builder) Status() gds.Status {
	if b.active == nil {
		return gds.StatusEmpty
	}
	return b.active.Status
}

// Dirty reports whether the active PNR has unsaved changes.
func (b *Builder) Dirty() bool {
	return b.active != nil && b.dirty
}

// DrainEvents returns and clears the lifecycle events produced so far.
func (b *Builder) DrainEvents() []Event {
	ev := b.events
	b.events = nil
	return ev
}

// edit applies fn to a copy of the active PNR and commits it only when fn
// succeeds.
func (b *Builder) edit(fn func(p *gds.PNR) error) error {
	if b.active == nil {
		return gds.Precondition(MsgNoActivePNR)
	}
	p := b.active.Clone()
	if err := fn(p); err != nil {
		return err
	}
	p.Status = gds.StatusInProgress
	p.UpdatedAt = b.now().UTC()
	b.active = p
	b.dirty = true
	return nil
}

// Sell books seats from a line of the current display. With no active PNR a
// new one is started.
func (b *Builder) Sell(d Display, in grammar.SellSegment) (string, error) {
	if d == nil {
		return "", gds.Precondition(MsgNoActiveSearch)
	}
	if m := d.Mode(); m != grammar.ModeAvailability && m != grammar.ModeSchedule {
		return "", gds.Precondition(MsgNoSellDisplay)
	}
	f, ok := d.Line(in.Line)
	if !ok {
		return "", gds.Precondition(MsgInvalidLine)
	}
	class, _ := gds.ParseClass(in.Class)
	seats, ok := f.Classes.Seats(class)
	if !ok || seats <= 0 {
		return "", gds.Precondition(MsgClassNotAvailable)
	}
	held := 0
	if b.active != nil {
		held = b.active.HeldOn(&f, in.Class)
	}
	if in.Quantity > seats-held {
		return "", gds.Precondition(MsgInsufficientSeats)
	}

	seg := gds.Segment{
		Airline:      f.Airline,
		FlightNumber: f.Number,
		Class:        in.Class,
		Origin:       f.Origin,
		Destination:  f.Destination,
		DepartureAt:  f.DepartureAt,
		ArrivalAt:    f.ArrivalAt,
		Equipment:    f.Equipment,
		Status:       gds.SegmentRequested,
		Quantity:     in.Quantity,
		FlightID:     f.ID,
	}

	if b.active == nil {
		b.active = gds.NewPNR(b.now().UTC())
	}
	if err := b.edit(func(p *gds.PNR) error {
		p.Segments = append(p.Segments, seg)
		return nil
	}); err != nil {
		return "", err
	}
	return Short(b.active), nil
}

// AddName adds Quantity passengers and re-sorts the name list.
func (b *Builder) AddName(in grammar.AddName) (string, error) {
	err := b.edit(func(p *gds.PNR) error {
		if len(p.Passengers)+in.Quantity > p.SeatsSold() {
			return gds.Precondition(MsgTooManyNames)
		}
		for i := 0; i < in.Quantity; i++ {
			p.Passengers = append(p.Passengers, gds.Passenger{
				LastName:    in.LastName,
				FirstName:   in.FirstName,
				Title:       in.Title,
				Type:        in.PassengerType(),
				SubtypeInfo: in.SubtypeInfo,
			})
		}
		p.SortPassengers()
		return nil
	})
	if err != nil {
		return "", err
	}
	return Short(b.active), nil
}

// AddContact sets the phone contact, replacing any previous one.
func (b *Builder) AddContact(in grammar.AddContact) (string, error) {
	err := b.edit(func(p *gds.PNR) error {
		p.Contacts = []gds.Contact{{City: in.City, Phone: in.Phone, Type: in.Type}}
		return nil
	})
	if err != nil {
		return "", err
	}
	return Short(b.active), nil
}

// ReceivedFrom stores the signer name.
func (b *Builder) ReceivedFrom(in grammar.ReceivedFrom) (string, error) {
	err := b.edit(func(p *gds.PNR) error {
		p.ReceivedFrom = in.Name
		return nil
	})
	if err != nil {
		return "", err
	}
	return Short(b.active), nil
}

// Delete removes elements by their display number.
func (b *Builder) Delete(in grammar.DeleteElement) (string, error) {
	err := b.edit(func(p *gds.PNR) error {
		if err := deleteElements(p, in.From, in.To); err != nil {
			return err
		}
		if len(p.Passengers) > p.SeatsSold() {
			return gds.Precondition(MsgTooManyNames)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return Short(b.active), nil
}

// Missing returns the first unmet finalize requirement, or "" when the PNR is
// complete. Requirements are checked in a fixed order.
func Missing(p *gds.PNR) string {
	switch {
	case len(p.Segments) == 0:
		return MsgNeedSegment
	case len(p.Passengers) == 0:
		return MsgNeedName
	case len(p.Contacts) == 0:
		return MsgNeedContact
	case p.ReceivedFrom == "":
		return MsgNeedReceived
	}
	return ""
}

// Finalize validates and commits the active PNR. ET (keepOpen false) clears
// the slot and returns the locator line; ER keeps it active and returns the
// full record. Nothing changes when validation or persistence fails.
func (b *Builder) Finalize(ctx context.Context, keepOpen bool) (string, error) {
	if b.active == nil {
		return "", gds.Precondition(MsgNoActivePNR)
	}
	if msg := Missing(b.active); msg != "" {
		return "", gds.Precondition(msg)
	}

	now := b.now().UTC()
	p := b.active.Clone()
	for i := range p.Segments {
		p.Segments[i].Status = gds.SegmentConfirmed
	}
	if p.Placeholder() {
		loc, err := b.newLocator(ctx)
		if err != nil {
			return "", err
		}
		p.Locator = loc
	}
	p.Status = gds.StatusConfirmed
	p.Ticketing = &gds.Ticketing{IssueDate: now, TimeLimit: now.Add(TicketingWindow)}
	p.UpdatedAt = now

	if err := b.persist(ctx, p); err != nil {
		return "", err
	}
	b.events = append(b.events, Event{Type: "finalized", PNR: p.Clone()})

	if keepOpen {
		b.active = p
		b.dirty = false
		return Full(p, b.header), nil
	}
	b.active = nil
	b.dirty = false
	return "END OF TRANSACTION COMPLETE - " + p.Locator, nil
}

func (b *Builder) persist(ctx context.Context, p *gds.PNR) error {
	if b.store == nil {
		return errors.New("no record store configured")
	}
	if p.ID == "" {
		id, err := b.store.Save(ctx, p)
		if err != nil {
			return fmt.Errorf("save pnr: %w", err)
		}
		p.ID = id
		return nil
	}
	if err := b.store.Update(ctx, p.ID, p); err != nil {
		return fmt.Errorf("update pnr %s: %w", p.Locator, err)
	}
	return nil
}

func (b *Builder) newLocator(ctx context.Context) (string, error) {
	for i := 0; i < maxLocatorAttempts; i++ {
		loc := b.locators.Next()
		if b.store == nil {
			return loc, nil
		}
		taken, err := b.store.LocatorExists(ctx, loc)
		if err != nil {
			return "", fmt.Errorf("check locator: %w", err)
		}
		if !taken {
			return loc, nil
		}
	}
	return "", fmt.Errorf("no free locator after %d attempts", maxLocatorAttempts)
}

// Retrieve loads a stored record as the active PNR. An empty locator
// redisplays the active PNR.
func (b *Builder) Retrieve(ctx context.Context, in grammar.RetrievePNR) (string, error) {
	if in.Locator == "" {
		if b.active == nil {
			return "", gds.Precondition(MsgNoActivePNR)
		}
		return Full(b.active, b.header), nil
	}
	if b.Dirty() {
		return "", gds.Precondition(MsgFinishOrIgnore)
	}
	if b.store == nil {
		return "", errors.New("no record store configured")
	}

	p, err := b.store.GetByLocator(ctx, in.Locator)
	if err != nil {
		return "", fmt.Errorf("get pnr %s: %w", in.Locator, err)
	}
	if p == nil {
		return "", ErrNoMatch
	}
	if p.Status == gds.StatusCancelled {
		return "", gds.Precondition(MsgRecordCancelled)
	}

	p.Status = gds.StatusInProgress
	b.active = p
	b.dirty = false
	return Full(p, b.header), nil
}

// Cancel cancels the active PNR and clears the slot. Stored records are
// updated.
func (b *Builder) Cancel(ctx context.Context) (string, error) {
	if b.active == nil {
		return "", gds.Precondition(MsgNoActivePNR)
	}
	p := b.active.Clone()
	p.Status = gds.StatusCancelled
	p.UpdatedAt = b.now().UTC()

	if p.ID != "" {
		if err := b.persist(ctx, p); err != nil {
			return "", err
		}
		b.events = append(b.events, Event{Type: "cancelled", PNR: p.Clone()})
	}

	b.active = nil
	b.dirty = false
	if p.Placeholder() {
		return "PNR CANCELLED", nil
	}
	return "PNR CANCELLED - " + p.Locator, nil
}

// Ignore discards the active PNR without saving.
func (b *Builder) Ignore() (string, error) {
	if b.active == nil {
		return "", gds.Precondition(MsgNoActivePNR)
	}
	loc := b.active.Locator
	placeholder := b.active.Placeholder()
	b.active = nil
	b.dirty = false
	if placeholder {
		return MsgIgnored, nil
	}
	return MsgIgnored + " - " + loc, nil
}
