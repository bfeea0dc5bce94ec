package gds

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a PNR.
type Status string

const (
	StatusEmpty      Status = "EMPTY"
	StatusInProgress Status = "IN_PROGRESS"
	StatusConfirmed  Status = "CONFIRMED"
	StatusCancelled  Status = "CANCELLED"
)

// SegmentStatus is the booking status of a sold segment.
type SegmentStatus string

const (
	SegmentRequested SegmentStatus = "REQUESTED"
	SegmentConfirmed SegmentStatus = "CONFIRMED"
)

// Code returns the two-letter action code shown on the terminal.
func (s SegmentStatus) Code() string {
	if s == SegmentConfirmed {
		return "HK"
	}
	return "DK"
}

// PassengerType distinguishes adults, children and infants.
type PassengerType string

const (
	Adult  PassengerType = "ADT"
	Child  PassengerType = "CHD"
	Infant PassengerType = "INF"
)

// Segment is one flight leg sold into a PNR.
type Segment struct {
	Airline      string        `json:"airline" bson:"airline"`
	FlightNumber string        `json:"flight_number" bson:"flightNumber"`
	Class        string        `json:"class" bson:"class"`
	Origin       string        `json:"origin" bson:"origin"`
	Destination  string        `json:"destination" bson:"destination"`
	DepartureAt  time.Time     `json:"departure_at" bson:"departureAt"`
	ArrivalAt    time.Time     `json:"arrival_at" bson:"arrivalAt"`
	Equipment    string        `json:"equipment,omitempty" bson:"equipment,omitempty"`
	Status       SegmentStatus `json:"status" bson:"status"`
	Quantity     int           `json:"quantity" bson:"quantity"`
	FlightID     int64         `json:"flight_id,omitempty" bson:"flightId,omitempty"`
}

// Passenger is a named traveller in a PNR.
type Passenger struct {
	LastName    string        `json:"last_name" bson:"lastName"`
	FirstName   string        `json:"first_name" bson:"firstName"`
	Title       string        `json:"title,omitempty" bson:"title,omitempty"`
	Type        PassengerType `json:"type" bson:"type"`
	SubtypeInfo string        `json:"subtype_info,omitempty" bson:"subtypeInfo,omitempty"`
}

// Contact is a phone contact element.
type Contact struct {
	City  string `json:"city" bson:"city"`
	Phone string `json:"phone" bson:"phone"`
	Type  string `json:"type" bson:"type"`
}

// Ticketing is stamped on finalize.
type Ticketing struct {
	IssueDate time.Time `json:"issue_date" bson:"issueDate"`
	TimeLimit time.Time `json:"time_limit" bson:"timeLimit"`
}

// PNR is the booking record under construction.
type PNR struct {
	ID           string      `json:"id,omitempty" bson:"-"`
	Locator      string      `json:"locator" bson:"locator"`
	Status       Status      `json:"status" bson:"status"`
	Segments     []Segment   `json:"segments" bson:"segments"`
	Passengers   []Passenger `json:"passengers" bson:"passengers"`
	Contacts     []Contact   `json:"contacts" bson:"contacts"`
	ReceivedFrom string      `json:"received_from,omitempty" bson:"receivedFrom,omitempty"`
	Ticketing    *Ticketing  `json:"ticketing,omitempty" bson:"ticketing,omitempty"`
	CreatedAt    time.Time   `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time   `json:"updated_at" bson:"updatedAt"`
}

// NewPNR returns an in-progress PNR carrying the placeholder locator.
func NewPNR(now time.Time) *PNR {
	return &PNR{
		Locator:   PlaceholderLocator,
		Status:    StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so a command can work on it and commit only on
// success.
func (p *PNR) Clone() *PNR {
	c := *p
	c.Segments = append([]Segment(nil), p.Segments...)
	c.Passengers = append([]Passenger(nil), p.Passengers...)
	c.Contacts = append([]Contact(nil), p.Contacts...)
	if p.Ticketing != nil {
		t := *p.Ticketing
		c.Ticketing = &t
	}
	return &c
}

// SeatsSold sums the quantity of every segment.
func (p *PNR) SeatsSold() int {
	n := 0
	for _, s := range p.Segments {
		n += s.Quantity
	}
	return n
}

// HeldOn returns the quantity this PNR already holds on a flight and class.
func (p *PNR) HeldOn(f *Flight, class string) int {
	n := 0
	for _, s := range p.Segments {
		if s.Airline == f.Airline && s.FlightNumber == f.Number &&
			s.DepartureAt.Equal(f.DepartureAt) && s.Class == class {
			n += s.Quantity
		}
	}
	return n
}

// SortPassengers orders passengers by last name, then first name. Ties keep
// their insertion order.
func (p *PNR) SortPassengers() {
	sort.SliceStable(p.Passengers, func(i, j int) bool {
		a, b := p.Passengers[i], p.Passengers[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		return a.FirstName < b.FirstName
	})
}

// Placeholder reports whether the locator has not been assigned yet.
func (p *PNR) Placeholder() bool {
	return p.Locator == "" || p.Locator == PlaceholderLocator
}
