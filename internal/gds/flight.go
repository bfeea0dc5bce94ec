// Package gds holds the reservation domain shared by the terminal, the query
// engine, the PNR builder and the storage backends.
package gds

import (
	"encoding/json"
	"strings"
	"time"
)

// BookingClass is a single-letter fare/cabin code.
type BookingClass byte

// ClassOrder is the fixed display order of booking classes: first, business,
// premium economy, economy.
const ClassOrder = "FAPJCDIZWRYBMHKLVSNQOTGXEU"

// ParseClass returns the booking class for a letter, or false if the letter is
// outside the A-Z alphabet.
func ParseClass(s string) (BookingClass, bool) {
	if len(s) != 1 {
		return 0, false
	}
	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return 0, false
	}
	return BookingClass(c), true
}

func (c BookingClass) String() string { return string(rune(c)) }

// ClassAvailability maps booking classes to remaining seat counts. A count of
// zero means the class is closed.
type ClassAvailability map[BookingClass]int

// NormalizeClasses converts a raw repository mapping into a ClassAvailability.
// Keys that are not a single A-Z letter are dropped, negative counts become 0.
func NormalizeClasses(raw map[string]int) ClassAvailability {
	out := make(ClassAvailability, len(raw))
	for k, v := range raw {
		c, ok := ParseClass(strings.TrimSpace(k))
		if !ok {
			continue
		}
		if v < 0 {
			v = 0
		}
		out[c] = v
	}
	return out
}

// Raw returns the mapping keyed by letter, the shape stored by the backends.
func (a ClassAvailability) Raw() map[string]int {
	out := make(map[string]int, len(a))
	for c, v := range a {
		out[c.String()] = v
	}
	return out
}

// MarshalJSON encodes the mapping with letter keys.
func (a ClassAvailability) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Raw())
}

// UnmarshalJSON decodes a letter-keyed mapping, normalizing it.
func (a *ClassAvailability) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = NormalizeClasses(raw)
	return nil
}

// Seats returns the remaining seats for a class and whether the class exists.
func (a ClassAvailability) Seats(c BookingClass) (int, bool) {
	v, ok := a[c]
	return v, ok
}

// Classes returns the classes present in display order.
func (a ClassAvailability) Classes() []BookingClass {
	out := make([]BookingClass, 0, len(a))
	for i := 0; i < len(ClassOrder); i++ {
		c := BookingClass(ClassOrder[i])
		if _, ok := a[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Flight is a read-only flight row supplied by the flight repository.
type Flight struct {
	ID                  int64             `json:"id"`
	Airline             string            `json:"airline"`
	Number              string            `json:"number"`
	Origin              string            `json:"origin"`
	OriginTerminal      string            `json:"origin_terminal,omitempty"`
	Destination         string            `json:"destination"`
	DestinationTerminal string            `json:"destination_terminal,omitempty"`
	DepartureAt         time.Time         `json:"departure_at"`
	ArrivalAt           time.Time         `json:"arrival_at"`
	Duration            int               `json:"duration"` // Minutes.
	Equipment           string            `json:"equipment,omitempty"`
	Classes             ClassAvailability `json:"classes"`
	OperatingDays       string            `json:"operating_days,omitempty"` // Digits 1-7, Monday=1.
	ValidFrom           time.Time         `json:"valid_from,omitempty"`
	ValidTo             time.Time         `json:"valid_to,omitempty"`
}

// Designator returns airline code + flight number, e.g. "IB6844".
func (f *Flight) Designator() string {
	return f.Airline + f.Number
}

// DedupKey identifies the physical flight a row describes.
func (f *Flight) DedupKey() string {
	return f.Designator() + "|" + f.DepartureAt.Format("200601021504")
}

// DayOffset returns the number of calendar days between departure and arrival.
func (f *Flight) DayOffset() int {
	return DaysBetween(f.DepartureAt, f.ArrivalAt)
}

// Operates returns the operating-day pattern, falling back to the weekday of
// the departure date when the repository did not supply one.
func (f *Flight) Operates() string {
	if f.OperatingDays != "" {
		return f.OperatingDays
	}
	return string(rune('0' + ISOWeekday(f.DepartureAt)))
}

// Validity returns the validity range, falling back to the departure date.
func (f *Flight) Validity() (time.Time, time.Time) {
	from, to := f.ValidFrom, f.ValidTo
	if from.IsZero() {
		from = f.DepartureAt
	}
	if to.IsZero() {
		to = f.DepartureAt
	}
	return from, to
}

// Location is an airport or city reference record.
type Location struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// FlightQuery is the conjunctive filter sent to the flight repository.
// Results are sorted by departure time, then id.
type FlightQuery struct {
	Origin      string
	Destination string
	Airline     string    // Optional.
	Date        time.Time // Optional: departure date equals.
	From        time.Time // Optional: departure at or after.
	After       string    // Optional: opaque marker from a previous page.
	Limit       int
}

// FlightPage is one page of repository results. Next is empty when the
// repository returned fewer rows than requested.
type FlightPage struct {
	Rows []Flight
	Next string
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// DaysBetween counts calendar days from a to b, ignoring the time of day.
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
