// Package grammar turns raw terminal commands into typed intents.
//
// Each command family is a rule registered with the registry in init(). Rules
// are grok-style pattern sets compiled once and matched end to end.
package grammar

import (
	"fmt"
	"strings"
	"time"

	"gds_terminal/internal/gds"
)

// Mode selects the display of an availability-family query.
type Mode string

const (
	ModeAvailability Mode = "AN" // Seats only.
	ModeSchedule     Mode = "SN" // All classes with closures.
	ModeTimetable    Mode = "TN" // Operating days and validity.
)

// Availability is an AN, SN or TN query. Day and Month are zero when the
// command carried no date.
type Availability struct {
	Mode        Mode
	Day         int
	Month       time.Month
	Origin      string
	Destination string
	Airline     string
	Class       string
}

func (a Availability) Kind() string { return string(a.Mode) }

// HasDate reports whether a travel date was given.
func (a Availability) HasDate() bool { return a.Day > 0 }

// DateToken returns the travel date as DDMMM, or "" when absent.
func (a Availability) DateToken() string {
	if !a.HasDate() {
		return ""
	}
	return fmt.Sprintf("%02d%s", a.Day, monthAbbrev(a.Month))
}

// Options returns the option block, airline first, e.g. "/AIB/CY".
func (a Availability) Options() string {
	var b strings.Builder
	if a.Airline != "" {
		b.WriteString("/A" + a.Airline)
	}
	if a.Class != "" {
		b.WriteString("/C" + a.Class)
	}
	return b.String()
}

// String renders the query back into command form.
func (a Availability) String() string {
	return string(a.Mode) + a.DateToken() + a.Origin + a.Destination + a.Options()
}

// ResolveDate returns the next occurrence of the travel date on or after
// today's date in now's location.
func (a Availability) ResolveDate(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for year := now.Year(); ; year++ {
		d := time.Date(year, a.Month, a.Day, 0, 0, 0, 0, now.Location())
		// Normalized dates (29FEB in a common year) roll over; skip them.
		if d.Month() != a.Month {
			continue
		}
		if !d.Before(today) {
			return d
		}
	}
}

// Direction is a pagination direction.
type Direction int

const (
	Next Direction = iota
	Previous
)

// Navigate moves the active search one page forward (MD) or back (MU).
type Navigate struct {
	Direction Direction
}

func (n Navigate) Kind() string {
	if n.Direction == Previous {
		return "MU"
	}
	return "MD"
}

// SellSegment sells seats from a line of the current display.
type SellSegment struct {
	Quantity int
	Class    string
	Line     int
}

func (SellSegment) Kind() string { return "SS" }

// AddName adds Quantity passengers with the same name.
type AddName struct {
	Quantity    int
	LastName    string
	FirstName   string
	Title       string
	Subtype     gds.PassengerType // Empty for adults.
	SubtypeInfo string
}

func (AddName) Kind() string { return "NM" }

// PassengerType returns the passenger type the name element creates.
func (n AddName) PassengerType() gds.PassengerType {
	if n.Subtype == "" {
		return gds.Adult
	}
	return n.Subtype
}

// Contact types.
const (
	ContactAgency   = "A"
	ContactBusiness = "B"
	ContactHome     = "H"
	ContactMobile   = "M"
)

// AddContact sets the phone contact.
type AddContact struct {
	City  string
	Phone string
	Type  string
}

func (AddContact) Kind() string { return "AP" }

// ReceivedFrom records who requested the booking.
type ReceivedFrom struct {
	Name string
}

func (ReceivedFrom) Kind() string { return "RF" }

// EndTransaction finalizes the active PNR. KeepOpen (ER) leaves it active.
type EndTransaction struct {
	KeepOpen bool
}

func (e EndTransaction) Kind() string {
	if e.KeepOpen {
		return "ER"
	}
	return "ET"
}

// RetrievePNR loads a record by locator. An empty locator redisplays the
// active PNR.
type RetrievePNR struct {
	Locator string
}

func (RetrievePNR) Kind() string { return "RT" }

// DeleteElement removes elements From..To (inclusive) by display number.
type DeleteElement struct {
	From int
	To   int
}

func (DeleteElement) Kind() string { return "XE" }

// CancelPNR cancels the active PNR.
type CancelPNR struct{}

func (CancelPNR) Kind() string { return "XI" }

// IgnorePNR discards the active PNR without saving.
type IgnorePNR struct{}

func (IgnorePNR) Kind() string { return "IG" }

var months = [...]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

func monthAbbrev(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return months[m-1]
}

func parseMonth(s string) (time.Month, bool) {
	for i, m := range months {
		if m == s {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// daysIn returns the longest the month can be; February allows 29.
func daysIn(m time.Month) int {
	return time.Date(2024, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
