package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gds_terminal/internal/gds"
	"gds_terminal/internal/grammar"
	"gds_terminal/internal/render"
)

// ClosedMarker replaces the seat count of a closed class in schedule mode.
const ClosedMarker = "L"

// maxShownSeats caps the seat figure shown per class.
const maxShownSeats = 9

var titles = map[grammar.Mode]string{
	grammar.ModeAvailability: "AVAILABILITY",
	grammar.ModeSchedule:     "SCHEDULE",
	grammar.ModeTimetable:    "TIMETABLE",
}

// seatsLayout is shared by AN and SN:
// index, flight, classes, origin, destination, departure, arrival, equipment, duration.
var seatsLayout = render.Layout{
	{Width: 3}, {Width: 8}, {Width: 23}, {Width: 4}, {Width: 4},
	{Width: 5}, {Width: 7}, {Width: 4}, {Width: 6},
}

// timetableLayout: index, flight, origin, destination, departure, arrival,
// operating days, valid from, valid to, equipment.
var timetableLayout = render.Layout{
	{Width: 3}, {Width: 8}, {Width: 7}, {Width: 7}, {Width: 5},
	{Width: 7}, {Width: 8}, {Width: 8}, {Width: 8}, {Width: 4},
}

// Render renders the current page of c: banner, one line per flight and the
// pagination hint when the repository page was full.
func (e *Engine) Render(c *Cursor) string {
	if len(c.Current.Rows) == 0 && !c.HasNext() && c.Depth() == 0 {
		return MsgNoFlights
	}

	lines := []string{e.banner(c)}
	for i, f := range c.Current.Rows {
		lines = append(lines, flightLine(c.Mode(), c.Current.Start+i, &f))
	}
	if c.HasNext() {
		lines = append(lines, MsgMoreFlights)
	}
	return render.Lines(lines...)
}

func (e *Engine) banner(c *Cursor) string {
	now := e.now().UTC()
	travel := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if c.Query.HasDate() {
		travel = c.Filter.Date
	}
	info := fmt.Sprintf("%d %s %s %s",
		gds.DaysBetween(now, travel), render.Weekday(travel), render.Date(travel), render.Clock(now))
	return render.Banner(titles[c.Mode()], string(c.Mode()), c.Subject, info)
}

func flightLine(mode grammar.Mode, index int, f *gds.Flight) string {
	if mode == grammar.ModeTimetable {
		from, to := f.Validity()
		return timetableLayout.Line(
			strconv.Itoa(index),
			f.Designator(),
			withTerminal(f.Origin, f.OriginTerminal),
			withTerminal(f.Destination, f.DestinationTerminal),
			render.Clock(f.DepartureAt),
			render.ClockOffset(f.ArrivalAt, f.DayOffset()),
			OperatingPattern(f.Operates()),
			render.DateYear(from),
			render.DateYear(to),
			f.Equipment,
		)
	}
	return seatsLayout.Line(
		strconv.Itoa(index),
		f.Designator(),
		seatList(mode, f.Classes),
		f.Origin,
		f.Destination,
		render.Clock(f.DepartureAt),
		render.ClockOffset(f.ArrivalAt, f.DayOffset()),
		f.Equipment,
		render.Duration(f.Duration),
	)
}

// seatList renders "J2 Y9". Availability mode lists open classes only;
// schedule mode lists every class, closed ones as "CL".
func seatList(mode grammar.Mode, classes gds.ClassAvailability) string {
	var parts []string
	for _, c := range classes.Classes() {
		n := classes[c]
		switch {
		case n > 0:
			parts = append(parts, c.String()+strconv.Itoa(min(n, maxShownSeats)))
		case mode == grammar.ModeSchedule:
			parts = append(parts, c.String()+ClosedMarker)
		}
	}
	return strings.Join(parts, " ")
}

func withTerminal(code, terminal string) string {
	if terminal == "" {
		return code
	}
	return code + " " + terminal
}

// OperatingPattern expands a digit set such as "1357" into the seven-position
// display "1.3.5.7".
func OperatingPattern(days string) string {
	b := []byte(".......")
	for i := 0; i < len(days); i++ {
		d := days[i]
		if d >= '1' && d <= '7' {
			b[d-'1'] = d
		}
	}
	return string(b)
}
