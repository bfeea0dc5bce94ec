package pnr

import (
	"fmt"
	"strconv"
	"strings"

	"gds_terminal/internal/gds"
	"gds_terminal/internal/render"
)

// Header identifies the office and agent shown on the full record.
type Header struct {
	OfficeID  string // e.g. BUEAR0001
	AgentSign string // e.g. 0001AA/SU
}

// DefaultHeader is used when no office is configured.
var DefaultHeader = Header{OfficeID: "BUEGDS001", AgentSign: "0001AA/SU"}

// segmentLayout: number, flight, class, date, weekday, city pair, status and
// quantity, departure, arrival, equipment.
var segmentLayout = render.Layout{
	{Width: 2, Align: render.Right}, {Width: 2}, {Width: 7}, {Width: 2},
	{Width: 6}, {Width: 2}, {Width: 7}, {Width: 5}, {Width: 5},
	{Width: 7}, {Width: 4},
}

// Short renders passengers, segments and contacts with continuous numbering.
func Short(p *gds.PNR) string {
	return render.Lines(elementLines(p, false)...)
}

// Full renders the record header followed by every element, ticketing and
// received-from included.
func Full(p *gds.PNR, h Header) string {
	if h.OfficeID == "" {
		h = DefaultHeader
	}
	issued := p.CreatedAt
	if p.Ticketing != nil {
		issued = p.Ticketing.IssueDate
	}
	head := render.InfoLine(
		fmt.Sprintf("RP/%s/%s", h.OfficeID, h.OfficeID),
		fmt.Sprintf("%s %s/%sZ   %s", h.AgentSign, render.DateYear(issued), render.Clock(issued), p.Locator),
	)
	return render.Lines(append([]string{head}, elementLines(p, true)...)...)
}

func elementLines(p *gds.PNR, full bool) []string {
	elems := Elements(p, full)
	lines := make([]string, 0, len(elems))
	for _, e := range elems {
		switch e.Kind {
		case ElementName:
			lines = append(lines, fmt.Sprintf("%2d.%s", e.Number, PassengerName(&p.Passengers[e.Index])))
		case ElementSegment:
			lines = append(lines, segmentLine(e.Number, &p.Segments[e.Index]))
		case ElementContact:
			c := p.Contacts[e.Index]
			lines = append(lines, fmt.Sprintf("%2d AP %s %s-%s", e.Number, c.City, c.Phone, c.Type))
		case ElementTicketing:
			tl := p.Ticketing.TimeLimit
			lines = append(lines, fmt.Sprintf("%2d TK TL%s/%s", e.Number, render.Date(tl), render.Clock(tl)))
		case ElementReceived:
			lines = append(lines, fmt.Sprintf("%2d RF %s", e.Number, p.ReceivedFrom))
		}
	}
	return lines
}

// PassengerName renders SURNAME/GIVEN TITLE with the child or infant block.
func PassengerName(ps *gds.Passenger) string {
	var b strings.Builder
	b.WriteString(ps.LastName + "/" + ps.FirstName)
	if ps.Title != "" {
		b.WriteString(" " + ps.Title)
	}
	if ps.Type == gds.Child || ps.Type == gds.Infant {
		b.WriteString("(" + string(ps.Type))
		if ps.SubtypeInfo != "" {
			b.WriteString("/" + ps.SubtypeInfo)
		}
		b.WriteString(")")
	}
	return b.String()
}

func segmentLine(n int, s *gds.Segment) string {
	return segmentLayout.Line(
		strconv.Itoa(n),
		"",
		s.Airline+s.FlightNumber,
		s.Class,
		render.Date(s.DepartureAt),
		strconv.Itoa(gds.ISOWeekday(s.DepartureAt)),
		s.Origin+s.Destination,
		s.Status.Code()+strconv.Itoa(s.Quantity),
		render.Clock(s.DepartureAt),
		render.ClockOffset(s.ArrivalAt, gds.DaysBetween(s.DepartureAt, s.ArrivalAt)),
		s.Equipment,
	)
}
