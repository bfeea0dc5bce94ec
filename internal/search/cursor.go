package search

import (
	"gds_terminal/internal/gds"
	"gds_terminal/internal/grammar"
)

// Page is one materialized page of a search.
type Page struct {
	Rows  []gds.Flight // Displayed rows, deduplicated and filtered.
	Start int          // Display index of Rows[0].
	Next  string       // Repository marker for the following page, "" at the end.
}

// Cursor is the search context of a session: the query that produced it, the
// page on screen and the pages behind it.
type Cursor struct {
	Query   grammar.Availability
	Filter  gds.FlightQuery // Repository query without the After marker.
	Subject string          // Banner subject, resolved once per search.
	Current Page

	stack []Page
}

// Mode returns the display mode of the search.
func (c *Cursor) Mode() grammar.Mode {
	return c.Query.Mode
}

// HasNext reports whether the repository has more rows after this page.
func (c *Cursor) HasNext() bool {
	return c.Current.Next != ""
}

// Depth returns the number of pages behind the current one.
func (c *Cursor) Depth() int {
	return len(c.stack)
}

// Line returns a copy of the row shown under display index n, if it is on
// the current page.
func (c *Cursor) Line(n int) (gds.Flight, bool) {
	i := n - c.Current.Start
	if i < 0 || i >= len(c.Current.Rows) {
		return gds.Flight{}, false
	}
	return c.Current.Rows[i], true
}

// advance pushes the current page and shows p after it.
func (c *Cursor) advance(p Page) {
	c.stack = append(c.stack, c.Current)
	p.Start = c.Current.Start + len(c.Current.Rows)
	c.Current = p
}

// Previous restores the page shown before the current one. Rows, numbering
// and the forward marker come back exactly as they were; nothing is queried.
func (c *Cursor) Previous() error {
	if len(c.stack) == 0 {
		return gds.Precondition(MsgNoPreviousPages)
	}
	last := len(c.stack) - 1
	c.Current = c.stack[last]
	c.stack = c.stack[:last]
	return nil
}
