package pnr

import "gds_terminal/internal/gds"

// ElementKind identifies a numbered PNR element.
type ElementKind int

const (
	ElementName ElementKind = iota
	ElementSegment
	ElementContact
	ElementTicketing
	ElementReceived
)

// Element is one numbered line of a PNR. Index points into the slice of its
// kind.
type Element struct {
	Number int
	Kind   ElementKind
	Index  int
}

// Restricted reports whether the element cannot be deleted with XE.
func (e Element) Restricted() bool {
	return e.Kind == ElementTicketing || e.Kind == ElementReceived
}

// Elements numbers p's elements contiguously: passengers, segments, contacts,
// then ticketing and received-from when full is set.
func Elements(p *gds.PNR, full bool) []Element {
	var out []Element
	add := func(kind ElementKind, n int) {
		for i := 0; i < n; i++ {
			out = append(out, Element{Number: len(out) + 1, Kind: kind, Index: i})
		}
	}
	add(ElementName, len(p.Passengers))
	add(ElementSegment, len(p.Segments))
	add(ElementContact, len(p.Contacts))
	if full {
		if p.Ticketing != nil {
			add(ElementTicketing, 1)
		}
		if p.ReceivedFrom != "" {
			add(ElementReceived, 1)
		}
	}
	return out
}

// deleteElements removes the elements numbered from..to. Ticketing and
// received-from elements are rejected.
func deleteElements(p *gds.PNR, from, to int) error {
	elems := Elements(p, true)
	if from < 1 || to > len(elems) || from > to {
		return gds.Precondition(MsgInvalidElement)
	}

	drop := map[ElementKind]map[int]bool{}
	for _, e := range elems[from-1 : to] {
		if e.Restricted() {
			return gds.Precondition(MsgRestrictedElement)
		}
		if drop[e.Kind] == nil {
			drop[e.Kind] = map[int]bool{}
		}
		drop[e.Kind][e.Index] = true
	}

	p.Passengers = keep(p.Passengers, drop[ElementName])
	p.Segments = keep(p.Segments, drop[ElementSegment])
	p.Contacts = keep(p.Contacts, drop[ElementContact])
	return nil
}

func keep[T any](items []T, drop map[int]bool) []T {
	if len(drop) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
	for i, it := range items {
		if !drop[i] {
			out = append(out, it)
		}
	}
	return out
}
