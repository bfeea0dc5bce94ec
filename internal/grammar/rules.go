package grammar

import (
	"strconv"
	"strings"

	"gds_terminal/internal/gds"
	"gds_terminal/internal/patterns"
	"gds_terminal/internal/registry"
)

func init() {
	for _, r := range rules() {
		registry.Register(r)
	}
}

func rules() []*rule {
	return []*rule{
		{name: "availability", prefixes: []string{"AN", "SN", "TN"}, priority: 100, formats: availabilityFormats, build: buildAvailability},
		{name: "navigate", prefixes: []string{"MD", "MU"}, priority: 100, formats: navigateFormats, build: buildNavigate},
		{name: "sell", prefixes: []string{"SS"}, priority: 100, formats: sellFormats, build: buildSell},
		{name: "name", prefixes: []string{"NM"}, priority: 100, formats: nameFormats, build: buildName},
		{name: "contact", prefixes: []string{"AP"}, priority: 100, formats: contactFormats, build: buildContact},
		{name: "received_from", prefixes: []string{"RF"}, priority: 100, formats: receivedFormats, build: buildReceived},
		{name: "end_transaction", prefixes: []string{"ET", "ER"}, priority: 100, formats: endFormats, build: buildEnd},
		{name: "retrieve", prefixes: []string{"RT"}, priority: 100, formats: retrieveFormats, build: buildRetrieve},
		{name: "delete_element", prefixes: []string{"XE"}, priority: 100, formats: deleteFormats, build: buildDelete},
		{name: "cancel", prefixes: []string{"XI"}, priority: 100, formats: cancelFormats, build: buildCancel},
		{name: "ignore", prefixes: []string{"IG"}, priority: 100, formats: ignoreFormats, build: buildIgnore},
	}
}

func buildAvailability(m *patterns.Match) (registry.Intent, bool) {
	a := Availability{
		Mode:        Mode(m.Captures["mode"]),
		Origin:      m.Captures["origin"],
		Destination: m.Captures["dest"],
	}

	if day := m.Captures["day"]; day != "" {
		d, _ := strconv.Atoi(day)
		month, ok := parseMonth(m.Captures["month"])
		if !ok || d < 1 || d > daysIn(month) {
			return nil, false
		}
		a.Day, a.Month = d, month
	}

	if opts := m.Captures["opts"]; opts != "" {
		for _, opt := range strings.Split(opts[1:], "/") {
			switch {
			case strings.HasPrefix(opt, "A") && len(opt) == 3:
				if a.Airline != "" {
					return nil, false
				}
				a.Airline = opt[1:]
			case strings.HasPrefix(opt, "C") && len(opt) == 2:
				if a.Class != "" {
					return nil, false
				}
				if _, ok := gds.ParseClass(opt[1:]); !ok {
					return nil, false
				}
				a.Class = opt[1:]
			default:
				return nil, false
			}
		}
	}

	return a, true
}

func buildNavigate(m *patterns.Match) (registry.Intent, bool) {
	if m.Captures["dir"] == "MU" {
		return Navigate{Direction: Previous}, true
	}
	return Navigate{Direction: Next}, true
}

func buildSell(m *patterns.Match) (registry.Intent, bool) {
	qty, _ := strconv.Atoi(m.Captures["qty"])
	line, _ := strconv.Atoi(m.Captures["line"])
	return SellSegment{Quantity: qty, Class: m.Captures["class"], Line: line}, true
}

func buildName(m *patterns.Match) (registry.Intent, bool) {
	qty, _ := strconv.Atoi(m.Captures["qty"])
	n := AddName{
		Quantity:    qty,
		LastName:    m.Captures["last"],
		FirstName:   m.Captures["first"],
		Title:       m.Captures["title"],
		Subtype:     gds.PassengerType(m.Captures["sub"]),
		SubtypeInfo: strings.TrimSpace(m.Captures["info"]),
	}
	return n, true
}

func buildContact(m *patterns.Match) (registry.Intent, bool) {
	return AddContact{
		City:  m.Captures["city"],
		Phone: m.Captures["phone"],
		Type:  m.GetCapture("type", ContactHome),
	}, true
}

func buildReceived(m *patterns.Match) (registry.Intent, bool) {
	name := strings.TrimSpace(m.Captures["name"])
	if name == "" {
		return nil, false
	}
	return ReceivedFrom{Name: name}, true
}

func buildEnd(m *patterns.Match) (registry.Intent, bool) {
	return EndTransaction{KeepOpen: m.Captures["code"] == "ER"}, true
}

func buildRetrieve(m *patterns.Match) (registry.Intent, bool) {
	return RetrievePNR{Locator: m.Captures["loc"]}, true
}

func buildDelete(m *patterns.Match) (registry.Intent, bool) {
	from, _ := strconv.Atoi(m.Captures["from"])
	to := from
	if s := m.Captures["to"]; s != "" {
		to, _ = strconv.Atoi(s)
	}
	if to < from {
		return nil, false
	}
	return DeleteElement{From: from, To: to}, true
}

func buildCancel(*patterns.Match) (registry.Intent, bool) { return CancelPNR{}, true }
func buildIgnore(*patterns.Match) (registry.Intent, bool) { return IgnorePNR{}, true }
