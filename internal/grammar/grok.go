package grammar

import "gds_terminal/internal/patterns"

// Formats are listed per rule; the first format's Example is shown to the
// trainee on a syntax error.

var availabilityFormats = []patterns.Format{
	// Example: AN15NOVBUEMAD/AIB/CY
	// Date is split into day and month so a greedy date cannot swallow the
	// origin code.
	{
		Name: "availability",
		Pattern: `(?P<mode>AN|SN|TN)(?:(?P<day>{DAY})(?P<month>{MONTH}))?` +
			`(?P<origin>{IATA})(?P<dest>{IATA})(?P<opts>{OPTIONS})`,
		Example: "AN15NOVBUEMAD/AIB/CY",
		Fields:  []string{"mode", "day", "month", "origin", "dest", "opts"},
	},
}

var navigateFormats = []patterns.Format{
	{
		Name:    "navigate",
		Pattern: `(?P<dir>MD|MU)`,
		Example: "MD",
		Fields:  []string{"dir"},
	},
}

var sellFormats = []patterns.Format{
	// Example: SS1Y1 (quantity, class, line)
	{
		Name:    "sell",
		Pattern: `SS(?P<qty>{QTY})(?P<class>{CLASS})(?P<line>{LINE})`,
		Example: "SS1Y1",
		Fields:  []string{"qty", "class", "line"},
	},
}

var nameFormats = []patterns.Format{
	// Example: NM1GARCIA/JUAN MR
	// Also: NM1LOPEZ/ANA MISS(CHD/05MAR20)
	{
		Name: "name",
		Pattern: `NM(?P<qty>{QTY})(?P<last>{NAME})/(?P<first>{GIVEN})` +
			`(?: (?P<title>{TITLE}))?` +
			`(?: ?\((?P<sub>CHD|INF)(?:/(?P<info>[A-Z0-9][A-Z0-9 /]*))?\))?`,
		Example: "NM1GARCIA/JUAN MR",
		Fields:  []string{"qty", "last", "first", "title", "sub", "info"},
	},
}

var contactFormats = []patterns.Format{
	// Example: APBUE12345678-M
	{
		Name:    "contact",
		Pattern: `AP ?(?P<city>{IATA}) ?(?P<phone>{PHONE})(?:-(?P<type>[ABHM]))?`,
		Example: "APBUE12345678-M",
		Fields:  []string{"city", "phone", "type"},
	},
}

var receivedFormats = []patterns.Format{
	{
		Name:    "received_from",
		Pattern: `RF ?(?P<name>{SIGN})`,
		Example: "RFJUAN PEREZ",
		Fields:  []string{"name"},
	},
}

var endFormats = []patterns.Format{
	{
		Name:    "end_transaction",
		Pattern: `(?P<code>ET|ER)`,
		Example: "ET",
		Fields:  []string{"code"},
	},
}

var retrieveFormats = []patterns.Format{
	// Example: RTABC234, or RT alone to redisplay
	{
		Name:    "retrieve",
		Pattern: `RT(?P<loc>{LOCATOR})?`,
		Example: "RTABC234",
		Fields:  []string{"loc"},
	},
}

var deleteFormats = []patterns.Format{
	// Example: XE2, XE2-4
	{
		Name:    "delete_element",
		Pattern: `XE(?P<from>{ELEMENT})(?:-(?P<to>{ELEMENT}))?`,
		Example: "XE2",
		Fields:  []string{"from", "to"},
	},
}

var cancelFormats = []patterns.Format{
	{
		Name:    "cancel",
		Pattern: `XI`,
		Example: "XI",
	},
}

var ignoreFormats = []patterns.Format{
	{
		Name:    "ignore",
		Pattern: `IG`,
		Example: "IG",
	},
}
