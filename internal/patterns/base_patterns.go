package patterns

// BasePatterns defines reusable regex components for grok-style pattern composition.
// These are referenced in format patterns using {PATTERN_NAME} syntax.
// Values must not themselves contain placeholders.
var BasePatterns = map[string]string{
	// Travel date, captured as day + month and reassembled by the caller so a
	// greedy date never swallows the origin code.
	"DAY":   `\d{1,2}`,
	"MONTH": `JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC`,

	// Location and carrier codes.
	"IATA":    `[A-Z]{3}`,
	"AIRLINE": `[A-Z0-9]{2}`,

	// Booking class letter.
	"CLASS": `[A-Z]`,

	// Counters never start with zero.
	"QTY":     `[1-9]\d?`,
	"LINE":    `[1-9]\d?`,
	"ELEMENT": `[1-9]\d?`,

	// Passenger names: words separated by single space, apostrophe or hyphen.
	// GIVEN is the lazy form so a trailing title is not absorbed.
	"NAME":  `[A-Z]+(?:[ '-][A-Z]+)*`,
	"GIVEN": `[A-Z]+(?:[ '-][A-Z]+)*?`,
	"TITLE": `MR|MRS|MS|MISS|MSTR|DR`,

	// Record locator alphabet (no I, L, O, 0, 1).
	"LOCATOR": `[A-HJKMNP-Z2-9]{6}`,

	// Contact phone number digits.
	"PHONE": `\d{4,15}`,

	// Received-from signer.
	"SIGN": `[A-Z][A-Z0-9 ./-]*`,

	// Option block: zero or more /XXXX groups, validated after matching.
	"OPTIONS": `(?:/[A-Z0-9]+)*`,
}
