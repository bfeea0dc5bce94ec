// Package render provides the fixed-width text layout shared by every
// terminal display.
package render

import (
	"fmt"
	"strings"
	"time"
)

// Width is the terminal width in columns.
const Width = 64

// Align selects how a value is placed inside its cell.
type Align int

const (
	Left Align = iota
	Right
)

// Column describes one fixed-width cell.
type Column struct {
	Width int
	Align Align
}

// Layout is an ordered list of columns.
type Layout []Column

// Line lays values out in the columns. Values longer than their cell are
// truncated; missing values render as blanks. Trailing spaces are trimmed.
func (l Layout) Line(values ...string) string {
	var b strings.Builder
	for i, col := range l {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		b.WriteString(Cell(v, col.Width, col.Align))
	}
	return strings.TrimRight(b.String(), " ")
}

// Cell pads or truncates v to exactly width runes.
func Cell(v string, width int, align Align) string {
	r := []rune(v)
	if len(r) >= width {
		return string(r[:width])
	}
	pad := strings.Repeat(" ", width-len(r))
	if align == Right {
		return pad + v
	}
	return v + pad
}

// InfoLine places left at the start and right flush against Width. When both
// do not fit they are separated by a single space.
func InfoLine(left, right string) string {
	gap := Width - len([]rune(left)) - len([]rune(right))
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// Banner renders the display header, e.g.
// "** GDS AVAILABILITY - AN ** MAD MADRID.ES" with a right-aligned info block.
func Banner(title, mode, subject, info string) string {
	return InfoLine(fmt.Sprintf("** GDS %s - %s ** %s", title, mode, subject), info)
}

// Duration formats minutes as H:MM.
func Duration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

var weekdays = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// Weekday returns the two-letter weekday abbreviation.
func Weekday(t time.Time) string {
	return weekdays[t.Weekday()]
}

// Date formats t as DDMMM, e.g. 15NOV.
func Date(t time.Time) string {
	return strings.ToUpper(t.Format("02Jan"))
}

// DateYear formats t as DDMMMYY, e.g. 15NOV26.
func DateYear(t time.Time) string {
	return strings.ToUpper(t.Format("02Jan06"))
}

// Clock formats t as HHMM.
func Clock(t time.Time) string {
	return t.Format("1504")
}

// ClockOffset formats an arrival time with its day offset, e.g. 0615+1.
func ClockOffset(t time.Time, days int) string {
	if days == 0 {
		return Clock(t)
	}
	if days > 0 {
		return fmt.Sprintf("%s+%d", Clock(t), days)
	}
	return fmt.Sprintf("%s%d", Clock(t), days)
}

// Lines joins display lines with newlines.
func Lines(lines ...string) string {
	return strings.Join(lines, "\n")
}
