// Package storage provides the flight repository, PNR stores and command
// journal backends.
package storage

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"gds_terminal/internal/gds"
)

// timeLayout stores timestamps as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05Z"

// ErrBadCursor is returned for a marker the backend did not produce.
var ErrBadCursor = errors.New("invalid page marker")

// marker is the position of the last row of a page: rows sort by departure,
// then id.
type marker struct {
	DepartureAt time.Time
	ID          int64
}

func encodeMarker(f *gds.Flight) string {
	raw := f.DepartureAt.UTC().Format(timeLayout) + "|" + strconv.FormatInt(f.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeMarker(s string) (marker, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return marker{}, ErrBadCursor
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return marker{}, ErrBadCursor
	}
	dep, err := time.Parse(timeLayout, ts)
	if err != nil {
		return marker{}, ErrBadCursor
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return marker{}, ErrBadCursor
	}
	return marker{DepartureAt: dep, ID: n}, nil
}

// nextMarker returns the marker for the page after rows, or "" when the
// repository returned fewer rows than requested.
func nextMarker(rows []gds.Flight, limit int) string {
	if limit <= 0 || len(rows) < limit {
		return ""
	}
	return encodeMarker(&rows[len(rows)-1])
}

// dayBounds returns [start, end) of the UTC calendar day of t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, s)
	return t
}
