package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gds_terminal/internal/config"
	"gds_terminal/internal/gds"
	"gds_terminal/internal/logger"
	"gds_terminal/internal/storage"
)

// seedLine is one JSONL record: a kind tag plus the flight or location
// fields at the same level.
type seedLine struct {
	Kind string `json:"kind"`
}

// SeedStats counts what a seed run loaded.
type SeedStats struct {
	Lines     int
	Flights   int
	Locations int
	Skipped   int
}

func runSeed(ctx context.Context, cfg *config.Config, log logger.Logger, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	inPath := fs.String("input", "", "Input JSONL file (default: stdin)")
	_ = fs.Parse(args)

	var r io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := seed(ctx, db.Flights, r, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "stats: lines=%d flights=%d locations=%d skipped=%d\n",
		st.Lines, st.Flights, st.Locations, st.Skipped)
	return nil
}

// seed loads every record of r into repo. Malformed lines are logged and
// skipped; storage errors stop the run.
func seed(ctx context.Context, repo storage.FlightRepository, r io.Reader, log logger.Logger) (*SeedStats, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	st := &SeedStats{}
	for scanner.Scan() {
		st.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		b := []byte(line)

		var head seedLine
		if err := json.Unmarshal(b, &head); err != nil {
			log.Warn("skipping malformed line", "line", st.Lines, "error", err)
			st.Skipped++
			continue
		}

		switch head.Kind {
		case "flight":
			var f gds.Flight
			if err := json.Unmarshal(b, &f); err != nil {
				log.Warn("skipping malformed flight", "line", st.Lines, "error", err)
				st.Skipped++
				continue
			}
			if err := validateFlight(&f); err != nil {
				log.Warn("skipping invalid flight", "line", st.Lines, "error", err)
				st.Skipped++
				continue
			}
			if _, err := repo.InsertFlight(ctx, &f); err != nil {
				return st, fmt.Errorf("line %d: %w", st.Lines, err)
			}
			st.Flights++
		case "location":
			var l gds.Location
			if err := json.Unmarshal(b, &l); err != nil || l.Code == "" {
				log.Warn("skipping malformed location", "line", st.Lines, "error", err)
				st.Skipped++
				continue
			}
			l.Code = strings.ToUpper(l.Code)
			if err := repo.UpsertLocation(ctx, l); err != nil {
				return st, fmt.Errorf("line %d: %w", st.Lines, err)
			}
			st.Locations++
		default:
			log.Warn("skipping unknown kind", "line", st.Lines, "kind", head.Kind)
			st.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return st, fmt.Errorf("read input: %w", err)
	}
	return st, nil
}

// validateFlight normalizes codes and fills the duration when omitted.
func validateFlight(f *gds.Flight) error {
	f.Airline = strings.ToUpper(f.Airline)
	f.Origin = strings.ToUpper(f.Origin)
	f.Destination = strings.ToUpper(f.Destination)
	switch {
	case f.Airline == "" || f.Number == "":
		return fmt.Errorf("missing designator")
	case f.Origin == "" || f.Destination == "":
		return fmt.Errorf("missing city pair")
	case f.DepartureAt.IsZero() || f.ArrivalAt.IsZero():
		return fmt.Errorf("missing times")
	case f.ArrivalAt.Before(f.DepartureAt):
		return fmt.Errorf("arrival before departure")
	}
	if f.Duration == 0 {
		f.Duration = int(f.ArrivalAt.Sub(f.DepartureAt).Minutes())
	}
	return nil
}
