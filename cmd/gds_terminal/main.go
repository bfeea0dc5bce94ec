// Command-line entry point for the GDS training terminal.
//
// Subcommands:
//
//	repl   interactive terminal on stdin/stdout
//	run    execute a script of commands, one per line
//	seed   load flights and locations from JSONL
//	trace  show every grammar format tried for one command
//	stats  print stored row counts (sqlite only)
//
// Storage, messaging and terminal settings come from the environment (and an
// optional .env file); see internal/config.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"gds_terminal/internal/config"
	"gds_terminal/internal/events"
	"gds_terminal/internal/grammar"
	"gds_terminal/internal/logger"
	"gds_terminal/internal/metrics"
	"gds_terminal/internal/pnr"
	"gds_terminal/internal/search"
	"gds_terminal/internal/storage"
	"gds_terminal/internal/terminal"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "gds_terminal - commands:")
	fmt.Fprintln(w, "  repl   - interactive terminal")
	fmt.Fprintln(w, "  run    - execute a command script")
	fmt.Fprintln(w, "  seed   - load flights and locations from JSONL")
	fmt.Fprintln(w, "  trace  - show grammar formats tried for a command")
	fmt.Fprintln(w, "  stats  - print stored row counts")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  gds_terminal repl")
	fmt.Fprintln(w, "  gds_terminal run -input script.txt [-echo]")
	fmt.Fprintln(w, "  gds_terminal seed -input flights.jsonl")
	fmt.Fprintln(w, "  gds_terminal trace AN15NOVBUEMAD")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.NewDevelopment(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "repl":
		err = runREPL(ctx, cfg, log, os.Args[2:])
	case "run":
		err = runScript(ctx, cfg, log, os.Args[2:])
	case "seed":
		err = runSeed(ctx, cfg, log, os.Args[2:])
	case "trace":
		err = runTrace(os.Args[2:], os.Stdout)
	case "stats":
		err = runStats(ctx, cfg)
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// terminalEnv is an opened storage plus everything a session needs.
type terminalEnv struct {
	db        *storage.DB
	publisher events.Publisher
	deps      terminal.Deps
}

func openTerminal(ctx context.Context, cfg *config.Config, log logger.Logger) (*terminalEnv, error) {
	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	var pub events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		pub = np
	}

	return &terminalEnv{
		db:        db,
		publisher: pub,
		deps: terminal.Deps{
			Engine:    search.NewEngine(db.Flights, cfg.PageSize, nil),
			Store:     db.PNRs,
			Journal:   db.Journal,
			Publisher: pub,
			Metrics:   metrics.New("gds", prometheus.NewRegistry()),
			Logger:    log,
			Header:    pnr.Header{OfficeID: cfg.OfficeID, AgentSign: cfg.AgentSign},
		},
	}, nil
}

func (e *terminalEnv) Close() {
	_ = e.publisher.Close()
	_ = e.db.Close()
}

func runREPL(ctx context.Context, cfg *config.Config, log logger.Logger, args []string) error {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	session := fs.String("session", "local", "Session id recorded in the journal")
	_ = fs.Parse(args)

	env, err := openTerminal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer env.Close()

	s := terminal.NewSession(*session, env.deps)
	fmt.Println("GDS TRAINING TERMINAL - type QUIT to exit")
	return drive(ctx, s, os.Stdin, os.Stdout, "> ", false)
}

func runScript(ctx context.Context, cfg *config.Config, log logger.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	inPath := fs.String("input", "", "Script file, one command per line (default: stdin)")
	echo := fs.Bool("echo", true, "Echo each command before its response")
	session := fs.String("session", "script", "Session id recorded in the journal")
	_ = fs.Parse(args)

	var r io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		r = f
	}

	env, err := openTerminal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer env.Close()

	return drive(ctx, terminal.NewSession(*session, env.deps), r, os.Stdout, "", *echo)
}

// drive feeds each input line to s. Blank lines and lines starting with '#'
// are skipped; QUIT or EXIT stops.
func drive(ctx context.Context, s *terminal.Session, r io.Reader, w io.Writer, prompt string, echo bool) error {
	scanner := bufio.NewScanner(r)
	for {
		if prompt != "" {
			fmt.Fprint(w, prompt)
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch strings.ToUpper(line) {
		case "QUIT", "EXIT":
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if echo {
			fmt.Fprintf(w, "> %s\n", line)
		}
		fmt.Fprintln(w, s.Execute(ctx, line))
		fmt.Fprintln(w)
	}
	return scanner.Err()
}

func runTrace(args []string, w io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("trace: command required")
	}
	raw := strings.Join(args, " ")
	traces := grammar.Trace(raw)
	if len(traces) == 0 {
		fmt.Fprintf(w, "%s: no rule for this prefix\n", grammar.Normalize(raw))
		return nil
	}
	for _, t := range traces {
		fmt.Fprintf(w, "rule %s matched=%v\n", t.RuleName, t.Matched)
		if t.QuickCheck != nil {
			fmt.Fprintf(w, "  quick check: passed=%v %s\n", t.QuickCheck.Passed, t.QuickCheck.Reason)
		}
		for _, f := range t.Formats {
			fmt.Fprintf(w, "  format %-20s matched=%v\n", f.Name, f.Matched)
			keys := make([]string, 0, len(f.Captures))
			for k := range f.Captures {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "    %s=%q\n", k, f.Captures[k])
			}
		}
		if t.Intent != nil {
			fmt.Fprintf(w, "  intent: %s %+v\n", t.Intent.Kind(), t.Intent)
		}
	}
	return nil
}

func runStats(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Driver != "" && cfg.Storage.Driver != "sqlite" {
		return fmt.Errorf("stats: only available for the sqlite driver")
	}
	db, err := storage.OpenSQLite(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := db.GetStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("flights:   %d\n", st.Flights)
	fmt.Printf("locations: %d\n", st.Locations)
	fmt.Printf("pnrs:      %d\n", st.PNRs)
	fmt.Printf("commands:  %d\n", st.Commands)
	statuses := make([]string, 0, len(st.ByStatus))
	for s := range st.ByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Printf("  %-12s %d\n", s, st.ByStatus[s])
	}
	return nil
}
