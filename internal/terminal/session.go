// Package terminal interprets trainee commands for one terminal session and
// manages the set of open sessions.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gds_terminal/internal/events"
	"gds_terminal/internal/gds"
	"gds_terminal/internal/grammar"
	"gds_terminal/internal/logger"
	"gds_terminal/internal/metrics"
	"gds_terminal/internal/pnr"
	"gds_terminal/internal/registry"
	"gds_terminal/internal/search"
	"gds_terminal/internal/storage"
)

// MsgProcessingError prefixes responses for failures outside the trainee's
// control.
const MsgProcessingError = "ERROR PROCESSING COMMAND"

// Command outcomes recorded in metrics and the journal.
const (
	OutcomeOK       = "ok"
	OutcomeSyntax   = "syntax"
	OutcomeUnknown  = "unknown"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// unknownKind labels commands that did not parse.
const unknownKind = "??"

// Deps are the collaborators shared by every session.
type Deps struct {
	Engine    *search.Engine
	Store     pnr.Store
	Journal   storage.Journal  // optional
	Publisher events.Publisher // optional
	Metrics   *metrics.Metrics // optional
	Logger    logger.Logger
	Registry  *registry.Registry // nil selects the default grammar
	Header    pnr.Header
	Now       func() time.Time

	// Locators overrides the locator source; tests seed it for stable output.
	Locators func() *gds.LocatorGenerator
}

func (d *Deps) withDefaults() {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Registry == nil {
		d.Registry = registry.Default()
	}
}

// Session is one trainee terminal: its search cursor and its PNR builder.
// Commands run one at a time.
type Session struct {
	id   string
	deps Deps
	log  logger.Logger

	mu       sync.Mutex
	cursor   *search.Cursor
	builder  *pnr.Builder
	lastUsed time.Time
}

// NewSession creates an idle session.
func NewSession(id string, deps Deps) *Session {
	deps.withDefaults()
	if id == "" {
		id = "local"
	}
	opts := pnr.Options{Store: deps.Store, Now: deps.Now, Header: deps.Header}
	if deps.Locators != nil {
		opts.Locators = deps.Locators()
	}
	return &Session{
		id:       id,
		deps:     deps,
		log:      deps.Logger.With("session", id),
		builder:  pnr.NewBuilder(opts),
		lastUsed: deps.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// LastUsed returns when the session last executed a command.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Status returns the state of the active PNR slot.
func (s *Session) Status() gds.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.Status()
}

// Execute runs one raw command and returns the text block to display. It
// never fails: every error becomes a response.
func (s *Session) Execute(ctx context.Context, raw string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	s.lastUsed = s.deps.Now()

	kind := unknownKind
	intent, err := grammar.ParseWith(s.deps.Registry, raw)
	var out string
	if err == nil {
		kind = intent.Kind()
		out, err = s.run(ctx, intent)
	}
	resp, outcome := s.respond(raw, out, err)
	latency := time.Since(started)

	s.log.Debug("command executed", "command", grammar.Normalize(raw), "kind", kind, "outcome", outcome, "latency", latency)
	s.deps.Metrics.ObserveCommand(kind, outcome, latency)
	s.journal(ctx, storage.JournalEntry{
		Session:  s.id,
		Command:  grammar.Normalize(raw),
		Kind:     kind,
		Outcome:  outcome,
		Response: resp,
		Latency:  latency,
		At:       s.lastUsed.UTC(),
	})
	s.publish(ctx)
	return resp
}

// run dispatches an intent, turning a panic into an error.
func (s *Session) run(ctx context.Context, intent registry.Intent) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", intent.Kind(), r)
		}
	}()
	return s.dispatch(ctx, intent)
}

func (s *Session) dispatch(ctx context.Context, intent registry.Intent) (string, error) {
	switch in := intent.(type) {
	case grammar.Availability:
		c, err := s.deps.Engine.Search(ctx, in)
		if err != nil {
			return "", err
		}
		s.cursor = c
		return s.deps.Engine.Render(c), nil

	case grammar.Navigate:
		if s.cursor == nil {
			return "", gds.Precondition(search.MsgNoActiveSearch)
		}
		var err error
		if in.Direction == grammar.Previous {
			err = s.cursor.Previous()
		} else {
			err = s.deps.Engine.Next(ctx, s.cursor)
		}
		if err != nil {
			return "", err
		}
		return s.deps.Engine.Render(s.cursor), nil

	case grammar.SellSegment:
		var d pnr.Display
		if s.cursor != nil {
			d = s.cursor
		}
		return s.builder.Sell(d, in)

	case grammar.AddName:
		return s.builder.AddName(in)

	case grammar.AddContact:
		return s.builder.AddContact(in)

	case grammar.ReceivedFrom:
		return s.builder.ReceivedFrom(in)

	case grammar.EndTransaction:
		return s.builder.Finalize(ctx, in.KeepOpen)

	case grammar.RetrievePNR:
		return s.builder.Retrieve(ctx, in)

	case grammar.DeleteElement:
		return s.builder.Delete(in)

	case grammar.CancelPNR:
		return s.builder.Cancel(ctx)

	case grammar.IgnorePNR:
		return s.builder.Ignore()
	}
	return "", fmt.Errorf("no handler for %s", intent.Kind())
}

// respond maps a result to the trainee-facing text and an outcome label.
func (s *Session) respond(raw, out string, err error) (string, string) {
	if err == nil {
		return out, OutcomeOK
	}

	var syntax *grammar.SyntaxError
	var pre *gds.PreconditionError
	switch {
	case errors.As(err, &syntax):
		return syntax.Error(), OutcomeSyntax
	case errors.Is(err, grammar.ErrUnknownCommand):
		return err.Error(), OutcomeUnknown
	case errors.As(err, &pre):
		return pre.Msg, OutcomeRejected
	case errors.Is(err, pnr.ErrNoMatch):
		return pnr.ErrNoMatch.Error(), OutcomeRejected
	}

	s.log.Error("command failed", "command", grammar.Normalize(raw), "error", err)
	return MsgProcessingError + ": " + err.Error(), OutcomeError
}

func (s *Session) journal(ctx context.Context, e storage.JournalEntry) {
	if s.deps.Journal == nil {
		return
	}
	if err := s.deps.Journal.Record(ctx, e); err != nil {
		s.log.Warn("journal write failed", "command", e.Command, "error", err)
	}
}

func (s *Session) publish(ctx context.Context) {
	for _, e := range s.builder.DrainEvents() {
		s.deps.Metrics.ObserveEvent(e.Type)
		if err := s.deps.Publisher.Publish(ctx, events.NewMessage(s.id, e, s.deps.Now())); err != nil {
			s.log.Warn("event publish failed", "type", e.Type, "locator", e.PNR.Locator, "error", err)
		}
	}
}
