// Package main provides the terminal-api server for remote trainee sessions.
//
// Each session is an independent terminal with its own search cursor and
// active PNR. Sessions idle longer than SESSION_TTL_MINUTES are discarded.
//
// Usage:
//
//	terminal-api [options]
//
// Options:
//
//	-port N         HTTP port (default: 8080, env: PORT)
//	-api-keys KEYS  Comma-separated list of valid API keys (env: API_KEYS)
//
// API Endpoints:
//
//	GET /api/v1/health
//	    Health check endpoint.
//
//	POST /api/v1/sessions
//	    Open a session. Returns {"session_id": "..."}.
//
//	POST /api/v1/sessions/{id}/commands
//	    Execute one command. Body: {"command": "AN15NOVBUEMAD"}.
//
//	DELETE /api/v1/sessions/{id}
//	    Close a session, discarding any unfinished record.
//
//	GET /metrics
//	    Prometheus metrics.
//
// Authentication:
//
//	When API keys are configured, requests must include one via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gds_terminal/internal/api"
	"gds_terminal/internal/config"
	"gds_terminal/internal/events"
	"gds_terminal/internal/logger"
	"gds_terminal/internal/metrics"
	"gds_terminal/internal/pnr"
	"gds_terminal/internal/search"
	"gds_terminal/internal/storage"
	"gds_terminal/internal/terminal"
)

func main() {
	cfg := config.Load()

	defaultPort, err := strconv.Atoi(cfg.Port)
	if err != nil {
		defaultPort = 8080
	}
	port := flag.Int("port", defaultPort, "HTTP port for API server")
	apiKeys := flag.String("api-keys", strings.Join(cfg.APIKeys, ","), "Comma-separated list of valid API keys")
	flag.Parse()

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, *port, *apiKeys, log); err != nil {
		log.Error("terminal API stopped", "error", err)
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, port int, apiKeys string, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	var pub events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		pub = np
		log.Info("publishing PNR events", "subject", cfg.NATSSubject)
	}
	defer pub.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions := terminal.NewManager(terminal.Deps{
		Engine:    search.NewEngine(db.Flights, cfg.PageSize, nil),
		Store:     db.PNRs,
		Journal:   db.Journal,
		Publisher: pub,
		Metrics:   metrics.New("gds", reg),
		Logger:    log,
		Header:    pnr.Header{OfficeID: cfg.OfficeID, AgentSign: cfg.AgentSign},
	})
	go cleanupLoop(ctx, sessions, cfg.SessionTTL)

	var keys []string
	for _, k := range strings.Split(apiKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	server := api.NewTerminalServer(sessions, log, api.Config{
		Port:         port,
		APIKeys:      keys,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Gatherer:     reg,
	})
	return server.Run(ctx)
}

// cleanupLoop drops idle sessions until ctx is cancelled.
func cleanupLoop(ctx context.Context, sessions *terminal.Manager, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.CleanupIdle(ttl)
		}
	}
}
