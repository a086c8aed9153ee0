// Package main runs the browser-session gateway: an HTTP service that
// multiplexes automation requests across a bounded pool of headless
// browser processes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/gateway/pkg/browser"
	"github.com/entrhq/gateway/pkg/config"
	"github.com/entrhq/gateway/pkg/dispatch"
	"github.com/entrhq/gateway/pkg/gateway"
	"github.com/entrhq/gateway/pkg/logging"
	"github.com/entrhq/gateway/pkg/pool"
	"github.com/entrhq/gateway/pkg/queue"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	ConfigFile  string
	Port        int
	ShowVersion bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("Browser Gateway v%s\n", version)
		return
	}

	// Create context cancelled on shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cli); err != nil {
		fmt.Fprintf(os.Stderr, "gateway failed: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags.
func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.IntVar(&cli.Port, "port", 0, "Listen port (overrides config and PORT)")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Browser Gateway - pooled headless browser automation service\n\n")
		fmt.Fprintf(os.Stderr, "Usage: gateway [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run with defaults on :8080\n")
		fmt.Fprintf(os.Stderr, "  gateway\n\n")
		fmt.Fprintf(os.Stderr, "  # Run with config file\n")
		fmt.Fprintf(os.Stderr, "  gateway -config gateway.yaml\n\n")
	}

	flag.Parse()
	return cli
}

// run wires the gateway together and serves until the context is cancelled.
func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cli.Port > 0 {
		cfg.Server.Port = cli.Port
	}

	log := newLogger("gateway", cfg)
	defer log.Close()
	log.Infof("starting browser gateway v%s (run %s)", version, log.RunID())

	// The launcher owns the shared Playwright driver; a missing browser
	// binary surfaces here as an unrecoverable startup failure.
	launcher, err := browser.NewLauncher(browser.LaunchOptions{
		Headless:       cfg.Browser.Headless,
		Args:           cfg.Browser.Args,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		StartTimeout:   cfg.Pool.StartTimeout,
		ActionTimeout:  cfg.Pool.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize browser driver: %w", err)
	}
	defer launcher.Close()

	sessions := pool.New(
		func() pool.Process { return launcher.NewHandle() },
		pool.Config{
			MaxSessions:    cfg.Pool.MaxSessions,
			IdleTimeout:    cfg.Pool.IdleTimeout,
			ReapInterval:   cfg.Pool.ReapInterval,
			StartTimeout:   cfg.Pool.StartTimeout,
			StartBackoff:   cfg.Pool.StartBackoff,
			TerminateGrace: cfg.Pool.TerminateGrace,
		},
		newLogger("pool", cfg),
	)

	requests := queue.New(cfg.Pool.QueueCapacity)

	// The dispatcher runs on its own context: a shutdown signal must not
	// cancel in-flight browser actions. Drain order below stops it after
	// the HTTP handlers and the queue.
	dispatcher := dispatch.New(sessions, requests, cfg.Pool.MaxSessions, cfg.Pool.RequestTimeout, newLogger("dispatch", cfg))
	dispatcher.Start(context.Background())

	server, err := gateway.NewServer(cfg, requests, sessions, newLogger("http", cfg))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown: stop intake, resolve queued requests, drain
	// in-flight sessions, then force-terminate stragglers.
	log.Infof("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown: %v", err)
	}
	requests.Close()
	dispatcher.Stop()
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		log.Warnf("pool shutdown: %v", err)
	}

	log.Infof("gateway stopped")
	return nil
}

// newLogger builds a component logger honoring the configured log target.
func newLogger(component string, cfg *config.Config) *logging.Logger {
	if cfg.Logging.Dir == "" {
		return logging.NewLogger(component)
	}
	log, err := logging.NewFileLogger(component, cfg.Logging.Dir)
	if err != nil {
		log.Warnf("file logging unavailable: %v", err)
	}
	return log
}
