package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/nugget/gotravel-agent/internal/api"
	"github.com/nugget/gotravel-agent/internal/buildinfo"
	"github.com/nugget/gotravel-agent/internal/catalog"
	"github.com/nugget/gotravel-agent/internal/config"
	"github.com/nugget/gotravel-agent/internal/defaults"
)

// runServe handles "gotravel serve". It wires the application, starts
// the health watchers, cron jobs, and MQTT publisher, and serves the API
// until ctx is cancelled.
//
// The shutdown sequence is:
//  1. SIGINT or SIGTERM cancels the context
//  2. The HTTP server drains in-flight requests
//  3. The MQTT publisher announces "offline"
//  4. Cron jobs, watchers, and databases are closed via defers
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger.Info("starting GoTravel",
		"version", buildinfo.Version,
		"commit", buildinfo.GitCommit,
		"branch", buildinfo.GitBranch,
		"built", buildinfo.BuildTime,
		"config", cfgPath,
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	watchers := a.watch(ctx)
	defer watchers.Stop()

	jobs, err := a.schedule()
	if err != nil {
		return err
	}
	defer func() { <-jobs.Stop().Done() }()

	if a.publisher != nil {
		go func() {
			if err := a.publisher.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
		}()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.publisher.Stop(stopCtx); err != nil {
				logger.Warn("mqtt publisher stop", "error", err)
			}
		}()
	}

	server := api.NewServer(api.Config{
		Address:           cfg.Listen.Address,
		Port:              cfg.Listen.Port,
		MaxConns:          cfg.Listen.MaxConns,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		Debug:             cfg.Debug,
		WeatherConfigured: cfg.Weather.Configured(),
	}, api.Deps{
		Agent:    a.agent,
		Bookings: a.bookings,
		Health:   watchers,
		Metrics:  a.metrics,
	}, logger.With("component", "api"))

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	logger.Info("GoTravel stopped")
	return nil
}

// runAsk handles "gotravel ask <question>". It builds the same agent as
// serve, without the API or background jobs, and prints one answer.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, args []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	// Logs go to stderr so stdout carries only the answer.
	logger, err := config.NewLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	cfg.Usage.Enabled = false

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.agent.ProcessMessage(ctx, strings.Join(args, " "), "", nil)
	if !res.Success {
		return fmt.Errorf("ask: %w", res.Err)
	}

	fmt.Fprintln(stdout, res.Response)
	if len(res.ToolsUsed) > 0 {
		names := make([]string, len(res.ToolsUsed))
		for i, t := range res.ToolsUsed {
			names[i] = t.Tool
		}
		fmt.Fprintf(stderr, "tools used: %s\n", strings.Join(names, ", "))
	}
	return nil
}

// runSeed handles "gotravel seed [file]". Rows whose IDs already exist
// are skipped, so seeding is safe to repeat.
func runSeed(ctx context.Context, stdout io.Writer, configPath, file string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	var src io.Reader = bytes.NewReader(defaults.CatalogYAML)
	name := "bundled sample catalog"
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open fixtures: %w", err)
		}
		defer f.Close()
		src, name = f, file
	}

	fixtures, err := catalog.LoadFixtures(src)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	store, err := catalog.Open(ctx, cfg.Catalog.Driver, cfg.Catalog.DSN, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := store.Seed(ctx, fixtures)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	fmt.Fprintf(stdout, "Seeded %s: %d hotels, %d rooms, %d packages, %d places\n",
		name, res.Hotels, res.Rooms, res.Packages, res.Places)
	return nil
}
