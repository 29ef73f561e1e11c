package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nugget/gotravel-agent/internal/agent"
	"github.com/nugget/gotravel-agent/internal/catalog"
	"github.com/nugget/gotravel-agent/internal/config"
	"github.com/nugget/gotravel-agent/internal/metrics"
	"github.com/nugget/gotravel-agent/internal/tools"
	"github.com/nugget/gotravel-agent/internal/usage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &out, io.Discard, []string{"version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "go_version:") {
		t.Errorf("text version output = %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), &out, io.Discard, []string{"-o", "json", "version"}); err != nil {
		t.Fatalf("json version: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("version JSON: %v (%q)", err, out.String())
	}
	if info["version"] == "" {
		t.Errorf("info = %v", info)
	}
}

func TestRun_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"fly"}, "unknown command: fly"},
		{"unknown flag", []string{"-x"}, "unknown flag: -x"},
		{"bad output format", []string{"-o", "xml", "version"}, "unknown output format"},
		{"ask without question", []string{"ask"}, "usage: gotravel ask"},
		{"missing config", []string{"-config", "/nonexistent/config.yaml", "serve"}, "config file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), io.Discard, io.Discard, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"--help"}} {
		var out bytes.Buffer
		if err := run(context.Background(), &out, io.Discard, args); err != nil {
			t.Fatalf("run(%v): %v", args, err)
		}
		if !strings.Contains(out.String(), "Usage: gotravel") {
			t.Errorf("run(%v) output = %q", args, out.String())
		}
	}
}

func TestRunInit(t *testing.T) {
	old := syscall.Umask(0)
	t.Cleanup(func() { syscall.Umask(old) })

	dir := t.TempDir()
	var out bytes.Buffer
	if err := runInit(&out, dir); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("config.yaml: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config.yaml mode = %o, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(filepath.Join(dir, "catalog.yaml")); err != nil {
		t.Errorf("catalog.yaml: %v", err)
	}
	if fi, err := os.Stat(filepath.Join(dir, "db")); err != nil || !fi.IsDir() {
		t.Errorf("db directory: %v", err)
	}

	// A second run leaves edited files alone.
	custom := []byte("listen:\n  port: 9000\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), custom, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := runInit(io.Discard, dir); err != nil {
		t.Fatalf("second runInit: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if !bytes.Equal(got, custom) {
		t.Errorf("config.yaml overwritten: %q", got)
	}
}

func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := "data_dir: " + filepath.Join(dir, "db") + "\n" +
		"catalog:\n  driver: sqlite3\n  dsn: " + filepath.Join(dir, "catalog.db") + "\n" +
		"log_level: warn\n" + extra
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunSeed(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")

	var out bytes.Buffer
	if err := run(context.Background(), &out, io.Discard, []string{"-config", cfgPath, "seed"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out.String(), "Seeded bundled sample catalog: 3 hotels, 4 rooms, 3 packages, 3 places") {
		t.Errorf("output = %q", out.String())
	}

	store, err := catalog.Open(context.Background(), "sqlite3", filepath.Join(dir, "catalog.db"), discardLogger())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer store.Close()
	hotels, err := store.SearchHotels(context.Background(), catalog.HotelFilter{City: "Cox's Bazar"})
	if err != nil {
		t.Fatalf("SearchHotels: %v", err)
	}
	if len(hotels) != 1 || hotels[0].Name != "Hotel Sea Crown" {
		t.Errorf("hotels = %+v", hotels)
	}
}

func TestRunSeed_BadFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("hotels:\n  - city: Dhaka\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := run(context.Background(), io.Discard, io.Discard, []string{"-config", cfgPath, "seed", bad})
	if err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Errorf("err = %v", err)
	}
}

func TestCreateLLMClient(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Models.Default = "gemini-2.0-flash"
	if _, err := createLLMClient(ctx, cfg, discardLogger()); err == nil || !strings.Contains(err.Error(), "gemini provider") {
		t.Errorf("missing gemini key: err = %v", err)
	}

	cfg.Models.Default = "qwen3:8b"
	client, err := createLLMClient(ctx, cfg, discardLogger())
	if err != nil || client == nil {
		t.Fatalf("ollama default: client = %v, err = %v", client, err)
	}

	cfg.RateLimit.RequestsPerMinute = 30
	cfg.RateLimit.Burst = 2
	client, err = createLLMClient(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("rate limited: %v", err)
	}
	if _, ok := client.(interface{ Ping(context.Context) error }); !ok {
		t.Errorf("rate limited client = %T", client)
	}
}

func TestBookingNotifier_Source(t *testing.T) {
	m := metrics.New()
	n := &bookingNotifier{metrics: m}

	n.BookingCreated(context.Background(), catalog.Booking{Kind: catalog.KindHotel})
	n.BookingCreated(tools.WithSessionID(context.Background(), "session_1"), catalog.Booking{Kind: catalog.KindPackage})

	if got := testutil.ToFloat64(m.BookingsTotal.WithLabelValues("hotel", "api")); got != 1 {
		t.Errorf("api hotel bookings = %v", got)
	}
	if got := testutil.ToFloat64(m.BookingsTotal.WithLabelValues("package", "agent")); got != 1 {
		t.Errorf("agent package bookings = %v", got)
	}
}

func TestObserveTurn_RecordsUsage(t *testing.T) {
	dir := t.TempDir()
	store, err := usage.NewStore(filepath.Join(dir, "usage.db"))
	if err != nil {
		t.Fatalf("usage store: %v", err)
	}
	defer store.Close()

	cfg := config.Default()
	cfg.Usage.Pricing = map[string]config.PricingEntry{
		"gemini-2.0-flash": {InputPerMillion: 1, OutputPerMillion: 2},
	}
	a := &app{cfg: cfg, logger: discardLogger(), metrics: metrics.New(), usage: store}

	a.observeTurn(agent.TurnStats{
		SessionID:    "session_1",
		Model:        "gemini-2.0-flash",
		Outcome:      agent.OutcomeDone,
		Iterations:   2,
		ToolCalls:    1,
		Tools:        []string{"search_hotels"},
		InputTokens:  1_000_000,
		OutputTokens: 500_000,
		Elapsed:      time.Second,
	})

	now := time.Now()
	sum, err := store.Summary(context.Background(), now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalTurns != 1 || sum.TotalToolCalls != 1 || sum.TotalCostUSD != 2.0 {
		t.Errorf("summary = %+v", sum)
	}
	if got := testutil.ToFloat64(a.metrics.ToolCallsTotal.WithLabelValues("search_hotels")); got != 1 {
		t.Errorf("tool call metric = %v", got)
	}
}
