package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nugget/gotravel-agent/internal/defaults"
)

// runInit initializes a GoTravel working directory with the example
// config and sample catalog. Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing GoTravel workspace in %s\n", dir)

	dbDir := filepath.Join(dir, "db")
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dbDir, err)
	}

	// The config holds API keys once edited.
	configPath := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(configPath, defaults.ConfigYAML, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	catalogPath := filepath.Join(dir, "catalog.yaml")
	if err := writeIfMissing(catalogPath, defaults.CatalogYAML, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", catalogPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml to add your model and weather API keys, then run:")
	fmt.Fprintln(w, "  gotravel seed catalog.yaml")
	fmt.Fprintln(w, "  gotravel serve")
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist.
func writeIfMissing(path string, content []byte, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
