// Package defaults provides embedded copies of the example configuration
// and seed catalog for the gotravel init and seed subcommands.
package defaults

import _ "embed"

// ConfigYAML is the example configuration file.
//
//go:embed config.example.yaml
var ConfigYAML []byte

// CatalogYAML is a small Bangladesh catalog used to seed a fresh
// database.
//
//go:embed catalog.example.yaml
var CatalogYAML []byte
