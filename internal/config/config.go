// Package config defines the explicit, JSON-serializable settings for the
// birt tools.
//
// Settings are constructed once at process start (defaults, then an
// optional settings file, then environment overrides) and passed into each
// component. Nothing reads configuration through hidden globals.
//
// Example settings file (trimmed):
//
//	{
//	  "allowed_extensions": [".tsv", ".csv"],
//	  "date_format": "%b %Y",
//	  "chunk_size": 5000,
//	  "collections": { "nodes": "birds", "paths": "migrations", "invalid": "invalidRecords" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Collections names the three destination collections.
type Collections struct {
	// Nodes holds taxonomy documents.
	Nodes string `json:"nodes"`
	// Paths holds migration checklist/core documents.
	Paths string `json:"paths"`
	// Invalid holds rejected rows for operator review.
	Invalid string `json:"invalid"`
}

// Mongo carries the store connection defaults. The environment variables
// MONGO_HOST, MONGO_DATABASE, MONGO_USERNAME and MONGO_PASSWORD override
// these, and CLI flags override both.
type Mongo struct {
	Host     string `json:"host"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Settings is the full application configuration.
type Settings struct {
	// Debug enables verbose diagnostic logging.
	Debug bool `json:"debug"`

	// DataDir is the default directory for input extracts.
	DataDir string `json:"data_dir"`

	// AllowedExtensions is the input file extension allow-list.
	AllowedExtensions []string `json:"allowed_extensions"`

	// DateFormat is the strftime-style format for date-typed fields
	// (e.g. "%b %Y"). Go reference-time layouts are also accepted.
	DateFormat string `json:"date_format"`

	Collections Collections `json:"collections"`

	// DisableSchemaMatch selects permissive header handling: unknown
	// columns are tolerated and missing optional columns null-filled.
	// When false, a header/contract mismatch aborts the run.
	DisableSchemaMatch bool `json:"disable_schema_match"`

	// ChunkSize is the number of rows read and written per batch.
	ChunkSize int `json:"chunk_size"`

	// DropIndexes drops existing indexes when the consumer connects;
	// rebuild them afterwards with birt-ensure-index.
	DropIndexes bool `json:"drop_indexes"`

	Mongo Mongo `json:"mongo"`
}

// Default returns the built-in settings, matching a local development
// MongoDB with no credentials.
func Default() Settings {
	return Settings{
		DataDir:           "/data/",
		AllowedExtensions: []string{".tsv", ".csv"},
		DateFormat:        "%b %Y",
		Collections: Collections{
			Nodes:   "birds",
			Paths:   "migrations",
			Invalid: "invalidRecords",
		},
		DisableSchemaMatch: true,
		ChunkSize:          5000,
		Mongo: Mongo{
			Host:     "localhost",
			Database: "birt",
		},
	}
}

// Load returns the defaults overlaid with the JSON settings file at path
// (skipped when path is empty) and then with environment overrides.
func Load(path string) (Settings, error) {
	s := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return s, fmt.Errorf("open settings: %w", err)
		}
		defer f.Close()

		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return s, fmt.Errorf("decode settings %s: %w", path, err)
		}
	}

	s.applyEnv()
	return s, nil
}

func (s *Settings) applyEnv() {
	if v, ok := os.LookupEnv("MONGO_HOST"); ok {
		s.Mongo.Host = v
	}
	if v, ok := os.LookupEnv("MONGO_DATABASE"); ok {
		s.Mongo.Database = v
	}
	if v, ok := os.LookupEnv("MONGO_USERNAME"); ok {
		s.Mongo.Username = v
	}
	if v, ok := os.LookupEnv("MONGO_PASSWORD"); ok {
		s.Mongo.Password = v
	}
}
