// Package config loads docindex settings from layered JSONC files.
//
// Precedence, lowest to highest:
//  1. Defaults
//  2. Project config file (.docindex.json in the working directory, optional)
//  3. Explicit config file (--config, must exist; replaces the project file)
//  4. CLI overrides
//
// Files may contain comments and trailing commas.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"

	"github.com/roach88/docindex/internal/engine"
)

// FileName is the project config file looked up in the working directory.
const FileName = ".docindex.json"

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

var (
	errConfigInvalid      = errors.New("invalid config")
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")

	// ErrUnknownBackend reports a backend other than sqlite or bolt.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrEmptyDB reports an empty database path.
	ErrEmptyDB = errors.New("db path is empty")
)

// Config holds all configuration options.
type Config struct {
	DB              string `json:"db"`
	Backend         string `json:"backend"`
	DocTable        string `json:"doc_table"`
	BacklinkTable   string `json:"backlink_table"`
	Selector        string `json:"selector"`
	InvalidPolicy   string `json:"invalid_policy"`
	RetryMaxElapsed string `json:"retry_max_elapsed"`
	Verbose         bool   `json:"verbose"`
}

// Overrides holds values set explicitly, from a file layer or the command
// line. Nil fields leave the lower layer alone.
type Overrides struct {
	DB              *string `json:"db"`
	Backend         *string `json:"backend"`
	DocTable        *string `json:"doc_table"`
	BacklinkTable   *string `json:"backlink_table"`
	Selector        *string `json:"selector"`
	InvalidPolicy   *string `json:"invalid_policy"`
	RetryMaxElapsed *string `json:"retry_max_elapsed"`
	Verbose         *bool   `json:"verbose"`
}

// Sources tracks which config file was loaded.
type Sources struct {
	File string // Path of the loaded config file, empty if none
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DB:              "docindex.db",
		Backend:         BackendSQLite,
		DocTable:        "docs",
		BacklinkTable:   "backlinks",
		Selector:        engine.SelectorUpdatedAt,
		InvalidPolicy:   engine.AbortOnInvalid.String(),
		RetryMaxElapsed: "30s",
	}
}

// Load resolves the configuration for workDir. configPath, when non-empty,
// names a file that must exist and is used instead of the project file.
func Load(workDir, configPath string, cli Overrides) (Config, Sources, error) {
	cfg := Default()

	file, path, err := loadFile(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}
	cfg = merge(cfg, file)
	cfg = merge(cfg, cli)

	if err := Validate(cfg); err != nil {
		if path != "" {
			return Config{}, Sources{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
		}
		return Config{}, Sources{}, fmt.Errorf("%w: %w", errConfigInvalid, err)
	}
	return cfg, Sources{File: path}, nil
}

// loadFile reads the explicit or project config file.
func loadFile(workDir, configPath string) (Overrides, string, error) {
	path := filepath.Join(workDir, FileName)
	mustExist := false
	if configPath != "" {
		path = configPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		mustExist = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Overrides{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
			}
			return Overrides{}, "", nil
		}
		return Overrides{}, "", fmt.Errorf("%w %s: %w", errConfigFileRead, path, err)
	}

	ov, err := Parse(data)
	if err != nil {
		return Overrides{}, "", fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}
	return ov, path, nil
}

// Parse decodes a JSONC config document. Unknown keys are rejected.
func Parse(data []byte) (Overrides, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Overrides{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var ov Overrides
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ov); err != nil {
		return Overrides{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return ov, nil
}

func merge(base Config, ov Overrides) Config {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&base.DB, ov.DB)
	set(&base.Backend, ov.Backend)
	set(&base.DocTable, ov.DocTable)
	set(&base.BacklinkTable, ov.BacklinkTable)
	set(&base.Selector, ov.Selector)
	set(&base.InvalidPolicy, ov.InvalidPolicy)
	set(&base.RetryMaxElapsed, ov.RetryMaxElapsed)
	if ov.Verbose != nil {
		base.Verbose = *ov.Verbose
	}
	return base
}

// Validate checks every field that can be checked without opening storage.
func Validate(cfg Config) error {
	if cfg.DB == "" {
		return ErrEmptyDB
	}
	switch cfg.Backend {
	case BackendSQLite, BackendBolt:
	default:
		return fmt.Errorf("%w %q (want %q or %q)", ErrUnknownBackend, cfg.Backend, BackendSQLite, BackendBolt)
	}
	if _, err := engine.SelectorByName(cfg.Selector); err != nil {
		return err
	}
	if _, err := engine.ParseInvalidPolicy(cfg.InvalidPolicy); err != nil {
		return err
	}
	if _, err := time.ParseDuration(cfg.RetryMaxElapsed); err != nil {
		return fmt.Errorf("retry_max_elapsed: %w", err)
	}
	return nil
}

// RetryTimeout returns RetryMaxElapsed as a duration. Call after Validate.
func (c Config) RetryTimeout() time.Duration {
	d, _ := time.ParseDuration(c.RetryMaxElapsed)
	return d
}

// EngineOptions translates the merge settings into engine options.
func (c Config) EngineOptions() ([]engine.Option, error) {
	sel, err := engine.SelectorByName(c.Selector)
	if err != nil {
		return nil, err
	}
	policy, err := engine.ParseInvalidPolicy(c.InvalidPolicy)
	if err != nil {
		return nil, err
	}
	return []engine.Option{engine.WithSelector(sel), engine.WithInvalidPolicy(policy)}, nil
}

// Format returns the config as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}
	return string(data), nil
}
