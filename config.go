package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultConfigFile = "library.toml"
	defaultDataFile   = "library.dat"
	defaultSQLiteFile = "library.db"
	defaultLogLevel   = "warn"
)

// Config holds the optional settings read from the TOML config file.
type Config struct {
	DataFile   string `toml:"data_file"`
	SQLiteFile string `toml:"sqlite_file"`
	LogLevel   string `toml:"log_level"`
}

// loadConfig decodes path and fills in defaults. A missing file yields the
// defaults.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if strings.TrimSpace(cfg.DataFile) == "" {
		cfg.DataFile = defaultDataFile
	}
	if strings.TrimSpace(cfg.SQLiteFile) == "" {
		cfg.SQLiteFile = defaultSQLiteFile
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if _, err := cfg.level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
