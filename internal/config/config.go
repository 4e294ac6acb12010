// Package config loads the node's runtime configuration from environment
// variables. There are no config files and no flags: every knob here affects
// process wiring only (listen port, data directory, logging, bootstrap
// peers), never consensus rules.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the full runtime configuration surface, loaded once at
// process start by Load.
type Config struct {
	// Port is the peer-protocol TCP listen port.
	Port int

	// DataDir is the persistence directory for the block store backend.
	DataDir string

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string

	// LogJSON selects structured JSON log output over the colored console
	// writer.
	LogJSON bool

	// SeedPeers is the bootstrap peer address list a fresh node dials on
	// startup, since it otherwise has nobody to sync from.
	SeedPeers []string
}

const (
	defaultPort     = 8333
	defaultDataDir  = "./data"
	defaultLogLevel = "info"
)

// Load reads the configuration from the environment: PORT, DATA_DIR,
// LOG_LEVEL, LOG_JSON, and SEED_PEERS. Every variable is optional and falls
// back to a default; PORT and LOG_JSON are validated if present.
func Load() (Config, error) {
	cfg := Config{
		Port:     defaultPort,
		DataDir:  defaultDataDir,
		LogLevel: defaultLogLevel,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("config: PORT %q is not a valid port number", v)
		}
		cfg.Port = port
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("LOG_JSON"); v != "" {
		jsonOut, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LOG_JSON %q is not a valid boolean", v)
		}
		cfg.LogJSON = jsonOut
	}

	if v := os.Getenv("SEED_PEERS"); v != "" {
		for _, addr := range strings.Split(v, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				cfg.SeedPeers = append(cfg.SeedPeers, addr)
			}
		}
	}

	return cfg, nil
}

// ListenAddr returns the address the peer-protocol listener should bind,
// in the form expected by net.Listen.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
