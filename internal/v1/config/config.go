// Package config reads the fixed-position config.txt that drives the server,
// plus a handful of optional environment overrides for local development.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Bounds enforced on config.txt values. Out-of-range values abort startup.
const (
	MaxHostLen    = 40
	MinPort       = 1
	MaxPort       = 65535
	MinRooms      = 1
	MaxRooms      = 20
	MinClients    = 2
	MaxClients    = 50
	DefaultConfig = "config.txt"
)

// targetLines are the 1-based line numbers of config.txt holding, in order:
// listen host, listen port, max_rooms, max_clients. The surrounding lines are
// free-form labels for operators.
var targetLines = [4]int{2, 5, 8, 11}

// Config holds the validated server configuration.
type Config struct {
	// From config.txt
	Host       string
	Port       int
	MaxRooms   int
	MaxClients int

	// Optional environment overrides
	GoEnv       string
	MetricsAddr string
	CertFile    string
	KeyFile     string
}

// Addr returns the host:port the listener binds.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load parses the fixed-position config file and applies environment
// overrides. All violations are collected and reported in one error.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	values, err := readTargetLines(file)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	var errors []string

	cfg.Host = values[0]
	if cfg.Host == "" {
		errors = append(errors, "listen host is required")
	} else if len(cfg.Host) > MaxHostLen {
		errors = append(errors, fmt.Sprintf("listen host must be at most %d characters (got %d)", MaxHostLen, len(cfg.Host)))
	}

	cfg.Port, err = strconv.Atoi(values[1])
	if err != nil || cfg.Port < MinPort || cfg.Port > MaxPort {
		errors = append(errors, fmt.Sprintf("listen port must be a number between %d and %d (got '%s')", MinPort, MaxPort, values[1]))
	}

	cfg.MaxRooms, err = strconv.Atoi(values[2])
	if err != nil || cfg.MaxRooms < MinRooms || cfg.MaxRooms > MaxRooms {
		errors = append(errors, fmt.Sprintf("max_rooms must be a number between %d and %d (got '%s')", MinRooms, MaxRooms, values[2]))
	}

	cfg.MaxClients, err = strconv.Atoi(values[3])
	if err != nil || cfg.MaxClients < MinClients || cfg.MaxClients > MaxClients {
		errors = append(errors, fmt.Sprintf("max_clients must be a number between %d and %d (got '%s')", MinClients, MaxClients, values[3]))
	}

	applyEnv(cfg)

	if len(errors) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return cfg, nil
}

// readTargetLines scans the file once, collecting the four targeted lines.
func readTargetLines(file *os.File) ([4]string, error) {
	var values [4]string

	scanner := bufio.NewScanner(file)
	line := 0
	target := 0
	for scanner.Scan() && target < len(targetLines) {
		line++
		if line == targetLines[target] {
			values[target] = strings.TrimRight(scanner.Text(), "\r\n")
			target++
		}
	}
	if err := scanner.Err(); err != nil {
		return values, fmt.Errorf("config: read: %w", err)
	}
	if target < len(targetLines) {
		return values, fmt.Errorf("config: file ends before line %d", targetLines[target])
	}

	return values, nil
}

// applyEnv layers optional environment settings over the file configuration.
func applyEnv(cfg *Config) {
	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.CertFile = getEnvOrDefault("CERT_FILE", "server.crt")
	cfg.KeyFile = getEnvOrDefault("KEY_FILE", "server.key")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
