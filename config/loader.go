package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the TAWQA_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  Call it before applying CLI
// flags so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := env("HOST"); v != "" {
		cfg.Host = v
	}
	if v := env("PORT"); v != "" {
		cfg.RemotePort = v
	}
	if v := env("LOCAL_PORT"); v != "" {
		cfg.LocalPort = v
	}
	if v := env("LOCAL_ADDR"); v != "" {
		cfg.LocalAddr = v
	}
	if v := env("DNS"); v != "" {
		cfg.Nameserver = v
	}
	if v := env("EXEC"); v != "" {
		cfg.ShellPath = v
	}

	if envBool("LISTEN") {
		cfg.Listen = true
	}
	if envBool("UDP") {
		cfg.UDP = true
	}
	if envBool("NUMERIC") {
		cfg.NumericOnly = true
	}
	if envBool("ZERO_IO") {
		cfg.ZeroIO = true
	}
	if envBool("LOCAL_INTERACTIVE") {
		cfg.LocalInteractive = true
	}

	if v := envInt("WAIT"); v > 0 {
		cfg.WaitSeconds = v
	}
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ConfigPathFromEnv returns the config file named by TAWQA_CONFIG.
func ConfigPathFromEnv() string { return env("CONFIG") }

// ── helpers ──────────────────────────────────────────────────────────

func env(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func envInt(key string) int {
	v := env(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(env(key))
	return v == "1" || v == "true" || v == "yes"
}
