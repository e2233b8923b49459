package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the TCPDRV_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  Call it BEFORE CLI flag
// parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TCPDRV_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("TCPDRV_PORT"); v > 0 && v <= 65535 {
		cfg.Port = uint16(v)
	}
	if v := envInt("TCPDRV_LOCAL_PORT"); v > 0 && v <= 65535 {
		cfg.LocalPort = uint16(v)
	}
	if v := os.Getenv("TCPDRV_MODE"); v != "" {
		cfg.Mode = Mode(strings.ToLower(v))
	}
	if envBool("TCPDRV_NO_DNS") {
		cfg.NoDNS = true
	}
	if envBool("TCPDRV_LAZY") {
		cfg.Lazy = true
	}
	if v := envInt("TCPDRV_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// Socket
	if v := envInt("TCPDRV_WORKERS"); v > 0 {
		cfg.Workers = v
	}
	if v := envInt("TCPDRV_RECV_BUFFER"); v > 0 {
		cfg.RecvBufferSize = v
	}
	if envBool("TCPDRV_REUSE_ADDR") {
		cfg.ReuseAddr = true
	}
	if v := envInt("TCPDRV_RETRIES"); v > 0 {
		cfg.Retries = v
	}

	// SSH tunnel
	if v := os.Getenv("TCPDRV_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("TCPDRV_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("TCPDRV_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("TCPDRV_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("TCPDRV_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("TCPDRV_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("TCPDRV_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool("TCPDRV_STATS") {
		cfg.Stats = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
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
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
