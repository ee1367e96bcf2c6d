package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, the config file, and environment variable loading.

const (
	// DefaultDNSPort is appended to a --dns nameserver without a port.
	DefaultDNSPort = 53

	// DefaultGracePeriod is how long a bridged command gets to exit
	// after SIGTERM before it is killed.
	DefaultGracePeriod = 2 * time.Second

	// DefaultProbeTimeout bounds each zero-I/O probe when -w is not
	// given, so a filtered port cannot stall a range scan.
	DefaultProbeTimeout = 3 * time.Second

	// DefaultMaxConcurrentProbes limits simultaneous zero-I/O probes.
	DefaultMaxConcurrentProbes = 100

	// EnvPrefix prefixes every environment variable tawqa reads.
	EnvPrefix = "TAWQA_"
)
