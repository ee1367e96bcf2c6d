package netcat

import (
	"context"
	"sync"
	"time"

	"tawqa/config"
	ncerr "tawqa/internal/errors"
)

// ProbeFunc checks one port and returns nil when something answered.
type ProbeFunc func(ctx context.Context, port uint16) error

// ScanResult records whether a single port is open.
type ScanResult struct {
	Port int
	Open bool
	Err  error
}

// handleScan runs the zero-I/O (-z) mode: connect, close, report.  A
// single port behaves like a connect that never relays; a lo-hi range
// is probed concurrently and succeeds when at least one port is open.
func (nc *NetCat) handleScan(ctx context.Context) error {
	host, err := nc.Resolver.Host(ctx, nc.Config.Host)
	if err != nil {
		return err
	}
	addr := host.Addr()

	probe := func(ctx context.Context, port uint16) error {
		conn, err := nc.Establisher.Connect(ctx, addr, port)
		if err != nil {
			return err
		}
		return conn.Close()
	}

	if _, _, ok := config.SplitPortRange(nc.Config.RemotePort); !ok {
		port, err := nc.Resolver.Port(ctx, nc.Config.RemotePort)
		if err != nil {
			return err
		}
		err = probe(ctx, port.Num)
		nc.Supervisor.Stats.ProbeResult(err == nil)
		if err != nil {
			return err
		}
		nc.Logger.Info("%s open", describe(host, addr, port))
		return nc.release(nc.Supervisor.Release())
	}

	pr, err := config.ParsePortRange(nc.Config.RemotePort)
	if err != nil {
		return err
	}
	timeout := nc.Establisher.Wait
	if timeout == 0 {
		timeout = config.DefaultProbeTimeout
	}
	workers := config.DefaultMaxConcurrentProbes
	if nc.Establisher.LocalPort != 0 {
		workers = 1 // every probe binds the same source port
	}

	nc.Logger.Verbose("probing %s ports %d-%d", addr, pr.Start, pr.End)
	results := ScanPorts(ctx, pr.Expand(), timeout, workers, probe)

	open := 0
	for _, r := range results {
		nc.Supervisor.Stats.ProbeResult(r.Open)
		ps, _ := nc.Resolver.PortNumber(r.Port)
		if r.Open {
			open++
			nc.Logger.Info("%s open", describe(host, addr, ps))
		} else {
			nc.Logger.Verbose("%s: %v", describe(host, addr, ps), r.Err)
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if open == 0 {
		return ncerr.ErrNoOpenPorts
	}
	return nc.release(nc.Supervisor.Release())
}

// ScanPorts probes every port with at most workers probes in flight
// and returns results in the same order as the input slice.
func ScanPorts(ctx context.Context, ports []int, timeout time.Duration, workers int, probe ProbeFunc) []ScanResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]ScanResult, len(ports))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, port := range ports {
		wg.Add(1)
		go func(idx, p int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[idx] = ScanResult{Port: p, Err: err}
				return
			}
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if err := probe(probeCtx, uint16(p)); err != nil {
				results[idx] = ScanResult{Port: p, Err: err}
				return
			}
			results[idx] = ScanResult{Port: p, Open: true}
		}(i, port)
	}

	wg.Wait()
	return results
}
