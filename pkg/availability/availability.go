// Package availability tracks reachability of the backend collaborators so
// the storefront can disable checkout actions while a dependency is down.
//
// Each registered probe runs in its own background goroutine at a fixed
// interval. Probes use failure/success thresholds to avoid flapping: a probe
// must fail consecutively failureThreshold times before being marked
// unreachable, and succeed successThreshold times before recovering.
package availability

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
)

// CheckFunc probes one dependency. It returns nil when the dependency is
// reachable.
type CheckFunc func(ctx context.Context) error

// probe holds the configuration and runtime state for a single check.
// run() is called from exactly one goroutine, so the consecutive counters
// need no synchronization; reachable and lastErr are read from arbitrary
// goroutines and use atomics.
type probe struct {
	name             string
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
	successThreshold int

	reachable atomic.Bool
	lastErr   atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func (p *probe) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.consecutiveOK = 0
		p.consecutiveFails++
		if p.consecutiveFails >= p.failureThreshold {
			p.reachable.Store(false)
		}
	} else {
		p.consecutiveFails = 0
		p.consecutiveOK++
		if p.consecutiveOK >= p.successThreshold {
			p.reachable.Store(true)
		}
	}
}

// Monitor runs reachability probes for the checkout's collaborators.
type Monitor struct {
	mu     sync.RWMutex
	probes []*probe
	cancel context.CancelFunc
}

// NewMonitor creates an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Add registers a probe. Probes start optimistic: a dependency is assumed
// reachable until it fails the threshold.
func (m *Monitor) Add(name string, timeout time.Duration, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &probe{
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: 3,
		successThreshold: 1,
	}
	p.reachable.Store(true)
	m.probes = append(m.probes, p)
}

// Start launches one goroutine per probe, each ticking at the given
// interval. Probes run once immediately.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, m.cancel = context.WithCancel(ctx)
	for _, p := range m.probes {
		go func(p *probe) {
			p.run(ctx)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.run(ctx)
				}
			}
		}(p)
	}
}

// Stop cancels all probe goroutines.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Ready reports whether every registered dependency is currently reachable.
func (m *Monitor) Ready() bool {
	m.mu.RLock()
	probes := m.probes
	m.mu.RUnlock()

	for _, p := range probes {
		if !p.reachable.Load() {
			return false
		}
	}
	return true
}

// Status returns the last error per probe; reachable probes map to nil.
func (m *Monitor) Status() map[string]error {
	m.mu.RLock()
	probes := m.probes
	m.mu.RUnlock()

	out := make(map[string]error, len(probes))
	for _, p := range probes {
		var err error
		if e := p.lastErr.Load(); e != nil {
			err = *e
		}
		if p.reachable.Load() {
			err = nil
		}
		out[p.name] = err
	}
	return out
}

// PingURL returns a CheckFunc that GETs the given URL and treats any
// response below 500 as reachable.
func PingURL(hc *http.Client, url string) CheckFunc {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errors.Wrap(err, "build request")
		}
		resp, err := hc.Do(req)
		if err != nil {
			return errors.Wrapf(err, "GET %s", url)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return errors.Errorf("GET %s: status %d", url, resp.StatusCode)
		}
		return nil
	}
}
