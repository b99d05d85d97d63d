// Package network tracks backend reachability: periodic health probes
// with adaptive backoff, candidate base URL discovery, and the
// online/offline state the coordinator routes on.
package network

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zerodaysoftware/storekit/internal/core/domain"
	"github.com/zerodaysoftware/storekit/internal/metrics"
)

// Prober issues a lightweight health check against a base URL.
type Prober interface {
	Probe(ctx context.Context, baseURL string) bool
}

// Config holds monitor settings.
type Config struct {
	BaseURL string `yaml:"base_url"`
	// Candidates is the ordered discovery list: the canonical hostname
	// first, IP-literal fallbacks after it.
	Candidates      []string      `yaml:"candidates"`
	BaseInterval    time.Duration `yaml:"base_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
	DiscoveryBatch  int           `yaml:"discovery_batch"`
}

// Monitor owns the process-wide connectivity state. Probe outcomes and
// explicit overrides are the only writers.
type Monitor struct {
	prober     Prober
	candidates []string
	log        *slog.Logger

	baseInterval    time.Duration
	maxInterval     time.Duration
	backoffMultiple float64
	discoveryBatch  int

	// onOnline fires when the monitor decides we are back online; the
	// client wires a queue drain here.
	onOnline   func(ctx context.Context)
	queueDepth func(ctx context.Context) int

	mu                  sync.RWMutex
	baseURL             string
	online              bool
	lastCheckedAt       time.Time
	consecutiveFailures int

	loopMu  sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewMonitor creates a monitor. State starts online: the first real
// failure, not an assumption, flips it.
func NewMonitor(prober Prober, cfg Config, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}

	baseInterval := cfg.BaseInterval
	if baseInterval == 0 {
		baseInterval = 30 * time.Second
	}
	maxInterval := cfg.MaxInterval
	if maxInterval == 0 {
		maxInterval = 2 * time.Minute
	}
	backoffMultiple := cfg.BackoffMultiple
	if backoffMultiple == 0 {
		backoffMultiple = 1.5
	}
	batch := cfg.DiscoveryBatch
	if batch == 0 {
		batch = 5
	}

	return &Monitor{
		prober:          prober,
		candidates:      cfg.Candidates,
		log:             log,
		baseInterval:    baseInterval,
		maxInterval:     maxInterval,
		backoffMultiple: backoffMultiple,
		discoveryBatch:  batch,
		baseURL:         cfg.BaseURL,
		online:          true,
	}
}

// SetOnOnline registers the callback fired on offline-to-online
// transitions and forced online overrides.
func (m *Monitor) SetOnOnline(fn func(ctx context.Context)) {
	m.onOnline = fn
}

// SetQueueDepth registers the queue depth source for status reports.
func (m *Monitor) SetQueueDepth(fn func(ctx context.Context) int) {
	m.queueDepth = fn
}

// BaseURL returns the currently adopted base URL.
func (m *Monitor) BaseURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseURL
}

// Online returns the last known connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Status returns a snapshot for the coordinator and UI indicators.
func (m *Monitor) Status(ctx context.Context) domain.NetworkStatus {
	m.mu.RLock()
	status := domain.NetworkStatus{
		IsOnline:            m.online,
		LastCheckedAt:       m.lastCheckedAt,
		ConsecutiveFailures: m.consecutiveFailures,
		BaseURL:             m.baseURL,
	}
	m.mu.RUnlock()

	if m.queueDepth != nil {
		status.QueueDepth = m.queueDepth(ctx)
	}
	return status
}

// Probe health-checks the current base URL and updates the state.
func (m *Monitor) Probe(ctx context.Context) bool {
	ok := m.prober.Probe(ctx, m.BaseURL())
	if ok {
		m.RecordSuccess(ctx)
	} else {
		metrics.ProbeFailuresTotal.Inc()
		m.RecordFailure()
	}
	return ok
}

// RecordSuccess marks the backend reachable and fires the online
// callback when we were offline before.
func (m *Monitor) RecordSuccess(ctx context.Context) {
	m.mu.Lock()
	wasOffline := !m.online
	m.online = true
	m.lastCheckedAt = time.Now()
	m.consecutiveFailures = 0
	m.mu.Unlock()

	if wasOffline {
		m.log.Info("backend reachable again", "base_url", m.BaseURL())
		if m.onOnline != nil {
			m.onOnline(ctx)
		}
	}
}

// RecordFailure marks the backend unreachable.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	wasOnline := m.online
	m.online = false
	m.lastCheckedAt = time.Now()
	m.consecutiveFailures++
	failures := m.consecutiveFailures
	m.mu.Unlock()

	if wasOnline {
		m.log.Warn("backend unreachable, going offline", "consecutive_failures", failures)
	}
}

// ForceOnline overrides the state and immediately attempts a drain.
func (m *Monitor) ForceOnline(ctx context.Context) {
	m.mu.Lock()
	m.online = true
	m.lastCheckedAt = time.Now()
	m.consecutiveFailures = 0
	m.mu.Unlock()

	m.log.Info("forced online")
	if m.onOnline != nil {
		m.onOnline(ctx)
	}
}

// ForceOffline overrides the state; monitoring keeps running so a later
// successful probe can recover.
func (m *Monitor) ForceOffline() {
	m.mu.Lock()
	m.online = false
	m.lastCheckedAt = time.Now()
	m.mu.Unlock()

	m.log.Info("forced offline")
}

// errFound short-circuits a discovery batch once a candidate answers.
var errFound = errors.New("candidate found")

// DiscoverEndpoint probes the candidate list in bounded concurrent
// batches and adopts the first base URL that responds. The rest of a
// winning batch is cancelled, not awaited. If no candidate responds the
// current base URL is retained.
func (m *Monitor) DiscoverEndpoint(ctx context.Context) string {
	current := m.BaseURL()
	if len(m.candidates) == 0 {
		return current
	}

	m.log.Info("discovering endpoint", "candidates", len(m.candidates))

	for start := 0; start < len(m.candidates); start += m.discoveryBatch {
		end := start + m.discoveryBatch
		if end > len(m.candidates) {
			end = len(m.candidates)
		}

		if winner := m.probeBatch(ctx, m.candidates[start:end]); winner != "" {
			if winner != current {
				m.mu.Lock()
				m.baseURL = winner
				m.mu.Unlock()
				metrics.EndpointRotationsTotal.Inc()
				m.log.Info("adopted new base URL", "base_url", winner, "previous", current)
			}
			m.RecordSuccess(ctx)
			return winner
		}

		if ctx.Err() != nil {
			break
		}
	}

	m.log.Warn("no candidate responded, keeping base URL", "base_url", current)
	return current
}

func (m *Monitor) probeBatch(ctx context.Context, batch []string) string {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var winner string

	for _, candidate := range batch {
		candidate := candidate
		g.Go(func() error {
			if !m.prober.Probe(gctx, candidate) {
				return nil
			}
			mu.Lock()
			if winner == "" {
				winner = candidate
			}
			mu.Unlock()
			// Cancels the group context, aborting sibling probes.
			return errFound
		})
	}

	_ = g.Wait()
	return winner
}

// Start launches the periodic probe loop. Repeated calls while running
// are no-ops; Stop and Start may be cycled freely.
func (m *Monitor) Start(ctx context.Context) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	go m.run(loopCtx)
	m.log.Info("network monitoring started", "interval", m.baseInterval)
}

// Stop halts the probe loop.
func (m *Monitor) Stop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if !m.running {
		return
	}
	m.cancel()
	m.running = false
	m.log.Info("network monitoring stopped")
}

func (m *Monitor) run(ctx context.Context) {
	interval := m.baseInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if m.Probe(ctx) {
				interval = m.baseInterval
			} else {
				interval = m.nextInterval(interval)
				m.log.Debug("probe failed, backing off", "next_interval", interval)
			}
			timer.Reset(interval)
		}
	}
}

// nextInterval applies the adaptive backoff: multiply up to the ceiling.
func (m *Monitor) nextInterval(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * m.backoffMultiple)
	if next > m.maxInterval {
		next = m.maxInterval
	}
	return next
}
