package network

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeProber answers from a fixed reachability map.
type fakeProber struct {
	mu        sync.Mutex
	reachable map[string]bool
	calls     []string
	delay     time.Duration
}

func (p *fakeProber) Probe(ctx context.Context, baseURL string) bool {
	p.mu.Lock()
	p.calls = append(p.calls, baseURL)
	ok := p.reachable[baseURL]
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.delay):
		}
	}
	return ok
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func TestMonitor_ProbeUpdatesStatus(t *testing.T) {
	prober := &fakeProber{reachable: map[string]bool{"https://api.example.com": true}}
	m := NewMonitor(prober, Config{BaseURL: "https://api.example.com"}, nil)
	ctx := context.Background()

	if !m.Probe(ctx) {
		t.Fatal("probe should succeed")
	}
	status := m.Status(ctx)
	if !status.IsOnline {
		t.Error("status should be online")
	}
	if status.ConsecutiveFailures != 0 {
		t.Errorf("failures = %d, want 0", status.ConsecutiveFailures)
	}

	prober.reachable["https://api.example.com"] = false
	m.Probe(ctx)
	m.Probe(ctx)

	status = m.Status(ctx)
	if status.IsOnline {
		t.Error("status should be offline after failed probes")
	}
	if status.ConsecutiveFailures != 2 {
		t.Errorf("failures = %d, want 2", status.ConsecutiveFailures)
	}
}

func TestMonitor_NextIntervalBackoff(t *testing.T) {
	m := NewMonitor(&fakeProber{}, Config{
		BaseInterval:    30 * time.Second,
		MaxInterval:     2 * time.Minute,
		BackoffMultiple: 1.5,
	}, nil)

	interval := m.baseInterval
	var seen []time.Duration
	for i := 0; i < 5; i++ {
		interval = m.nextInterval(interval)
		seen = append(seen, interval)
	}

	want := []time.Duration{
		45 * time.Second,
		67500 * time.Millisecond,
		101250 * time.Millisecond,
		2 * time.Minute,
		2 * time.Minute,
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("step %d: interval = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestMonitor_DiscoverAdoptsFirstResponder(t *testing.T) {
	prober := &fakeProber{reachable: map[string]bool{
		"https://api.example.com": false,
		"https://10.0.0.1":        true,
		"https://10.0.0.2":        true,
	}}
	m := NewMonitor(prober, Config{
		BaseURL:    "https://api.example.com",
		Candidates: []string{"https://api.example.com", "https://10.0.0.1", "https://10.0.0.2"},
	}, nil)
	ctx := context.Background()

	adopted := m.DiscoverEndpoint(ctx)
	if adopted != "https://10.0.0.1" && adopted != "https://10.0.0.2" {
		t.Fatalf("adopted = %s, want a reachable candidate", adopted)
	}
	if m.BaseURL() != adopted {
		t.Errorf("BaseURL = %s, want %s", m.BaseURL(), adopted)
	}
	if !m.Online() {
		t.Error("successful discovery should mark the monitor online")
	}
}

func TestMonitor_DiscoverKeepsURLWhenAllFail(t *testing.T) {
	prober := &fakeProber{reachable: map[string]bool{}}
	m := NewMonitor(prober, Config{
		BaseURL:    "https://api.example.com",
		Candidates: []string{"https://api.example.com", "https://10.0.0.1"},
	}, nil)

	adopted := m.DiscoverEndpoint(context.Background())
	if adopted != "https://api.example.com" {
		t.Errorf("adopted = %s, want the original base URL retained", adopted)
	}
}

func TestMonitor_DiscoverShortCircuitsBatches(t *testing.T) {
	// First batch contains a responder; the second batch must never be probed.
	candidates := []string{"https://a", "https://b", "https://c", "https://d", "https://e", "https://f", "https://g"}
	prober := &fakeProber{reachable: map[string]bool{"https://b": true}}
	m := NewMonitor(prober, Config{
		BaseURL:        "https://a",
		Candidates:     candidates,
		DiscoveryBatch: 5,
	}, nil)

	adopted := m.DiscoverEndpoint(context.Background())
	if adopted != "https://b" {
		t.Fatalf("adopted = %s, want https://b", adopted)
	}
	if n := prober.callCount(); n > 5 {
		t.Errorf("probed %d candidates, second batch should not run", n)
	}
}

func TestMonitor_ForceOnlineFiresCallback(t *testing.T) {
	m := NewMonitor(&fakeProber{}, Config{BaseURL: "https://api.example.com"}, nil)

	var fired bool
	m.SetOnOnline(func(ctx context.Context) { fired = true })

	m.ForceOffline()
	if m.Online() {
		t.Fatal("ForceOffline should flip the state")
	}

	m.ForceOnline(context.Background())
	if !m.Online() {
		t.Error("ForceOnline should flip the state back")
	}
	if !fired {
		t.Error("ForceOnline should fire the online callback")
	}
}

func TestMonitor_OnlineCallbackOnRecovery(t *testing.T) {
	prober := &fakeProber{reachable: map[string]bool{"https://api.example.com": false}}
	m := NewMonitor(prober, Config{BaseURL: "https://api.example.com"}, nil)
	ctx := context.Background()

	var fired int
	m.SetOnOnline(func(ctx context.Context) { fired++ })

	m.Probe(ctx) // goes offline
	prober.mu.Lock()
	prober.reachable["https://api.example.com"] = true
	prober.mu.Unlock()

	m.Probe(ctx) // recovers
	if fired != 1 {
		t.Errorf("callback fired %d times, want 1", fired)
	}

	m.Probe(ctx) // still online, no transition
	if fired != 1 {
		t.Errorf("callback fired %d times on steady state, want 1", fired)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	prober := &fakeProber{reachable: map[string]bool{"https://api.example.com": true}}
	m := NewMonitor(prober, Config{
		BaseURL:      "https://api.example.com",
		BaseInterval: 10 * time.Millisecond,
	}, nil)
	ctx := context.Background()

	m.Start(ctx)
	m.Start(ctx) // second start is a no-op

	time.Sleep(50 * time.Millisecond)
	m.Stop()
	m.Stop() // second stop is a no-op

	if prober.callCount() == 0 {
		t.Error("probe loop never ran")
	}

	// Restartable after Stop.
	count := prober.callCount()
	m.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	if prober.callCount() == count {
		t.Error("probe loop did not resume after restart")
	}
}

func TestMonitor_QueueDepthInStatus(t *testing.T) {
	m := NewMonitor(&fakeProber{}, Config{BaseURL: "https://api.example.com"}, nil)
	m.SetQueueDepth(func(ctx context.Context) int { return 7 })

	if got := m.Status(context.Background()).QueueDepth; got != 7 {
		t.Errorf("QueueDepth = %d, want 7", got)
	}
}
