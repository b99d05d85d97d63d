// Package client is the coordination layer tying the executor, cache,
// offline queue and network monitor into one request surface. Every
// request settles in exactly one of three outcomes: success, queued for
// later replay, or failed.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/zerodaysoftware/storekit/internal/core/domain"
	"github.com/zerodaysoftware/storekit/internal/infra/api"
	"github.com/zerodaysoftware/storekit/internal/infra/cache"
	"github.com/zerodaysoftware/storekit/internal/infra/network"
	"github.com/zerodaysoftware/storekit/internal/infra/queue"
	"github.com/zerodaysoftware/storekit/internal/infra/storage"
	"github.com/zerodaysoftware/storekit/internal/metrics"
)

// outcomeCached is the metrics label for GETs settled from the cache
// fallback. The caller-visible outcome is still Success; only the
// counter distinguishes live data from stale.
const outcomeCached = "cached"

// Config holds coordinator settings.
type Config struct {
	// MaxRetries bounds additional attempts after the first. More than
	// one automatic retry punishes an already struggling backend.
	MaxRetries int             `yaml:"max_retries"`
	Backoff    []time.Duration `yaml:"backoff"`
}

// Client coordinates requests across the executor, cache, queue and
// monitor. It is safe for concurrent use.
type Client struct {
	exec    *api.Executor
	cache   *cache.Manager
	queue   *queue.Queue
	monitor *network.Monitor
	store   storage.Store
	log     *slog.Logger

	maxRetries int
	backoff    []time.Duration

	// sleep is swappable in tests
	sleep func(ctx context.Context, d time.Duration)
}

// New wires a client together. The monitor's online callback and queue
// depth source are bound here; callers should not rebind them.
func New(
	exec *api.Executor,
	cacheMgr *cache.Manager,
	q *queue.Queue,
	monitor *network.Monitor,
	store storage.Store,
	cfg Config,
	log *slog.Logger,
) *Client {
	if log == nil {
		log = slog.Default()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 1
	}
	backoff := cfg.Backoff
	if len(backoff) == 0 {
		backoff = []time.Duration{time.Second, 2 * time.Second}
	}

	c := &Client{
		exec:       exec,
		cache:      cacheMgr,
		queue:      q,
		monitor:    monitor,
		store:      store,
		log:        log,
		maxRetries: maxRetries,
		backoff:    backoff,
		sleep:      sleepCtx,
	}

	monitor.SetQueueDepth(func(ctx context.Context) int {
		return q.Len(ctx)
	})
	monitor.SetOnOnline(func(ctx context.Context) {
		// Detached so a long drain never blocks the probe loop.
		go func() {
			if err := c.DrainQueue(context.WithoutCancel(ctx)); err != nil {
				c.log.Warn("drain after reconnect failed", "error", err)
			}
		}()
	})

	return c
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Get performs a coordinated GET.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) *domain.Result {
	return c.Request(ctx, http.MethodGet, endpoint, params, nil)
}

// Post performs a coordinated POST.
func (c *Client) Post(ctx context.Context, endpoint string, body any) *domain.Result {
	return c.Request(ctx, http.MethodPost, endpoint, nil, body)
}

// Put performs a coordinated PUT.
func (c *Client) Put(ctx context.Context, endpoint string, body any) *domain.Result {
	return c.Request(ctx, http.MethodPut, endpoint, nil, body)
}

// Delete performs a coordinated DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string) *domain.Result {
	return c.Request(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Request runs the full coordination path for one logical request:
//
//   - Known offline: GETs are served from cache (up to the offline TTL),
//     mutations are queued without touching the network.
//   - Online: execute with bounded retries; connectivity failures get one
//     endpoint rediscovery pass before the final attempt.
//   - Exhausted GETs fall back to stale cache; exhausted mutations are
//     queued when the failure was connectivity-related, and failed
//     outright when the server rejected them.
func (c *Client) Request(ctx context.Context, method, endpoint string, params url.Values, body any) *domain.Result {
	isGet := method == http.MethodGet
	key := cache.Key(endpoint, params)

	if !c.monitor.Online() {
		if isGet {
			if payload := c.cache.GetStale(ctx, key); payload != nil {
				// Re-cache with the offline flag so the entry earns the
				// long TTL for as long as it keeps being served offline.
				c.cache.Set(ctx, key, payload, true)
				metrics.RequestsTotal.WithLabelValues(method, outcomeCached).Inc()
				return &domain.Result{
					Outcome:   domain.OutcomeSuccess,
					Data:      payload,
					Message:   "offline, serving cached data",
					FromCache: true,
				}
			}
			metrics.RequestsTotal.WithLabelValues(method, string(domain.OutcomeFailed)).Inc()
			return &domain.Result{
				Outcome: domain.OutcomeFailed,
				Message: "offline and no cached data available",
				Err:     &api.Error{Kind: api.KindNetwork, Message: "offline"},
			}
		}
		return c.enqueue(ctx, method, endpoint, body)
	}

	requestPath := endpoint
	if len(params) > 0 {
		requestPath = endpoint + "?" + params.Encode()
	}

	env, attempts, lastErr := c.execute(ctx, method, requestPath, body)
	if lastErr == nil {
		c.monitor.RecordSuccess(ctx)
		metrics.RequestsTotal.WithLabelValues(method, string(domain.OutcomeSuccess)).Inc()

		result := &domain.Result{
			Outcome:  domain.OutcomeSuccess,
			Data:     env.Data,
			Message:  env.Message,
			Attempts: attempts,
		}
		if isGet {
			c.cache.Set(ctx, key, env.Data, false)
		} else if c.queue.Len(ctx) > 0 {
			// A mutation just landed, so the backlog can likely land too.
			go func() {
				if err := c.DrainQueue(context.WithoutCancel(ctx)); err != nil {
					c.log.Warn("opportunistic drain failed", "error", err)
				}
			}()
		}
		return result
	}

	apiErr := api.Classify(lastErr, 0)
	if apiErr.ConnectivityRelated() {
		c.monitor.RecordFailure()
	}

	// Cache and queue only absorb retryable failures: a reachable server
	// that said 401/404/422 has given a definitive answer, and serving
	// stale data would mask it.
	if isGet && apiErr.Retryable() {
		if payload := c.cache.GetStale(ctx, key); payload != nil {
			c.log.Info("request failed, serving cached data", "endpoint", endpoint, "error", apiErr)
			c.cache.Set(ctx, key, payload, true)
			metrics.RequestsTotal.WithLabelValues(method, outcomeCached).Inc()
			return &domain.Result{
				Outcome:   domain.OutcomeSuccess,
				Data:      payload,
				Message:   "request failed, serving cached data",
				Err:       apiErr,
				FromCache: true,
				Attempts:  attempts,
			}
		}
	} else if !isGet && apiErr.ConnectivityRelated() {
		return c.enqueue(ctx, method, endpoint, body)
	}

	metrics.RequestsTotal.WithLabelValues(method, string(domain.OutcomeFailed)).Inc()
	return &domain.Result{
		Outcome:  domain.OutcomeFailed,
		Message:  apiErr.Message,
		Err:      apiErr,
		Attempts: attempts,
	}
}

// execute runs the attempt loop: initial try, bounded backoff retries for
// retryable failures, and a single endpoint rediscovery pass when the
// failure smells like reachability. Returns the last error when all
// attempts are spent.
func (c *Client) execute(ctx context.Context, method, endpoint string, body any) (*api.Envelope, int, error) {
	var lastErr error
	attempts := 0
	rediscovered := false
	maxAttempts := 1 + c.maxRetries

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, attempts, ctx.Err()
		}

		env, status, err := c.exec.Do(ctx, c.monitor.BaseURL(), endpoint, method, body)
		attempts++
		if err == nil {
			if !env.Success {
				// Reachable server, unhappy response. Not retryable.
				msg := env.Message
				if msg == "" {
					msg = env.Error
				}
				return env, attempts, &api.Error{Kind: api.KindUnknown, HTTPStatus: status, Message: msg}
			}
			return env, attempts, nil
		}

		apiErr := api.Classify(err, status)
		lastErr = apiErr
		if !apiErr.Retryable() {
			return env, attempts, apiErr
		}

		if apiErr.ConnectivityRelated() && !rediscovered {
			rediscovered = true
			before := c.monitor.BaseURL()
			if after := c.monitor.DiscoverEndpoint(ctx); after != before {
				// A fresh endpoint earns one extra attempt.
				c.log.Info("retrying against rediscovered endpoint", "base_url", after)
				maxAttempts++
			}
		}

		if attempt < maxAttempts-1 {
			metrics.RetriesTotal.Inc()
			delay := c.backoff[min(attempt, len(c.backoff)-1)]
			c.log.Debug("retrying request", "method", method, "endpoint", endpoint,
				"attempt", attempt+1, "delay", delay, "error", apiErr)
			c.sleep(ctx, delay)
		}
	}

	return nil, attempts, lastErr
}

func (c *Client) enqueue(ctx context.Context, method, endpoint string, body any) *domain.Result {
	raw, err := encodeBody(body)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, string(domain.OutcomeFailed)).Inc()
		return &domain.Result{
			Outcome: domain.OutcomeFailed,
			Message: "request body is not serializable",
			Err:     err,
		}
	}

	m, err := c.queue.Enqueue(ctx, endpoint, method, raw)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, string(domain.OutcomeFailed)).Inc()
		return &domain.Result{
			Outcome: domain.OutcomeFailed,
			Message: "failed to queue request for later delivery",
			Err:     err,
		}
	}

	metrics.RequestsTotal.WithLabelValues(method, string(domain.OutcomeQueued)).Inc()
	return &domain.Result{
		Outcome:  domain.OutcomeQueued,
		Message:  "offline, request queued for delivery",
		Mutation: m,
	}
}

func encodeBody(body any) (json.RawMessage, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return raw, nil
}

// EnqueueMutation buffers a mutation directly without attempting the
// network, regardless of connectivity state. Domain controllers use it
// for writes they want batched into the next drain.
func (c *Client) EnqueueMutation(ctx context.Context, endpoint, method string, body any) (*domain.Mutation, error) {
	raw, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	return c.queue.Enqueue(ctx, endpoint, method, raw)
}

// GetCached reads the cache directly without any network attempt. Useful
// for instant first paint while a refresh runs in the background.
func (c *Client) GetCached(ctx context.Context, endpoint string, params url.Values) json.RawMessage {
	return c.cache.Get(ctx, cache.Key(endpoint, params))
}

// DrainQueue replays buffered mutations against the current endpoint.
// Each replay carries its operation id for server-side deduplication.
func (c *Client) DrainQueue(ctx context.Context) error {
	return c.queue.Drain(ctx, func(ctx context.Context, m *domain.Mutation) error {
		env, status, err := c.exec.DoReplay(ctx, c.monitor.BaseURL(), m.Endpoint, m.Method, m.Body, m.OperationID)
		if err != nil {
			return api.Classify(err, status)
		}
		if !env.Success {
			msg := env.Message
			if msg == "" {
				msg = env.Error
			}
			return &api.Error{Kind: api.KindUnknown, HTTPStatus: status, Message: msg}
		}
		return nil
	})
}

// PendingMutations returns the buffered queue contents in replay order.
func (c *Client) PendingMutations(ctx context.Context) ([]*domain.Mutation, error) {
	return c.queue.Peek(ctx)
}

// NetworkStatus reports connectivity, last probe time and queue depth.
func (c *Client) NetworkStatus(ctx context.Context) domain.NetworkStatus {
	return c.monitor.Status(ctx)
}

// ForceOnline overrides the connectivity state and kicks off a drain.
func (c *Client) ForceOnline(ctx context.Context) {
	c.monitor.ForceOnline(ctx)
}

// ForceOffline overrides the connectivity state; all traffic is served
// from cache and queue until a probe or ForceOnline recovers it.
func (c *Client) ForceOffline() {
	c.monitor.ForceOffline()
}

// StartMonitoring launches the background probe loop.
func (c *Client) StartMonitoring(ctx context.Context) {
	c.monitor.Start(ctx)
}

// StopMonitoring halts the background probe loop.
func (c *Client) StopMonitoring() {
	c.monitor.Stop()
}

// SetAPIKey replaces the tenant credential at runtime.
func (c *Client) SetAPIKey(key string) {
	c.exec.SetAPIKey(key)
}

// ClearAPIKey removes the runtime credential.
func (c *Client) ClearAPIKey() {
	c.exec.ClearAPIKey()
}

// ClearCache drops the in-memory cache tier.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// ClearCacheByPrefix drops in-memory entries whose key contains pattern.
func (c *Client) ClearCacheByPrefix(pattern string) {
	c.cache.ClearPrefix(pattern)
}

// Close stops monitoring and releases the durable store.
func (c *Client) Close() error {
	c.monitor.Stop()
	return c.store.Close()
}
