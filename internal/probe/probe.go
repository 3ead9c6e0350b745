// Package probe issues lightweight reachability checks against source
// endpoints, independent of their full fetch. Probe results are
// advisory health signals and never gate whether a source's events
// are merged.
package probe

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// Result is the outcome of one reachability probe.
type Result struct {
	Label      string        `json:"label"`
	StatusCode int           `json:"status_code,omitempty"`
	Err        string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ms"`
}

// Checker probes source endpoints with HEAD requests. Probes run
// concurrently, each under its own timeout, paced by a shared rate
// limiter so a large registry does not burst.
type Checker struct {
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// Config controls Checker behavior.
type Config struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// New builds a Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}
	return &Checker{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		logger:  logger,
	}
}

// Check probes every URL concurrently and returns results keyed by
// label. A failure in one probe never affects the others.
func (c *Checker) Check(ctx context.Context, urls map[string]string) map[string]Result {
	results := make(map[string]Result, len(urls))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for label, url := range urls {
		wg.Add(1)
		go func(label, url string) {
			defer wg.Done()
			res := c.probe(ctx, label, url)
			mu.Lock()
			results[label] = res
			mu.Unlock()
		}(label, url)
	}
	wg.Wait()
	return results
}

func (c *Checker) probe(ctx context.Context, label, url string) Result {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{Label: label, Err: err.Error()}
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
	if err != nil {
		return Result{Label: label, Err: err.Error()}
	}
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Debug("probe failed",
			zap.String("source", label),
			zap.String("url", url),
			zap.Error(err),
		)
		return Result{Label: label, Err: err.Error(), Duration: elapsed}
	}
	defer func() { _ = resp.Body.Close() }()

	return Result{Label: label, StatusCode: resp.StatusCode, Duration: elapsed}
}
