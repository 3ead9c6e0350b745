// Package cache implements the refresh orchestrator and the query
// service over the shared event snapshot.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/citypulse/eventcache/internal/fetch"
	"github.com/citypulse/eventcache/internal/health"
	"github.com/citypulse/eventcache/internal/listing"
	"github.com/citypulse/eventcache/internal/metrics"
	"github.com/citypulse/eventcache/internal/probe"
	"github.com/citypulse/eventcache/internal/registry"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxResults   = 20
	defaultFreshness    = 6 * time.Hour
)

// Config controls Store behavior.
type Config struct {
	FetchTimeout time.Duration
	MaxResults   int
	Freshness    time.Duration
	Location     *time.Location
}

// Store owns the shared cache snapshot and runs refresh cycles. It is
// the single writer of the snapshot, the scrape stats, and the health
// records; any goroutine may read them at any time.
type Store struct {
	reg      *registry.Registry
	checker  *probe.Checker
	tracker  *health.Tracker
	enricher listing.Enricher
	alerter  listing.Alerter
	ranker   listing.Ranker
	clock    listing.Clock
	logger   *zap.Logger
	cfg      Config

	// group is the single-flight guard: concurrent Refresh callers
	// join the in-flight cycle and share its snapshot.
	group singleflight.Group

	mu        sync.RWMutex
	snapshot  listing.Snapshot
	stats     listing.ScrapeStats
	populated bool
}

// New constructs a Store.
func New(
	reg *registry.Registry,
	checker *probe.Checker,
	tracker *health.Tracker,
	enricher listing.Enricher,
	alerter listing.Alerter,
	ranker listing.Ranker,
	clock listing.Clock,
	cfg Config,
	logger *zap.Logger,
) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = defaultFreshness
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	metrics.Init()
	return &Store{
		reg:      reg,
		checker:  checker,
		tracker:  tracker,
		enricher: enricher,
		alerter:  alerter,
		ranker:   ranker,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Refresh triggers or joins a refresh cycle and returns the resulting
// cache. Individual source failures are absorbed into health data;
// Refresh itself never fails.
//
// The cycle runs detached from the caller's context: a cycle always
// runs every source to completion before publishing, so a caller that
// goes away must not abort the shared work or clobber a good snapshot.
// Only the per-fetch and per-probe timeouts bound the cycle.
func (s *Store) Refresh(ctx context.Context) []listing.Event {
	v, _, _ := s.group.Do("refresh", func() (any, error) {
		return s.runCycle(context.WithoutCancel(ctx)), nil
	})
	return v.([]listing.Event)
}

// runCycle executes one complete refresh: fan-out, deterministic
// merge, enrichment, side-file persistence, atomic publish, stats and
// health update, and alert dispatch. Only the goroutine holding the
// single-flight guard ever runs it.
func (s *Store) runCycle(ctx context.Context) []listing.Event {
	start := s.clock.Now()
	order := s.reg.MergeOrder()
	s.logger.Info("refresh cycle started", zap.Int("sources", len(order)))

	results := make([]fetch.Result, len(order))
	var probeResults map[string]probe.Result

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		probeResults = s.checker.Check(ctx, s.reg.ProbeURLs())
	}()
	for i, desc := range order {
		wg.Add(1)
		go func(i int, desc registry.Descriptor) {
			defer wg.Done()
			results[i] = fetch.Run(ctx, desc, s.cfg.FetchTimeout)
		}(i, desc)
	}
	wg.Wait()

	merged, raw := mergeResults(results)

	if s.enricher != nil {
		s.enricher.FillNeighborhoods(ctx, merged)
		if err := s.enricher.Persist(); err != nil {
			metrics.ObserveEnrichPersistFailure()
			s.logger.Error("enrichment state persist failed", zap.Error(err))
		}
	}

	now := s.clock.Now()
	stats := buildStats(results, start, now, raw, len(merged))

	s.mu.Lock()
	s.snapshot = listing.Snapshot{Events: merged, RefreshedAt: now}
	s.stats = stats
	s.populated = true
	s.mu.Unlock()

	s.recordHealth(results, probeResults, now)
	metrics.ObserveCycle(stats.Duration, raw, len(merged))

	s.dispatchAlerts(ctx, stats)

	s.logger.Info("refresh cycle finished",
		zap.Duration("duration", stats.Duration),
		zap.Int("raw_events", raw),
		zap.Int("deduped_events", len(merged)),
		zap.Int("sources_ok", stats.SourcesOK),
		zap.Int("sources_failed", stats.SourcesFailed),
		zap.Int("sources_empty", stats.SourcesEmpty),
	)
	return merged
}

// mergeResults walks fetch results in canonical merge order and keeps
// the first occurrence of every event identity. The outcome depends
// only on registry order, never on fetch completion timing.
func mergeResults(results []fetch.Result) ([]listing.Event, int) {
	raw := 0
	seen := make(map[string]struct{})
	merged := make([]listing.Event, 0)
	for _, res := range results {
		raw += len(res.Events)
		for _, ev := range res.Events {
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			merged = append(merged, ev)
		}
	}
	return merged, raw
}

func buildStats(results []fetch.Result, start, finish time.Time, raw, deduped int) listing.ScrapeStats {
	stats := listing.ScrapeStats{
		StartedAt:     start,
		FinishedAt:    finish,
		Duration:      finish.Sub(start),
		RawEvents:     raw,
		DedupedEvents: deduped,
	}
	for _, res := range results {
		switch res.Outcome {
		case listing.OutcomeOK:
			stats.SourcesOK++
		case listing.OutcomeEmpty:
			stats.SourcesEmpty++
		default:
			stats.SourcesFailed++
		}
	}
	return stats
}

func (s *Store) recordHealth(results []fetch.Result, probeResults map[string]probe.Result, now time.Time) {
	for _, res := range results {
		s.tracker.Observe(res.Label, res.Outcome, res.Err, res.Duration, len(res.Events), now)
		metrics.ObserveSourceFetch(res.Label, string(res.Outcome), res.Duration)
	}
	for label, pr := range probeResults {
		s.tracker.SetProbe(label, pr.StatusCode)
		metrics.ObserveProbe(label, pr.Duration)
	}
}

func (s *Store) dispatchAlerts(ctx context.Context, stats listing.ScrapeStats) {
	if s.alerter == nil {
		return
	}
	unhealthy := s.tracker.Unhealthy()
	if len(unhealthy) == 0 {
		return
	}
	if err := s.alerter.Notify(ctx, unhealthy, stats); err != nil {
		metrics.ObserveAlertDelivery(false)
		s.logger.Error("alert delivery failed",
			zap.Int("unhealthy", len(unhealthy)),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveAlertDelivery(true)
}
