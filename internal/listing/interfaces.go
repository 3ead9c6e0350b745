package listing

import (
	"context"
	"time"
)

// Source is an external provider of listings. Fetch returns the full
// set of events currently advertised by the provider, or an error.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Event, error)
}

// Enricher fills missing neighborhoods on a merged batch of events,
// mutating them in place, and persists whatever it learned to a
// durable side-file.
type Enricher interface {
	FillNeighborhoods(ctx context.Context, events []Event)
	Persist() error
}

// Alerter delivers a notification about sources that have been
// unhealthy for several consecutive cycles. Delivery failures never
// affect the cache.
type Alerter interface {
	Notify(ctx context.Context, unhealthy []SourceHealth, stats ScrapeStats) error
}

// Ranker orders events by proximity to a target point. The ranking
// function is opaque to the cache core.
type Ranker interface {
	Rank(events []Event, target Target) []Event
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
