// Package health maintains rolling per-source health statistics.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/citypulse/eventcache/internal/listing"
)

// DefaultAlertThreshold is the consecutive zero-event run length at
// which a source is reported unhealthy.
const DefaultAlertThreshold = 3

// Tracker keeps one rolling SourceHealth record per registered source.
// Records are written only by the refresh cycle holding the
// single-flight guard; reads take copies.
type Tracker struct {
	mu        sync.Mutex
	records   map[string]*listing.SourceHealth
	threshold int
}

// NewTracker initializes a record for every label with an unknown
// outcome. Records are never reset afterwards.
func NewTracker(labels []string, threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultAlertThreshold
	}
	records := make(map[string]*listing.SourceHealth, len(labels))
	for _, label := range labels {
		records[label] = &listing.SourceHealth{
			Label:       label,
			LastOutcome: listing.OutcomeUnknown,
		}
	}
	return &Tracker{records: records, threshold: threshold}
}

// Observe records the end-of-cycle fetch result for one source:
// outcome classification, error text, duration, attempt time, lifetime
// counters, and the bounded history push. A run of zero-event outcomes
// increments ConsecutiveZeros; any outcome with events resets it.
func (t *Tracker) Observe(label string, outcome listing.Outcome, errText string, duration time.Duration, eventCount int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[label]
	if !ok {
		rec = &listing.SourceHealth{Label: label}
		t.records[label] = rec
	}

	rec.LastOutcome = outcome
	rec.LastError = errText
	rec.LastDuration = duration
	rec.LastAttempt = now
	rec.Attempts++
	if outcome == listing.OutcomeOK {
		rec.Successes++
	}
	if eventCount > 0 {
		rec.ConsecutiveZeros = 0
	} else {
		rec.ConsecutiveZeros++
	}

	rec.History = append(rec.History, outcome)
	if len(rec.History) > listing.HistoryLimit {
		rec.History = rec.History[len(rec.History)-listing.HistoryLimit:]
	}
}

// SetProbe records the latest reachability probe status for a source.
func (t *Tracker) SetProbe(label string, statusCode int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[label]; ok {
		rec.LastProbeStatus = statusCode
	}
}

// Unhealthy returns copies of every record whose consecutive
// zero-event run has reached the alert threshold, sorted by label.
// The condition re-fires on every cycle while the source stays
// unhealthy.
func (t *Tracker) Unhealthy() []listing.SourceHealth {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []listing.SourceHealth
	for _, rec := range t.records {
		if rec.ConsecutiveZeros >= t.threshold {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Snapshot returns a deep copy of all records keyed by label.
func (t *Tracker) Snapshot() map[string]listing.SourceHealth {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]listing.SourceHealth, len(t.records))
	for label, rec := range t.records {
		out[label] = copyRecord(rec)
	}
	return out
}

func copyRecord(rec *listing.SourceHealth) listing.SourceHealth {
	c := *rec
	c.History = append([]listing.Outcome(nil), rec.History...)
	return c
}
