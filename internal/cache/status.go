package cache

import (
	"time"

	"github.com/citypulse/eventcache/internal/listing"
)

// Overall health status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
)

// Status is the introspection snapshot returned by CacheStatus.
type Status struct {
	Populated   bool                            `json:"populated"`
	Size        int                             `json:"size"`
	RefreshedAt time.Time                       `json:"refreshed_at"`
	AgeMinutes  float64                         `json:"age_minutes"`
	Fresh       bool                            `json:"fresh"`
	Sources     map[string]listing.SourceHealth `json:"sources"`
}

// HealthReport is the full health view returned by HealthStatus.
type HealthReport struct {
	Status  string                          `json:"status"`
	Stats   listing.ScrapeStats             `json:"stats"`
	Sources map[string]listing.SourceHealth `json:"sources"`
}

// CacheStatus reports cache size, age, freshness, and a copy of all
// source health records.
func (s *Store) CacheStatus() Status {
	s.mu.RLock()
	snap := s.snapshot
	populated := s.populated
	s.mu.RUnlock()

	st := Status{
		Populated:   populated,
		Size:        len(snap.Events),
		RefreshedAt: snap.RefreshedAt,
		Sources:     s.tracker.Snapshot(),
	}
	if populated {
		age := s.clock.Now().Sub(snap.RefreshedAt)
		st.AgeMinutes = age.Minutes()
		st.Fresh = age < s.cfg.Freshness
	}
	return st
}

// HealthStatus reports the overall status: degraded when any source
// produced zero events last cycle, critical when all did.
func (s *Store) HealthStatus() HealthReport {
	s.mu.RLock()
	stats := s.stats
	s.mu.RUnlock()

	sources := s.tracker.Snapshot()
	failing := 0
	attempted := 0
	for _, rec := range sources {
		if rec.LastOutcome == listing.OutcomeUnknown {
			continue
		}
		attempted++
		if rec.LastOutcome != listing.OutcomeOK {
			failing++
		}
	}

	status := StatusOK
	switch {
	case attempted > 0 && failing == attempted:
		status = StatusCritical
	case failing > 0:
		status = StatusDegraded
	}

	return HealthReport{Status: status, Stats: stats, Sources: sources}
}

// RawCache returns the current snapshot without filtering.
func (s *Store) RawCache() listing.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}
