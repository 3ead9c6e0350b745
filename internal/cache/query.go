package cache

import (
	"context"

	"github.com/citypulse/eventcache/internal/listing"
)

const civilDateLayout = "2006-01-02"

// Events answers a read request: lazy refresh on a cold cache, an
// upcoming-date filter, proximity ranking, a same-day narrowing in the
// configured civil timezone, and a cap on the result size.
func (s *Store) Events(ctx context.Context, target listing.Target) []listing.Event {
	s.mu.RLock()
	populated := s.populated
	s.mu.RUnlock()
	if !populated {
		s.Refresh(ctx)
	}

	s.mu.RLock()
	events := s.snapshot.Events
	s.mu.RUnlock()

	today := s.clock.Now().In(s.cfg.Location).Format(civilDateLayout)

	upcoming := make([]listing.Event, 0, len(events))
	for _, ev := range events {
		if ev.Date >= today {
			upcoming = append(upcoming, ev)
		}
	}

	ranked := upcoming
	if s.ranker != nil {
		ranked = s.ranker.Rank(upcoming, target)
	}

	tonight := make([]listing.Event, 0, len(ranked))
	for _, ev := range ranked {
		if ev.Date == today {
			tonight = append(tonight, ev)
		}
		if len(tonight) == s.cfg.MaxResults {
			break
		}
	}
	return tonight
}
