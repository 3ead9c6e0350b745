// Package enrich fills missing neighborhoods on merged events using a
// seed table plus a learned venue->neighborhood map. The learned map
// survives restarts through a JSON side-file.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/citypulse/eventcache/internal/listing"
)

// LookupFunc resolves a venue name to a neighborhood via an external
// service. It may fail; failures leave the event unenriched.
type LookupFunc func(ctx context.Context, venue string) (string, error)

// Resolver implements listing.Enricher.
type Resolver struct {
	mu      sync.Mutex
	seed    map[string]string
	learned map[string]string
	dirty   bool
	path    string
	lookup  LookupFunc
	logger  *zap.Logger
}

// NewResolver builds a Resolver. path is the durable side-file for the
// learned map; seed is a static venue->neighborhood table; lookup is
// optional.
func NewResolver(path string, seed map[string]string, lookup LookupFunc, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized := make(map[string]string, len(seed))
	for venue, hood := range seed {
		normalized[normalizeVenue(venue)] = hood
	}
	return &Resolver{
		seed:    normalized,
		learned: make(map[string]string),
		path:    path,
		lookup:  lookup,
		logger:  logger,
	}
}

// Load reads the side-file written by a previous run. A missing file
// is not an error; the resolver simply starts with an empty learned
// map.
func (r *Resolver) Load() error {
	if r.path == "" {
		return nil
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read learned neighborhoods: %w", err)
	}
	learned := make(map[string]string)
	if err := json.Unmarshal(data, &learned); err != nil {
		return fmt.Errorf("decode learned neighborhoods: %w", err)
	}
	r.mu.Lock()
	r.learned = learned
	r.mu.Unlock()
	return nil
}

// FillNeighborhoods mutates the batch in place: events that already
// carry a neighborhood teach the resolver their venue; events missing
// one are resolved from seed, learned map, or the external lookup.
// One batched call per refresh cycle.
func (r *Resolver) FillNeighborhoods(ctx context.Context, events []listing.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range events {
		venue := normalizeVenue(events[i].Venue)
		if venue == "" {
			continue
		}
		if events[i].Neighborhood != "" {
			if _, known := r.learned[venue]; !known {
				if _, seeded := r.seed[venue]; !seeded {
					r.learned[venue] = events[i].Neighborhood
					r.dirty = true
				}
			}
			continue
		}
		if hood, ok := r.seed[venue]; ok {
			events[i].Neighborhood = hood
			continue
		}
		if hood, ok := r.learned[venue]; ok {
			events[i].Neighborhood = hood
			continue
		}
		if r.lookup == nil {
			continue
		}
		hood, err := r.lookup(ctx, events[i].Venue)
		if err != nil || hood == "" {
			if err != nil {
				r.logger.Debug("neighborhood lookup failed",
					zap.String("venue", events[i].Venue),
					zap.Error(err),
				)
			}
			continue
		}
		events[i].Neighborhood = hood
		r.learned[venue] = hood
		r.dirty = true
	}
}

// Persist writes the learned map to the side-file. It is a no-op when
// nothing new was learned since the last write.
func (r *Resolver) Persist() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" || !r.dirty || len(r.learned) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(r.learned, "", "  ")
	if err != nil {
		return fmt.Errorf("encode learned neighborhoods: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("write learned neighborhoods: %w", err)
	}
	r.dirty = false
	return nil
}

// exportLearned returns a copy of the learned map.
func (r *Resolver) exportLearned() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.learned))
	for venue, hood := range r.learned {
		out[venue] = hood
	}
	return out
}

func normalizeVenue(venue string) string {
	return strings.ToLower(strings.TrimSpace(venue))
}
