// Package registry holds the static, validated table of source
// descriptors and derives the canonical merge order used for
// deduplication priority.
package registry

import (
	"fmt"
	"sort"

	"github.com/citypulse/eventcache/internal/listing"
)

// Descriptor describes one source: identity, fetch capability, trust
// weight, tie-break rank, and an optional reachability URL.
type Descriptor struct {
	Label    string
	Source   listing.Source
	Weight   float64
	Rank     int
	ProbeURL string
}

// Registry is the validated descriptor table. It is built once at
// startup and read-only afterwards.
type Registry struct {
	descriptors []Descriptor
	order       []Descriptor
}

// New validates the descriptor list and derives the merge order. Any
// validation failure is fatal for the process; there is no runtime
// recovery from a malformed registry.
func New(descriptors []Descriptor) (*Registry, error) {
	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		if d.Label == "" {
			return nil, fmt.Errorf("registry: descriptor with empty label")
		}
		if _, dup := seen[d.Label]; dup {
			return nil, fmt.Errorf("registry: duplicate label %q", d.Label)
		}
		seen[d.Label] = struct{}{}
		if d.Source == nil {
			return nil, fmt.Errorf("registry: source %q has no fetch capability", d.Label)
		}
		if d.Weight < 0 || d.Weight > 1 {
			return nil, fmt.Errorf("registry: source %q weight %v outside [0,1]", d.Label, d.Weight)
		}
	}

	order := make([]Descriptor, len(descriptors))
	copy(order, descriptors)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Weight != order[j].Weight {
			return order[i].Weight > order[j].Weight
		}
		if order[i].Rank != order[j].Rank {
			return order[i].Rank < order[j].Rank
		}
		return order[i].Label < order[j].Label
	})

	return &Registry{descriptors: descriptors, order: order}, nil
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.descriptors)
}

// Labels returns the registered labels in declaration order.
func (r *Registry) Labels() []string {
	labels := make([]string, len(r.descriptors))
	for i, d := range r.descriptors {
		labels[i] = d.Label
	}
	return labels
}

// ProbeURLs returns label -> reachability URL for descriptors that
// declare one.
func (r *Registry) ProbeURLs() map[string]string {
	urls := make(map[string]string)
	for _, d := range r.descriptors {
		if d.ProbeURL != "" {
			urls[d.Label] = d.ProbeURL
		}
	}
	return urls
}

// MergeOrder returns descriptors sorted by weight descending, then
// rank ascending, then label ascending. This order is the single
// source of truth for dedup priority.
func (r *Registry) MergeOrder() []Descriptor {
	return r.order
}
