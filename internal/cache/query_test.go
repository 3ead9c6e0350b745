package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/citypulse/eventcache/internal/listing"
	"github.com/citypulse/eventcache/internal/registry"
)

// Fixture clock pins "today" to 2024-06-07 UTC.
const (
	today    = "2024-06-07"
	tomorrow = "2024-06-08"
)

func TestEvents_ColdStartTriggersOneRefresh(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "s", events: []listing.Event{ev("e1", "Tonight", today)}}
	fx := newFixture(t, 3, registry.Descriptor{Label: "s", Source: src, Weight: 0.5})

	got := fx.store.Events(context.Background(), listing.Target{})
	require.Len(t, got, 1)
	require.Equal(t, int32(1), src.calls.Load())

	// A warm cache does not refetch.
	fx.store.Events(context.Background(), listing.Target{})
	require.Equal(t, int32(1), src.calls.Load())
}

func TestEvents_SameDayOnly(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "s", events: []listing.Event{
		ev("past", "Yesterday", "2024-06-06"),
		ev("now", "Tonight", today),
		ev("next", "Tomorrow", tomorrow),
	}}
	fx := newFixture(t, 3, registry.Descriptor{Label: "s", Source: src, Weight: 0.5})

	got := fx.store.Events(context.Background(), listing.Target{})
	require.Len(t, got, 1)
	require.Equal(t, "now", got[0].ID)
}

func TestEvents_DelegatesRanking(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "s", events: []listing.Event{
		ev("a", "A", today),
		ev("b", "B", today),
	}}
	fx := newFixture(t, 3, registry.Descriptor{Label: "s", Source: src, Weight: 0.5})

	got := fx.store.Events(context.Background(), listing.Target{Lat: 40.7, Lon: -74.0})
	require.Equal(t, int32(1), fx.ranker.calls.Load())
	// The fake ranker reverses, so b ranks first.
	require.Equal(t, []string{"b", "a"}, idsOf(got))
}

func TestEvents_CapsResults(t *testing.T) {
	t.Parallel()

	var events []listing.Event
	for i := 0; i < 30; i++ {
		events = append(events, ev(fmt.Sprintf("e%02d", i), fmt.Sprintf("Show %d", i), today))
	}
	src := &fakeSource{name: "s", events: events}
	fx := newFixture(t, 3, registry.Descriptor{Label: "s", Source: src, Weight: 0.5})

	got := fx.store.Events(context.Background(), listing.Target{})
	require.Len(t, got, 20)
}

func TestEvents_EmptyCacheIsValid(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, 3,
		registry.Descriptor{Label: "quiet", Source: &fakeSource{name: "quiet"}, Weight: 0.5},
	)

	got := fx.store.Events(context.Background(), listing.Target{})
	require.Empty(t, got)
}

func TestEvents_TodayComputedInCivilTimezone(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:00 UTC on June 8 is still June 7 in New York.
	src := &fakeSource{name: "s", events: []listing.Event{ev("now", "Tonight", today)}}
	fx := newFixture(t, 3, registry.Descriptor{Label: "s", Source: src, Weight: 0.5})
	fx.clock.now = time.Date(2024, 6, 8, 3, 0, 0, 0, time.UTC)
	fx.store.cfg.Location = ny

	got := fx.store.Events(context.Background(), listing.Target{})
	require.Len(t, got, 1)
}
