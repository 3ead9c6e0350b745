package enrich

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/citypulse/eventcache/internal/listing"
)

func TestFillNeighborhoods_FromSeed(t *testing.T) {
	t.Parallel()

	r := NewResolver("", map[string]string{"The Basement": "Riverside"}, nil, zap.NewNop())
	events := []listing.Event{
		{ID: "1", Venue: "the basement"},
		{ID: "2", Venue: "Unknown Spot"},
	}
	r.FillNeighborhoods(context.Background(), events)

	require.Equal(t, "Riverside", events[0].Neighborhood)
	require.Empty(t, events[1].Neighborhood)
}

func TestFillNeighborhoods_LearnsFromEnrichedEvents(t *testing.T) {
	t.Parallel()

	r := NewResolver("", nil, nil, zap.NewNop())
	batch1 := []listing.Event{
		{ID: "1", Venue: "Blue Room", Neighborhood: "Docklands"},
	}
	r.FillNeighborhoods(context.Background(), batch1)

	batch2 := []listing.Event{
		{ID: "2", Venue: "blue room"},
	}
	r.FillNeighborhoods(context.Background(), batch2)
	require.Equal(t, "Docklands", batch2[0].Neighborhood)
	require.Equal(t, map[string]string{"blue room": "Docklands"}, r.exportLearned())
}

func TestFillNeighborhoods_ExternalLookup(t *testing.T) {
	t.Parallel()

	lookups := 0
	lookup := func(_ context.Context, venue string) (string, error) {
		lookups++
		if venue == "Failing" {
			return "", errors.New("geocoder down")
		}
		return "Midtown", nil
	}
	r := NewResolver("", nil, lookup, zap.NewNop())

	events := []listing.Event{
		{ID: "1", Venue: "New Place"},
		{ID: "2", Venue: "Failing"},
	}
	r.FillNeighborhoods(context.Background(), events)

	require.Equal(t, "Midtown", events[0].Neighborhood)
	require.Empty(t, events[1].Neighborhood)
	require.Equal(t, 2, lookups)

	// Learned: the second batch resolves without the lookup.
	again := []listing.Event{{ID: "3", Venue: "new place"}}
	r.FillNeighborhoods(context.Background(), again)
	require.Equal(t, "Midtown", again[0].Neighborhood)
	require.Equal(t, 2, lookups)
}

func TestPersistAndLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "neighborhoods.json")
	r := NewResolver(path, nil, nil, zap.NewNop())
	r.FillNeighborhoods(context.Background(), []listing.Event{
		{ID: "1", Venue: "Blue Room", Neighborhood: "Docklands"},
	})
	require.NoError(t, r.Persist())

	fresh := NewResolver(path, nil, nil, zap.NewNop())
	require.NoError(t, fresh.Load())
	events := []listing.Event{{ID: "2", Venue: "Blue Room"}}
	fresh.FillNeighborhoods(context.Background(), events)
	require.Equal(t, "Docklands", events[0].Neighborhood)
}

func TestPersist_NoopWhenNothingLearned(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "neighborhoods.json")
	r := NewResolver(path, map[string]string{"Seeded": "Uptown"}, nil, zap.NewNop())
	r.FillNeighborhoods(context.Background(), []listing.Event{{ID: "1", Venue: "Seeded"}})
	require.NoError(t, r.Persist())

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	t.Parallel()

	r := NewResolver(filepath.Join(t.TempDir(), "absent.json"), nil, nil, zap.NewNop())
	require.NoError(t, r.Load())
}

func TestLoad_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	r := NewResolver(path, nil, nil, zap.NewNop())
	require.Error(t, r.Load())
}
