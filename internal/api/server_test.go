package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/citypulse/eventcache/internal/cache"
	"github.com/citypulse/eventcache/internal/listing"
)

type fakeCache struct {
	events     []listing.Event
	lastTarget listing.Target
	refreshes  int
}

func (f *fakeCache) Refresh(context.Context) []listing.Event {
	f.refreshes++
	return f.events
}

func (f *fakeCache) Events(_ context.Context, target listing.Target) []listing.Event {
	f.lastTarget = target
	return f.events
}

func (f *fakeCache) CacheStatus() cache.Status {
	return cache.Status{Populated: true, Size: len(f.events), Fresh: true}
}

func (f *fakeCache) HealthStatus() cache.HealthReport {
	return cache.HealthReport{Status: cache.StatusOK}
}

func (f *fakeCache) RawCache() listing.Snapshot {
	return listing.Snapshot{Events: f.events, RefreshedAt: time.Unix(0, 0).UTC()}
}

type fakeSchedule struct {
	starts int
	stops  int
}

func (f *fakeSchedule) Start() { f.starts++ }
func (f *fakeSchedule) Stop()  { f.stops++ }

func newTestServer(t *testing.T) (*Server, *fakeCache, *fakeSchedule) {
	t.Helper()
	c := &fakeCache{events: []listing.Event{
		{ID: "a", Name: "Jazz Night", Venue: "Blue Room"},
		{ID: "b", Name: "Open Mic", Venue: "The Cellar"},
	}}
	sch := &fakeSchedule{}
	return NewServer(c, sch, zap.NewNop()), c, sch
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestGetEvents(t *testing.T) {
	t.Parallel()

	s, c, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/events?lat=40.758&lon=-73.9855")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.EqualValues(t, 2, body["count"])
	require.InDelta(t, 40.758, c.lastTarget.Lat, 1e-9)
	require.InDelta(t, -73.9855, c.lastTarget.Lon, 1e-9)
}

func TestGetEvents_NoTargetIsValid(t *testing.T) {
	t.Parallel()

	s, c, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/events")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, c.lastTarget.Lat)
	require.Zero(t, c.lastTarget.Lon)
}

func TestGetEvents_BadCoordinate(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/events?lat=uptown")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeBody(t, rec)["error"], "decimal degrees")
}

func TestPostRefresh(t *testing.T) {
	t.Parallel()

	s, c, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/v1/refresh")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, c.refreshes)
	require.EqualValues(t, 2, decodeBody(t, rec)["count"])
}

func TestGetCacheStatus(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/cache/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var status cache.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.True(t, status.Populated)
	require.Equal(t, 2, status.Size)
}

func TestGetRawCache(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/cache/raw")

	require.Equal(t, http.StatusOK, rec.Code)
	var snap listing.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Events, 2)
}

func TestGetHealth(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var report cache.HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, cache.StatusOK, report.Status)
}

func TestScheduleStartStop(t *testing.T) {
	t.Parallel()

	s, _, sch := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/v1/schedule/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, sch.starts)

	rec = doRequest(t, s, http.MethodDelete, "/v1/schedule/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, sch.stops)
}

func TestSchedule_Unavailable(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeCache{}, nil, zap.NewNop())
	rec := doRequest(t, s, http.MethodPost, "/v1/schedule/")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnknownRouteIs404(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
