package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCheck_CollectsStatusPerLabel(t *testing.T) {
	t.Parallel()

	var heads atomic.Int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	gone := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer gone.Close()

	c := New(Config{Timeout: time.Second}, zap.NewNop())
	results := c.Check(context.Background(), map[string]string{
		"up":   ok.URL,
		"down": gone.URL,
	})

	require.Len(t, results, 2)
	require.Equal(t, http.StatusOK, results["up"].StatusCode)
	require.Equal(t, http.StatusServiceUnavailable, results["down"].StatusCode)
	require.Equal(t, int32(1), heads.Load())
	require.Greater(t, results["up"].Duration, time.Duration(0))
}

func TestCheck_FailureIsolated(t *testing.T) {
	t.Parallel()

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	c := New(Config{Timeout: 200 * time.Millisecond}, zap.NewNop())
	results := c.Check(context.Background(), map[string]string{
		"up":         ok.URL,
		"unroutable": "http://127.0.0.1:1",
	})

	require.Equal(t, http.StatusOK, results["up"].StatusCode)
	require.NotEmpty(t, results["unroutable"].Err)
	require.Zero(t, results["unroutable"].StatusCode)
}

func TestCheck_NoURLs(t *testing.T) {
	t.Parallel()

	c := New(Config{}, zap.NewNop())
	results := c.Check(context.Background(), nil)
	require.Empty(t, results)
}

func TestCheck_IndependentTimeout(t *testing.T) {
	t.Parallel()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer fast.Close()

	c := New(Config{Timeout: 50 * time.Millisecond}, zap.NewNop())
	results := c.Check(context.Background(), map[string]string{
		"slow": slow.URL,
		"fast": fast.URL,
	})

	require.NotEmpty(t, results["slow"].Err)
	require.Equal(t, http.StatusOK, results["fast"].StatusCode)
}
