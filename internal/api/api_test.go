package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/psgc"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/redis"
)

func testRecords() []psgc.Record {
	return []psgc.Record{
		{Code: "0100000000", Name: "Region I (Ilocos Region)", Level: psgc.LevelRegion},
		{Code: "0102800000", Name: "Ilocos Norte", Level: psgc.LevelProvince},
		{Code: "0102801000", Name: "Adams", Level: psgc.LevelMunicipality},
		{Code: "0102801001", Name: "Adams (Pob.)", Level: psgc.LevelBarangay},
		{Code: "0102805000", Name: "City of Batac", Level: psgc.LevelCity},
		{Code: "0102805001", Name: "Aglipay (Pob.)", Level: psgc.LevelBarangay},
		{Code: "1300000000", Name: "National Capital Region (NCR)", Level: psgc.LevelRegion},
		{Code: "1381300000", Name: "Quezon City", Level: psgc.LevelCity},
		{Code: "1381300001", Name: "Alicia", Level: psgc.LevelBarangay},
	}
}

func newTestService(t *testing.T, opts ...psgc.Option) *psgc.Service {
	t.Helper()
	idx, err := psgc.NewIndex(testRecords())
	require.NoError(t, err)
	return psgc.NewService(idx, psgc.SchemeStandard, opts...)
}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.QueryEvent
}

func (r *recordingTracker) Track(e analytics.QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, pkgredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	s.data = make(map[string][]byte)
	return n, nil
}

func serve(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeEntries(t *testing.T, rec *httptest.ResponseRecorder) []psgc.Entry {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entries []psgc.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	return entries
}

func codes(entries []psgc.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Code
	}
	return out
}

func TestListEndpoints(t *testing.T) {
	router := NewRouter(New(newTestService(t)), RouterConfig{})

	tests := []struct {
		target string
		want   []string
	}{
		{"/regions", []string{"0100000000", "1300000000"}},
		{"/provinces", []string{"0102800000"}},
		{"/provinces?region_code=0100000000", []string{"0102800000"}},
		{"/provinces/0100000000", []string{"0102800000"}},
		{"/citi_muni", []string{"0102801000", "0102805000", "1381300000"}},
		{"/citi_muni?province_code=0102800000", []string{"0102801000", "0102805000"}},
		{"/municipalities/0102800000", []string{"0102801000", "0102805000"}},
		{"/barangays?municipality_code=0102805000", []string{"0102805001"}},
		{"/barangays/1381300000", []string{"1381300001"}},
		{"/search?level=barangays&q=POB", []string{"0102801001", "0102805001"}},
		{"/search?level=Reg&q=ncr", []string{"1300000000"}},
		{"/search/municipalities?q=bat", []string{"0102805000"}},
		{"/search/regions?q=", []string{"0100000000", "1300000000"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(decodeEntries(t, serve(t, router, http.MethodGet, tt.target))))
		})
	}
}

func TestResponseShape(t *testing.T) {
	router := NewRouter(New(newTestService(t)), RouterConfig{})

	rec := serve(t, router, http.MethodGet, "/barangays/0102801000")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"code":"0102801001","name":"Adams (Pob.)","full_path":"Region I (Ilocos Region) > Ilocos Norte > Adams > Adams (Pob.)"}]`, rec.Body.String())
}

func TestEmptyResultsAreArrays(t *testing.T) {
	router := NewRouter(New(newTestService(t)), RouterConfig{})

	for _, target := range []string{
		"/provinces/1300000000",
		"/barangays/0102899000",
		"/search/barangays?q=atlantis",
	} {
		rec := serve(t, router, http.MethodGet, target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "[]\n", rec.Body.String(), target)
	}
}

func TestSearchValidation(t *testing.T) {
	strict := NewRouter(New(newTestService(t)), RouterConfig{})

	rec := serve(t, strict, http.MethodGet, "/search/barangays")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"query parameter 'q' is required"}`, rec.Body.String())

	rec = serve(t, strict, http.MethodGet, "/search?q=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, strict, http.MethodGet, "/search?level=Dist&q=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"unknown level \"Dist\""}`, rec.Body.String())

	permissive := NewRouter(New(newTestService(t, psgc.WithStrictLevels(false))), RouterConfig{})
	rec = serve(t, permissive, http.MethodGet, "/search?level=Dist&q=x")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestLookup(t *testing.T) {
	router := NewRouter(New(newTestService(t)), RouterConfig{})

	rec := serve(t, router, http.MethodGet, "/codes/1381300001")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":"1381300001","name":"Alicia","full_path":"National Capital Region (NCR) > Quezon City > Alicia"}`, rec.Body.String())

	rec = serve(t, router, http.MethodGet, "/codes/9999999999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"no record with code \"9999999999\""}`, rec.Body.String())
}

func TestCachedResponsesAndTracking(t *testing.T) {
	tracker := &recordingTracker{}
	qc := cache.New(newMemStore(), "test", time.Minute, nil)
	router := NewRouter(New(newTestService(t), WithCache(qc), WithTracker(tracker)), RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/search/regions?q=NCR", nil)
	req.Header.Set(pkgmw.RequestIDHeader, "req-1")
	first := httptest.NewRecorder()
	router.ServeHTTP(first, req)
	second := serve(t, router, http.MethodGet, "/search/regions?q=ncr")

	assert.Equal(t, first.Body.String(), second.Body.String())
	stats := qc.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	require.Len(t, tracker.events, 2)
	assert.Equal(t, analytics.OpSearch, tracker.events[0].Operation)
	assert.Equal(t, "regions", tracker.events[0].Level)
	assert.Equal(t, "NCR", tracker.events[0].Query)
	assert.Equal(t, "req-1", tracker.events[0].RequestID)
	assert.Equal(t, 1, tracker.events[0].Results)
	assert.False(t, tracker.events[0].CacheHit)
	assert.True(t, tracker.events[1].CacheHit)

	rec := serve(t, router, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hit_rate":"50.0%"`)

	rec = serve(t, router, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"invalidated","keys_deleted":1}`, rec.Body.String())
}

func TestErrorsAreTracked(t *testing.T) {
	tracker := &recordingTracker{}
	router := NewRouter(New(newTestService(t), WithTracker(tracker)), RouterConfig{})

	serve(t, router, http.MethodGet, "/codes/0000000001")
	require.Len(t, tracker.events, 1)
	assert.Equal(t, analytics.OpLookup, tracker.events[0].Operation)
	assert.Equal(t, http.StatusNotFound, tracker.events[0].Status)
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	router := NewRouter(New(newTestService(t)), RouterConfig{})

	rec := serve(t, router, http.MethodGet, "/api/v1/cache/stats")
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = serve(t, router, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyticsProxy(t *testing.T) {
	disabled := NewRouter(New(newTestService(t)), RouterConfig{})
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, disabled, http.MethodGet, "/api/v1/analytics").Code)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/analytics", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total_queries":3}`))
	}))
	defer backend.Close()
	target, err := url.Parse(backend.URL)
	require.NoError(t, err)

	router := NewRouter(New(newTestService(t), WithAnalyticsProxy(target)), RouterConfig{})
	rec := serve(t, router, http.MethodGet, "/api/v1/analytics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_queries":3}`, rec.Body.String())
}

func TestMiddlewareChain(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	limiter := ratelimit.New(2, time.Minute)
	t.Cleanup(limiter.Close)
	router := NewRouter(New(newTestService(t), WithMetrics(m)), RouterConfig{
		CORSOrigins:    []string{"https://maps.example.ph"},
		RequestTimeout: time.Second,
		Limiter:        limiter,
		Metrics:        m,
		Health:         health.NewChecker(),
	})

	t.Run("request id", func(t *testing.T) {
		rec := serve(t, router, http.MethodGet, "/health/live")
		assert.NotEmpty(t, rec.Header().Get(pkgmw.RequestIDHeader))
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/regions", nil)
		req.Header.Set("Origin", "https://maps.example.ph")
		req.RemoteAddr = "198.51.100.7:5000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://maps.example.ph", rec.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/regions", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		req.RemoteAddr = "198.51.100.8:5000"
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("rate limit", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			assert.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/regions").Code)
		}
		rec := serve(t, router, http.MethodGet, "/regions")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal))

		assert.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/health/ready").Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := serve(t, router, http.MethodGet, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `psgc_queries_total{operation="regions",result="ok"} 3`)
		assert.True(t, strings.Contains(body, `path="GET /regions"`), "routes are labelled by pattern")
		assert.NotContains(t, body, `status="429"`, "rejected requests never reach the mux")
	})
}
