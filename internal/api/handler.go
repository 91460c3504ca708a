// Package api serves the PSGC query service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/psgc"
	apperrors "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/tracing"
)

// Tracker receives one event per answered query.
type Tracker interface {
	Track(event analytics.QueryEvent)
}

type Handler struct {
	svc       *psgc.Service
	cache     *cache.QueryCache
	tracker   Tracker
	metrics   *metrics.Metrics
	analytics *httputil.ReverseProxy
	logger    *slog.Logger
}

type Option func(*Handler)

// WithCache serves list and search responses through c.
func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

// WithTracker reports every query to t.
func WithTracker(t Tracker) Option {
	return func(h *Handler) { h.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithAnalyticsProxy forwards /api/v1/analytics to the analytics service.
func WithAnalyticsProxy(target *url.URL) Option {
	return func(h *Handler) { h.analytics = httputil.NewSingleHostReverseProxy(target) }
}

func New(svc *psgc.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:    svc,
		logger: slog.Default().With("component", "psgc-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// query describes one request for logging, caching and analytics.
type query struct {
	op     string
	parent string
	level  string
	q      string
}

func (q query) cacheParams() []string {
	return []string{
		strings.TrimSpace(q.parent),
		strings.ToLower(strings.TrimSpace(q.level)),
		cache.NormalizeQuery(q.q),
	}
}

func (h *Handler) Regions(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, query{op: analytics.OpRegions}, func() ([]psgc.Entry, error) {
		return h.svc.ListRegions(), nil
	})
}

// Provinces accepts the region either as ?region_code= or as a path value.
func (h *Handler) Provinces(w http.ResponseWriter, r *http.Request) {
	q := query{op: analytics.OpProvinces, parent: param(r, "region_code")}
	h.list(w, r, q, func() ([]psgc.Entry, error) {
		return h.svc.ListProvinces(q.parent), nil
	})
}

func (h *Handler) CitiesMunicipalities(w http.ResponseWriter, r *http.Request) {
	q := query{op: analytics.OpCitiMuni, parent: param(r, "province_code")}
	h.list(w, r, q, func() ([]psgc.Entry, error) {
		return h.svc.ListCitiesMunicipalities(q.parent), nil
	})
}

func (h *Handler) Barangays(w http.ResponseWriter, r *http.Request) {
	q := query{op: analytics.OpBarangays, parent: param(r, "municipality_code")}
	h.list(w, r, q, func() ([]psgc.Entry, error) {
		return h.svc.ListBarangays(q.parent), nil
	})
}

// Search answers /search?level=&q= and /search/{level}?q=. The q parameter
// must be present; an empty q matches the whole level.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := query{op: analytics.OpSearch, level: param(r, "level")}
	values, ok := r.URL.Query()["q"]
	if !ok {
		h.fail(w, r, q, time.Now(), apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	q.q = values[0]
	if strings.TrimSpace(q.level) == "" {
		h.fail(w, r, q, time.Now(), apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'level' is required"))
		return
	}
	h.list(w, r, q, func() ([]psgc.Entry, error) {
		return h.svc.SearchByName(q.level, q.q)
	})
}

// Lookup returns the single record for the {code} path value.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := query{op: analytics.OpLookup, parent: r.PathValue("code")}
	entry, err := h.svc.Lookup(strings.TrimSpace(q.parent))
	if err != nil {
		h.fail(w, r, q, start, err)
		return
	}
	h.observe(r.Context(), q, start, 1, false, http.StatusOK)
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// Analytics proxies to the analytics service when one is configured.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		h.writeError(w, http.StatusServiceUnavailable, "analytics is disabled")
		return
	}
	h.analytics.ServeHTTP(w, r)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, q query, compute func() ([]psgc.Entry, error)) {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(r.Context(), "psgc."+q.op)
	defer span.End()

	var (
		entries  []psgc.Entry
		cacheHit bool
		err      error
	)
	if h.cache != nil {
		entries, cacheHit, err = h.cache.GetOrCompute(ctx, h.cache.Key(q.op, q.cacheParams()...), compute)
	} else {
		entries, err = compute()
	}
	if err != nil {
		h.fail(w, r, q, start, err)
		return
	}
	if entries == nil {
		entries = []psgc.Entry{}
	}

	span.SetAttr("results", len(entries))
	span.SetAttr("cache_hit", cacheHit)
	h.observe(ctx, q, start, len(entries), cacheHit, http.StatusOK)
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, q query, start time.Time, err error) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("query failed", "operation", q.op, "error", err)
	} else {
		log.Debug("query rejected", "operation", q.op, "status", status, "error", err)
	}
	h.observe(r.Context(), q, start, 0, false, status)
	h.writeError(w, status, apperrors.PublicMessage(err))
}

// observe records metrics, the request log line and the analytics event.
func (h *Handler) observe(ctx context.Context, q query, start time.Time, results int, cacheHit bool, status int) {
	elapsed := time.Since(start)

	if h.metrics != nil {
		result := metrics.ResultOK
		switch {
		case status >= http.StatusBadRequest:
			result = metrics.ResultError
		case results == 0:
			result = metrics.ResultEmpty
		}
		cacheStatus := "disabled"
		if h.cache != nil && q.op != analytics.OpLookup {
			cacheStatus = "miss"
			if cacheHit {
				cacheStatus = "hit"
			}
		}
		h.metrics.QueriesTotal.WithLabelValues(q.op, result).Inc()
		h.metrics.QueryDuration.WithLabelValues(q.op, cacheStatus).Observe(elapsed.Seconds())
		if status < http.StatusBadRequest {
			h.metrics.QueryResults.WithLabelValues(q.op).Observe(float64(results))
		}
	}

	logger.FromContext(ctx).Debug("query served",
		"operation", q.op,
		"parent", q.parent,
		"level", q.level,
		"q", q.q,
		"results", results,
		"cache_hit", cacheHit,
		"status", status,
		"latency", elapsed,
	)

	if h.tracker != nil {
		h.tracker.Track(analytics.QueryEvent{
			Operation: q.op,
			Parent:    q.parent,
			Level:     q.level,
			Query:     q.q,
			Status:    status,
			Results:   results,
			LatencyMs: float64(elapsed.Microseconds()) / 1000,
			CacheHit:  cacheHit,
			RequestID: logger.RequestID(ctx),
			Timestamp: time.Now().UTC(),
		})
	}
}

// param reads name from the path pattern first, then the query string.
func param(r *http.Request, name string) string {
	if v := r.PathValue(name); v != "" {
		return v
	}
	return r.URL.Query().Get(name)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
