package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/middleware"
)

// RouterConfig carries the pieces the middleware chain needs. Limiter,
// Metrics and Health may be nil.
type RouterConfig struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	Limiter        *ratelimit.Limiter
	Metrics        *metrics.Metrics
	Health         *health.Checker
}

// NewRouter builds the full HTTP handler.
//
// Route table:
//
//	GET  /regions
//	GET  /provinces?region_code=           GET /provinces/{region_code}
//	GET  /citi_muni?province_code=         GET /municipalities/{province_code}
//	GET  /barangays?municipality_code=     GET /barangays/{municipality_code}
//	GET  /search?level=&q=                 GET /search/{level}?q=
//	GET  /codes/{code}
//	GET  /api/v1/analytics                 → analytics service (proxy)
//	GET  /api/v1/cache/stats
//	POST /api/v1/cache/invalidate
//	GET  /health/live, /health/ready, /metrics
//
// Middleware chain (outermost first):
//
//	RequestID → Trace → CORS → RateLimit → Timeout → Metrics → mux
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /regions", h.Regions)
	mux.HandleFunc("GET /provinces", h.Provinces)
	mux.HandleFunc("GET /provinces/{region_code}", h.Provinces)
	mux.HandleFunc("GET /citi_muni", h.CitiesMunicipalities)
	mux.HandleFunc("GET /municipalities/{province_code}", h.CitiesMunicipalities)
	mux.HandleFunc("GET /barangays", h.Barangays)
	mux.HandleFunc("GET /barangays/{municipality_code}", h.Barangays)
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("GET /search/{level}", h.Search)
	mux.HandleFunc("GET /codes/{code}", h.Lookup)

	mux.HandleFunc("GET /api/v1/analytics", h.Analytics)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	if cfg.Health != nil {
		mux.HandleFunc("GET /health/live", cfg.Health.LiveHandler())
		mux.HandleFunc("GET /health/ready", cfg.Health.ReadyHandler())
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	var chain http.Handler = mux
	if cfg.Metrics != nil {
		chain = pkgmw.Metrics(cfg.Metrics)(chain)
	}
	chain = pkgmw.Timeout(cfg.RequestTimeout)(chain)
	if cfg.Limiter != nil {
		chain = RateLimit(cfg.Limiter, cfg.Metrics)(chain)
	}
	chain = CORS(DefaultCORSConfig(cfg.CORSOrigins))(chain)
	chain = pkgmw.Trace(slog.Default().With("component", "http"))(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
