package analytics

import "time"

// Operations reported in QueryEvent.Operation.
const (
	OpRegions   = "regions"
	OpProvinces = "provinces"
	OpCitiMuni  = "citi_muni"
	OpBarangays = "barangays"
	OpSearch    = "search"
	OpLookup    = "lookup"
)

// QueryEvent describes one answered PSGC query.
type QueryEvent struct {
	Operation string    `json:"operation"`
	Parent    string    `json:"parent,omitempty"`
	Level     string    `json:"level,omitempty"`
	Query     string    `json:"query,omitempty"`
	Status    int       `json:"status"`
	Results   int       `json:"results"`
	LatencyMs float64   `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Key is the partition key for the event. Events for one operation land on
// the same partition.
func (e QueryEvent) Key() string {
	return e.Operation
}
