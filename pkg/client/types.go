package client

// ReindexResult reports a reindex pass.
type ReindexResult struct {
	Pushed int `json:"pushed"`
	Failed int `json:"failed"`
}

// Stats describes the stored corpus.
type Stats struct {
	Documents int64 `json:"documents"`
}

// HealthStatus represents the aggregated server health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}

// Healthy reports whether every component passed.
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }

type valueItem struct {
	Value string `json:"value"`
}

type ingestRequest struct {
	Text string `json:"text"`
}

type ingestResponse struct {
	Status bool `json:"status"`
}

type consolidateResponse struct {
	Consolidated bool `json:"consolidated"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
