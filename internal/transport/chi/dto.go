package chi

// ErrorCode is the machine-readable error class in an error body.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest    ErrorCode = "bad_request"
	ErrorCodeUnauthorized  ErrorCode = "unauthorized"
	ErrorCodeForbidden     ErrorCode = "forbidden"
	ErrorCodeDatabaseError ErrorCode = "database_error"
	ErrorCodeInternalError ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// IngestRequest is the body of POST /ingest.
type IngestRequest struct {
	Text *string `json:"text"`
}

// IngestResponse reports whether the document reached the index.
type IngestResponse struct {
	Status bool `json:"status"`
}

// ConsolidateResponse reports whether consolidation was triggered.
type ConsolidateResponse struct {
	Consolidated bool `json:"consolidated"`
}

// ValueItem is one search hit or suggestion.
type ValueItem struct {
	Value string `json:"value"`
}

// ReindexResponse counts re-pushed documents.
type ReindexResponse struct {
	Pushed int `json:"pushed"`
	Failed int `json:"failed"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Documents int64 `json:"documents"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
