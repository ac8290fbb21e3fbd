package models

// RequestLog is an immutable record of one handled gateway request.
// Rows are written in batches by the telemetry recorder and pruned by
// external housekeeping.
type RequestLog struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id,omitempty"`
	APIKeyID       string `json:"api_key_id,omitempty"`
	Endpoint       string `json:"endpoint"`
	Method         string `json:"method"`
	StatusCode     int    `json:"status_code"`
	DurationMs     int64  `json:"duration_ms"`
	RequestSize    int64  `json:"request_size,omitempty"`
	ResponseSize   int64  `json:"response_size,omitempty"`
	IPAddress      string `json:"ip_address"`
	UserAgent      string `json:"user_agent"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}
