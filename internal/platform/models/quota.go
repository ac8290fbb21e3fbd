package models

import "time"

const (
	WindowHourly  = "hourly"
	WindowDaily   = "daily"
	WindowMonthly = "monthly"
)

// QuotaBucket tracks consumption for one API key over one window. A key may
// carry several buckets at once; a request is admitted only when every
// bucket has headroom.
type QuotaBucket struct {
	ID           string `json:"id"`
	APIKeyID     string `json:"api_key_id"`
	WindowKind   string `json:"window_kind"`
	CurrentCount int    `json:"current_count"`
	LimitValue   int    `json:"limit_value"`
	ResetAt      int64  `json:"reset_at"`
	CreatedAt    int64  `json:"created_at"`
}

func (b *QuotaBucket) Remaining() int {
	if b.CurrentCount >= b.LimitValue {
		return 0
	}
	return b.LimitValue - b.CurrentCount
}

// NextWindowBoundary returns the start of the window after now for the
// given kind: top of the next hour, midnight next day, or midnight on the
// first of the next month. Unknown kinds fall back to hourly.
func NextWindowBoundary(kind string, now time.Time) time.Time {
	now = now.UTC()
	switch kind {
	case WindowDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	case WindowMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	default:
		return now.Truncate(time.Hour).Add(time.Hour)
	}
}
