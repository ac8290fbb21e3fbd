package gateway

import (
	"sort"
	"time"

	"iotgate/internal/platform/repositories"
)

type EndpointCount struct {
	Endpoint string `json:"endpoint"`
	Count    int    `json:"count"`
}

type HourlyCount struct {
	Hour  int64 `json:"hour"` // unix timestamp of the hour bucket start
	Count int   `json:"count"`
}

type UsageSummary struct {
	TotalRequests int             `json:"total_requests"`
	AvgDurationMs float64         `json:"avg_duration_ms"`
	ErrorRate     float64         `json:"error_rate"`
	TopEndpoints  []EndpointCount `json:"top_endpoints"`
	StatusCounts  map[int]int     `json:"status_counts"`
	HourlySeries  []HourlyCount   `json:"hourly_series"`
	StartTime     int64           `json:"start_time"`
	EndTime       int64           `json:"end_time"`
}

// AnalyticsService computes usage summaries by scanning the request log in
// range. Nothing is maintained incrementally; the log is the source of
// truth.
type AnalyticsService struct {
	logs *repositories.RequestLogRepository
}

func NewAnalyticsService(logs *repositories.RequestLogRepository) *AnalyticsService {
	return &AnalyticsService{logs: logs}
}

func (s *AnalyticsService) Overview(orgID string, start, end int64, topN int) (*UsageSummary, error) {
	if topN <= 0 {
		topN = 10
	}

	entries, err := s.logs.ListByOrgRange(orgID, start, end)
	if err != nil {
		return nil, err
	}

	summary := &UsageSummary{
		StatusCounts: make(map[int]int),
		StartTime:    start,
		EndTime:      end,
	}

	endpointCounts := make(map[string]int)
	hourlyCounts := make(map[int64]int)
	var totalDuration int64
	var errorCount int

	for _, e := range entries {
		summary.TotalRequests++
		totalDuration += e.DurationMs
		summary.StatusCounts[e.StatusCode]++
		endpointCounts[e.Endpoint]++

		hour := time.Unix(e.CreatedAt, 0).UTC().Truncate(time.Hour).Unix()
		hourlyCounts[hour]++

		if e.StatusCode >= 400 {
			errorCount++
		}
	}

	if summary.TotalRequests > 0 {
		summary.AvgDurationMs = float64(totalDuration) / float64(summary.TotalRequests)
		summary.ErrorRate = float64(errorCount) / float64(summary.TotalRequests)
	}

	for endpoint, count := range endpointCounts {
		summary.TopEndpoints = append(summary.TopEndpoints, EndpointCount{Endpoint: endpoint, Count: count})
	}
	sort.Slice(summary.TopEndpoints, func(i, j int) bool {
		if summary.TopEndpoints[i].Count != summary.TopEndpoints[j].Count {
			return summary.TopEndpoints[i].Count > summary.TopEndpoints[j].Count
		}
		return summary.TopEndpoints[i].Endpoint < summary.TopEndpoints[j].Endpoint
	})
	if len(summary.TopEndpoints) > topN {
		summary.TopEndpoints = summary.TopEndpoints[:topN]
	}

	for hour, count := range hourlyCounts {
		summary.HourlySeries = append(summary.HourlySeries, HourlyCount{Hour: hour, Count: count})
	}
	sort.Slice(summary.HourlySeries, func(i, j int) bool {
		return summary.HourlySeries[i].Hour < summary.HourlySeries[j].Hour
	})

	return summary, nil
}
