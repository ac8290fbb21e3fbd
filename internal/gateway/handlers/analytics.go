package handlers

import (
	"net/http"
	"strconv"
	"time"

	"iotgate/internal/gateway"
	"iotgate/internal/pkg/errors"
)

type AnalyticsHandler struct {
	analytics *gateway.AnalyticsService
}

func NewAnalyticsHandler(analytics *gateway.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview aggregates request telemetry for the caller's organization over
// the requested range, defaulting to the last 24 hours.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	now := time.Now().Unix()
	start := now - 24*60*60
	end := now

	if v := r.URL.Query().Get("start"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid start timestamp")
			return
		}
		start = n
	}
	if v := r.URL.Query().Get("end"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid end timestamp")
			return
		}
		end = n
	}
	if start > end {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "start must not be after end")
		return
	}

	topN, _ := strconv.Atoi(r.URL.Query().Get("top"))

	summary, err := h.analytics.Overview(rc.OrgID, start, end, topN)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to compute analytics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"analytics": summary})
}
