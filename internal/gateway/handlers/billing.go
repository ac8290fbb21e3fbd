package handlers

import (
	"net/http"

	"iotgate/internal/gateway"
	"iotgate/internal/pkg/errors"
	"iotgate/internal/platform/models"
	"iotgate/internal/platform/repositories"
)

type BillingHandler struct {
	billing *repositories.BillingRepository
}

func NewBillingHandler(billing *repositories.BillingRepository) *BillingHandler {
	return &BillingHandler{billing: billing}
}

func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	plans, err := h.billing.ListPlans()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to list plans")
		return
	}
	if plans == nil {
		plans = []*models.BillingPlan{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	sub, err := h.billing.GetSubscriptionByOrg(rc.OrgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load subscription")
		return
	}
	if sub == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "No subscription found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subscription": sub})
}
