package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"iotgate/internal/engine/notify"
	"iotgate/internal/gateway"
	"iotgate/internal/pkg/errors"
	"iotgate/internal/platform/models"
	"iotgate/internal/platform/repositories"
)

type EndpointHandler struct {
	endpoints  *repositories.EndpointRepository
	dispatcher *notify.Dispatcher
}

func NewEndpointHandler(endpoints *repositories.EndpointRepository, dispatcher *notify.Dispatcher) *EndpointHandler {
	return &EndpointHandler{endpoints: endpoints, dispatcher: dispatcher}
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	endpoints, err := h.endpoints.ListByOrg(rc.OrgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to list endpoints")
		return
	}
	if endpoints == nil {
		endpoints = []*models.Endpoint{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"endpoints": endpoints})
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	ep, err := h.endpoints.GetByID(rc.OrgID, rc.Param("id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load endpoint")
		return
	}
	if ep == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Endpoint not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"endpoint": ep})
}

type endpointRequest struct {
	Name         string                `json:"name"`
	EndpointType string                `json:"endpoint_type"`
	Config       models.EndpointConfig `json:"config"`
	Active       *bool                 `json:"active"`
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body")
		return
	}
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Endpoint name is required")
		return
	}
	if err := req.Config.Validate(req.EndpointType); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error())
		return
	}

	ep := &models.Endpoint{
		OrganizationID: rc.OrgID,
		Name:           req.Name,
		EndpointType:   req.EndpointType,
		Config:         req.Config,
		Active:         true,
	}
	if req.Active != nil {
		ep.Active = *req.Active
	}

	if err := h.endpoints.Create(ep); err != nil {
		log.Error().Err(err).Str("org_id", rc.OrgID).Msg("failed to create endpoint")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to create endpoint")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"endpoint": ep})
}

func (h *EndpointHandler) Update(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	ep, err := h.endpoints.GetByID(rc.OrgID, rc.Param("id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load endpoint")
		return
	}
	if ep == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Endpoint not found")
		return
	}

	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body")
		return
	}
	if req.Name != "" {
		ep.Name = req.Name
	}
	if req.EndpointType != "" {
		ep.EndpointType = req.EndpointType
		ep.Config = req.Config
	}
	if req.Active != nil {
		ep.Active = *req.Active
	}
	if err := ep.Config.Validate(ep.EndpointType); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error())
		return
	}

	if err := h.endpoints.Update(rc.OrgID, ep); err != nil {
		if err == sql.ErrNoRows {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Endpoint not found")
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to update endpoint")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"endpoint": ep})
}

func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	if err := h.endpoints.Delete(rc.OrgID, rc.Param("id")); err != nil {
		if err == sql.ErrNoRows {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Endpoint not found")
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to delete endpoint")
		return
	}
	writeSuccess(w)
}

// Trigger fires a test delivery through the endpoint and records the
// outcome on the row.
func (h *EndpointHandler) Trigger(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	ep, err := h.endpoints.GetByID(rc.OrgID, rc.Param("id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load endpoint")
		return
	}
	if ep == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Endpoint not found")
		return
	}
	if !ep.Active {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Endpoint is not active")
		return
	}

	var data map[string]interface{}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&data)
	}

	result := h.dispatcher.Deliver(ep, "endpoint.test", data)
	if err := h.endpoints.RecordTriggerResult(ep.ID, time.Now().Unix(), result.Error); err != nil {
		log.Warn().Err(err).Str("endpoint_id", ep.ID).Msg("failed to record trigger result")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"delivery": result})
}
