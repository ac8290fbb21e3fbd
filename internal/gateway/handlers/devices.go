package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"iotgate/internal/gateway"
	"iotgate/internal/pkg/errors"
	"iotgate/internal/platform/models"
	"iotgate/internal/platform/repositories"
)

type DeviceHandler struct {
	devices *repositories.DeviceRepository
}

func NewDeviceHandler(devices *repositories.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	devices, err := h.devices.ListByOrg(rc.OrgID)
	if err != nil {
		log.Error().Err(err).Str("org_id", rc.OrgID).Msg("failed to list devices")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to list devices")
		return
	}
	if devices == nil {
		devices = []*models.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	device, err := h.devices.GetByID(rc.OrgID, rc.Param("id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load device")
		return
	}
	if device == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Device not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"device": device})
}

type deviceRequest struct {
	Name        string `json:"name"`
	DeviceType  string `json:"device_type"`
	Status      string `json:"status"`
	FirmwareVer string `json:"firmware_version"`
}

func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body")
		return
	}
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Device name is required")
		return
	}

	device := &models.Device{
		OrganizationID: rc.OrgID,
		Name:           req.Name,
		DeviceType:     req.DeviceType,
		Status:         req.Status,
		FirmwareVer:    req.FirmwareVer,
	}
	if err := h.devices.Create(device); err != nil {
		log.Error().Err(err).Str("org_id", rc.OrgID).Msg("failed to create device")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to create device")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"device": device})
}

func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	device, err := h.devices.GetByID(rc.OrgID, rc.Param("id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load device")
		return
	}
	if device == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Device not found")
		return
	}

	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body")
		return
	}
	if req.Name != "" {
		device.Name = req.Name
	}
	if req.DeviceType != "" {
		device.DeviceType = req.DeviceType
	}
	if req.Status != "" {
		device.Status = req.Status
	}
	if req.FirmwareVer != "" {
		device.FirmwareVer = req.FirmwareVer
	}

	if err := h.devices.Update(rc.OrgID, device); err != nil {
		if err == sql.ErrNoRows {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Device not found")
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to update device")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"device": device})
}

func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	if err := h.devices.Delete(rc.OrgID, rc.Param("id")); err != nil {
		if err == sql.ErrNoRows {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Device not found")
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to delete device")
		return
	}
	writeSuccess(w)
}

// QRCode renders the device claim code as a PNG for pairing from the
// mobile app.
func (h *DeviceHandler) QRCode(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	device, err := h.devices.GetByID(rc.OrgID, rc.Param("id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load device")
		return
	}
	if device == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Device not found")
		return
	}

	png, err := qrcode.Encode("iotgate://claim/"+device.ClaimCode, qrcode.Medium, 512)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to render QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
