package handlers

import (
	"encoding/json"
	"net/http"

	"iotgate/internal/engine/storage"
	"iotgate/internal/gateway"
	"iotgate/internal/pkg/errors"
	"iotgate/internal/platform/models"
	"iotgate/internal/platform/repositories"
)

type FilesHandler struct {
	profiles *repositories.StorageProfileRepository
	store    *storage.Local
}

func NewFilesHandler(profiles *repositories.StorageProfileRepository, store *storage.Local) *FilesHandler {
	return &FilesHandler{profiles: profiles, store: store}
}

func (h *FilesHandler) ListProfiles(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	profiles, err := h.profiles.ListByOrg(rc.OrgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to list storage profiles")
		return
	}
	if profiles == nil {
		profiles = []*models.StorageProfile{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}

func (h *FilesHandler) GetProfile(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	profile, err := h.profiles.GetByID(rc.OrgID, rc.Param("id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load storage profile")
		return
	}
	if profile == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Storage profile not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profile": profile})
}

type profileRequest struct {
	Name      string `json:"name"`
	RootPath  string `json:"root_path"`
	MaxSizeMB int    `json:"max_size_mb"`
}

func (h *FilesHandler) CreateProfile(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body")
		return
	}
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Profile name is required")
		return
	}

	profile := &models.StorageProfile{
		OrganizationID: rc.OrgID,
		Name:           req.Name,
		RootPath:       req.RootPath,
		MaxSizeMB:      req.MaxSizeMB,
	}
	if err := h.profiles.Create(profile); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to create storage profile")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"profile": profile})
}

// ListFiles lists files under the org's default (oldest) storage profile.
// A profile query parameter selects a specific one.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	h.list(w, r, rc, r.URL.Query().Get("path"))
}

// Browse is the wildcard form of ListFiles: the path comes from the URL
// remainder instead of a query parameter.
func (h *FilesHandler) Browse(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	h.list(w, r, rc, rc.Param("*"))
}

func (h *FilesHandler) list(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, subPath string) {
	var profile *models.StorageProfile
	var err error

	if profileID := r.URL.Query().Get("profile"); profileID != "" {
		profile, err = h.profiles.GetByID(rc.OrgID, profileID)
	} else {
		var profiles []*models.StorageProfile
		profiles, err = h.profiles.ListByOrg(rc.OrgID)
		if err == nil && len(profiles) > 0 {
			profile = profiles[0]
		}
	}
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load storage profile")
		return
	}
	if profile == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "No storage profile configured")
		return
	}

	files, err := h.store.List(profile, subPath)
	if err != nil {
		if err == storage.ErrInvalidPath {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid path")
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}
