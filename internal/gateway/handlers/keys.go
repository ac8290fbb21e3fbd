package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"iotgate/internal/gateway"
	"iotgate/internal/pkg/errors"
	"iotgate/internal/platform/audit"
	"iotgate/internal/platform/config"
	"iotgate/internal/platform/models"
	"iotgate/internal/platform/repositories"
)

var validScopes = map[string]bool{
	models.ScopeRead:      true,
	models.ScopeWrite:     true,
	models.ScopeDevices:   true,
	models.ScopeKeys:      true,
	models.ScopeAnalytics: true,
}

type KeyHandler struct {
	keys     *repositories.APIKeyRepository
	quotas   *repositories.QuotaRepository
	logs     *repositories.RequestLogRepository
	tracker  *gateway.QuotaTracker
	audit    *audit.Logger
	quotaCfg config.QuotaConfig
}

func NewKeyHandler(keys *repositories.APIKeyRepository, quotas *repositories.QuotaRepository, logs *repositories.RequestLogRepository, tracker *gateway.QuotaTracker, auditLog *audit.Logger, quotaCfg config.QuotaConfig) *KeyHandler {
	return &KeyHandler{
		keys:     keys,
		quotas:   quotas,
		logs:     logs,
		tracker:  tracker,
		audit:    auditLog,
		quotaCfg: quotaCfg,
	}
}

func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	keys, err := h.keys.ListByOrg(rc.OrgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to list API keys")
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"api_keys": keys})
}

type createKeyRequest struct {
	Name       string   `json:"name"`
	Scopes     []string `json:"scopes"`
	Expiration string   `json:"expiration"` // "never", "30d", "90d", "1y"
}

func (h *KeyHandler) Create(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body")
		return
	}
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Key name is required")
		return
	}
	if len(req.Scopes) == 0 {
		req.Scopes = []string{models.ScopeRead}
	}
	for _, s := range req.Scopes {
		if !validScopes[s] {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown scope: "+s)
			return
		}
	}

	expiresAt, err := parseExpiration(req.Expiration)
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error())
		return
	}

	rawKey, keyHash, keyPrefix, err := gateway.GenerateAPIKey()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate key")
		return
	}

	key := &models.APIKey{
		OrganizationID: rc.OrgID,
		UserID:         rc.Credential.UserID,
		Name:           req.Name,
		KeyHash:        keyHash,
		KeyPrefix:      keyPrefix,
		Scopes:         req.Scopes,
		ExpiresAt:      expiresAt,
	}
	if err := h.keys.Create(key); err != nil {
		log.Error().Err(err).Str("org_id", rc.OrgID).Msg("failed to create api key")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to create API key")
		return
	}

	if err := h.tracker.ProvisionBuckets(key.ID, h.quotaCfg.HourlyLimit, h.quotaCfg.DailyLimit, h.quotaCfg.MonthlyLimit); err != nil {
		log.Error().Err(err).Str("api_key_id", key.ID).Msg("failed to provision quota buckets")
	}

	h.audit.Log(r, rc.OrgID, rc.Credential.UserID, "key.create", "api_key", key.ID, map[string]interface{}{"name": key.Name})

	// the raw secret is returned exactly once and never stored
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"api_key":  key,
		"full_key": rawKey,
	})
}

type updateKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

func (h *KeyHandler) Update(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	key, err := h.keys.GetByID(rc.OrgID, rc.Param("id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load API key")
		return
	}
	if key == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "API key not found")
		return
	}

	var req updateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body")
		return
	}
	if req.Name != "" {
		key.Name = req.Name
	}
	if len(req.Scopes) > 0 {
		for _, s := range req.Scopes {
			if !validScopes[s] {
				errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown scope: "+s)
				return
			}
		}
		key.Scopes = req.Scopes
	}

	if err := h.keys.Update(rc.OrgID, key.ID, key.Name, key.Scopes); err != nil {
		if err == sql.ErrNoRows {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "API key not found")
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to update API key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"api_key": key})
}

func (h *KeyHandler) Delete(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	keyID := rc.Param("id")

	if err := h.keys.Revoke(rc.OrgID, keyID); err != nil {
		if err == sql.ErrNoRows {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "API key not found")
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to revoke API key")
		return
	}
	if err := h.quotas.DeleteByKey(keyID); err != nil {
		log.Warn().Err(err).Str("api_key_id", keyID).Msg("failed to delete quota buckets")
	}

	h.audit.Log(r, rc.OrgID, rc.Credential.UserID, "key.revoke", "api_key", keyID, nil)
	writeSuccess(w)
}

// Refresh regenerates the key secret. The old secret stops working the
// moment the new digest lands.
func (h *KeyHandler) Refresh(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	key, err := h.keys.GetByID(rc.OrgID, rc.Param("id"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load API key")
		return
	}
	if key == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "API key not found")
		return
	}

	rawKey, keyHash, keyPrefix, err := gateway.GenerateAPIKey()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate key")
		return
	}

	if err := h.keys.RotateSecret(rc.OrgID, key.ID, keyHash, keyPrefix); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to refresh API key")
		return
	}
	key.KeyPrefix = keyPrefix

	h.audit.Log(r, rc.OrgID, rc.Credential.UserID, "key.rotate", "api_key", key.ID, nil)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api_key":  key,
		"full_key": rawKey,
	})
}

func (h *KeyHandler) Usage(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.logs.ListByOrg(rc.OrgID, limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load usage")
		return
	}
	if entries == nil {
		entries = []*models.RequestLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"usage": entries})
}

func parseExpiration(raw string) (*int64, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "never" {
		return nil, nil
	}

	var days int
	switch {
	case strings.HasSuffix(raw, "d"):
		n, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid expiration")
		}
		days = n
	case strings.HasSuffix(raw, "y"):
		n, err := strconv.Atoi(strings.TrimSuffix(raw, "y"))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid expiration")
		}
		days = n * 365
	default:
		return nil, fmt.Errorf(`expiration must be "never" or a duration like "30d" or "1y"`)
	}

	exp := time.Now().Add(time.Duration(days) * 24 * time.Hour).Unix()
	return &exp, nil
}
