package handlers

import (
	"net/http"

	"iotgate/internal/gateway"
	"iotgate/internal/pkg/errors"
	"iotgate/internal/platform/models"
	"iotgate/internal/platform/repositories"
)

type OrgHandler struct {
	orgs        *repositories.OrganizationRepository
	memberships *repositories.MembershipRepository
}

func NewOrgHandler(orgs *repositories.OrganizationRepository, memberships *repositories.MembershipRepository) *OrgHandler {
	return &OrgHandler{orgs: orgs, memberships: memberships}
}

func (h *OrgHandler) List(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	var orgs []*models.Organization
	var err error

	if rc.Credential.Kind == gateway.CredentialSession {
		orgs, err = h.orgs.ListByUser(rc.Credential.UserID)
	} else {
		// an API key sees only its owning organization
		var org *models.Organization
		org, err = h.orgs.GetByID(rc.OrgID)
		if org != nil {
			orgs = []*models.Organization{org}
		}
	}
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to list organizations")
		return
	}
	if orgs == nil {
		orgs = []*models.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"organizations": orgs})
}

func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	orgID := rc.Param("id")
	if !h.canAccess(rc, orgID) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Organization not found")
		return
	}

	org, err := h.orgs.GetByID(orgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to load organization")
		return
	}
	if org == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Organization not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"organization": org})
}

func (h *OrgHandler) Members(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) {
	orgID := rc.Param("id")
	if !h.canAccess(rc, orgID) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Organization not found")
		return
	}

	members, err := h.memberships.ListByOrg(orgID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstream, "Failed to list members")
		return
	}
	if members == nil {
		members = []*models.Membership{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

// canAccess reports whether the credential may read the named org. API keys
// are pinned to their owning org; session users may read any org they hold
// a membership in. Denials surface as 404 so org IDs cannot be probed.
func (h *OrgHandler) canAccess(rc *gateway.RequestContext, orgID string) bool {
	if orgID == rc.OrgID {
		return true
	}
	if rc.Credential.Kind != gateway.CredentialSession {
		return false
	}
	m, err := h.memberships.GetByUserAndOrg(rc.Credential.UserID, orgID)
	return err == nil && m != nil
}
