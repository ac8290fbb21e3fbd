package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"iotgate/internal/pkg/errors"
	"iotgate/internal/pkg/validator"
	"iotgate/internal/platform/auth"
	"iotgate/internal/platform/models"
	"iotgate/internal/platform/repositories"
)

type AuthHandler struct {
	users       *repositories.UserRepository
	orgs        *repositories.OrganizationRepository
	memberships *repositories.MembershipRepository
	billing     *repositories.BillingRepository
	tokenSvc    *auth.TokenService
}

func NewAuthHandler(users *repositories.UserRepository, orgs *repositories.OrganizationRepository, memberships *repositories.MembershipRepository, billing *repositories.BillingRepository, tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{
		users:       users,
		orgs:        orgs,
		memberships: memberships,
		billing:     billing,
		tokenSvc:    tokenSvc,
	}
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	OrgName  string `json:"organization_name"`
	OrgSlug  string `json:"organization_slug"`
}

type SignupResponse struct {
	User         *models.User         `json:"user"`
	Organization *models.Organization `json:"organization"`
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
}

// Signup creates the organization, its owner user and membership, and a
// free-tier subscription in one transaction.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body")
		return
	}

	if err := validator.ValidateEmail(req.Email); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error())
		return
	}
	if len(req.Password) < 8 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Password must be at least 8 characters")
		return
	}
	if req.OrgName == "" || req.OrgSlug == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Organization name and slug are required")
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error")
		return
	}
	if existing != nil {
		errors.WriteError(w, http.StatusConflict, "CONFLICT", "User already exists")
		return
	}
	if org, err := h.orgs.GetBySlug(req.OrgSlug); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error")
		return
	} else if org != nil {
		errors.WriteError(w, http.StatusConflict, "CONFLICT", "Organization slug is taken")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to hash password")
		return
	}

	now := time.Now().Unix()
	org := &models.Organization{
		ID:          "org_" + uuid.NewString(),
		Slug:        req.OrgSlug,
		Name:        req.OrgName,
		PlanTier:    "free",
		DeviceQuota: 25,
		MemberQuota: 5,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	user := &models.User{
		ID:           "usr_" + uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	membership := &models.Membership{
		ID:             "mem_" + uuid.NewString(),
		OrganizationID: org.ID,
		UserID:         user.ID,
		Role:           models.RoleOwner,
		CreatedAt:      now,
	}

	tx, err := h.orgs.BeginTx()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error")
		return
	}
	defer tx.Rollback()

	if err := h.orgs.CreateTx(tx, org); err != nil {
		log.Error().Err(err).Msg("signup: failed to create organization")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create organization")
		return
	}
	if err := h.users.CreateTx(tx, user); err != nil {
		log.Error().Err(err).Msg("signup: failed to create user")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create user")
		return
	}
	if err := h.memberships.CreateTx(tx, membership); err != nil {
		log.Error().Err(err).Msg("signup: failed to create membership")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create membership")
		return
	}
	sub := &models.Subscription{
		OrganizationID:   org.ID,
		PlanID:           "plan_free",
		Status:           "active",
		CurrentPeriodEnd: time.Now().AddDate(0, 1, 0).Unix(),
	}
	if err := h.billing.CreateSubscriptionTx(tx, sub); err != nil {
		log.Error().Err(err).Msg("signup: failed to create subscription")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create subscription")
		return
	}
	if err := tx.Commit(); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error")
		return
	}

	accessToken, err := h.tokenSvc.GenerateAccessToken(user.ID, org.ID, membership.Role, user.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue token")
		return
	}
	refreshToken, _ := h.tokenSvc.GenerateRefreshToken(user.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(SignupResponse{
		User:         user,
		Organization: org,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body")
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error")
		return
	}
	if user == nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid email or password")
		return
	}

	membership, err := h.memberships.GetPrimaryForUser(user.ID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Database error")
		return
	}
	if membership == nil {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "User has no organization")
		return
	}

	accessToken, err := h.tokenSvc.GenerateAccessToken(user.ID, membership.OrganizationID, membership.Role, user.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue token")
		return
	}
	refreshToken, _ := h.tokenSvc.GenerateRefreshToken(user.ID)

	if err := h.users.UpdateLastLogin(user.ID); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to update last login")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body")
		return
	}

	userID, err := h.tokenSvc.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid refresh token")
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil || user == nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid refresh token")
		return
	}
	membership, err := h.memberships.GetPrimaryForUser(user.ID)
	if err != nil || membership == nil {
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "User has no organization")
		return
	}

	accessToken, err := h.tokenSvc.GenerateAccessToken(user.ID, membership.OrganizationID, membership.Role, user.Email)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"access_token": accessToken})
}
