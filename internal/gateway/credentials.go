package gateway

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"iotgate/internal/pkg/errors"
	"iotgate/internal/platform/auth"
	"iotgate/internal/platform/models"
	"iotgate/internal/platform/repositories"
)

const (
	// KeyPrefix opens every issued API key secret; anything else on the
	// API-key path is rejected before touching the store.
	KeyPrefix = "iot_"

	// 4-char prefix + 48 hex chars of secret
	minKeyLength = 20

	// stored prefix shows the first 8 hex chars only
	visiblePrefixLen = len(KeyPrefix) + 8
)

type CredentialKind int

const (
	CredentialAPIKey CredentialKind = iota
	CredentialSession
)

// Credential is a validated caller identity: the owning organization, the
// granted scope set, and for session callers the membership role.
type Credential struct {
	Kind           CredentialKind
	APIKeyID       string
	UserID         string
	OrganizationID string
	Scopes         []string
	Role           string
}

func (c *Credential) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AuthError carries the HTTP status a validation failure maps to, so the
// entry point can respond without interpreting error strings.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string { return e.Message }

type CredentialValidator struct {
	keys        *repositories.APIKeyRepository
	memberships *repositories.MembershipRepository
	tokens      *auth.TokenService
	clock       clockwork.Clock
}

func NewCredentialValidator(keys *repositories.APIKeyRepository, memberships *repositories.MembershipRepository, tokens *auth.TokenService, clock clockwork.Clock) *CredentialValidator {
	return &CredentialValidator{keys: keys, memberships: memberships, tokens: tokens, clock: clock}
}

// Validate resolves a raw bearer string to a credential. Secrets beginning
// with the API key prefix take the key path; everything else is treated as
// a session token.
func (v *CredentialValidator) Validate(bearer string) (*Credential, *AuthError) {
	if strings.HasPrefix(bearer, KeyPrefix) {
		return v.validateAPIKey(bearer)
	}
	return v.validateSession(bearer)
}

func (v *CredentialValidator) validateAPIKey(secret string) (*Credential, *AuthError) {
	// shape check is local; malformed secrets never reach the store
	if len(secret) < minKeyLength || !isHex(secret[len(KeyPrefix):]) {
		return nil, &AuthError{http.StatusUnauthorized, errors.ErrCodeMalformedKey, "Invalid API key format"}
	}

	key, err := v.keys.GetByHash(HashKey(secret))
	if err != nil {
		return nil, &AuthError{http.StatusInternalServerError, errors.ErrCodeUpstream, "Credential lookup failed"}
	}
	if key == nil {
		return nil, &AuthError{http.StatusUnauthorized, errors.ErrCodeInvalidCredential, "Invalid API key"}
	}
	if !key.Active {
		return nil, &AuthError{http.StatusUnauthorized, errors.ErrCodeCredentialDisabled, "API key has been revoked"}
	}
	if key.ExpiresAt != nil && *key.ExpiresAt <= v.clock.Now().Unix() {
		return nil, &AuthError{http.StatusUnauthorized, errors.ErrCodeCredentialExpired, "API key has expired"}
	}

	// best effort; a failed touch never fails the request
	keyID := key.ID
	go func() {
		if err := v.keys.UpdateLastUsed(keyID); err != nil {
			log.Warn().Err(err).Str("api_key_id", keyID).Msg("failed to update key last_used_at")
		}
	}()

	return &Credential{
		Kind:           CredentialAPIKey,
		APIKeyID:       key.ID,
		UserID:         key.UserID,
		OrganizationID: key.OrganizationID,
		Scopes:         key.Scopes,
	}, nil
}

func (v *CredentialValidator) validateSession(token string) (*Credential, *AuthError) {
	claims, err := v.tokens.ValidateToken(token)
	if err != nil {
		return nil, &AuthError{http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired session"}
	}

	if claims.OrganizationID == "" {
		return nil, &AuthError{http.StatusForbidden, errors.ErrCodeForbidden, "User has no organization"}
	}

	// role comes from the membership row, not the token, so demotions
	// take effect before the token expires
	membership, err := v.memberships.GetByUserAndOrg(claims.UserID, claims.OrganizationID)
	if err != nil {
		return nil, &AuthError{http.StatusInternalServerError, errors.ErrCodeUpstream, "Membership lookup failed"}
	}
	if membership == nil {
		return nil, &AuthError{http.StatusForbidden, errors.ErrCodeForbidden, "User has no organization"}
	}

	return &Credential{
		Kind:           CredentialSession,
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Role:           membership.Role,
		Scopes: []string{
			models.ScopeRead, models.ScopeWrite, models.ScopeDevices,
			models.ScopeKeys, models.ScopeAnalytics,
		},
	}, nil
}

// GenerateAPIKey mints a fresh secret. The raw value is shown to the caller
// exactly once; only the digest and display prefix are stored.
func GenerateAPIKey() (raw, hash, prefix string, err error) {
	buf := make([]byte, 24)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", err
	}
	raw = KeyPrefix + hex.EncodeToString(buf)
	return raw, HashKey(raw), raw[:visiblePrefixLen] + "...", nil
}

// HashKey computes the stored one-way digest of a key secret.
func HashKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return len(s) > 0
}
