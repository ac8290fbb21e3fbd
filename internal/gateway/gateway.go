package gateway

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"iotgate/internal/pkg/errors"
	"iotgate/internal/platform/models"
)

// RequestContext is handed to every gateway handler after authentication
// and quota admission.
type RequestContext struct {
	Credential *Credential
	OrgID      string
	Params     map[string]string
	Quota      *QuotaDecision
}

func (rc *RequestContext) Param(name string) string {
	return rc.Params[name]
}

// Gateway is the single HTTP entry point for the /api surface. Per request:
// CORS, path normalization, credential validation, quota admission, routing,
// dispatch, telemetry. Every stage that short-circuits still produces a
// CORS-headed JSON error body.
type Gateway struct {
	router      *Router
	validator   *CredentialValidator
	quota       *QuotaTracker
	recorder    *Recorder
	mountPrefix string
	clock       clockwork.Clock
}

func New(router *Router, validator *CredentialValidator, quota *QuotaTracker, recorder *Recorder, mountPrefix string, clock clockwork.Clock) *Gateway {
	return &Gateway{
		router:      router,
		validator:   validator,
		quota:       quota,
		recorder:    recorder,
		mountPrefix: mountPrefix,
		clock:       clock,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	// preflight carries no credentials and is never routed
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	start := g.clock.Now()
	rw := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
	entry := &models.RequestLog{
		Method:    r.Method,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
	if r.ContentLength > 0 {
		entry.RequestSize = r.ContentLength
	}

	defer func() {
		if rec := recover(); rec != nil {
			// details stay server-side; the caller gets a generic body
			log.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).
				Str("path", r.URL.Path).Msg("gateway panic")
			errors.WriteError(rw, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error")
			entry.ErrorMessage = "panic"
		}
		entry.StatusCode = rw.status
		entry.DurationMs = g.clock.Now().Sub(start).Milliseconds()
		entry.ResponseSize = rw.bytes
		g.recorder.Record(entry)
	}()

	path := g.normalizePath(r.URL.Path)
	entry.Endpoint = path

	cred, authErr := g.authenticate(r)
	if authErr != nil {
		entry.ErrorMessage = authErr.Message
		errors.WriteError(rw, authErr.Status, authErr.Code, authErr.Message)
		return
	}
	entry.OrganizationID = cred.OrganizationID
	entry.APIKeyID = cred.APIKeyID

	decision := g.admit(cred)
	if !decision.Unlimited && !decision.FailedOpen {
		rw.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		rw.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		rw.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt, 10))
	}
	if !decision.Allowed {
		rw.Header().Set("Retry-After", strconv.FormatInt(decision.RetryAfter, 10))
		entry.ErrorMessage = "rate limit exceeded"
		errors.WriteError(rw, http.StatusTooManyRequests, errors.ErrCodeQuotaExceeded, "Rate limit exceeded")
		return
	}

	handler, params, found := g.router.Lookup(r.Method, path)
	if !found {
		entry.ErrorMessage = "route not found"
		errors.WriteError(rw, http.StatusNotFound, errors.ErrCodeRouteNotFound, "Route not found: "+r.Method+" "+path)
		return
	}

	handler(rw, r, &RequestContext{
		Credential: cred,
		OrgID:      cred.OrganizationID,
		Params:     params,
		Quota:      decision,
	})
}

func (g *Gateway) authenticate(r *http.Request) (*Credential, *AuthError) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, &AuthError{http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing authorization header"}
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return nil, &AuthError{http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid authorization header format"}
	}
	return g.validator.Validate(parts[1])
}

// admit runs the quota check for API-key callers. Session callers carry no
// buckets and are admitted without headers.
func (g *Gateway) admit(cred *Credential) *QuotaDecision {
	if cred.Kind != CredentialAPIKey {
		return &QuotaDecision{Allowed: true, Unlimited: true}
	}
	return g.quota.Check(cred.APIKeyID)
}

func (g *Gateway) normalizePath(path string) string {
	if g.mountPrefix != "" {
		path = strings.TrimPrefix(path, g.mountPrefix)
	}
	if path == "" {
		path = "/"
	}
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
}

// RequireScope guards a route behind one credential scope.
func RequireScope(scope string, next Handler) Handler {
	return func(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
		if !rc.Credential.HasScope(scope) {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Missing required scope: "+scope)
			return
		}
		next(w, r, rc)
	}
}

// RequireRole guards mutating routes behind a minimum membership role.
// API-key callers have no role; their scope checks already applied, so the
// role gate only binds session callers.
func RequireRole(min string, next Handler) Handler {
	return func(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
		if rc.Credential.Kind == CredentialSession && !models.RoleAtLeast(rc.Credential.Role, min) {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions")
			return
		}
		next(w, r, rc)
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}
