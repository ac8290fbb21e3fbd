package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"

	"iotgate/internal/platform/auth"
	"iotgate/internal/platform/config"
	"iotgate/internal/platform/repositories"
)

func newAuthFixture(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, *auth.TokenService) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open stub database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	tokenSvc := auth.NewTokenService(config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	h := NewAuthHandler(
		repositories.NewUserRepository(db),
		repositories.NewOrganizationRepository(db),
		repositories.NewMembershipRepository(db),
		repositories.NewBillingRepository(db),
		tokenSvc,
	)
	return h, mock, tokenSvc
}

func userRows(t *testing.T, password string) *sqlmock.Rows {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "full_name", "last_login_at", "created_at", "updated_at",
	}).AddRow("usr_1", "a@example.com", string(hash), "Alex", nil, 1700000000, 1700000000)
}

func membershipRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "organization_id", "user_id", "role", "created_at"}).
		AddRow("mem_1", "org_1", "usr_1", "owner", 1700000000)
}

func TestLogin(t *testing.T) {
	h, mock, tokenSvc := newAuthFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = ?").
		WithArgs("a@example.com").
		WillReturnRows(userRows(t, "hunter2hunter2"))
	mock.ExpectQuery("SELECT (.+) FROM memberships WHERE user_id = ?").
		WillReturnRows(membershipRows())
	mock.ExpectExec("UPDATE users SET last_login_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := strings.NewReader(`{"email": "a@example.com", "password": "hunter2hunter2"}`)
	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest("POST", "/auth/login", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected both tokens in response")
	}

	claims, err := tokenSvc.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.UserID != "usr_1" || claims.OrganizationID != "org_1" || claims.Role != "owner" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	// password hash never leaves the server
	if strings.Contains(rr.Body.String(), "password") {
		t.Error("password material leaked into the response")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, mock, _ := newAuthFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = ?").
		WillReturnRows(userRows(t, "correct-password"))

	body := strings.NewReader(`{"email": "a@example.com", "password": "wrong-password"}`)
	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest("POST", "/auth/login", body))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	h, mock, _ := newAuthFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = ?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	body := strings.NewReader(`{"email": "ghost@example.com", "password": "whatever123"}`)
	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest("POST", "/auth/login", body))

	// same 401 as a bad password, so enumeration gets nothing
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	h, _, _ := newAuthFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad email", `{"email": "nope", "password": "longenough", "organization_name": "Acme", "organization_slug": "acme"}`},
		{"short password", `{"email": "a@example.com", "password": "short", "organization_name": "Acme", "organization_slug": "acme"}`},
		{"missing org", `{"email": "a@example.com", "password": "longenough"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Signup(rr, httptest.NewRequest("POST", "/auth/signup", strings.NewReader(tc.body)))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSignup(t *testing.T) {
	h, mock, tokenSvc := newAuthFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = ?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE slug = ?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO organizations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO memberships").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO subscriptions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := strings.NewReader(`{
		"email": "founder@example.com",
		"password": "longenough",
		"full_name": "Founder",
		"organization_name": "Acme IoT",
		"organization_slug": "acme-iot"
	}`)
	rr := httptest.NewRecorder()
	h.Signup(rr, httptest.NewRequest("POST", "/auth/signup", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SignupResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Organization == nil {
		t.Fatal("expected organization in response")
	}
	claims, err := tokenSvc.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Role != "owner" {
		t.Errorf("signup must issue an owner token, got %q", claims.Role)
	}
	if claims.OrganizationID != resp.Organization.ID {
		t.Error("token org does not match created org")
	}
}

func TestRefresh(t *testing.T) {
	h, mock, tokenSvc := newAuthFixture(t)

	refresh, err := tokenSvc.GenerateRefreshToken("usr_1")
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").
		WillReturnRows(userRows(t, "irrelevant1234"))
	mock.ExpectQuery("SELECT (.+) FROM memberships WHERE user_id = ?").
		WillReturnRows(membershipRows())

	body := strings.NewReader(`{"refresh_token": "` + refresh + `"}`)
	rr := httptest.NewRecorder()
	h.Refresh(rr, httptest.NewRequest("POST", "/auth/refresh", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if _, err := tokenSvc.ValidateToken(resp["access_token"]); err != nil {
		t.Errorf("refreshed token does not validate: %v", err)
	}
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	h, _, _ := newAuthFixture(t)

	body := strings.NewReader(`{"refresh_token": "garbage.token.here"}`)
	rr := httptest.NewRecorder()
	h.Refresh(rr, httptest.NewRequest("POST", "/auth/refresh", body))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for malformed refresh token, got %d", rr.Code)
	}
}
