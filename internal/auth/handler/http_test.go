package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	accountdomain "blog-platform/auth-service/internal/account/domain"
	"blog-platform/auth-service/internal/auth/service"
	"blog-platform/auth-service/internal/security"
	sessiondomain "blog-platform/auth-service/internal/session/domain"
)

type memAccountRepo struct {
	mu   sync.Mutex
	byID map[string]*accountdomain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byID: make(map[string]*accountdomain.Account)}
}

func (m *memAccountRepo) GetByID(_ context.Context, id string) (*accountdomain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.byID[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *memAccountRepo) GetByIdentifier(_ context.Context, identifier string) (*accountdomain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == identifier || a.Username == identifier {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAccountRepo) Create(_ context.Context, a *accountdomain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

type memSessionRepo struct {
	mu   sync.Mutex
	byID map[string]*sessiondomain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byID: make(map[string]*sessiondomain.Session)}
}

func (m *memSessionRepo) Create(_ context.Context, s *sessiondomain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memSessionRepo) ListByOwner(_ context.Context, ownerID string) ([]*sessiondomain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range m.byID {
		if s.OwnerID == ownerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessionRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

type fixedLimiter struct {
	retryAfter int64
	allowed    bool
}

func (f *fixedLimiter) AllowLogin(context.Context, string, string) (int64, bool, error) {
	return f.retryAfter, f.allowed, nil
}

func newTestHandler(t *testing.T, limiter service.LoginLimiter) *AuthHandler {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("test token provider: %v", err)
	}
	svc := service.NewAuthService(
		newMemAccountRepo(),
		newMemSessionRepo(),
		security.NewHasher(4),
		tokens,
		limiter,
		nil,
		168*time.Hour,
	)
	return NewAuthHandler(svc, nil, nil)
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func registerAlice(t *testing.T, h *AuthHandler) RegisterResponse {
	t.Helper()
	rec := postJSON(t, h.Register, "/api/auth/register", RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[RegisterResponse](t, rec)
}

func loginAlice(t *testing.T, h *AuthHandler) TokenPairResponse {
	t.Helper()
	rec := postJSON(t, h.Login, "/api/auth/login", LoginRequest{
		Identifier: "alice@example.com",
		Password:   "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[TokenPairResponse](t, rec)
}

func TestRegister(t *testing.T) {
	h := newTestHandler(t, nil)

	resp := registerAlice(t, h)
	if resp.Message != "account created" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.User.ID == "" {
		t.Error("user id should be set")
	}
	if resp.User.Username != "alice" || resp.User.Email != "alice@example.com" {
		t.Errorf("user = %+v", resp.User)
	}
}

func TestRegister_Validation(t *testing.T) {
	h := newTestHandler(t, nil)

	testCases := []struct {
		name string
		req  RegisterRequest
	}{
		{"short username", RegisterRequest{Username: "ab", Email: "a@example.com", Password: "secret123"}},
		{"bad email", RegisterRequest{Username: "alice", Email: "not-an-email", Password: "secret123"}},
		{"short password", RegisterRequest{Username: "alice", Email: "a@example.com", Password: "12345"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h.Register, "/api/auth/register", tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			body := decodeBody[map[string]any](t, rec)
			if body["code"] != "VALIDATION_ERROR" {
				t.Errorf("code = %v, want VALIDATION_ERROR", body["code"])
			}
		})
	}
}

func TestRegister_UnknownFieldRejected(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewReader([]byte(`{"username":"alice","email":"a@example.com","password":"secret123","admin":true}`)))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["code"] != "INVALID_REQUEST" {
		t.Errorf("code = %v, want INVALID_REQUEST", body["code"])
	}
}

func TestRegister_Conflict(t *testing.T) {
	h := newTestHandler(t, nil)
	registerAlice(t, h)

	rec := postJSON(t, h.Register, "/api/auth/register", RegisterRequest{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "secret123",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["code"] != "CONFLICT" {
		t.Errorf("code = %v, want CONFLICT", body["code"])
	}
}

func TestLogin(t *testing.T) {
	h := newTestHandler(t, nil)
	registerAlice(t, h)

	pair := loginAlice(t, h)
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("token pair should be populated")
	}
	if pair.User.Username != "alice" {
		t.Errorf("user = %+v", pair.User)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newTestHandler(t, nil)
	registerAlice(t, h)

	rec := postJSON(t, h.Login, "/api/auth/login", LoginRequest{
		Identifier: "alice@example.com",
		Password:   "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["code"] != "UNAUTHORIZED" {
		t.Errorf("code = %v, want UNAUTHORIZED", body["code"])
	}
}

func TestLogin_Throttled(t *testing.T) {
	h := newTestHandler(t, &fixedLimiter{retryAfter: 42, allowed: false})

	rec := postJSON(t, h.Login, "/api/auth/login", LoginRequest{
		Identifier: "alice@example.com",
		Password:   "secret123",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "42" {
		t.Errorf("Retry-After = %q, want 42", got)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["code"] != "TOO_MANY_ATTEMPTS" {
		t.Errorf("code = %v, want TOO_MANY_ATTEMPTS", body["code"])
	}
	if sec, ok := body["retry_after_sec"].(float64); !ok || int64(sec) != 42 {
		t.Errorf("retry_after_sec = %v, want 42", body["retry_after_sec"])
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	h := newTestHandler(t, nil)
	registerAlice(t, h)
	pair := loginAlice(t, h)

	rec := postJSON(t, h.Refresh, "/api/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	rotated := decodeBody[TokenPairResponse](t, rec)
	if rotated.RefreshToken == "" || rotated.RefreshToken == pair.RefreshToken {
		t.Error("refresh should return a new refresh token")
	}

	// The consumed token is revoked by rotation.
	rec = postJSON(t, h.Refresh, "/api/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d, want 401", rec.Code)
	}
}

func TestRefresh_GarbageToken(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := postJSON(t, h.Refresh, "/api/auth/refresh", RefreshRequest{RefreshToken: "not-a-jwt"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["message"] != "invalid refresh token" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestMe(t *testing.T) {
	h := newTestHandler(t, nil)
	resp := registerAlice(t, h)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	ctx := service.WithIdentity(req.Context(), service.Identity{
		AccountID: resp.User.ID,
		Username:  resp.User.Username,
		Email:     resp.User.Email,
	})
	rec := httptest.NewRecorder()
	h.Me(rec, req.WithContext(ctx))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	me := decodeBody[MeResponse](t, rec)
	if me.ID != resp.User.ID || me.Username != "alice" || !me.IsActive {
		t.Errorf("me = %+v", me)
	}
	if _, err := time.Parse(time.RFC3339, me.CreatedAt); err != nil {
		t.Errorf("created_at = %q is not RFC3339: %v", me.CreatedAt, err)
	}
}

func TestMe_NoIdentity(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	h := newTestHandler(t, nil)
	resp := registerAlice(t, h)
	pair := loginAlice(t, h)

	logout := func() *httptest.ResponseRecorder {
		raw, _ := json.Marshal(LogoutRequest{RefreshToken: pair.RefreshToken})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", bytes.NewReader(raw))
		ctx := service.WithIdentity(req.Context(), service.Identity{AccountID: resp.User.ID})
		rec := httptest.NewRecorder()
		h.Logout(rec, req.WithContext(ctx))
		return rec
	}

	rec := logout()
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Revoked token can no longer refresh.
	refreshRec := postJSON(t, h.Refresh, "/api/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken})
	if refreshRec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", refreshRec.Code)
	}

	// Logout is idempotent.
	rec = logout()
	if rec.Code != http.StatusOK {
		t.Fatalf("repeated logout status = %d, want 200", rec.Code)
	}
}

func TestHandleAuthError_Internal(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	h.handleAuthError(rec, fmt.Errorf("connection reset"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["code"] != "INTERNAL_ERROR" {
		t.Errorf("code = %v, want INTERNAL_ERROR", body["code"])
	}
}
