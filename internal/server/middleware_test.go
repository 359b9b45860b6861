package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"blog-platform/auth-service/internal/auth/service"
	"blog-platform/auth-service/internal/security"
)

func TestExtractBearerToken(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  string
		ok    bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"lowercase scheme", "bearer abc", "abc", true},
		{"missing token", "Bearer ", "", false},
		{"wrong scheme", "Basic abc", "", false},
		{"empty header", "", "", false},
		{"token only", "abc.def.ghi", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractBearerToken(tc.value)
			if ok != tc.ok || got != tc.want {
				t.Errorf("extractBearerToken(%q) = (%q, %v), want (%q, %v)", tc.value, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:54321"
	clientIP(next).ServeHTTP(httptest.NewRecorder(), req)

	if got != "203.0.113.7" {
		t.Errorf("ClientIP = %q, want 203.0.113.7", got)
	}

	if ip := ClientIP(context.Background()); ip != "unknown" {
		t.Errorf("ClientIP on bare context = %q, want unknown", ip)
	}
}

func TestAuthMiddleware(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("test token provider: %v", err)
	}

	var seen service.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := service.IdentityFromContext(r.Context())
		if !ok {
			t.Error("identity missing from guarded request context")
		}
		seen = identity
		w.WriteHeader(http.StatusOK)
	})
	guarded := AuthMiddleware(tokens, nil)(next)

	accessToken, _, err := tokens.IssueAccess("acct-1", "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen.AccountID != "acct-1" || seen.Username != "alice" || seen.Email != "alice@example.com" {
		t.Errorf("identity = %+v", seen)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("test token provider: %v", err)
	}
	guarded := AuthMiddleware(tokens, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("guarded handler should not run")
	}))

	// A refresh token must not pass the access guard.
	refreshToken, _, err := tokens.IssueRefresh("acct-1", "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("issue refresh token: %v", err)
	}

	testCases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"garbage token", "Bearer not-a-jwt"},
		{"refresh token", "Bearer " + refreshToken},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["code"] != "UNAUTHORIZED" {
				t.Errorf("code = %v, want UNAUTHORIZED", body["code"])
			}
		})
	}
}
