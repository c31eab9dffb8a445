package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/interpreter-brokerage/internal/application"
	"github.com/example/interpreter-brokerage/internal/lifecycle"
)

type fakeTokenValidator struct {
	principal application.Principal
	err       error
	seen      string
}

func (f *fakeTokenValidator) ValidateToken(_ context.Context, token string) (application.Principal, error) {
	f.seen = token
	return f.principal, f.err
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without a token", func(t *testing.T) {
		t.Parallel()

		handler := RequireSession(&fakeTokenValidator{}, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("next handler should not run without credentials")
		}))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", recorder.Code)
		}
		var resp errorResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if resp.ErrorCode != "AUTH_TOKEN_MISSING" {
			t.Errorf("error code = %s", resp.ErrorCode)
		}
	})

	t.Run("maps expired sessions to 401", func(t *testing.T) {
		t.Parallel()

		validator := &fakeTokenValidator{err: application.ErrSessionExpired}
		handler := RequireSession(validator, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("next handler should not run for expired sessions")
		}))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer stale-token")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", recorder.Code)
		}
		if validator.seen != "stale-token" {
			t.Errorf("validated token = %q", validator.seen)
		}
		var resp errorResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if resp.ErrorCode != "AUTH_SESSION_EXPIRED" {
			t.Errorf("error code = %s", resp.ErrorCode)
		}
	})

	t.Run("attaches the principal for downstream handlers", func(t *testing.T) {
		t.Parallel()

		want := application.Principal{UserID: "user-1", Role: lifecycle.RoleAdmin}
		validator := &fakeTokenValidator{principal: want}

		var got application.Principal
		handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				t.Fatal("expected principal in request context")
			}
			got = principal
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "valid-token"})
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", recorder.Code)
		}
		if got != want {
			t.Errorf("principal = %+v, want %+v", got, want)
		}
		if validator.seen != "valid-token" {
			t.Errorf("validated token = %q", validator.seen)
		}
	})

	t.Run("prefers the bearer header over the cookie", func(t *testing.T) {
		t.Parallel()

		validator := &fakeTokenValidator{principal: application.Principal{UserID: "user-1"}}
		handler := RequireSession(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if validator.seen != "header-token" {
			t.Errorf("validated token = %q, want header-token", validator.seen)
		}
	})
}
