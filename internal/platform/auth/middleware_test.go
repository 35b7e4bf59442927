package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubTokenVerifier struct {
	token    *VerifiedToken
	err      error
	received string
}

func (s *stubTokenVerifier) Verify(ctx context.Context, token string) (*VerifiedToken, error) {
	s.received = token
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func serve(t *testing.T, authn *Authenticator, header string, roles ...string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()
	var seen *Identity
	handler := authn.RequireAuth(roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("expected identity in context")
		}
		seen = identity
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, seen
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["success"] != false {
		t.Fatalf("expected failure envelope, got %v", body)
	}
	code, _ := body["error"].(string)
	return code
}

func TestRequireAuth_AllowsValidToken(t *testing.T) {
	verifier := &stubTokenVerifier{token: &VerifiedToken{
		Subject: "42",
		Claims: map[string]any{
			"role":  []any{"Admin", "user", "admin"},
			"email": "owner@example.com",
		},
	}}

	rr, identity := serve(t, NewAuthenticator(verifier), "Bearer token-value", RoleAdmin)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if verifier.received != "token-value" {
		t.Fatalf("expected verifier to receive token-value, got %s", verifier.received)
	}
	if identity.UID != "42" || identity.Email != "owner@example.com" {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if len(identity.Roles) != 2 || !identity.IsAdmin() {
		t.Fatalf("expected deduplicated roles, got %v", identity.Roles)
	}
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	rr, _ := serve(t, NewAuthenticator(&stubTokenVerifier{}), "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "unauthenticated" {
		t.Fatalf("unexpected code %s", code)
	}

	rr, _ = serve(t, NewAuthenticator(&stubTokenVerifier{}), "Basic abc")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer scheme, got %d", rr.Code)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	verifier := &stubTokenVerifier{err: ErrTokenExpired}
	rr, _ := serve(t, NewAuthenticator(verifier), "Bearer expired", RoleUser)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "token_expired" {
		t.Fatalf("expected token_expired, got %s", code)
	}
}

func TestRequireAuth_WrongRoleIsForbidden(t *testing.T) {
	verifier := &stubTokenVerifier{token: &VerifiedToken{Subject: "7", Claims: map[string]any{"role": "user"}}}
	rr, _ := serve(t, NewAuthenticator(verifier), "Bearer t", RoleAdmin)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "forbidden" {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestRequireAuth_MissingRoleUsesFallback(t *testing.T) {
	verifier := &stubTokenVerifier{token: &VerifiedToken{Subject: "9", Claims: map[string]any{}}}
	rr, identity := serve(t, NewAuthenticator(verifier), "Bearer t", RoleUser, RoleAdmin)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if len(identity.Roles) != 1 || identity.Roles[0] != RoleUser {
		t.Fatalf("expected fallback role, got %v", identity.Roles)
	}
}

func TestJWTVerifierRoundTrip(t *testing.T) {
	verifier, err := NewJWTVerifier("signing-secret", "storefront")
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	token, err := verifier.Sign("15", RoleAdmin, "admin@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	rr, identity := serve(t, NewAuthenticator(verifier), "Bearer "+token, RoleAdmin)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%s)", rr.Code, rr.Body.String())
	}
	if identity.UID != "15" || !identity.IsAdmin() {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestJWTVerifierRejectsBadTokens(t *testing.T) {
	verifier, err := NewJWTVerifier("signing-secret", "storefront")
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	other, _ := NewJWTVerifier("other-secret", "storefront")
	wrongIssuer, _ := NewJWTVerifier("signing-secret", "elsewhere")

	expired, _ := verifier.Sign("1", RoleUser, "", -time.Minute)
	forged, _ := other.Sign("1", RoleUser, "", time.Hour)
	foreign, _ := wrongIssuer.Sign("1", RoleUser, "", time.Hour)

	if _, err := verifier.Verify(context.Background(), expired); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
	if _, err := verifier.Verify(context.Background(), forged); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected invalid signature error, got %v", err)
	}
	if _, err := verifier.Verify(context.Background(), foreign); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected issuer mismatch error, got %v", err)
	}
	if _, err := NewJWTVerifier(" ", ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
