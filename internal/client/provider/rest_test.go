package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"medilink/internal/client/autherr"
)

func mintIDToken(t *testing.T, role string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   "uid-1",
		"email": "doc@x.com",
		"exp":   time.Now().Add(ttl).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func testClient(t *testing.T, handler http.Handler) (*RESTClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := Config{
		BaseURL:  srv.URL,
		TokenURL: srv.URL + "/token",
		AuthURL:  srv.URL + "/authorize",
		APIKey:   "k",
		Timeout:  5 * time.Second,
	}
	return NewREST(cfg, zerolog.Nop()), srv
}

func TestSignInWithCustomToken(t *testing.T) {
	idToken := mintIDToken(t, "doctor", time.Hour)
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts:signInWithCustomToken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"idToken":"` + idToken + `","refreshToken":"rt-1","expiresIn":"3600","localId":"uid-1"}`))
	})
	c, _ := testClient(t, mux)

	sess, err := c.SignInWithCustomToken(context.Background(), "custom-token")
	if err != nil {
		t.Fatal(err)
	}
	if sess.UID != "uid-1" || sess.RefreshToken != "rt-1" {
		t.Fatalf("bad session: %+v", sess)
	}
	if sess.Token.Claims.Role != "doctor" {
		t.Fatalf("role claim not decoded: %+v", sess.Token.Claims)
	}
	if sess.Token.Claims.ExpiresAt.IsZero() {
		t.Fatalf("expiry not decoded")
	}
}

func TestProviderErrorMapping(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"INVALID_PASSWORD", autherr.ErrInvalidCredentials},
		{"INVALID_LOGIN_CREDENTIALS", autherr.ErrInvalidCredentials},
		{"TOO_MANY_ATTEMPTS_TRY_LATER", autherr.ErrTooManyAttempts},
		{"EMAIL_EXISTS", autherr.ErrEmailAlreadyInUse},
		{"INVALID_EMAIL", autherr.ErrInvalidEmail},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/accounts:signInWithPassword", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"` + tc.code + `"}}`))
			})
			c, _ := testClient(t, mux)
			_, err := c.SignInWithPassword(context.Background(), "a@b.c", "pw")
			if !errors.Is(err, tc.want) {
				t.Fatalf("code %s: got %v", tc.code, err)
			}
		})
	}
}

func TestIDTokenNoSession(t *testing.T) {
	c, _ := testClient(t, http.NewServeMux())
	_, err := c.IDToken(context.Background(), false)
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("got %v", err)
	}
}

func TestIDTokenForceRefresh(t *testing.T) {
	var refreshes atomic.Int32
	first := mintIDToken(t, "patient", time.Hour)
	second := mintIDToken(t, "patient", 2*time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("/accounts:signInWithCustomToken", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"idToken":"` + first + `","refreshToken":"rt-1","expiresIn":"3600","localId":"u"}`))
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "refresh_token" {
			t.Errorf("bad refresh request: %v %q", err, r.Form.Get("grant_type"))
		}
		w.Write([]byte(`{"id_token":"` + second + `","refresh_token":"rt-2","expires_in":"7200"}`))
	})
	c, _ := testClient(t, mux)

	if _, err := c.SignInWithCustomToken(context.Background(), "ct"); err != nil {
		t.Fatal(err)
	}

	// unexpired and unforced: served from the held session
	tok, err := c.IDToken(context.Background(), false)
	if err != nil || tok.Raw != first {
		t.Fatalf("expected held token, err=%v", err)
	}
	if refreshes.Load() != 0 {
		t.Fatalf("no refresh expected, got %d", refreshes.Load())
	}

	// forced: exactly one token-endpoint call, rotated refresh token kept
	tok, err = c.IDToken(context.Background(), true)
	if err != nil || tok.Raw != second {
		t.Fatalf("forced refresh failed: %v", err)
	}
	if refreshes.Load() != 1 {
		t.Fatalf("want 1 refresh, got %d", refreshes.Load())
	}
	if c.CurrentSession().RefreshToken != "rt-2" {
		t.Fatalf("refresh token not rotated")
	}
}

func TestBuildTokenUndecodable(t *testing.T) {
	c, _ := testClient(t, http.NewServeMux())
	tok := c.buildToken("not-a-jwt", "3600")
	if tok.Raw != "not-a-jwt" {
		t.Fatalf("raw token must survive")
	}
	if !tok.Claims.ExpiresAt.IsZero() {
		t.Fatalf("undecodable token must carry no expiry")
	}
}

func TestSignOutRevokes(t *testing.T) {
	idToken := mintIDToken(t, "patient", time.Hour)
	var revoked atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts:signInWithCustomToken", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"idToken":"` + idToken + `","refreshToken":"rt-1","expiresIn":"3600","localId":"u"}`))
	})
	mux.HandleFunc("/accounts:revokeToken", func(w http.ResponseWriter, r *http.Request) {
		revoked.Store(true)
		w.Write([]byte(`{}`))
	})
	c, _ := testClient(t, mux)
	if _, err := c.SignInWithCustomToken(context.Background(), "ct"); err != nil {
		t.Fatal(err)
	}
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !revoked.Load() {
		t.Fatalf("revoke endpoint not called")
	}
	if c.CurrentSession() != nil {
		t.Fatalf("session must be dropped")
	}
	// signing out twice is a no-op
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestDecodeClaimsRoleMissing(t *testing.T) {
	raw := mintIDToken(t, "", time.Hour)
	claims, err := DecodeClaims(raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != "" {
		t.Fatalf("unexpected role %q", claims.Role)
	}
	if claims.Subject != "uid-1" || claims.Email != "doc@x.com" {
		t.Fatalf("claims not decoded: %+v", claims)
	}
}
