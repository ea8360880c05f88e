// Package provider is the client for the federated identity provider. The
// backend delegates credential verification here; the role the application
// trusts is the signed claim on the provider-issued ID token.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the decoded attributes of a provider ID token.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt time.Time
}

// IDToken is a provider-issued bearer token with its decoded claims.
type IDToken struct {
	Raw    string
	Claims Claims
}

// Session is an authenticated provider session.
type Session struct {
	UID          string
	Email        string
	DisplayName  string
	Token        IDToken
	RefreshToken string
}

// ErrNoSession is returned by IDToken when nobody is signed in.
var ErrNoSession = errors.New("no provider session")

// Client is the capability surface the session manager needs from the
// identity provider.
type Client interface {
	// SignInWithCustomToken exchanges a backend-minted custom token for a
	// provider session.
	SignInWithCustomToken(ctx context.Context, token string) (*Session, error)
	// SignInWithPassword verifies the credentials directly with the provider.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// FederatedSignIn runs the provider-native consent flow.
	FederatedSignIn(ctx context.Context) (*Session, error)
	// IDToken returns the current session token, refreshing it with the
	// provider when force is set or the held token has expired.
	IDToken(ctx context.Context, force bool) (IDToken, error)
	// SignOut revokes the local provider session.
	SignOut(ctx context.Context) error
}

// DecodeClaims reads the claims of a provider ID token. The signature is
// not verified here: the backend verifies tokens on every request, the
// client only needs the claim values.
func DecodeClaims(raw string) (Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("decode id token: %w", err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("decode id token: unexpected claims shape")
	}
	var c Claims
	if sub, err := mc.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if email, ok := mc["email"].(string); ok {
		c.Email = email
	}
	if role, ok := mc["role"].(string); ok {
		c.Role = role
	}
	return c, nil
}
