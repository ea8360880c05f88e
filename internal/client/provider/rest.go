package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medilink/internal/client/autherr"
)

// Config points the REST client at the provider's endpoints.
type Config struct {
	BaseURL  string
	TokenURL string
	AuthURL  string
	APIKey   string
	Timeout  time.Duration
}

// RESTClient implements Client against the provider's REST surface. The
// current session is guarded by one mutex and replaced wholesale.
type RESTClient struct {
	cfg     Config
	http    *http.Client
	log     zerolog.Logger
	open    BrowserOpener
	newUUID func() string

	mu      sync.Mutex
	session *Session
}

func NewREST(cfg Config, log zerolog.Logger, opts ...Option) *RESTClient {
	c := &RESTClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With().Str("component", "provider").Logger(),
		open:    openBrowser,
		newUUID: newState,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option customizes a RESTClient; used by the CLI and by tests.
type Option func(*RESTClient)

func WithHTTPClient(h *http.Client) Option     { return func(c *RESTClient) { c.http = h } }
func WithBrowserOpener(o BrowserOpener) Option { return func(c *RESTClient) { c.open = o } }

type secureTokenResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
}

func (c *RESTClient) SignInWithCustomToken(ctx context.Context, token string) (*Session, error) {
	body := map[string]any{"token": token, "returnSecureToken": true}
	var res secureTokenResponse
	if err := c.post(ctx, c.accountURL("signInWithCustomToken"), body, &res); err != nil {
		return nil, err
	}
	return c.adoptSession(res)
}

func (c *RESTClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	var res secureTokenResponse
	if err := c.post(ctx, c.accountURL("signInWithPassword"), body, &res); err != nil {
		return nil, err
	}
	return c.adoptSession(res)
}

func (c *RESTClient) IDToken(ctx context.Context, force bool) (IDToken, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return IDToken{}, ErrNoSession
	}
	if !force && time.Now().Before(sess.Token.Claims.ExpiresAt) {
		return sess.Token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", sess.RefreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.withKey(c.cfg.TokenURL), strings.NewReader(form.Encode()))
	if err != nil {
		return IDToken{}, fmt.Errorf("refresh token: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return IDToken{}, autherr.New(autherr.ErrConnectivity, "Could not reach the identity provider.", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return IDToken{}, c.apiError(resp)
	}
	var res struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return IDToken{}, fmt.Errorf("refresh token: %w", err)
	}

	tok := c.buildToken(res.IDToken, res.ExpiresIn)
	c.mu.Lock()
	if c.session != nil {
		updated := *c.session
		updated.Token = tok
		if res.RefreshToken != "" {
			updated.RefreshToken = res.RefreshToken
		}
		c.session = &updated
	}
	c.mu.Unlock()
	return tok, nil
}

func (c *RESTClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	body := map[string]any{"refreshToken": sess.RefreshToken}
	if err := c.post(ctx, c.accountURL("revokeToken"), body, &struct{}{}); err != nil {
		return fmt.Errorf("provider sign out: %w", err)
	}
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return nil
}

// CurrentSession returns the held session, or nil.
func (c *RESTClient) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *RESTClient) adoptSession(res secureTokenResponse) (*Session, error) {
	tok := c.buildToken(res.IDToken, res.ExpiresIn)
	uid := res.LocalID
	if uid == "" {
		uid = tok.Claims.Subject
	}
	email := res.Email
	if email == "" {
		email = tok.Claims.Email
	}
	sess := &Session{
		UID:          uid,
		Email:        email,
		DisplayName:  res.DisplayName,
		Token:        tok,
		RefreshToken: res.RefreshToken,
	}
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	return sess, nil
}

// buildToken decodes claims best-effort; a token whose claims cannot be
// read still circulates, just with a zero expiry so nothing caches it.
func (c *RESTClient) buildToken(raw, expiresIn string) IDToken {
	claims, err := DecodeClaims(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("id token claims undecodable")
		return IDToken{Raw: raw}
	}
	if claims.ExpiresAt.IsZero() && expiresIn != "" {
		if secs, err := strconv.Atoi(expiresIn); err == nil {
			claims.ExpiresAt = time.Now().Add(time.Duration(secs) * time.Second)
		}
	}
	return IDToken{Raw: raw, Claims: claims}
}

func (c *RESTClient) accountURL(op string) string {
	return c.withKey(strings.TrimSuffix(c.cfg.BaseURL, "/") + "/accounts:" + op)
}

func (c *RESTClient) withKey(u string) string {
	if c.cfg.APIKey == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "key=" + url.QueryEscape(c.cfg.APIKey)
}

func (c *RESTClient) post(ctx context.Context, u string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return autherr.New(autherr.ErrConnectivity, "Could not reach the identity provider.", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return c.apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiError translates the provider's error codes into the taxonomy.
func (c *RESTClient) apiError(resp *http.Response) error {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	code := body.Error.Message
	c.log.Debug().Int("status", resp.StatusCode).Str("code", code).Msg("provider rejected request")

	cause := fmt.Errorf("provider status %d: %s", resp.StatusCode, code)
	switch {
	case strings.HasPrefix(code, "INVALID_PASSWORD"), strings.HasPrefix(code, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(code, "INVALID_LOGIN_CREDENTIALS"), strings.HasPrefix(code, "INVALID_CUSTOM_TOKEN"),
		strings.HasPrefix(code, "INVALID_REFRESH_TOKEN"), strings.HasPrefix(code, "TOKEN_EXPIRED"):
		return autherr.New(autherr.ErrInvalidCredentials, "Invalid email or password. Please try again.", cause)
	case strings.HasPrefix(code, "TOO_MANY_ATTEMPTS"):
		return autherr.New(autherr.ErrTooManyAttempts, "Too many attempts. Please try again later.", cause)
	case strings.HasPrefix(code, "EMAIL_EXISTS"):
		return autherr.New(autherr.ErrEmailAlreadyInUse, "Email already registered.", cause)
	case strings.HasPrefix(code, "INVALID_EMAIL"):
		return autherr.New(autherr.ErrInvalidEmail, "Please enter a valid email address.", cause)
	default:
		return cause
	}
}
