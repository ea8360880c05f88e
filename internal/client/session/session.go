// Package session owns the authenticated identity: sign-in, sign-out and
// registration against the identity provider and backend, the cached bearer
// credential, and the current-user stream consumed by guards and UI.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medilink/internal/client/api"
	"medilink/internal/client/provider"
	"medilink/internal/shared/models"
)

// State of the session machine.
type State int

const (
	SignedOut State = iota
	Authenticating
	SignedIn
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case SignedIn:
		return "signed-in"
	default:
		return "signed-out"
	}
}

// Keystore keys for the persisted snapshot.
const (
	keyIdentity    = "identity"
	keyCustomToken = "customToken"
	keyInstallID   = "installationId"
)

// Backend is the slice of the API client the session manager needs. The
// endpoints behind it are exempt from the interceptor's auth header.
type Backend interface {
	Login(ctx context.Context, email, password string) (api.LoginResult, error)
	Register(ctx context.Context, reg api.Registration) (api.RegisterResult, error)
	GoogleLogin(ctx context.Context, idToken string) (api.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, otp string) error
	ResetPassword(ctx context.Context, email, newPassword string) error
}

// KV is the persistent key-value boundary for the identity snapshot.
type KV interface {
	Set(key string, value any) error
	Get(key string, out any) (bool, error)
	Remove(key string) error
}

const defaultSafetyMargin = 5 * time.Minute

// Manager is the single source of truth for who is signed in. All state
// behind mu is replaced together: identity, state and credential never
// mix values from two different transitions.
type Manager struct {
	provider provider.Client
	backend  Backend
	store    KV
	log      zerolog.Logger

	margin   time.Duration
	attempts int
	now      func() time.Time

	mu       sync.Mutex
	state    State
	identity *models.Identity
	cred     models.Credential

	subMu   sync.Mutex
	subs    map[int]chan *models.Identity
	nextSub int
}

// Option tunes a Manager; the defaults match production behavior.
type Option func(*Manager)

func WithSafetyMargin(d time.Duration) Option { return func(m *Manager) { m.margin = d } }
func WithRefreshAttempts(n int) Option        { return func(m *Manager) { m.attempts = n } }
func WithClock(now func() time.Time) Option   { return func(m *Manager) { m.now = now } }

func NewManager(p provider.Client, b Backend, store KV, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		provider: p,
		backend:  b,
		store:    store,
		log:      log.With().Str("component", "session").Logger(),
		margin:   defaultSafetyMargin,
		attempts: 2,
		now:      time.Now,
		subs:     make(map[int]chan *models.Identity),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Restore loads the persisted identity snapshot and, best-effort,
// re-establishes the provider session from the cached custom token. A
// failed provider exchange leaves the restored identity in place; the
// first protected request will surface the problem through the
// interceptor's retry path.
func (m *Manager) Restore(ctx context.Context) {
	var id models.Identity
	found, err := m.store.Get(keyIdentity, &id)
	if err != nil {
		m.log.Warn().Err(err).Msg("identity snapshot unreadable")
		return
	}
	if !found {
		return
	}
	if err := id.Validate(); err != nil {
		m.log.Warn().Err(err).Msg("discarding malformed identity snapshot")
		_ = m.store.Remove(keyIdentity)
		return
	}

	m.mu.Lock()
	m.state = SignedIn
	m.identity = &id
	m.mu.Unlock()
	m.notify(&id)

	var custom string
	if found, err := m.store.Get(keyCustomToken, &custom); err == nil && found && custom != "" {
		if sess, err := m.provider.SignInWithCustomToken(ctx, custom); err != nil {
			m.log.Warn().Err(err).Msg("stored custom token rejected by provider")
		} else {
			m.setCredential(sess.Token)
		}
	}
}

// CurrentIdentity reads the in-memory identity. It never blocks on I/O.
func (m *Manager) CurrentIdentity() *models.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// State reports the current machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a stream of identity transitions. The current value is
// replayed immediately; each subscriber holds at most one pending value.
// The returned cancel function releases the subscription.
func (m *Manager) Subscribe() (<-chan *models.Identity, func()) {
	ch := make(chan *models.Identity, 1)
	m.subMu.Lock()
	idx := m.nextSub
	m.nextSub++
	m.subs[idx] = ch
	m.subMu.Unlock()

	ch <- m.CurrentIdentity()

	cancel := func() {
		m.subMu.Lock()
		delete(m.subs, idx)
		m.subMu.Unlock()
	}
	return ch, cancel
}

// notify broadcasts after the snapshot write has settled: callers must
// persist first, then notify, so a subscriber never observes a signed-in
// identity whose durable record does not exist yet.
func (m *Manager) notify(id *models.Identity) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		// drop the stale pending value, keep only the latest
		select {
		case <-ch:
		default:
		}
		ch <- id
	}
}

// InstallationID returns the per-device identifier, creating it on first use.
func (m *Manager) InstallationID() (string, error) {
	var id string
	found, err := m.store.Get(keyInstallID, &id)
	if err != nil {
		return "", fmt.Errorf("installation id: %w", err)
	}
	if found && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := m.store.Set(keyInstallID, id); err != nil {
		return "", fmt.Errorf("installation id: %w", err)
	}
	return id, nil
}

// setCredential replaces token and expiry together; the last successful
// refresh wins and fields are never interleaved across refreshes.
func (m *Manager) setCredential(tok provider.IDToken) {
	m.mu.Lock()
	m.cred = models.Credential{Token: tok.Raw, Expiry: tok.Claims.ExpiresAt}
	m.mu.Unlock()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// adopt installs a fresh signed-in identity. The snapshot is written
// before any subscriber hears about the transition.
func (m *Manager) adopt(id *models.Identity, tok provider.IDToken, customToken string) error {
	if err := m.store.Set(keyIdentity, id); err != nil {
		return fmt.Errorf("persist identity snapshot: %w", err)
	}
	if customToken != "" {
		if err := m.store.Set(keyCustomToken, customToken); err != nil {
			m.log.Warn().Err(err).Msg("custom token not persisted")
		}
	}

	m.mu.Lock()
	m.state = SignedIn
	m.identity = id
	m.cred = models.Credential{Token: tok.Raw, Expiry: tok.Claims.ExpiresAt}
	m.mu.Unlock()

	m.notify(id)
	return nil
}

func (m *Manager) failAuth() {
	m.mu.Lock()
	m.state = SignedOut
	m.identity = nil
	m.cred = models.Credential{}
	m.mu.Unlock()
}
