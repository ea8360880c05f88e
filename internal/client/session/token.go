package session

import (
	"context"
	"errors"

	"medilink/internal/client/provider"
	"medilink/internal/shared/models"
)

// AuthToken returns a currently valid bearer credential. A cached token
// whose expiry is more than the safety margin away is served without any
// network call. Otherwise the provider is asked for a forced refresh, up
// to the configured attempt bound.
//
// When every refresh attempt fails but a token is still at hand, the
// token is returned with its cached expiry cleared instead of failing the
// caller: availability wins over strict correctness here, and the cleared
// expiry guarantees the next call will not trust the cache. Nobody signed
// in yields ("", nil) without touching the provider.
func (m *Manager) AuthToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	signedIn := m.identity != nil
	cred := m.cred
	m.mu.Unlock()

	if !signedIn {
		return "", nil
	}
	if cred.TrustedAt(m.now(), m.margin) {
		return cred.Token, nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		tok, err := m.provider.IDToken(ctx, true)
		if err == nil {
			m.setCredential(tok)
			return tok.Raw, nil
		}
		lastErr = err
		if errors.Is(err, provider.ErrNoSession) || errors.Is(err, context.Canceled) {
			break
		}
		m.log.Warn().Err(err).Int("attempt", attempt).Msg("token refresh failed")
	}

	if cred.Token != "" {
		m.mu.Lock()
		// a concurrent caller may have cached a fresh credential while we
		// were failing; last successful refresh wins, so only the snapshot
		// we started from gets its expiry cleared
		if m.cred == cred {
			m.cred = models.Credential{Token: cred.Token}
		}
		live := m.cred
		m.mu.Unlock()
		if live.Token != "" {
			if live.Expiry.IsZero() {
				m.log.Warn().Err(lastErr).Msg("serving token without cached expiry after refresh failures")
			}
			return live.Token, nil
		}
	}
	return "", lastErr
}

// RefreshAuthToken forces a provider refresh regardless of the cache, for
// the interceptor's recover-from-401 path.
func (m *Manager) RefreshAuthToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	signedIn := m.identity != nil
	m.mu.Unlock()
	if !signedIn {
		return "", nil
	}

	tok, err := m.provider.IDToken(ctx, true)
	if err != nil {
		return "", err
	}
	m.setCredential(tok)
	return tok.Raw, nil
}
