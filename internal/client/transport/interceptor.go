// Package transport decorates outgoing HTTP requests with the session
// bearer token and recovers transparently from a single expired-token
// rejection.
package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"medilink/internal/client/autherr"
)

// TokenSource supplies bearer credentials. AuthToken may serve a cached
// value; RefreshAuthToken always goes back to the identity provider.
type TokenSource interface {
	AuthToken(ctx context.Context) (string, error)
	RefreshAuthToken(ctx context.Context) (string, error)
}

// exemptSuffixes are the auth endpoints that must go out bare: attaching
// a stale token to a login request would turn a credentials problem into
// a token problem.
var exemptSuffixes = []string{
	"/auth/login",
	"/auth/register",
	"/auth/forgot-password",
}

// Interceptor is an http.RoundTripper that attaches Authorization headers
// and retries a 401 response exactly once after a forced token refresh.
// Concurrent 401s share a single in-flight refresh.
type Interceptor struct {
	next   http.RoundTripper
	tokens TokenSource
	log    zerolog.Logger

	// invoked after the retry also fails with 401, before the error
	// surfaces to the caller; the session layer hooks its sign-out here
	onAuthFailure func()

	refreshMu sync.Mutex
	inflight  *refreshCall
}

type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

type Option func(*Interceptor)

// WithAuthFailureHook registers fn to run when a request is rejected with
// 401 even after a fresh token.
func WithAuthFailureHook(fn func()) Option {
	return func(i *Interceptor) { i.onAuthFailure = fn }
}

// New wraps next (nil means http.DefaultTransport) with the interceptor.
func New(next http.RoundTripper, tokens TokenSource, log zerolog.Logger, opts ...Option) *Interceptor {
	if next == nil {
		next = http.DefaultTransport
	}
	i := &Interceptor{
		next:   next,
		tokens: tokens,
		log:    log.With().Str("component", "transport").Logger(),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Client returns an *http.Client whose transport is the interceptor.
func (i *Interceptor) Client() *http.Client {
	return &http.Client{Transport: i}
}

func exempt(path string) bool {
	for _, s := range exemptSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

// RoundTrip implements http.RoundTripper. The inbound request is never
// mutated; clones carry the header changes.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if exempt(req.URL.Path) {
		return i.forward(req, "")
	}

	tok, err := i.tokens.AuthToken(req.Context())
	if err != nil {
		return nil, err
	}
	resp, err := i.forward(req, tok)
	if err != nil {
		return nil, mapTransportErr(err)
	}
	if resp.StatusCode != http.StatusUnauthorized || tok == "" {
		return resp, nil
	}

	// token rejected: drain the response, refresh once, replay once.
	// A body that cannot be replayed rules the retry out entirely; resending
	// it empty would fabricate a success the server never saw.
	drain(resp)
	retry, err := rewind(req)
	if err != nil {
		i.authFailed(req)
		return nil, autherr.New(autherr.ErrAuthenticationFailed,
			"Your session has expired. Please sign in again.", err)
	}
	fresh, err := i.sharedRefresh(req.Context())
	if err != nil || fresh == "" {
		i.authFailed(req)
		return nil, autherr.New(autherr.ErrAuthenticationFailed,
			"Your session has expired. Please sign in again.", err)
	}
	resp, err = i.forward(retry, fresh)
	if err != nil {
		return nil, mapTransportErr(err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		i.authFailed(req)
		return nil, autherr.New(autherr.ErrAuthenticationFailed,
			"Your session has expired. Please sign in again.", nil)
	}
	return resp, nil
}

func (i *Interceptor) forward(req *http.Request, token string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	return i.next.RoundTrip(clone)
}

// sharedRefresh coalesces concurrent refresh triggers: the first caller
// performs the provider round trip, every later caller waits on the same
// result. A burst of 401s costs one refresh.
func (i *Interceptor) sharedRefresh(ctx context.Context) (string, error) {
	i.refreshMu.Lock()
	if call := i.inflight; call != nil {
		i.refreshMu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	i.inflight = call
	i.refreshMu.Unlock()

	call.token, call.err = i.tokens.RefreshAuthToken(ctx)
	close(call.done)

	i.refreshMu.Lock()
	i.inflight = nil
	i.refreshMu.Unlock()
	return call.token, call.err
}

func (i *Interceptor) authFailed(req *http.Request) {
	i.log.Warn().Str("path", req.URL.Path).Msg("request rejected after token refresh")
	if i.onAuthFailure != nil {
		i.onAuthFailure()
	}
}

// rewind prepares the request for a second send. Bodies are replayed via
// GetBody, which http.NewRequestWithContext sets for buffered payloads; a
// streamed body without GetBody cannot be resent.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

// mapTransportErr classifies failures that never produced an HTTP status.
// Context cancellation passes through untouched so callers can tell a
// deliberate abort from a dead network.
func mapTransportErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ae *autherr.Error
	if errors.As(err, &ae) {
		return err
	}
	return autherr.New(autherr.ErrConnectivity,
		"Cannot reach the server. Check your connection and try again.", err)
}

func drain(resp *http.Response) {
	if resp.Body != nil {
		_ = resp.Body.Close()
	}
}
