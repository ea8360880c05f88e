package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"medilink/internal/client/autherr"
)

// BrowserOpener launches the system browser at the given URL.
type BrowserOpener func(url string) error

// FederatedSignIn runs the provider's consent flow: it serves a loopback
// callback, opens the consent page in the browser and exchanges the ID
// token it receives for a provider session. Cancelling ctx before the
// callback arrives is the "popup closed" outcome; failing to open the
// browser at all is "popup blocked".
func (c *RESTClient) FederatedSignIn(ctx context.Context) (*Session, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, autherr.New(autherr.ErrPopupBlocked, "Sign-in window could not be opened.", err)
	}
	defer ln.Close()

	state := c.newUUID()
	redirect := fmt.Sprintf("http://%s/callback", ln.Addr().String())

	type callbackResult struct {
		idToken string
		err     error
	}
	results := make(chan callbackResult, 1)

	mux := chi.NewRouter()
	mux.Get("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: errors.New("state mismatch")}
		case q.Get("error") != "":
			fmt.Fprintln(w, "Sign-in was cancelled. You can close this window.")
			results <- callbackResult{err: errors.New(q.Get("error"))}
		default:
			fmt.Fprintln(w, "Signed in. You can close this window.")
			results <- callbackResult{idToken: q.Get("id_token")}
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	consent := c.cfg.AuthURL + "?" + url.Values{
		"response_type": {"id_token"},
		"redirect_uri":  {redirect},
		"state":         {state},
		"scope":         {"openid email profile"},
	}.Encode()
	if err := c.open(consent); err != nil {
		return nil, autherr.New(autherr.ErrPopupBlocked, "Sign-in window could not be opened.", err)
	}
	c.log.Info().Str("redirect", redirect).Msg("waiting for consent callback")

	select {
	case <-ctx.Done():
		return nil, autherr.New(autherr.ErrPopupClosed, "Sign-in was cancelled.", ctx.Err())
	case res := <-results:
		if res.err != nil {
			return nil, autherr.New(autherr.ErrPopupClosed, "Sign-in was cancelled.", res.err)
		}
		return c.signInWithIDP(ctx, res.idToken, redirect)
	}
}

// signInWithIDP exchanges a federated ID token for a full provider session.
func (c *RESTClient) signInWithIDP(ctx context.Context, idToken, requestURI string) (*Session, error) {
	body := map[string]any{
		"postBody":          "id_token=" + url.QueryEscape(idToken) + "&providerId=google.com",
		"requestUri":        requestURI,
		"returnSecureToken": true,
	}
	var res secureTokenResponse
	if err := c.post(ctx, c.accountURL("signInWithIdp"), body, &res); err != nil {
		return nil, err
	}
	return c.adoptSession(res)
}

// FederatedIDToken returns the raw provider ID token of the current
// session, for the backend's federated-login exchange.
func (c *RESTClient) FederatedIDToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token.Raw
}

func newState() string { return uuid.NewString() }

func openBrowser(u string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", u).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", u).Start()
	default:
		return exec.Command("xdg-open", u).Start()
	}
}
