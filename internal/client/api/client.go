// Package api is the REST client for the clinic backend. All protected
// calls go through the shared http.Client, whose transport attaches the
// bearer credential and handles the retry-on-401 policy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medilink/internal/client/autherr"
)

type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func New(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		log:     log.With().Str("component", "api").Logger(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// do issues one JSON request. Backend errors come back as {"error": "..."}
// and are re-mapped to the client error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return transportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.apiError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) apiError(method, path string, resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Error
	c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Str("error", msg).Msg("backend rejected request")

	cause := fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	lower := strings.ToLower(msg)
	switch {
	case resp.StatusCode == http.StatusConflict && strings.Contains(lower, "email"):
		return autherr.New(autherr.ErrEmailAlreadyInUse, "Email already registered.", cause)
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(lower, "email"):
		return autherr.New(autherr.ErrInvalidEmail, "Please enter a valid email address.", cause)
	case resp.StatusCode == http.StatusUnauthorized:
		return autherr.New(autherr.ErrInvalidCredentials, "Invalid email or password. Please try again.", cause)
	case resp.StatusCode == http.StatusTooManyRequests:
		return autherr.New(autherr.ErrTooManyAttempts, "Too many attempts. Please try again later.", cause)
	default:
		if msg == "" {
			msg = resp.Status
		}
		return &autherr.Error{Kind: cause, Message: msg}
	}
}

// transportErr classifies round-trip failures. Taxonomy errors from the
// interceptor or the session layer travel inside url.Error and keep their
// identity; everything else is a connectivity problem.
func transportErr(err error) error {
	var ae *autherr.Error
	if errors.As(err, &ae) {
		return err
	}
	return autherr.New(autherr.ErrConnectivity, "Could not reach the server. Please try again later.", err)
}

func queryPath(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
