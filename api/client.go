package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"wisdar/model"
)

// ErrUnauthorized is returned when the backend rejects the session token.
// Callers tear down to the login view; see Client.OnUnauthorized.
var ErrUnauthorized = errors.New("not authenticated")

// APIError carries the backend's error message and HTTP status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// Client talks to the Wisdar backend. All endpoints except Login require the
// bearer token obtained at login; a 401 on any call invalidates the session,
// fires the unauthorized hook once and returns ErrUnauthorized.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu    sync.Mutex
	token string

	// OnUnauthorized runs (once per session) when any request comes back 401.
	OnUnauthorized func()
}

// New creates a client for the backend at baseURL (scheme://host, no
// trailing slash required).
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

// HTTPClient returns an http.Client that injects the session token, for
// transports that manage their own requests (the SSE stream).
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: &authTransport{client: c}}
}

type authTransport struct {
	client *Client
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if token := t.client.Token(); token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// Token returns the current session token, empty when logged out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// LoginResult is the successful login response.
type LoginResult struct {
	AccessToken string     `json:"access_token"`
	User        model.User `json:"user"`
}

// Login exchanges credentials for a session token and the user record. The
// token is retained for all subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var result LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", body, &result); err != nil {
		return nil, err
	}
	c.setToken(result.AccessToken)
	return &result, nil
}

// Logout drops the session token. The backend keeps no session state beyond
// the token itself.
func (c *Client) Logout() {
	c.setToken("")
}

// StreamURL is the SSE endpoint the push transport connects to.
func (c *Client) StreamURL() string {
	return c.baseURL + "/api/stream/events"
}

// doJSON performs a request with an optional JSON body, decoding a JSON
// response into out (which may be nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// do sends a prepared request, handling auth, error mapping and decoding.
func (c *Client) do(req *http.Request, out any) error {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized()
		return errors.Wrapf(ErrUnauthorized, "%s %s", req.Method, req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(c.apiError(resp), "%s %s", req.Method, req.URL.Path)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s response", req.URL.Path)
	}
	return nil
}

// handleUnauthorized invalidates the session and fires the hook once: the
// token is cleared first, so concurrent 401s after the first see an already
// logged-out client.
func (c *Client) handleUnauthorized() {
	c.mu.Lock()
	hadToken := c.token != ""
	c.token = ""
	c.mu.Unlock()

	if hadToken && c.OnUnauthorized != nil {
		c.log.Warn().Msg("session rejected, logging out")
		c.OnUnauthorized()
	}
}

func (c *Client) apiError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
		apiErr.Message = body.Message
	}
	return apiErr
}
