// Package authrpc is the client side of the login, logout and session-check
// exchange with the authentication server.
//
// Session state lives in a cookie held by an in-memory jar. Nothing is
// persisted: the local mirror of the identity is kept separately by the
// session package.
package authrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// Failure is the error returned for a failed exchange. Kind is one of
// types.ErrMissingFields, types.ErrInvalidCredentials, types.ErrServer or
// types.ErrTransport, and errors.Is matches it.
type Failure struct {
	Kind    error
	Status  int
	Message string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return f.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Kind
}

// UserMessage returns the server's message, if it sent one.
func (f *Failure) UserMessage() string {
	if f.Kind == types.ErrTransport {
		return ""
	}
	return f.Message
}

// kindForStatus maps an HTTP status to a failure kind.
func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return types.ErrMissingFields
	case http.StatusUnauthorized:
		return types.ErrInvalidCredentials
	default:
		return types.ErrServer
	}
}

// Client talks to the authentication server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The client's cookie jar carries
// the session; a nil Jar disables session tracking.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client for the server at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Jar: jar, Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Login exchanges credentials for an identity.
func (c *Client) Login(ctx context.Context, identifier, password string) (types.SessionIdentity, error) {
	body, err := json.Marshal(LoginRequest{Identifier: &identifier, Password: &password})
	if err != nil {
		return types.SessionIdentity{}, fmt.Errorf("marshal login: %w", err)
	}

	var resp LoginResponse
	status, err := c.do(ctx, http.MethodPost, LoginPath, body, &resp)
	if err != nil {
		return types.SessionIdentity{}, err
	}
	if !resp.Success || resp.User == nil {
		kind := kindForStatus(status)
		if status < http.StatusBadRequest {
			kind = types.ErrServer
		}
		return types.SessionIdentity{}, &Failure{Kind: kind, Status: status, Message: resp.Message}
	}
	return *resp.User, nil
}

// Logout invalidates the server session.
func (c *Client) Logout(ctx context.Context) error {
	var resp LogoutResponse
	status, err := c.do(ctx, http.MethodPost, LogoutPath, nil, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return &Failure{Kind: types.ErrServer, Status: status, Message: resp.Message}
	}
	return nil
}

// CheckSession asks whether the server holds a live session for this
// client. The identity is only meaningful when loggedIn is true.
func (c *Client) CheckSession(ctx context.Context) (identity types.SessionIdentity, loggedIn bool, err error) {
	var resp SessionResponse
	status, err := c.do(ctx, http.MethodGet, SessionPath, nil, &resp)
	if err != nil {
		return types.SessionIdentity{}, false, err
	}
	if !resp.Success {
		return types.SessionIdentity{}, false, &Failure{Kind: types.ErrServer, Status: status}
	}
	if !resp.LoggedIn || resp.User == nil {
		return types.SessionIdentity{}, false, nil
	}
	return *resp.User, true, nil
}

// do sends a request and decodes the JSON response into out. Network errors
// and bodies that are not JSON are transport failures; any decodable body is
// returned with its status for the caller to interpret.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return 0, &Failure{Kind: types.ErrTransport, Message: err.Error()}
	}
	defer res.Body.Close()

	if err := json.NewDecoder(io.LimitReader(res.Body, maxBodySize)).Decode(out); err != nil {
		return res.StatusCode, &Failure{
			Kind:    types.ErrTransport,
			Status:  res.StatusCode,
			Message: fmt.Sprintf("decode %s response: %v", path, err),
		}
	}
	return res.StatusCode, nil
}
