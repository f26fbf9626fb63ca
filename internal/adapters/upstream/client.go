// Package upstream implements the ports facing the external messaging/FAQ
// service over its fixed HTTP contract. The ambient session credential is
// attached as the upstream session cookie on every call; no operation takes
// explicit authentication parameters.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/faqdesk/faqdesk/internal/errors"

	"github.com/faqdesk/faqdesk/internal/domain/model"
	domainsession "github.com/faqdesk/faqdesk/internal/domain/session"
	"github.com/faqdesk/faqdesk/internal/ports"
)

// DefaultSessionCookieName is the upstream cookie carrying the ambient credential.
const DefaultSessionCookieName = "token"

// Config captures the subset of upstream behaviour we need.
type Config struct {
	// BaseURL is the upstream service root, e.g. "http://localhost:5000".
	BaseURL string
	// SessionCookieName overrides the upstream session cookie name.
	SessionCookieName string
	// Timeout bounds every upstream round-trip. The contract specifies no
	// timeout, so exceeding this bound is treated as a connectivity failure.
	Timeout time.Duration
	// Client allows injecting a custom http.Client (tests).
	Client *http.Client
	// Logger for resolution failures folded into "not authenticated" (optional).
	Logger *slog.Logger
}

// Client talks to the external messaging service. It implements
// ports.SessionOracle, ports.MessageService, and ports.AccountService.
type Client struct {
	baseURL    string
	cookieName string
	client     *http.Client
	logger     *slog.Logger
}

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionOracle  = (*Client)(nil)
	_ ports.MessageService = (*Client)(nil)
	_ ports.AccountService = (*Client)(nil)
)

// NewClient builds an upstream client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("upstream base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid upstream base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	cookieName := strings.TrimSpace(cfg.SessionCookieName)
	if cookieName == "" {
		cookieName = DefaultSessionCookieName
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    base,
		cookieName: cookieName,
		client:     hc,
		logger:     logger,
	}, nil
}

// authCheckResponse is the success body of GET /users/auth-check.
type authCheckResponse struct {
	Role string `json:"role"`
}

// Resolve performs a single fresh authority check. Every failure mode —
// transport error, timeout, non-success status, undecodable body — folds into
// the unauthenticated session; Resolve never surfaces an error to the caller.
func (c *Client) Resolve(ctx context.Context, cred domainsession.Credential) domainsession.Session {
	var out authCheckResponse
	err := c.do(ctx, requestParams{
		method: http.MethodGet,
		path:   "/users/auth-check",
		cred:   cred,
		out:    &out,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "session resolution folded to unauthenticated", "error", err)
		return domainsession.Anonymous
	}
	return domainsession.Session{Authenticated: true, Role: domainsession.Role(out.Role)}
}

// wireMessage is the upstream representation of a message. The live service
// uses Mongo-style field names (_id) and may omit sentiment entirely.
type wireMessage struct {
	ID        string   `json:"_id"`
	Email     string   `json:"email"`
	Body      string   `json:"message"`
	Sentiment string   `json:"sentiment"`
	Timestamp wireTime `json:"timestamp"`
}

func (m wireMessage) toModel() model.Message {
	return model.Message{
		ID:         m.ID,
		OwnerEmail: m.Email,
		Body:       m.Body,
		Sentiment:  model.Sentiment(m.Sentiment),
		Timestamp:  time.Time(m.Timestamp),
	}
}

// ListMine returns the calling user's received messages.
func (c *Client) ListMine(ctx context.Context, cred domainsession.Credential) ([]model.Message, error) {
	var out struct {
		Messages []wireMessage `json:"messages"`
	}
	err := c.do(ctx, requestParams{
		method: http.MethodGet,
		path:   "/users/get-my-received-messages",
		cred:   cred,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, m.toModel())
	}
	return messages, nil
}

// wireGroup is one owner's bucket in the manager listing.
type wireGroup struct {
	Email    string        `json:"email"`
	Messages []wireMessage `json:"email_messages"`
}

// ListAll returns every user's messages grouped by owner, in server order.
func (c *Client) ListAll(ctx context.Context, cred domainsession.Credential) ([]model.MessageGroup, error) {
	var out []wireGroup
	err := c.do(ctx, requestParams{
		method: http.MethodGet,
		path:   "/users/getAllEmailMessage",
		cred:   cred,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}

	groups := make([]model.MessageGroup, 0, len(out))
	for _, g := range out {
		msgs := make([]model.Message, 0, len(g.Messages))
		for _, m := range g.Messages {
			mm := m.toModel()
			if mm.OwnerEmail == "" {
				mm.OwnerEmail = g.Email
			}
			msgs = append(msgs, mm)
		}
		groups = append(groups, model.MessageGroup{OwnerEmail: g.Email, Messages: msgs})
	}
	return groups, nil
}

// Update replaces the body of the identified message.
func (c *Client) Update(ctx context.Context, cred domainsession.Credential, id, body string) error {
	return c.do(ctx, requestParams{
		method: http.MethodPut,
		path:   "/users/update-message/" + url.PathEscape(id),
		cred:   cred,
		body:   map[string]string{"message": body},
	})
}

// Remove deletes the identified message.
func (c *Client) Remove(ctx context.Context, cred domainsession.Credential, id string) error {
	return c.do(ctx, requestParams{
		method: http.MethodDelete,
		path:   "/users/delete-message/" + url.PathEscape(id),
		cred:   cred,
	})
}

// Send delivers a new message; id, timestamp, and sentiment are assigned upstream.
func (c *Client) Send(ctx context.Context, cred domainsession.Credential, recipientEmail, body string) error {
	return c.do(ctx, requestParams{
		method: http.MethodPost,
		path:   "/users/send-email",
		cred:   cred,
		body:   map[string]string{"email": recipientEmail, "message": body},
	})
}

// Login exchanges credentials for the upstream session cookie. The Set-Cookie
// header values are relayed verbatim; the role is obtained separately via
// Resolve, never inferred from the login response.
func (c *Client) Login(ctx context.Context, email, password string) (ports.LoginGrant, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return ports.LoginGrant{}, apperrors.Wrap(err, apperrors.ErrCodeService, "encode login request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/login", bytes.NewReader(payload))
	if err != nil {
		return ports.LoginGrant{}, apperrors.Wrap(err, apperrors.ErrCodeService, "create login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.LoginGrant{}, connectivityError(err, "login")
	}
	defer closeQuietly(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Login failures carry the upstream message verbatim ("Invalid
		// password", "User not found"); they are service errors for display,
		// not session-expiry redirects.
		return ports.LoginGrant{}, apperrors.Service(readUpstreamError(resp))
	}

	grant := ports.LoginGrant{SetCookies: resp.Header.Values("Set-Cookie")}
	if len(grant.SetCookies) == 0 {
		return ports.LoginGrant{}, apperrors.Service("login succeeded but no session was issued")
	}
	return grant, nil
}

// Signup registers a new account and returns the upstream confirmation message.
func (c *Client) Signup(ctx context.Context, in ports.SignupInput) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, requestParams{
		method: http.MethodPost,
		path:   "/users/",
		body: map[string]string{
			"name":            in.Name,
			"email":           in.Email,
			"password":        in.Password,
			"confirmPassword": in.ConfirmPassword,
		},
		out: &out,
	})
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// Logout invalidates the upstream session.
func (c *Client) Logout(ctx context.Context, cred domainsession.Credential) error {
	return c.do(ctx, requestParams{
		method: http.MethodPost,
		path:   "/users/logout",
		cred:   cred,
	})
}

// requestParams groups arguments for do (≤3 params rule).
type requestParams struct {
	method string
	path   string
	cred   domainsession.Credential
	body   any
	out    any
}

// do performs one upstream round-trip and maps failures onto the error
// taxonomy: transport problems become connectivity errors, 401 becomes
// unauthorized, 403 forbidden, and any other non-success response a service
// error carrying the upstream-provided message verbatim.
func (c *Client) do(ctx context.Context, p requestParams) error {
	var reqBody io.Reader
	if p.body != nil {
		payload, err := json.Marshal(p.body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeService, "encode request")
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, p.method, c.baseURL+p.path, reqBody)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeService, "create request")
	}
	if p.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.cred != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: string(p.cred)})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return connectivityError(err, p.method+" "+p.path)
	}
	defer closeQuietly(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readUpstreamError(resp)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return apperrors.Unauthorized(msg)
		case http.StatusForbidden:
			return apperrors.Forbidden(msg)
		default:
			return apperrors.Service(msg)
		}
	}

	if p.out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(p.out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeService, "decode response")
	}
	return nil
}

// readUpstreamError extracts the {"error": "..."} body, falling back to the
// HTTP status text when the body is missing or malformed.
func readUpstreamError(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return http.StatusText(resp.StatusCode)
}

func connectivityError(err error, op string) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.ErrCodeConnectivity, op)
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
