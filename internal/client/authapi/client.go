package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-auth-flow/internal/domain"
	"github.com/google/uuid"
)

const (
	RequestIDHeader     = "X-Request-ID"
	AuthorizationHeader = "Authorization"
)

// Fallback messages used when the server rejects a call without one.
const (
	MsgLoginFailed     = "Login failed"
	MsgSignupFailed    = "Signup failed"
	MsgVerifyFailed    = "OTP verification failed"
	MsgResendFailed    = "Failed to resend OTP"
	MsgGetUserFailed   = "Failed to get user data"
	MsgLogoutFailed    = "Logout failed"
	MsgNoData          = "No data received from server"
	MsgNoUserData      = "No user data received"
	maxErrorBodyLength = 512
)

// APIError is a failure reported by the auth service through its envelope.
// Message is meant to be shown to the user verbatim.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// envelope is the shape of every auth service response.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *T     `json:"data,omitempty"`
}

type meData struct {
	User *domain.PublicUser `json:"user"`
}

// Client calls the remote auth service. It never retries: every failure is
// returned to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

// New creates a Client for the service rooted at baseURL
// (e.g. http://localhost:3000/api/auth). If httpClient is nil,
// http.DefaultClient is used.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        slog.Default().With("component", "authapi"),
	}
}

// Login exchanges credentials for a user and a bearer token.
func (c *Client) Login(ctx context.Context, creds domain.LoginCredentials) (*domain.AuthResult, error) {
	return authResult(call[domain.AuthResult](ctx, c, request{
		op: "login", method: http.MethodPost, path: "/login", body: creds,
		fallback: MsgLoginFailed, requireData: true,
	}))
}

// Signup registers an account. The account is not authenticated until its
// signup OTP has been verified.
func (c *Client) Signup(ctx context.Context, creds domain.SignupCredentials) (*domain.SignupResult, error) {
	return call[domain.SignupResult](ctx, c, request{
		op: "signup", method: http.MethodPost, path: "/signup", body: creds,
		fallback: MsgSignupFailed, requireData: true,
	})
}

// VerifyOTP confirms a one-time password and returns the authenticated user and token.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string, typ domain.OTPType) (*domain.AuthResult, error) {
	return authResult(call[domain.AuthResult](ctx, c, request{
		op: "verify-otp", method: http.MethodPost, path: "/verify-otp",
		body:     domain.VerifyOTPRequest{Email: email, OTP: otp, Type: typ.OrDefault()},
		fallback: MsgVerifyFailed, requireData: true,
	}))
}

// authResult rejects a token payload that lacks the token or the user.
func authResult(res *domain.AuthResult, err error) (*domain.AuthResult, error) {
	if err != nil {
		return nil, err
	}
	if res.Token == "" || res.User == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: MsgNoData}
	}
	return res, nil
}

// ResendOTP asks the service to issue a fresh one-time password.
func (c *Client) ResendOTP(ctx context.Context, email string, typ domain.OTPType) error {
	_, err := call[json.RawMessage](ctx, c, request{
		op: "resend-otp", method: http.MethodPost, path: "/resend-otp",
		body:     domain.ResendOTPRequest{Email: email, Type: typ.OrDefault()},
		fallback: MsgResendFailed,
	})
	return err
}

// GetCurrentUser returns the user owning token.
func (c *Client) GetCurrentUser(ctx context.Context, token string) (*domain.PublicUser, error) {
	data, err := call[meData](ctx, c, request{
		op: "me", method: http.MethodGet, path: "/me", token: token,
		fallback: MsgGetUserFailed, requireData: true, noData: MsgNoUserData,
	})
	if err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, &APIError{Op: "me", StatusCode: http.StatusOK, Message: MsgNoUserData}
	}
	return data.User, nil
}

// Logout disables the server-side session behind token.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := call[json.RawMessage](ctx, c, request{
		op: "logout", method: http.MethodPost, path: "/logout", token: token,
		fallback: MsgLogoutFailed,
	})
	return err
}

type request struct {
	op          string
	method      string
	path        string
	token       string
	body        interface{}
	fallback    string
	requireData bool
	noData      string
}

// call performs one request and decodes its envelope into either the typed
// payload or an *APIError.
func call[T any](ctx context.Context, c *Client, r request) (_ *T, err error) {
	defer func() {
		if err != nil {
			c.log.ErrorContext(ctx, "auth api call failed", "op", r.op, "err", err)
		}
	}()

	var body io.Reader
	if r.body != nil {
		b, mErr := json.Marshal(r.body)
		if mErr != nil {
			return nil, fmt.Errorf("marshal %s request: %w", r.op, mErr)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return nil, fmt.Errorf("new %s request: %w", r.op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if r.token != "" {
		req.Header.Set(AuthorizationHeader, "Bearer "+r.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", strings.ToLower(r.method), r.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", r.op, err)
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %s response (status %d, body %q): %w",
			r.op, resp.StatusCode, truncate(raw, maxErrorBodyLength), err)
	}

	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = r.fallback
		}
		return nil, &APIError{Op: r.op, StatusCode: resp.StatusCode, Message: msg}
	}

	if env.Data == nil {
		if r.requireData {
			msg := r.noData
			if msg == "" {
				msg = MsgNoData
			}
			return nil, &APIError{Op: r.op, StatusCode: resp.StatusCode, Message: msg}
		}
		var zero T
		return &zero, nil
	}
	return env.Data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
