package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-auth-flow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer serves a fixed status and body on every path and records the last request.
func newTestServer(t *testing.T, status int, body string) (*Client, *http.Request, *[]byte) {
	t.Helper()
	last := &http.Request{}
	lastBody := &[]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*last = *r.Clone(context.Background())
		b, _ := io.ReadAll(r.Body)
		*lastBody = b
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/auth/", srv.Client()), last, lastBody
}

func TestLogin_Success(t *testing.T) {
	c, req, body := newTestServer(t, http.StatusOK,
		`{"success":true,"message":"ok","data":{"token":"tok","user":{"id":"1","email":"a@b.co","name":"A"}}}`)

	res, err := c.Login(context.Background(), domain.LoginCredentials{Email: "a@b.co", Password: "Abcdef1!"})
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "1", res.User.ID)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/auth/login", req.URL.Path)
	assert.NotEmpty(t, req.Header.Get(RequestIDHeader))
	assert.Empty(t, req.Header.Get(AuthorizationHeader))

	var sent map[string]string
	require.NoError(t, json.Unmarshal(*body, &sent))
	assert.Equal(t, map[string]string{"email": "a@b.co", "password": "Abcdef1!"}, sent)
}

func TestLogin_ServerMessage(t *testing.T) {
	c, _, _ := newTestServer(t, http.StatusUnauthorized, `{"success":false,"message":"Invalid email or password"}`)

	_, err := c.Login(context.Background(), domain.LoginCredentials{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestLogin_FallbackMessage(t *testing.T) {
	c, _, _ := newTestServer(t, http.StatusBadRequest, `{"success":false}`)

	_, err := c.Login(context.Background(), domain.LoginCredentials{})
	require.Error(t, err)
	assert.Equal(t, MsgLoginFailed, err.Error())
}

func TestLogin_MissingData(t *testing.T) {
	c, _, _ := newTestServer(t, http.StatusOK, `{"success":true,"message":"ok"}`)

	_, err := c.Login(context.Background(), domain.LoginCredentials{})
	require.Error(t, err)
	assert.Equal(t, MsgNoData, err.Error())
}

func TestLogin_MissingToken(t *testing.T) {
	c, _, _ := newTestServer(t, http.StatusOK, `{"success":true,"data":{"user":{"id":"1"}}}`)

	_, err := c.Login(context.Background(), domain.LoginCredentials{})
	assert.EqualError(t, err, MsgNoData)
}

func TestLogin_NonJSONIsTransportError(t *testing.T) {
	c, _, _ := newTestServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)

	_, err := c.Login(context.Background(), domain.LoginCredentials{})
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestLogin_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, nil).Login(context.Background(), domain.LoginCredentials{})
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestSignup_Success(t *testing.T) {
	c, req, _ := newTestServer(t, http.StatusCreated,
		`{"success":true,"message":"created","data":{"userId":"u1","email":"a@b.co","name":"A","isEmailVerified":false}}`)

	res, err := c.Signup(context.Background(), domain.SignupCredentials{Name: "A", Email: "a@b.co"})
	require.NoError(t, err)
	assert.Equal(t, &domain.SignupResult{UserID: "u1", Email: "a@b.co", Name: "A"}, res)
	assert.Equal(t, "/api/auth/signup", req.URL.Path)
}

func TestVerifyOTP_DefaultsTypeToSignup(t *testing.T) {
	c, _, body := newTestServer(t, http.StatusOK,
		`{"success":true,"data":{"token":"tok","user":{"id":"1","email":"a@b.co","name":"A"}}}`)

	_, err := c.VerifyOTP(context.Background(), "a@b.co", "123456", "")
	require.NoError(t, err)

	var sent map[string]string
	require.NoError(t, json.Unmarshal(*body, &sent))
	assert.Equal(t, "signup", sent["type"])
	assert.Equal(t, "123456", sent["otp"])
}

func TestResendOTP_NoDataIsFine(t *testing.T) {
	c, req, _ := newTestServer(t, http.StatusOK, `{"success":true,"message":"OTP sent"}`)

	require.NoError(t, c.ResendOTP(context.Background(), "a@b.co", domain.OTPTypeLogin))
	assert.Equal(t, "/api/auth/resend-otp", req.URL.Path)
}

func TestResendOTP_Failure(t *testing.T) {
	c, _, _ := newTestServer(t, http.StatusTooManyRequests, `{"success":false,"message":""}`)

	err := c.ResendOTP(context.Background(), "a@b.co", "")
	assert.EqualError(t, err, MsgResendFailed)
}

func TestGetCurrentUser_SendsBearer(t *testing.T) {
	c, req, _ := newTestServer(t, http.StatusOK,
		`{"success":true,"data":{"user":{"id":"1","email":"a@b.co","name":"A","isEmailVerified":true}}}`)

	u, err := c.GetCurrentUser(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)
	require.NotNil(t, u.IsEmailVerified)
	assert.True(t, *u.IsEmailVerified)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "Bearer tok", req.Header.Get(AuthorizationHeader))
}

func TestGetCurrentUser_NoUser(t *testing.T) {
	c, _, _ := newTestServer(t, http.StatusOK, `{"success":true,"data":{}}`)

	_, err := c.GetCurrentUser(context.Background(), "tok")
	assert.EqualError(t, err, MsgNoUserData)
}

func TestGetCurrentUser_Expired(t *testing.T) {
	c, _, _ := newTestServer(t, http.StatusUnauthorized, `{"success":false,"message":"invalid or expired token"}`)

	_, err := c.GetCurrentUser(context.Background(), "tok")
	assert.EqualError(t, err, "invalid or expired token")
}
