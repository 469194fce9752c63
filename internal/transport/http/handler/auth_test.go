package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-auth-flow/internal/config"
	"github.com/go-auth-flow/internal/domain"
	jwtinfra "github.com/go-auth-flow/internal/infrastructure/jwt"
	"github.com/go-auth-flow/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Signup(ctx context.Context, req domain.SignupCredentials) (*domain.SignupResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*domain.SignupResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Login(ctx context.Context, req domain.LoginCredentials) (*domain.AuthResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*domain.AuthResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*domain.AuthResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*domain.AuthResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ResendOTP(ctx context.Context, req domain.ResendOTPRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) Me(ctx context.Context, userID, sessionID string) (*domain.PublicUser, error) {
	args := m.Called(ctx, userID, sessionID)
	if u, _ := args.Get(0).(*domain.PublicUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Logout(ctx context.Context, userID, sessionID string) error {
	return m.Called(ctx, userID, sessionID).Error(0)
}

// --- helpers ---

// newTestJWTProvider generates a fresh RSA key pair and returns a *jwtinfra.Provider.
func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := jwtinfra.NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTExpiry:         24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

func newTestRouter(svc *mockAuthSvc, p *jwtinfra.Provider) http.Handler {
	h := NewAuthHandler(svc)
	r := chi.NewRouter()
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/verify-otp", h.VerifyOTP)
	r.Post("/resend-otp", h.ResendOTP)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(p))
		r.Get("/me", h.Me)
		r.Post("/logout", h.Logout)
	})
	return r
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

// --- tests ---

func TestLogin_OK(t *testing.T) {
	svc := &mockAuthSvc{}
	creds := domain.LoginCredentials{Email: "a@b.co", Password: "P@ssw0rd"}
	svc.On("Login", mock.Anything, creds).Return(&domain.AuthResult{
		Token: "tok", User: &domain.PublicUser{ID: "u1", Email: "a@b.co", Name: "Alice"},
	}, nil)

	rr := httptest.NewRecorder()
	newTestRouter(svc, newTestJWTProvider(t)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, creds)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"message":"Login successful","data":{"token":"tok","user":{"id":"u1","email":"a@b.co","name":"Alice"}}}`, rr.Body.String())
}

func TestLogin_DomainErrorMapsToStatus(t *testing.T) {
	cases := []struct {
		kind   error
		status int
	}{
		{domain.ErrBadRequest, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrTooManyRequests, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.kind.Error(), func(t *testing.T) {
			svc := &mockAuthSvc{}
			svc.On("Login", mock.Anything, mock.Anything).Return(nil, domain.NewError(tc.kind, "nope"))

			rr := httptest.NewRecorder()
			newTestRouter(svc, newTestJWTProvider(t)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, domain.LoginCredentials{})))

			assert.Equal(t, tc.status, rr.Code)
			env := decodeEnvelope(t, rr)
			assert.Equal(t, false, env["success"])
			assert.Equal(t, "nope", env["message"])
		})
	}
}

func TestLogin_InternalErrorIsHidden(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, errors.New("dynamo: throttled"))

	rr := httptest.NewRecorder()
	newTestRouter(svc, newTestJWTProvider(t)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, domain.LoginCredentials{})))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeEnvelope(t, rr)["message"])
}

func TestLogin_MalformedBody(t *testing.T) {
	svc := &mockAuthSvc{}
	rr := httptest.NewRecorder()
	newTestRouter(svc, newTestJWTProvider(t)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader([]byte("{"))))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestSignup_Created(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Signup", mock.Anything, mock.MatchedBy(func(c domain.SignupCredentials) bool {
		return c.ConfirmPassword == "P@ssw0rd"
	})).Return(&domain.SignupResult{UserID: "u1", Email: "a@b.co", Name: "Alice"}, nil)

	body := `{"name":"Alice","email":"a@b.co","password":"P@ssw0rd","confirmPassword":"P@ssw0rd"}`
	rr := httptest.NewRecorder()
	newTestRouter(svc, newTestJWTProvider(t)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/signup", bytes.NewReader([]byte(body))))

	assert.Equal(t, http.StatusCreated, rr.Code)
	env := decodeEnvelope(t, rr)
	data := env["data"].(map[string]interface{})
	assert.Equal(t, "u1", data["userId"])
	assert.Equal(t, false, data["isEmailVerified"])
}

func TestResendOTP_NoData(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ResendOTP", mock.Anything, domain.ResendOTPRequest{Email: "a@b.co", Type: domain.OTPTypeLogin}).Return(nil)

	rr := httptest.NewRecorder()
	newTestRouter(svc, newTestJWTProvider(t)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/resend-otp",
		bytes.NewReader([]byte(`{"email":"a@b.co","type":"login"}`))))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"message":"OTP sent successfully"}`, rr.Body.String())
}

func TestMe_UsesClaims(t *testing.T) {
	p := newTestJWTProvider(t)
	token, err := p.Sign("u1", "s1")
	require.NoError(t, err)

	svc := &mockAuthSvc{}
	svc.On("Me", mock.Anything, "u1", "s1").Return(&domain.PublicUser{ID: "u1", Email: "a@b.co", Name: "Alice"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	newTestRouter(svc, p).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	env := decodeEnvelope(t, rr)
	user := env["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, "u1", user["id"])
}

func TestMe_NoToken(t *testing.T) {
	svc := &mockAuthSvc{}
	rr := httptest.NewRecorder()
	newTestRouter(svc, newTestJWTProvider(t)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "Me", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogout_OK(t *testing.T) {
	p := newTestJWTProvider(t)
	token, err := p.Sign("u1", "s1")
	require.NoError(t, err)

	svc := &mockAuthSvc{}
	svc.On("Logout", mock.Anything, "u1", "s1").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	newTestRouter(svc, p).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}
