package handler

import (
	"net/http"

	"github.com/go-auth-flow/internal/application/auth"
	"github.com/go-auth-flow/internal/domain"
	"github.com/go-auth-flow/internal/transport/http/middleware"
)

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupCredentials
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "User registered successfully. Please verify your email with the OTP sent.", res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginCredentials
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Login successful", res)
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "OTP verified successfully", res)
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.ResendOTPRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ResendOTP(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "OTP sent successfully", nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	u, err := h.svc.Me(r.Context(), claims.UserID, claims.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "User fetched successfully", MeData{User: u})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeFail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := h.svc.Logout(r.Context(), claims.UserID, claims.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Logged out successfully", nil)
}
