package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/simple-idm-otp/internal/httputil"
	authsvc "github.com/tendant/simple-idm-otp/pkg/auth"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// Handler handles the signup, login, OTP and password reset endpoints.
type Handler struct {
	logger  *slog.Logger
	service *authsvc.Service
}

// NewHandler creates a new auth handler.
func NewHandler(logger *slog.Logger, service *authsvc.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// SignupRequest represents a signup request.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	SessionID string `json:"session_id,omitempty"`
}

// VerifyOTPRequest represents an OTP submission for login.
type VerifyOTPRequest struct {
	Email     string `json:"email"`
	OTP       string `json:"otp"`
	SessionID string `json:"session_id"`
}

// ForgotPasswordRequest represents a password reset request.
type ForgotPasswordRequest struct {
	Email     string `json:"email"`
	SessionID string `json:"session_id,omitempty"`
}

// ResetPasswordRequest represents a password reset confirmation. It is also
// the body of an invitation acceptance.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	SessionID   string `json:"session_id"`
	NewPassword string `json:"new_password"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// TokenResponse is returned when authentication completes.
type TokenResponse struct {
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID.String(), Name: u.Name, Email: u.Email}
}

// Signup handles user registration.
// POST /api/auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.service.Signup(r.Context(), authsvc.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    toUserResponse(user),
	})
}

// Login checks the password and sends a login OTP.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.service.Login(r.Context(), authsvc.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		SessionID: strings.TrimSpace(req.SessionID),
		UserAgent: r.UserAgent(),
		IPAddress: httputil.ClientIP(r),
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"message":      "OTP sent to email",
		"requires_otp": result.RequiresOTP,
		"session_id":   result.SessionID,
	})
}

// VerifyOTP completes a login.
// POST /api/auth/verify-otp
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if msg := validateCodeSubmission(req.Email, req.OTP, req.SessionID); msg != "" {
		httputil.Error(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.service.VerifyLoginOTP(r.Context(), authsvc.VerifyOTPInput{
		Email:     req.Email,
		Code:      req.OTP,
		SessionID: req.SessionID,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	h.writeToken(w, "Login successful", result)
}

// ForgotPassword sends a password reset OTP.
// POST /api/auth/forgot-password
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	sessionID, err := h.service.ForgotPassword(r.Context(), req.Email, strings.TrimSpace(req.SessionID))
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"message":    "OTP sent to email",
		"session_id": sessionID,
	})
}

// ResetPassword consumes a reset OTP and sets the new password.
// POST /api/auth/reset-password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decodeReset(w, r, &req) {
		return
	}

	err := h.service.ResetPassword(r.Context(), authsvc.ResetPasswordInput{
		Email:       req.Email,
		Code:        req.OTP,
		SessionID:   req.SessionID,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

// AcceptInvitation consumes an invitation OTP, sets the user's own password
// and signs them in.
// POST /api/auth/accept-invitation
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decodeReset(w, r, &req) {
		return
	}

	result, err := h.service.AcceptInvitation(r.Context(), authsvc.AcceptInvitationInput{
		Email:       req.Email,
		Code:        req.OTP,
		SessionID:   req.SessionID,
		NewPassword: req.NewPassword,
		UserAgent:   r.UserAgent(),
		IPAddress:   httputil.ClientIP(r),
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	h.writeToken(w, "Invitation accepted", result)
}

func (h *Handler) decodeReset(w http.ResponseWriter, r *http.Request, req *ResetPasswordRequest) bool {
	if !httputil.Decode(w, r, req) {
		return false
	}
	if msg := validateCodeSubmission(req.Email, req.OTP, req.SessionID); msg != "" {
		httputil.Error(w, http.StatusBadRequest, msg)
		return false
	}
	if req.NewPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "new_password is required")
		return false
	}
	return true
}

func (h *Handler) writeToken(w http.ResponseWriter, message string, result *authsvc.AuthResult) {
	httputil.JSON(w, http.StatusOK, TokenResponse{
		Message:   message,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
		User:      toUserResponse(result.User),
	})
}

// validateCodeSubmission returns a message describing the first problem with
// an OTP submission, or "" when it is well formed.
func validateCodeSubmission(email, code, sessionID string) string {
	switch {
	case email == "":
		return "email is required"
	case strings.TrimSpace(sessionID) == "":
		return "session_id is required"
	case !isSixDigits(code):
		return "otp must be 6 digits"
	}
	return ""
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
