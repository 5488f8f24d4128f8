package auth

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the auth endpoints on r, which is mounted at /api/auth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/verify-otp", h.VerifyOTP)
	r.Post("/forgot-password", h.ForgotPassword)
	r.Post("/reset-password", h.ResetPassword)
	r.Post("/accept-invitation", h.AcceptInvitation)
}
