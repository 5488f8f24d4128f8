package users

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-idm-otp/internal/http/middleware"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// RegisterRoutes registers the user endpoints on r, which is mounted at
// /api/users. Every route requires a bearer token.
func (h *Handler) RegisterRoutes(r chi.Router, logger *slog.Logger) {
	r.Use(middleware.Authenticate(h.service))
	r.Get("/profile", h.Profile)
	r.With(middleware.Authorize(h.service, domain.PermissionUserView, logger)).Get("/", h.List)
	r.With(middleware.Authorize(h.service, domain.PermissionUserCreate, logger)).Post("/invite", h.Invite)
}
