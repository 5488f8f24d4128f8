package users

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-otp/internal/http/middleware"
	"github.com/tendant/simple-idm-otp/internal/httputil"
	"github.com/tendant/simple-idm-otp/pkg/auth"
	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// Handler handles user profile, listing and invitation endpoints.
type Handler struct {
	logger  *slog.Logger
	service *auth.Service
}

// NewHandler creates a new users handler.
func NewHandler(logger *slog.Logger, service *auth.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// UserResponse represents a user. Password material is never included.
type UserResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	IsActive           bool       `json:"is_active"`
	IsInvited          bool       `json:"is_invited"`
	LockedUntil        *time.Time `json:"locked_until,omitempty"`
	LastPasswordChange time.Time  `json:"last_password_change"`
	CreatedAt          time.Time  `json:"created_at"`
}

// ProfileResponse is the current user with its grants.
type ProfileResponse struct {
	UserResponse
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// InviteRequest represents an invitation.
type InviteRequest struct {
	Email  string `json:"email"`
	RoleID string `json:"role_id,omitempty"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                 u.ID.String(),
		Name:               u.Name,
		Email:              u.Email,
		IsActive:           u.IsActive,
		IsInvited:          u.IsInvited,
		LockedUntil:        u.LockedUntil,
		LastPasswordChange: u.LastPasswordChange,
		CreatedAt:          u.CreatedAt,
	}
}

// Profile returns the current user's profile.
// GET /api/users/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.service.Profile(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, ProfileResponse{
		UserResponse: toUserResponse(profile.User),
		Roles:        nonNil(profile.Roles),
		Permissions:  nonNil(profile.Permissions),
	})
}

// List returns every user.
// GET /api/users
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Invite creates an invited account and mails it an invitation OTP.
// POST /api/users/invite
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	inviter, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req InviteRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	var roleID *uuid.UUID
	if req.RoleID != "" {
		id, err := uuid.Parse(req.RoleID)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid role_id")
			return
		}
		roleID = &id
	}

	result, err := h.service.InviteUser(r.Context(), auth.InviteInput{
		Email:     req.Email,
		RoleID:    roleID,
		InvitedBy: inviter.ID,
	})
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"message": "User invited successfully",
		"user": map[string]string{
			"id":    result.User.ID.String(),
			"email": result.User.Email,
		},
		"session_id": result.SessionID,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
