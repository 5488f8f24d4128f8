package httputil

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// WriteError maps a service error to its HTTP response. Typed errors add the
// data the client needs for its next step.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var locked *domain.LockedError
	if errors.As(err, &locked) {
		JSON(w, http.StatusLocked, map[string]any{
			"error":        "account locked. try again later",
			"locked_until": locked.Until.UTC().Format(time.RFC3339),
		})
		return
	}

	var expired *domain.PasswordExpiredError
	if errors.As(err, &expired) {
		JSON(w, http.StatusForbidden, map[string]any{
			"error":                   domain.ErrPasswordExpired.Error(),
			"requires_password_reset": expired.RequiresReset,
		})
		return
	}

	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		JSON(w, http.StatusBadRequest, map[string]any{
			"error": invalid.Error(),
			"field": invalid.Field,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrAccountLocked):
		Error(w, http.StatusLocked, "account locked. try again later")
	case errors.Is(err, domain.ErrPasswordExpired):
		Error(w, http.StatusForbidden, domain.ErrPasswordExpired.Error())
	case errors.Is(err, domain.ErrInvalidToken):
		Error(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, domain.ErrUserAlreadyExists):
		Error(w, http.StatusConflict, "user already exists")
	case errors.Is(err, domain.ErrCannotReusePassword):
		Error(w, http.StatusBadRequest, domain.ErrCannotReusePassword.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		Error(w, http.StatusNotFound, "user not found")
	case errors.Is(err, domain.ErrRoleNotFound):
		Error(w, http.StatusNotFound, "role not found")
	case errors.Is(err, domain.ErrInvalidCode):
		Error(w, http.StatusBadRequest, "invalid otp")
	case errors.Is(err, domain.ErrCodeExpired):
		Error(w, http.StatusBadRequest, "otp expired")
	case errors.Is(err, domain.ErrValidationFailed):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		Error(w, http.StatusForbidden, domain.ErrForbidden.Error())
	case errors.Is(err, domain.ErrDependencyFailure):
		logError(logger, "dependency failure", err)
		Error(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		logError(logger, "unexpected error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

func logError(logger *slog.Logger, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(msg, "error", err)
}
