package response

import (
	"errors"
	"net/http"

	"github.com/diagnosis/puffit/internal/domain"
	"github.com/diagnosis/puffit/pkg/logger"
)

// FromError maps domain errors onto status codes. Unexpected errors become
// 500; their text is only echoed when dev is set.
func FromError(w http.ResponseWriter, r *http.Request, err error, dev bool) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, ve.Error(), CodeInvalidInput)
	case errors.Is(err, domain.ErrEmailInUse):
		WriteError(w, http.StatusBadRequest, "An account with this email already exists", CodeEmailExists)
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "Invalid email or password", CodeUnauthorized)
	case errors.Is(err, domain.ErrEmailNotVerified):
		WriteError(w, http.StatusForbidden, "Please verify your email before logging in", CodeEmailNotVerified)
	case errors.Is(err, domain.ErrAccountInactive):
		WriteError(w, http.StatusForbidden, "This account is not active", CodeAccountInactive)
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "Not found")
	case errors.Is(err, domain.ErrForbidden):
		Forbidden(w, "You do not have access to this resource")
	case errors.Is(err, domain.ErrNotificationFailed):
		logger.ErrorContext(r.Context(), "Verification email delivery failed", "error", err)
		writeInternal(w, "Could not send verification email. Please try again.", CodeEmailFailed, err, dev)
	default:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		writeInternal(w, "Internal server error", CodeInternalError, err, dev)
	}
}

func writeInternal(w http.ResponseWriter, message, code string, err error, dev bool) {
	if dev {
		WriteErrorWithDetails(w, http.StatusInternalServerError, message, code, err.Error())
		return
	}
	WriteError(w, http.StatusInternalServerError, message, code)
}
