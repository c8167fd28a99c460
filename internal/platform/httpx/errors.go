package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/nimbus-hr/nimbus/internal/authz"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Authorization failures always map to a denial; no error here ever
// produces a partial success.
func RespondError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, authz.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, authz.ErrTargetUnavailable):
		Problem(w, http.StatusUnprocessableEntity, "Target Unavailable", err.Error())
	case errors.Is(err, authz.ErrUnauthorized):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, authz.ErrAlreadyImpersonating),
		errors.Is(err, authz.ErrNotImpersonating):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, authz.ErrMalformedClaims):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "session claims are invalid")
	case errors.Is(err, authz.ErrInvalidState):
		Problem(w, http.StatusInternalServerError, "Integrity Violation", "")
	case errors.As(err, &validationErrs):
		Problem(w, http.StatusBadRequest, "Validation Failed", validationErrs.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
