package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"notehub-backend/internal/apperr"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes err as a JSON error response. Anything that is not an
// *apperr.Error is treated as internal and masked; internal detail stays in
// the logs, never in the body.
func Error(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.New(apperr.KindInternal, "Internal server error")
	}

	body := map[string]any{"error": ae.Message}
	if ae.Kind == apperr.KindQuotaExceeded {
		body["canUpgrade"] = ae.CanUpgrade
		if ae.Hint != "" {
			body["message"] = ae.Hint
		}
	}
	if ae.Kind == apperr.KindInternal {
		body["error"] = "Internal server error"
	}

	JSON(w, statusOf(ae.Kind), body)
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden, apperr.KindQuotaExceeded:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
