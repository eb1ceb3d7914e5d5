package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"novel-translate-service/internal/entity"
)

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}

// statusFor maps service errors onto HTTP. Unknown errors never leak their text.
func statusFor(err error) (int, string) {
	var verr *entity.ValidationError
	var shape *entity.AddressShapeError
	var fetch *entity.FetchError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.As(err, &shape):
		return http.StatusBadRequest, shape.Error()
	case errors.Is(err, entity.ErrMissingJobID):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, entity.ErrNoCredential):
		return http.StatusForbidden, entity.ErrNoCredential.Error()
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, "task not found"
	case errors.As(err, &fetch):
		return http.StatusBadGateway, "could not fetch " + fetch.URL
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed",
			"req_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeErr(w, code, msg)
}
