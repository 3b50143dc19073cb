// Package respond writes JSON bodies and maps service errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"food-delivery/internal/lib/sl"
	"food-delivery/internal/services/auth"
	"food-delivery/internal/services/user"
	"food-delivery/internal/storage"
)

// ErrBadRequest marks a request that could not be decoded.
var ErrBadRequest = errors.New("bad request")

const (
	detailInvalidCredentials = "Invalid credentials"
	detailInvalidToken       = "Could not validate credentials"
	detailUnavailable        = "Service temporarily unavailable"
	detailInternal           = "Internal server error"
)

type ErrorBody struct {
	Detail string `json:"detail"`
	Field  string `json:"field,omitempty"`
}

func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes the response for err. Every authentication failure becomes the
// same 401 so that callers cannot tell which check failed.
func Error(w http.ResponseWriter, log *slog.Logger, err error) {
	code, body := classify(err)

	switch {
	case code == http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	case code >= http.StatusInternalServerError:
		log.Error("request failed", slog.Int("status", code), sl.Err(err))
	}

	JSON(w, code, body)
}

// Status returns the HTTP status err maps to.
func Status(err error) int {
	code, _ := classify(err)
	return code
}

func classify(err error) (int, ErrorBody) {
	var verr *user.ValidationError

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorBody{Detail: detailInvalidCredentials}
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrRevokedToken):
		return http.StatusUnauthorized, ErrorBody{Detail: detailInvalidToken}
	case errors.Is(err, storage.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorBody{Detail: detailUnavailable}
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, ErrorBody{Detail: verr.Message, Field: verr.Field}
	case errors.Is(err, user.ErrUserAlreadyExists):
		return http.StatusConflict, ErrorBody{Detail: "User with this number already exists"}
	case errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound, ErrorBody{Detail: "User not found"}
	case errors.Is(err, user.ErrAddressNotFound):
		return http.StatusNotFound, ErrorBody{Detail: "Address not found"}
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, ErrorBody{Detail: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorBody{Detail: detailInternal}
	}
}
