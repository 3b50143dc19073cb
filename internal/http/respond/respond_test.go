package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"food-delivery/internal/lib/logger/handlers/slogdiscard"
	"food-delivery/internal/services/auth"
	"food-delivery/internal/services/user"
	"food-delivery/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, detailInvalidCredentials},
		{"wrong current password", user.ErrInvalidCredentials, http.StatusUnauthorized, detailInvalidCredentials},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized, detailInvalidToken},
		{"wrong type", auth.ErrWrongTokenType, http.StatusUnauthorized, detailInvalidToken},
		{"revoked", auth.ErrRevokedToken, http.StatusUnauthorized, detailInvalidToken},
		{"store down", fmt.Errorf("auth.Refresh: %w", storage.ErrStoreUnavailable), http.StatusServiceUnavailable, detailUnavailable},
		{"validation", &user.ValidationError{Field: "number", Message: "too short"}, http.StatusUnprocessableEntity, "too short"},
		{"duplicate", user.ErrUserAlreadyExists, http.StatusConflict, "User with this number already exists"},
		{"no user", user.ErrUserNotFound, http.StatusNotFound, "User not found"},
		{"no address", user.ErrAddressNotFound, http.StatusNotFound, "Address not found"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, detailInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			Error(rec, slogdiscard.NewDiscardLogger(), fmt.Errorf("op: %w", tt.err))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus, Status(tt.err))

			var body ErrorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantDetail, body.Detail)

			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			} else {
				assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestError_InternalDetailsNotLeaked(t *testing.T) {
	rec := httptest.NewRecorder()

	Error(rec, slogdiscard.NewDiscardLogger(), errors.New("pq: password authentication failed for user admin"))

	assert.NotContains(t, rec.Body.String(), "admin")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Number string `json:"number"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"ok", `{"number":"5551234567"}`, false},
		{"empty", ``, true},
		{"not json", `number=1`, true},
		{"unknown field", `{"number":"1","admin":true}`, true},
		{"trailing object", `{"number":"1"}{"number":"2"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var p payload
			err := DecodeJSON(r, &p)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBadRequest)
				assert.Equal(t, http.StatusBadRequest, Status(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "5551234567", p.Number)
		})
	}
}
