package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"food-delivery/internal/http/middleware"
	"food-delivery/internal/lib/jwt"
	"food-delivery/internal/lib/logger/handlers/slogdiscard"
	"food-delivery/internal/lib/password"
	authsvc "food-delivery/internal/services/auth"
	usersvc "food-delivery/internal/services/user"
	"food-delivery/internal/storage/migrator"
	redisstore "food-delivery/internal/storage/redis"
	"food-delivery/internal/storage/sqlite"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type suite struct {
	srv  http.Handler
	mr   *miniredis.Miniredis
	auth *authsvc.Auth
}

func newSuite(t *testing.T) *suite {
	t.Helper()

	log := slogdiscard.NewDiscardLogger()

	path := filepath.Join(t.TempDir(), "food.db")
	require.NoError(t, migrator.Run("sqlite", path, migrator.DirectionUp))

	st, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	hasher, err := password.New(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLength: 32})
	require.NoError(t, err)

	issuer, err := jwt.New("http-user-test-secret", "HS256")
	require.NoError(t, err)

	authService := authsvc.New(log, st, st, hasher, issuer, redisstore.NewFromClient(rdb), 15*time.Minute, 24*time.Hour)

	mux := http.NewServeMux()
	Register(mux, log, usersvc.New(log, st, st, hasher, authService), middleware.Authenticate(log, authService))

	return &suite{srv: mux, mr: mr, auth: authService}
}

func (s *suite) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, target, nil)
	case string:
		req = httptest.NewRequest(method, target, strings.NewReader(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, strings.NewReader(string(raw)))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func newRegistration() RegisterRequest {
	pass := gofakeit.Password(true, true, true, false, false, 10) + "Aa1"
	return RegisterRequest{
		FirstName:       gofakeit.FirstName(),
		LastName:        gofakeit.LastName(),
		Number:          gofakeit.Phone(),
		Password:        pass,
		ConfirmPassword: pass,
	}
}

// signUp registers a user over HTTP and logs them in.
func (s *suite) signUp(t *testing.T) (UserResponse, RegisterRequest, string) {
	t.Helper()

	in := newRegistration()
	rec := s.do(t, http.MethodPost, "/users", in, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decode[UserResponse](t, rec)

	pair, err := s.auth.Login(t.Context(), in.Number, in.Password)
	require.NoError(t, err)

	return u, in, pair.AccessToken
}

func TestRegister(t *testing.T) {
	s := newSuite(t)

	in := newRegistration()
	in.FirstName = " jane "

	rec := s.do(t, http.MethodPost, "/users", in, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	u := decode[UserResponse](t, rec)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "Jane", u.FirstName)
	assert.Equal(t, in.Number, u.Number)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPost, "/users", in, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	in = newRegistration()
	in.ConfirmPassword += "x"
	rec = s.do(t, http.MethodPost, "/users", in, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"confirm_password"`)

	rec = s.do(t, http.MethodPost, "/users", "{", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfile(t *testing.T) {
	s := newSuite(t)
	u, _, token := s.signUp(t)

	rec := s.do(t, http.MethodGet, "/users/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u, decode[UserResponse](t, rec))

	rec = s.do(t, http.MethodPut, "/users/me", `{"last_name":"smith-jones"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[UserResponse](t, rec)
	assert.Equal(t, "Smith-Jones", updated.LastName)
	assert.Equal(t, u.FirstName, updated.FirstName)

	rec = s.do(t, http.MethodPut, "/users/me", `{"number":"123"}`, token)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/users/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword(t *testing.T) {
	s := newSuite(t)
	u, in, token := s.signUp(t)
	key := "refresh:" + strconv.FormatInt(u.ID, 10)
	require.True(t, s.mr.Exists(key))

	next := "N3wSecretPass"

	rec := s.do(t, http.MethodPost, "/users/me/password", ChangePasswordRequest{
		CurrentPassword:    "wrong",
		NewPassword:        next,
		ConfirmNewPassword: next,
	}, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/users/me/password", ChangePasswordRequest{
		CurrentPassword:    in.Password,
		NewPassword:        next,
		ConfirmNewPassword: next,
	}, token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, s.mr.Exists(key))

	_, err := s.auth.Login(t.Context(), in.Number, in.Password)
	require.ErrorIs(t, err, authsvc.ErrInvalidCredentials)

	_, err = s.auth.Login(t.Context(), in.Number, next)
	require.NoError(t, err)
}

func TestDeleteAccount(t *testing.T) {
	s := newSuite(t)
	u, in, token := s.signUp(t)

	rec := s.do(t, http.MethodDelete, "/users/me", nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, s.mr.Exists("refresh:"+strconv.FormatInt(u.ID, 10)))

	// The access token stays valid until it expires, the account does not.
	rec = s.do(t, http.MethodGet, "/users/me", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := s.auth.Login(t.Context(), in.Number, in.Password)
	require.ErrorIs(t, err, authsvc.ErrInvalidCredentials)
}

func TestAddresses(t *testing.T) {
	s := newSuite(t)
	_, _, owner := s.signUp(t)
	_, _, stranger := s.signUp(t)

	rec := s.do(t, http.MethodGet, "/users/me/addresses", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = s.do(t, http.MethodPost, "/users/me/addresses", AddressRequest{
		Street:      gofakeit.Street(),
		HouseNumber: "12",
		City:        gofakeit.City(),
		Country:     gofakeit.Country(),
	}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	addr := decode[AddressResponse](t, rec)
	target := "/users/me/addresses/" + strconv.FormatInt(addr.ID, 10)

	rec = s.do(t, http.MethodPost, "/users/me/addresses", AddressRequest{Street: "x", City: "y"}, owner)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"country"`)

	rec = s.do(t, http.MethodGet, "/users/me/addresses", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []AddressResponse{addr}, decode[[]AddressResponse](t, rec))

	rec = s.do(t, http.MethodGet, target, nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, addr, decode[AddressResponse](t, rec))

	rec = s.do(t, http.MethodGet, target, nil, stranger)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, target, `{"apartment":"4B"}`, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[AddressResponse](t, rec)
	assert.Equal(t, "4B", updated.Apartment)
	assert.Equal(t, addr.Street, updated.Street)

	rec = s.do(t, http.MethodPut, target, `{"apartment":"9"}`, stranger)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, target, nil, stranger)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, target, nil, owner)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, target, nil, owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddressID(t *testing.T) {
	s := newSuite(t)
	_, _, token := s.signUp(t)

	for _, id := range []string{"abc", "0", "-1"} {
		rec := s.do(t, http.MethodGet, "/users/me/addresses/"+id, nil, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
}
