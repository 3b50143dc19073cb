package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"food-delivery/internal/config"
	"food-delivery/internal/domain/models"
	"food-delivery/internal/http/middleware"
	"food-delivery/internal/lib/logger/handlers/slogdiscard"
	"food-delivery/internal/services/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// authStub accepts "good" as the only access token, for user 42.
type authStub struct{}

func (authStub) Login(_ context.Context, number, _ string) (models.TokenPair, error) {
	return models.TokenPair{AccessToken: "good", RefreshToken: "refresh-" + number}, nil
}

func (authStub) Refresh(_ context.Context, token string) (models.TokenPair, error) {
	return models.TokenPair{AccessToken: "good", RefreshToken: token}, nil
}

func (authStub) WhoAmI(_ context.Context, token string) (int64, error) {
	if token != "good" {
		return 0, auth.ErrInvalidToken
	}
	return 42, nil
}

func (authStub) Logout(context.Context, string) error { return nil }

type usersStub struct {
	profile models.User
}

func (u usersStub) Register(context.Context, models.NewUser) (*models.User, error) {
	panic("boom")
}

func (u usersStub) User(_ context.Context, id int64) (*models.User, error) {
	user := u.profile
	user.ID = id
	return &user, nil
}

func (u usersStub) UpdateUser(context.Context, int64, models.UserUpdate) (*models.User, error) {
	return nil, nil
}
func (u usersStub) DeleteUser(context.Context, int64) error { return nil }
func (u usersStub) ChangePassword(context.Context, int64, string, string, string) error {
	return nil
}
func (u usersStub) Addresses(context.Context, int64) ([]models.Address, error) { return nil, nil }
func (u usersStub) AddAddress(context.Context, int64, models.Address) (*models.Address, error) {
	return nil, nil
}
func (u usersStub) Address(context.Context, int64, int64) (*models.Address, error) {
	return nil, nil
}
func (u usersStub) UpdateAddress(context.Context, int64, int64, models.AddressUpdate) (*models.Address, error) {
	return nil, nil
}
func (u usersStub) DeleteAddress(context.Context, int64, int64) error { return nil }

func testConfig() config.HTTPConfig {
	return config.HTTPConfig{
		Address:      "127.0.0.1:0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
		MaxBodyBytes: 64,
		LoginRate:    1,
		LoginBurst:   5,
	}
}

func newApp(deps map[string]Pinger) *App {
	return New(
		slogdiscard.NewDiscardLogger(),
		testConfig(),
		authStub{},
		authStub{},
		usersStub{profile: models.User{FirstName: "Ann", LastName: "Lee", Number: "5551234567"}},
		deps,
	)
}

func serve(h http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h := newApp(nil).Handler()

	rec := serve(h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))

	rec = serve(h, http.MethodGet, "/me", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"42"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/users/me", "", "good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":42,"first_name":"Ann","last_name":"Lee","number":"5551234567"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/users/me", "", "bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(h, http.MethodGet, "/login", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(h, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	h := newApp(nil).Handler()

	body := `{"number":"` + strings.Repeat("5", 100) + `","password":"Secret123"}`
	rec := serve(h, http.MethodPost, "/login", body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPanicIsRecovered(t *testing.T) {
	h := newApp(nil).Handler()

	rec := serve(h, http.MethodPost, "/users", `{}`, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal server error"}`, rec.Body.String())
}

func TestReadiness(t *testing.T) {
	healthy := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := serve(newApp(map[string]Pinger{"db": healthy, "redis": healthy}).Handler(), http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"db":"ok","redis":"ok"}`, rec.Body.String())

	rec = serve(newApp(map[string]Pinger{"db": healthy, "redis": down}).Handler(), http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unavailable", status["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newApp(nil).Handler()

	serve(h, http.MethodGet, "/me", "", "good")

	rec := serve(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="GET /me",status="200"} 1`)
}

func TestRunAndStop(t *testing.T) {
	app := newApp(nil)

	done := make(chan error, 1)
	go func() { done <- app.Run() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	app.Stop(ctx)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
