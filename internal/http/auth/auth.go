package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"food-delivery/internal/domain/models"
	"food-delivery/internal/http/middleware"
	"food-delivery/internal/http/respond"
	"food-delivery/internal/services/auth"
	"food-delivery/internal/storage"
)

type Auth interface {
	Login(ctx context.Context, number, password string) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	WhoAmI(ctx context.Context, accessToken string) (int64, error)
	Logout(ctx context.Context, accessToken string) error
}

// Observer records the outcome of every auth operation.
type Observer interface {
	ObserveAuth(operation, outcome string)
}

type LoginRequest struct {
	Number   string `json:"number"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type MeResponse struct {
	UserID string `json:"user_id"`
}

type DetailResponse struct {
	Detail string `json:"detail"`
}

type handler struct {
	log      *slog.Logger
	auth     Auth
	observer Observer
}

// Register mounts the session endpoints on mux. loginLimit wraps /login only.
func Register(
	mux *http.ServeMux,
	log *slog.Logger,
	auth Auth,
	observer Observer,
	loginLimit func(http.Handler) http.Handler,
) {
	h := &handler{
		log:      log.With(slog.String("component", "http/auth")),
		auth:     auth,
		observer: observer,
	}

	mux.Handle("POST /login", loginLimit(http.HandlerFunc(h.login)))
	mux.HandleFunc("POST /refresh", h.refresh)
	mux.HandleFunc("GET /me", h.me)
	mux.HandleFunc("POST /logout", h.logout)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		h.fail(w, "login", err)
		return
	}

	if strings.TrimSpace(req.Number) == "" || req.Password == "" {
		h.fail(w, "login", fmt.Errorf("%w: number and password are required", respond.ErrBadRequest))
		return
	}

	pair, err := h.auth.Login(r.Context(), req.Number, req.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}

	h.observer.ObserveAuth("login", "success")
	respond.JSON(w, http.StatusOK, tokenResponse(pair))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("refresh_token")
	if token == "" && r.ContentLength != 0 {
		var req RefreshRequest
		if err := respond.DecodeJSON(r, &req); err != nil {
			h.fail(w, "refresh", err)
			return
		}
		token = req.RefreshToken
	}

	if token == "" {
		h.fail(w, "refresh", fmt.Errorf("%w: refresh_token is required", respond.ErrBadRequest))
		return
	}

	pair, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}

	h.observer.ObserveAuth("refresh", "success")
	respond.JSON(w, http.StatusOK, tokenResponse(pair))
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		h.fail(w, "me", err)
		return
	}

	userID, err := h.auth.WhoAmI(r.Context(), token)
	if err != nil {
		h.fail(w, "me", err)
		return
	}

	respond.JSON(w, http.StatusOK, MeResponse{UserID: strconv.FormatInt(userID, 10)})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		h.fail(w, "logout", err)
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		h.fail(w, "logout", err)
		return
	}

	h.observer.ObserveAuth("logout", "success")
	respond.JSON(w, http.StatusOK, DetailResponse{Detail: "Logged out"})
}

func (h *handler) fail(w http.ResponseWriter, operation string, err error) {
	h.observer.ObserveAuth(operation, outcome(err))
	respond.Error(w, h.log, err)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrWrongTokenType):
		return "wrong_token_type"
	case errors.Is(err, auth.ErrRevokedToken):
		return "revoked_token"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, storage.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, respond.ErrBadRequest):
		return "bad_request"
	default:
		return "error"
	}
}

func tokenResponse(p models.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    models.TokenTypeBearer,
	}
}
