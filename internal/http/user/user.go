package user

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"food-delivery/internal/domain/models"
	"food-delivery/internal/http/middleware"
	"food-delivery/internal/http/respond"
)

type Users interface {
	Register(ctx context.Context, u models.NewUser) (*models.User, error)
	User(ctx context.Context, id int64) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	ChangePassword(ctx context.Context, id int64, current, newPassword, confirm string) error

	Addresses(ctx context.Context, userID int64) ([]models.Address, error)
	AddAddress(ctx context.Context, userID int64, addr models.Address) (*models.Address, error)
	Address(ctx context.Context, userID, id int64) (*models.Address, error)
	UpdateAddress(ctx context.Context, userID, id int64, upd models.AddressUpdate) (*models.Address, error)
	DeleteAddress(ctx context.Context, userID, id int64) error
}

type RegisterRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Number          string `json:"number"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type UpdateRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Number    *string `json:"number"`
}

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

type AddressRequest struct {
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	Apartment   string `json:"apartment"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

type AddressUpdateRequest struct {
	Street      *string `json:"street"`
	HouseNumber *string `json:"house_number"`
	Apartment   *string `json:"apartment"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
}

type UserResponse struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Number    string `json:"number"`
}

type AddressResponse struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	Apartment   string `json:"apartment"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

type handler struct {
	log   *slog.Logger
	users Users
}

// Register mounts the account endpoints on mux. Everything under /users/me
// goes through authn.
func Register(mux *http.ServeMux, log *slog.Logger, users Users, authn func(http.Handler) http.Handler) {
	h := &handler{
		log:   log.With(slog.String("component", "http/user")),
		users: users,
	}

	mux.HandleFunc("POST /users", h.register)

	protected := func(f http.HandlerFunc) http.Handler { return authn(f) }

	mux.Handle("GET /users/me", protected(h.me))
	mux.Handle("PUT /users/me", protected(h.update))
	mux.Handle("DELETE /users/me", protected(h.delete))
	mux.Handle("POST /users/me/password", protected(h.changePassword))

	mux.Handle("GET /users/me/addresses", protected(h.listAddresses))
	mux.Handle("POST /users/me/addresses", protected(h.addAddress))
	mux.Handle("GET /users/me/addresses/{id}", protected(h.address))
	mux.Handle("PUT /users/me/addresses/{id}", protected(h.updateAddress))
	mux.Handle("DELETE /users/me/addresses/{id}", protected(h.deleteAddress))
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	u, err := h.users.Register(r.Context(), models.NewUser{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Number:          req.Number,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, http.StatusCreated, userResponse(u))
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.User(r.Context(), h.userID(r))
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, http.StatusOK, userResponse(u))
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	u, err := h.users.UpdateUser(r.Context(), h.userID(r), models.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Number:    req.Number,
	})
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, http.StatusOK, userResponse(u))
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), h.userID(r)); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.NoContent(w)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	err := h.users.ChangePassword(r.Context(), h.userID(r), req.CurrentPassword, req.NewPassword, req.ConfirmNewPassword)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.NoContent(w)
}

func (h *handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.users.Addresses(r.Context(), h.userID(r))
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	out := make([]AddressResponse, 0, len(addrs))
	for i := range addrs {
		out = append(out, addressResponse(&addrs[i]))
	}

	respond.JSON(w, http.StatusOK, out)
}

func (h *handler) addAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	a, err := h.users.AddAddress(r.Context(), h.userID(r), models.Address{
		Street:      req.Street,
		HouseNumber: req.HouseNumber,
		Apartment:   req.Apartment,
		City:        req.City,
		Country:     req.Country,
	})
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, http.StatusCreated, addressResponse(a))
}

func (h *handler) address(w http.ResponseWriter, r *http.Request) {
	id, err := addressID(r)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	a, err := h.users.Address(r.Context(), h.userID(r), id)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, http.StatusOK, addressResponse(a))
}

func (h *handler) updateAddress(w http.ResponseWriter, r *http.Request) {
	id, err := addressID(r)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	var req AddressUpdateRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	a, err := h.users.UpdateAddress(r.Context(), h.userID(r), id, models.AddressUpdate{
		Street:      req.Street,
		HouseNumber: req.HouseNumber,
		Apartment:   req.Apartment,
		City:        req.City,
		Country:     req.Country,
	})
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, http.StatusOK, addressResponse(a))
}

func (h *handler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	id, err := addressID(r)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	if err := h.users.DeleteAddress(r.Context(), h.userID(r), id); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.NoContent(w)
}

// userID is only called behind authn, which always sets it.
func (h *handler) userID(r *http.Request) int64 {
	id, _ := middleware.UserID(r.Context())
	return id
}

func addressID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid address id", respond.ErrBadRequest)
	}
	return id, nil
}

func userResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Number:    u.Number,
	}
}

func addressResponse(a *models.Address) AddressResponse {
	return AddressResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		Street:      a.Street,
		HouseNumber: a.HouseNumber,
		Apartment:   a.Apartment,
		City:        a.City,
		Country:     a.Country,
	}
}
