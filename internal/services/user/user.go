// Package user manages customer accounts and their delivery addresses.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"food-delivery/internal/domain/models"
	"food-delivery/internal/lib/sl"
	"food-delivery/internal/storage"
)

type Service struct {
	logger    *slog.Logger
	users     UserStorage
	addresses AddressStorage
	passwords PasswordHasher
	sessions  SessionRevoker
}

type UserStorage interface {
	SaveUser(ctx context.Context, user models.User) (int64, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	UpdatePassword(ctx context.Context, id int64, salt, hash string) error
	DeleteUser(ctx context.Context, id int64) error
}

type AddressStorage interface {
	SaveAddress(ctx context.Context, addr models.Address) (int64, error)
	Addresses(ctx context.Context, userID int64) ([]models.Address, error)
	Address(ctx context.Context, userID, id int64) (*models.Address, error)
	UpdateAddress(ctx context.Context, addr models.Address) error
	DeleteAddress(ctx context.Context, userID, id int64) error
}

type PasswordHasher interface {
	Hash(plaintext string) (salt, hash string, err error)
	Verify(plaintext, salt, hash string) (bool, error)
}

// SessionRevoker ends the refresh session of a user.
type SessionRevoker interface {
	RevokeSessions(ctx context.Context, userID int64) error
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrAddressNotFound    = errors.New("address not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

func New(
	logger *slog.Logger,
	users UserStorage,
	addresses AddressStorage,
	passwords PasswordHasher,
	sessions SessionRevoker,
) *Service {
	return &Service{
		logger:    logger,
		users:     users,
		addresses: addresses,
		passwords: passwords,
		sessions:  sessions,
	}
}

// Register validates u and stores a new user with a freshly salted password.
func (s *Service) Register(ctx context.Context, u models.NewUser) (*models.User, error) {
	const op = "user.Register"

	log := s.logger.With(slog.String("op", op))
	log.Info("register request")

	u, err := validateNewUser(u)
	if err != nil {
		log.Info("invalid registration", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	salt, hash, err := s.passwords.Hash(u.Password)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Number:       u.Number,
		PasswordSalt: salt,
		PasswordHash: hash,
	}

	user.ID, err = s.users.SaveUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			log.Warn("user already exists")
			return nil, fmt.Errorf("%s: %w", op, ErrUserAlreadyExists)
		}
		log.Error("failed to save user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Int64("userID", user.ID))

	return s.User(ctx, user.ID)
}

func (s *Service) User(ctx context.Context, id int64) (*models.User, error) {
	const op = "user.User"

	user, err := s.users.UserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	return user, nil
}

// UpdateUser applies the non-nil fields of upd to the profile of id.
func (s *Service) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	const op = "user.UpdateUser"

	log := s.logger.With(slog.String("op", op), slog.Int64("userID", id))

	upd, err := validateUserUpdate(upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	current, err := s.users.UserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	if upd.Empty() {
		return current, nil
	}

	updated := upd.Apply(*current)

	if err := s.users.UpdateUser(ctx, updated); err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	log.Info("user updated")

	return &updated, nil
}

// DeleteUser ends the session and then removes the account, so a failed
// revocation leaves the account in place for a retry.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	const op = "user.DeleteUser"

	log := s.logger.With(slog.String("op", op), slog.Int64("userID", id))

	if err := s.sessions.RevokeSessions(ctx, id); err != nil {
		log.Error("failed to revoke session", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	log.Info("user deleted")

	return nil
}

// ChangePassword replaces the password after checking the current one and
// ends the user's session.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, newPassword, confirm string) error {
	const op = "user.ChangePassword"

	log := s.logger.With(slog.String("op", op), slog.Int64("userID", id))

	if err := validatePassword("new_password", newPassword, confirm, "confirm_new_password"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.UserByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	ok, err := s.passwords.Verify(current, user.PasswordSalt, user.PasswordHash)
	if err != nil {
		log.Error("stored credentials are corrupt", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		log.Warn("current password mismatch")
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	salt, hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.users.UpdatePassword(ctx, id, salt, hash); err != nil {
		return fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	if err := s.sessions.RevokeSessions(ctx, id); err != nil {
		log.Error("password changed but session not revoked", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed")

	return nil
}

func (s *Service) Addresses(ctx context.Context, userID int64) ([]models.Address, error) {
	const op = "user.Addresses"

	addrs, err := s.addresses.Addresses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	return addrs, nil
}

func (s *Service) AddAddress(ctx context.Context, userID int64, addr models.Address) (*models.Address, error) {
	const op = "user.AddAddress"

	addr, err := normalizeAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	addr.ID = 0
	addr.UserID = userID

	addr.ID, err = s.addresses.SaveAddress(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	s.logger.Info("address added",
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Int64("addressID", addr.ID),
	)

	return &addr, nil
}

func (s *Service) Address(ctx context.Context, userID, id int64) (*models.Address, error) {
	const op = "user.Address"

	addr, err := s.addresses.Address(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	return addr, nil
}

func (s *Service) UpdateAddress(ctx context.Context, userID, id int64, upd models.AddressUpdate) (*models.Address, error) {
	const op = "user.UpdateAddress"

	current, err := s.addresses.Address(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	updated, err := normalizeAddress(upd.Apply(*current))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.addresses.UpdateAddress(ctx, updated); err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	return &updated, nil
}

func (s *Service) DeleteAddress(ctx context.Context, userID, id int64) error {
	const op = "user.DeleteAddress"

	if err := s.addresses.DeleteAddress(ctx, userID, id); err != nil {
		return fmt.Errorf("%s: %w", op, s.mapStorageErr(op, err))
	}

	return nil
}

// mapStorageErr translates storage sentinels into service errors and logs
// anything unexpected.
func (s *Service) mapStorageErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, storage.ErrUserAlreadyExists):
		return ErrUserAlreadyExists
	case errors.Is(err, storage.ErrAddressNotFound):
		return ErrAddressNotFound
	default:
		s.logger.Error("storage failure", slog.String("op", op), sl.Err(err))
		return err
	}
}
