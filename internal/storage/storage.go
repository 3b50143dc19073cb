package storage

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrAddressNotFound      = errors.New("address not found")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrStoreUnavailable     = errors.New("store unavailable")
)
