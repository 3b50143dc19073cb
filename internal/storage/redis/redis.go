// Package redis keeps the single live refresh token of every user in Redis
// under the key refresh:<user id>.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"food-delivery/internal/storage"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "refresh:"

var ErrInvalidTTL = errors.New("refresh token ttl must be positive")

type Storage struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, addr, password string, db int) (*Storage, error) {
	const op = "storage.redis.New"

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		// Failures surface to the caller immediately.
		MaxRetries: -1,
	})

	s := NewFromClient(rdb)
	if err := s.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s, nil
}

func NewFromClient(rdb *redis.Client) *Storage {
	return &Storage{rdb: rdb}
}

// SaveRefreshToken stores token for userID, replacing any previous one.
func (s *Storage) SaveRefreshToken(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	const op = "storage.redis.SaveRefreshToken"

	if ttl <= 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidTTL)
	}

	if err := s.rdb.Set(ctx, key(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrStoreUnavailable, err)
	}

	return nil
}

// RefreshToken returns the stored token for userID or
// storage.ErrRefreshTokenNotFound when there is none.
func (s *Storage) RefreshToken(ctx context.Context, userID int64) (string, error) {
	const op = "storage.redis.RefreshToken"

	token, err := s.rdb.Get(ctx, key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrRefreshTokenNotFound)
		}
		return "", fmt.Errorf("%s: %w: %v", op, storage.ErrStoreUnavailable, err)
	}

	return token, nil
}

// DeleteRefreshToken removes the stored token. Deleting a missing key is not an error.
func (s *Storage) DeleteRefreshToken(ctx context.Context, userID int64) error {
	const op = "storage.redis.DeleteRefreshToken"

	if err := s.rdb.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrStoreUnavailable, err)
	}

	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Storage) Close() error {
	return s.rdb.Close()
}

func key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}
