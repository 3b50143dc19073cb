package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"food-delivery/internal/domain/models"
	"food-delivery/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return NewFromDB(db), mock
}

var userRowColumns = []string{"id", "first_name", "last_name", "number", "password_salt", "password_hash", "created_at"}

func TestSaveUser(t *testing.T) {
	s, mock := newMock(t)

	u := models.User{FirstName: "Ann", LastName: "Lee", Number: "5551234567", PasswordSalt: "salt", PasswordHash: "hash"}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(u.FirstName, u.LastName, u.Number, u.PasswordSalt, u.PasswordHash).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	id, err := s.SaveUser(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestSaveUser_Duplicate(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := s.SaveUser(context.Background(), models.User{Number: "5551234567"})
	require.ErrorIs(t, err, storage.ErrUserAlreadyExists)
}

func TestUserByNumber(t *testing.T) {
	s, mock := newMock(t)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE number = $1")).
		WithArgs("5551234567").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(42, "Ann", "Lee", "5551234567", "salt", "hash", created))

	u, err := s.UserByNumber(context.Background(), "5551234567")
	require.NoError(t, err)
	assert.Equal(t, &models.User{
		ID:           42,
		FirstName:    "Ann",
		LastName:     "Lee",
		Number:       "5551234567",
		PasswordSalt: "salt",
		PasswordHash: "hash",
		CreatedAt:    created,
	}, u)
}

func TestUserByID_NotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.UserByID(context.Background(), 7)
	require.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUserByID_DriverError(t *testing.T) {
	s, mock := newMock(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).WillReturnError(boom)

	_, err := s.UserByID(context.Background(), 7)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUpdateUser(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	u := models.User{ID: 1, FirstName: "Ann", LastName: "Lee", Number: "5551234567"}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET first_name")).
		WithArgs(u.FirstName, u.LastName, u.Number, u.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateUser(ctx, u))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET first_name")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, s.UpdateUser(ctx, u), storage.ErrUserNotFound)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET first_name")).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	require.ErrorIs(t, s.UpdateUser(ctx, u), storage.ErrUserAlreadyExists)
}

func TestUpdatePasswordAndDelete(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_salt")).
		WithArgs("s", "h", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdatePassword(ctx, 3, "s", "h"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DeleteUser(ctx, 3))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, s.DeleteUser(ctx, 3), storage.ErrUserNotFound)
}

var addressRowColumns = []string{"id", "user_id", "street", "house_number", "apartment", "city", "country"}

func TestAddresses(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_addresses WHERE user_id = $1 ORDER BY id")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(addressRowColumns).
			AddRow(10, 1, "Main St", "5", "", "Austin", "USA").
			AddRow(11, 1, "Elm St", "7", "2", "Dallas", "USA"))

	addrs, err := s.Addresses(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, "Dallas", addrs[1].City)
}

func TestAddress_ScopedToOwner(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_addresses WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(10), int64(2)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.Address(context.Background(), 2, 10)
	require.ErrorIs(t, err, storage.ErrAddressNotFound)
}

func TestSaveAddress(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	a := models.Address{UserID: 1, Street: "Main St", HouseNumber: "5", City: "Austin", Country: "USA"}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO user_addresses")).
		WithArgs(a.UserID, a.Street, a.HouseNumber, a.Apartment, a.City, a.Country).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

	id, err := s.SaveAddress(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO user_addresses")).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	_, err = s.SaveAddress(ctx, a)
	require.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUpdateAndDeleteAddress(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	a := models.Address{ID: 10, UserID: 1, Street: "Main St", City: "Austin", Country: "USA"}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_addresses")).
		WithArgs(a.Street, a.HouseNumber, a.Apartment, a.City, a.Country, a.ID, a.UserID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, s.UpdateAddress(ctx, a), storage.ErrAddressNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_addresses WHERE id = $1 AND user_id = $2")).
		WithArgs(a.ID, a.UserID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DeleteAddress(ctx, a.UserID, a.ID))
}
