package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"food-delivery/internal/domain/models"
	"food-delivery/internal/storage"

	"github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

// New returns a new instance of the Storage.
func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite3", withForeignKeys(storagePath))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func withForeignKeys(path string) string {
	if strings.Contains(path, "_foreign_keys") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&_foreign_keys=on"
	}
	return path + "?_foreign_keys=on"
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveUser(ctx context.Context, user models.User) (int64, error) {
	const op = "storage.sqlite.SaveUser"

	stmt, err := s.db.PrepareContext(ctx,
		"INSERT INTO users (first_name, last_name, number, password_salt, password_hash) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, user.FirstName, user.LastName, user.Number, user.PasswordSalt, user.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

const userColumns = "id, first_name, last_name, number, password_salt, password_hash, created_at"

func (s *Storage) UserByNumber(ctx context.Context, number string) (*models.User, error) {
	const op = "storage.sqlite.UserByNumber"

	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE number = ?", number)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.sqlite.UserByID"

	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateUser overwrites the profile fields of user.ID.
func (s *Storage) UpdateUser(ctx context.Context, user models.User) error {
	const op = "storage.sqlite.UpdateUser"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET first_name = ?, last_name = ?, number = ? WHERE id = ?",
		user.FirstName, user.LastName, user.Number, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return affected(op, res, storage.ErrUserNotFound)
}

func (s *Storage) UpdatePassword(ctx context.Context, id int64, salt, hash string) error {
	const op = "storage.sqlite.UpdatePassword"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_salt = ?, password_hash = ? WHERE id = ?",
		salt, hash, id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return affected(op, res, storage.ErrUserNotFound)
}

// DeleteUser removes the user together with their addresses.
func (s *Storage) DeleteUser(ctx context.Context, id int64) error {
	const op = "storage.sqlite.DeleteUser"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_addresses WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("%s: addresses: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := affected(op, res, storage.ErrUserNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	return nil
}

func (s *Storage) SaveAddress(ctx context.Context, addr models.Address) (int64, error) {
	const op = "storage.sqlite.SaveAddress"

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO user_addresses (user_id, street, house_number, apartment, city, country) VALUES (?, ?, ?, ?, ?, ?)",
		addr.UserID, addr.Street, addr.HouseNumber, addr.Apartment, addr.City, addr.Country,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

const addressColumns = "id, user_id, street, house_number, apartment, city, country"

func (s *Storage) Addresses(ctx context.Context, userID int64) ([]models.Address, error) {
	const op = "storage.sqlite.Addresses"

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+addressColumns+" FROM user_addresses WHERE user_id = ? ORDER BY id", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	addrs := []models.Address{}
	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Street, &a.HouseNumber, &a.Apartment, &a.City, &a.Country); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		addrs = append(addrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return addrs, nil
}

// Address returns the address id only if it belongs to userID.
func (s *Storage) Address(ctx context.Context, userID, id int64) (*models.Address, error) {
	const op = "storage.sqlite.Address"

	row := s.db.QueryRowContext(ctx,
		"SELECT "+addressColumns+" FROM user_addresses WHERE id = ? AND user_id = ?", id, userID,
	)

	var a models.Address
	if err := row.Scan(&a.ID, &a.UserID, &a.Street, &a.HouseNumber, &a.Apartment, &a.City, &a.Country); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAddressNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &a, nil
}

func (s *Storage) UpdateAddress(ctx context.Context, addr models.Address) error {
	const op = "storage.sqlite.UpdateAddress"

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_addresses
		SET street = ?, house_number = ?, apartment = ?, city = ?, country = ?
		WHERE id = ? AND user_id = ?`,
		addr.Street, addr.HouseNumber, addr.Apartment, addr.City, addr.Country, addr.ID, addr.UserID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return affected(op, res, storage.ErrAddressNotFound)
}

func (s *Storage) DeleteAddress(ctx context.Context, userID, id int64) error {
	const op = "storage.sqlite.DeleteAddress"

	res, err := s.db.ExecContext(ctx, "DELETE FROM user_addresses WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return affected(op, res, storage.ErrAddressNotFound)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User

	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Number, &u.PasswordSalt, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

func affected(op string, res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
