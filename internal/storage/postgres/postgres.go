package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"food-delivery/internal/domain/models"
	"food-delivery/internal/storage"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

type Storage struct {
	db *sql.DB
}

// New opens a pgx-backed database/sql pool. The connection is verified lazily.
func New(dsn string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewFromDB(db), nil
}

func NewFromDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveUser(ctx context.Context, user models.User) (int64, error) {
	const op = "storage.postgres.SaveUser"

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (first_name, last_name, number, password_salt, password_hash)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		user.FirstName, user.LastName, user.Number, user.PasswordSalt, user.PasswordHash,
	).Scan(&id)
	if err != nil {
		if pgCode(err) == pgErrUniqueViolation {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

const userColumns = "id, first_name, last_name, number, password_salt, password_hash, created_at"

func (s *Storage) UserByNumber(ctx context.Context, number string) (*models.User, error) {
	const op = "storage.postgres.UserByNumber"

	user, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE number = $1", number))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	user, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UpdateUser(ctx context.Context, user models.User) error {
	const op = "storage.postgres.UpdateUser"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET first_name = $1, last_name = $2, number = $3 WHERE id = $4",
		user.FirstName, user.LastName, user.Number, user.ID,
	)
	if err != nil {
		if pgCode(err) == pgErrUniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrUserAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return affected(op, res, storage.ErrUserNotFound)
}

func (s *Storage) UpdatePassword(ctx context.Context, id int64, salt, hash string) error {
	const op = "storage.postgres.UpdatePassword"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_salt = $1, password_hash = $2 WHERE id = $3",
		salt, hash, id,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return affected(op, res, storage.ErrUserNotFound)
}

// DeleteUser removes the user; addresses go with it through ON DELETE CASCADE.
func (s *Storage) DeleteUser(ctx context.Context, id int64) error {
	const op = "storage.postgres.DeleteUser"

	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return affected(op, res, storage.ErrUserNotFound)
}

func (s *Storage) SaveAddress(ctx context.Context, addr models.Address) (int64, error) {
	const op = "storage.postgres.SaveAddress"

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO user_addresses (user_id, street, house_number, apartment, city, country)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		addr.UserID, addr.Street, addr.HouseNumber, addr.Apartment, addr.City, addr.Country,
	).Scan(&id)
	if err != nil {
		if pgCode(err) == pgErrForeignKeyViolation {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

const addressColumns = "id, user_id, street, house_number, apartment, city, country"

func (s *Storage) Addresses(ctx context.Context, userID int64) ([]models.Address, error) {
	const op = "storage.postgres.Addresses"

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+addressColumns+" FROM user_addresses WHERE user_id = $1 ORDER BY id", userID,
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

func (s *Storage) Address(ctx context.Context, userID, id int64) (*models.Address, error) {
	const op = "storage.postgres.Address"

	var a models.Address
	err := s.db.QueryRowContext(ctx,
		"SELECT "+addressColumns+" FROM user_addresses WHERE id = $1 AND user_id = $2", id, userID,
	).Scan(&a.ID, &a.UserID, &a.Street, &a.HouseNumber, &a.Apartment, &a.City, &a.Country)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAddressNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &a, nil
}

func (s *Storage) UpdateAddress(ctx context.Context, addr models.Address) error {
	const op = "storage.postgres.UpdateAddress"

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_addresses
		SET street = $1, house_number = $2, apartment = $3, city = $4, country = $5
		WHERE id = $6 AND user_id = $7`,
		addr.Street, addr.HouseNumber, addr.Apartment, addr.City, addr.Country, addr.ID, addr.UserID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return affected(op, res, storage.ErrAddressNotFound)
}

func (s *Storage) DeleteAddress(ctx context.Context, userID, id int64) error {
	const op = "storage.postgres.DeleteAddress"

	res, err := s.db.ExecContext(ctx, "DELETE FROM user_addresses WHERE id = $1 AND user_id = $2", id, userID)
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

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
