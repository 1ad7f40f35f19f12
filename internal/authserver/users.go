package authserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrUserNotFound is returned when no active user matches.
var ErrUserNotFound = errors.New("user not found")

// User is a row of the users table.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	FullName     string
}

// DisplayName returns FullName, falling back to Username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// UserFinder looks up active users for the login handler.
type UserFinder interface {
	// FindActiveUser matches value against the email column when byEmail is
	// true and the username column otherwise.
	FindActiveUser(ctx context.Context, byEmail bool, value string) (User, error)
}

// UserStore is the users table on sqlite or postgres.
type UserStore struct {
	db      *sql.DB
	dialect dialect
}

// OpenUserStore opens the users database and applies pending migrations.
// For DriverSQLite the DSN is a file path or a modernc DSN; for
// DriverPostgres it is a lib/pq connection string.
func OpenUserStore(ctx context.Context, driver, dsn string) (*UserStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open users database: %w", err)
	}
	if d == DriverSQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy_timeout: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping users database: %w", err)
	}
	if err := applyMigrations(ctx, db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate users database: %w", err)
	}
	return &UserStore{db: db, dialect: d}, nil
}

// Close closes the database.
func (s *UserStore) Close() error {
	return s.db.Close()
}

// FindActiveUser implements UserFinder.
func (s *UserStore) FindActiveUser(ctx context.Context, byEmail bool, value string) (User, error) {
	column := "username"
	if byEmail {
		column = "email"
	}
	query := s.dialect.rebind("SELECT id, username, email, password_hash, full_name FROM users WHERE " + column + " = ? AND is_active")

	var u User
	var fullName sql.NullString
	err := s.db.QueryRowContext(ctx, query, value).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &fullName)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.FullName = fullName.String
	return u, nil
}

// UpsertUser inserts a user, or replaces the password hash and name of the
// user with the same email, and reactivates it.
func (s *UserStore) UpsertUser(ctx context.Context, email, username, passwordHash, fullName string) error {
	query := s.dialect.rebind(`INSERT INTO users (email, username, password_hash, full_name)
VALUES (?, ?, ?, ?)
ON CONFLICT (email) DO UPDATE SET
    password_hash = excluded.password_hash,
    full_name = excluded.full_name,
    is_active = TRUE,
    updated_at = CURRENT_TIMESTAMP`)
	var name sql.NullString
	if fullName != "" {
		name = sql.NullString{String: fullName, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, query, email, username, passwordHash, name); err != nil {
		return fmt.Errorf("upsert user %s: %w", email, err)
	}
	return nil
}

// SetActive enables or disables the user with the given email.
func (s *UserStore) SetActive(ctx context.Context, email string, active bool) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind("UPDATE users SET is_active = ? WHERE email = ?"), active, email)
	if err != nil {
		return fmt.Errorf("update user %s: %w", email, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user %s: %w", email, err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
