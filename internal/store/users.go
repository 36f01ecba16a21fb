package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/genoweb/genoserve/internal/models"
	"github.com/genoweb/genoserve/internal/utils"
)

// ErrUserNotFound is returned when no user exists for a login.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidCredentials is returned when the password does not match.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CreateUser inserts a user with a bcrypt-hashed password.
func (db *DB) CreateUser(login, name, password, role string) (int64, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("hashing password: %w", err)
	}

	var id int64
	if db.driver == DriverPostgres {
		err = db.QueryRow(db.rebind(
			"INSERT INTO users (login, name, password_hash, role) VALUES (?, ?, ?, ?) RETURNING id"),
			login, name, hash, role).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("creating user %s: %w", login, err)
		}
		return id, nil
	}

	result, err := db.Exec("INSERT INTO users (login, name, password_hash, role) VALUES (?, ?, ?, ?)",
		login, name, hash, role)
	if err != nil {
		return 0, fmt.Errorf("creating user %s: %w", login, err)
	}
	return result.LastInsertId()
}

// GetUserByLogin fetches one user record.
func (db *DB) GetUserByLogin(login string) (models.User, error) {
	var (
		user      models.User
		lastLogin sql.NullTime
	)
	err := db.QueryRow(db.rebind(
		"SELECT id, login, name, password_hash, role, created_at, last_login FROM users WHERE login = ?"),
		login).Scan(&user.ID, &user.Login, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("reading user %s: %w", login, err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}

// Authenticate verifies a login/password pair and records the login time.
func (db *DB) Authenticate(login, password string) (models.User, error) {
	user, err := db.GetUserByLogin(login)
	if errors.Is(err, ErrUserNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if !utils.VerifyPassword(password, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}

	now := time.Now()
	if _, err := db.Exec(db.rebind("UPDATE users SET last_login = ? WHERE id = ?"), now, user.ID); err != nil {
		return models.User{}, fmt.Errorf("recording login time: %w", err)
	}
	user.LastLogin = &now
	return user, nil
}

// EnsureAdmin creates the administrator account on first start. An existing
// account is left untouched.
func (db *DB) EnsureAdmin(login, password string) error {
	if login == "" || password == "" {
		return nil
	}
	_, err := db.GetUserByLogin(login)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	_, err = db.CreateUser(login, "Administrator", password, "admin")
	return err
}
