package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"stax/internal/logging"
)

// Role is a catalog user's role.
type Role string

// Roles
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ErrInvalidCredentials is returned by AuthenticateUser for an unknown user,
// a wrong password, or a deactivated account.
var ErrInvalidCredentials = errors.New("invalid username or password")

// MinPasswordLength is enforced by CreateUser and ChangeUserPassword.
const MinPasswordLength = 6

// User is a catalog account. Identity for favorites and playlists is free
// text and does not require an account.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         Role       `db:"role" json:"role"`
	Email        string     `db:"email" json:"email,omitempty"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin,omitempty"`
}

// Session is a login of a user on a machine.
type Session struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"userId"`
	MachineName  string    `db:"machine_name" json:"machineName"`
	TokenHash    string    `db:"token_hash" json:"-"`
	LoginTime    time.Time `db:"login_time" json:"loginTime"`
	LastActivity time.Time `db:"last_activity" json:"lastActivity"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	// Token is only set on the value returned by CreateSession.
	Token string `db:"-" json:"token,omitempty"`
}

// UserUpdate lists the mutable user fields. Only non-nil fields are written.
type UserUpdate struct {
	Username *string
	Email    *string
	Role     *Role
	IsActive *bool
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func validateRole(r Role) error {
	if r != RoleAdmin && r != RoleUser {
		return fmt.Errorf("%w: role %q", ErrInvalidEnum, r)
	}
	return nil
}

// CreateUser adds an account with a bcrypt-hashed password and returns its
// id. A duplicate username fails with ErrUniqueViolation.
func (d *Database) CreateUser(ctx context.Context, username, password string, role Role, email string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.New("username is required")
	}
	if len(password) < MinPasswordLength {
		return 0, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if role == "" {
		role = RoleUser
	}
	if err := validateRole(role); err != nil {
		return 0, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	var id int64
	err = d.write(ctx, "create_user", func(q querier) error {
		res, err := q.ExecContext(ctx,
			"INSERT INTO users (username, password_hash, role, email) VALUES (?, ?, ?, ?)",
			username, string(hash), role, email)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create user %q: %w", username, err)
	}
	return id, nil
}

// AuthenticateUser checks a password and records the login time. It
// returns ErrInvalidCredentials for any mismatch.
func (d *Database) AuthenticateUser(ctx context.Context, username, password string) (*User, error) {
	u, err := d.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		logging.Debug("Authentication failed for %q: no active account", username)
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		logging.Debug("Authentication failed for %q: wrong password", username)
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	err = d.write(ctx, "authenticate_user", func(q querier) error {
		_, err := q.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", now, u.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	u.LastLogin = &now
	return u, nil
}

// GetUser returns the user with id, or nil if there is none.
func (d *Database) GetUser(ctx context.Context, id int64) (*User, error) {
	return d.getUser(ctx, "SELECT * FROM users WHERE id = ?", id)
}

// GetUserByUsername returns the user called username, or nil if there is none.
func (d *Database) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return d.getUser(ctx, "SELECT * FROM users WHERE username = ?", strings.TrimSpace(username))
}

func (d *Database) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	found := false
	err := d.read(ctx, "get_user", func(q querier) error {
		err := sqlx.GetContext(ctx, q, &u, query, arg)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &u, nil
}

// GetAllUsers returns every account ordered by username.
func (d *Database) GetAllUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := d.read(ctx, "get_all_users", func(q querier) error {
		users = users[:0]
		return sqlx.SelectContext(ctx, q, &users, "SELECT * FROM users ORDER BY username")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// HasUsers reports whether any account exists.
func (d *Database) HasUsers(ctx context.Context) (bool, error) {
	var exists bool
	err := d.read(ctx, "has_users", func(q querier) error {
		return sqlx.GetContext(ctx, q, &exists, "SELECT EXISTS(SELECT 1 FROM users)")
	})
	return exists, err
}

// UpdateUser writes the fields set in u. It returns false if nothing was set
// or the user does not exist.
func (d *Database) UpdateUser(ctx context.Context, id int64, u UserUpdate) (bool, error) {
	var cols []string
	var args []any
	if u.Username != nil {
		name := strings.TrimSpace(*u.Username)
		if name == "" {
			return false, errors.New("username cannot be empty")
		}
		cols = append(cols, "username = ?")
		args = append(args, name)
	}
	if u.Email != nil {
		cols = append(cols, "email = ?")
		args = append(args, *u.Email)
	}
	if u.Role != nil {
		if err := validateRole(*u.Role); err != nil {
			return false, err
		}
		cols = append(cols, "role = ?")
		args = append(args, *u.Role)
	}
	if u.IsActive != nil {
		cols = append(cols, "is_active = ?")
		args = append(args, *u.IsActive)
	}
	if len(cols) == 0 {
		return false, nil
	}
	args = append(args, id)

	return d.execCount(ctx, "update_user", "UPDATE users SET "+strings.Join(cols, ", ")+" WHERE id = ?", args...)
}

// ChangeUserPassword replaces a user's password and ends every session the
// user has open.
func (d *Database) ChangeUserPassword(ctx context.Context, id int64, newPassword string) (bool, error) {
	if len(newPassword) < MinPasswordLength {
		return false, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	var n int64
	err = d.write(ctx, "change_password", func(q querier) error {
		res, err := q.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", string(hash), id)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		_, err = q.ExecContext(ctx, "UPDATE user_sessions SET is_active = 0 WHERE user_id = ?", id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to change password for user %d: %w", id, err)
	}
	return n > 0, nil
}

// DeleteUser deactivates an account and ends its sessions. The row is kept
// so history attributed to the user stays readable.
func (d *Database) DeleteUser(ctx context.Context, id int64) (bool, error) {
	var n int64
	err := d.write(ctx, "delete_user", func(q querier) error {
		res, err := q.ExecContext(ctx, "UPDATE users SET is_active = 0 WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, "UPDATE user_sessions SET is_active = 0 WHERE user_id = ?", id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	return n > 0, nil
}

// CreateSession starts a session for a user on a machine. The returned
// Session carries the plain token; only its hash is stored.
func (d *Database) CreateSession(ctx context.Context, userID int64, machine string) (*Session, error) {
	token := uuid.NewString()
	s := &Session{
		UserID:      userID,
		MachineName: machine,
		TokenHash:   hashToken(token),
		IsActive:    true,
		Token:       token,
	}

	err := d.write(ctx, "create_session", func(q querier) error {
		res, err := q.ExecContext(ctx,
			"INSERT INTO user_sessions (user_id, machine_name, token_hash) VALUES (?, ?, ?)",
			userID, machine, s.TokenHash)
		if err != nil {
			return err
		}
		s.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.LoginTime = time.Now().UTC()
	s.LastActivity = s.LoginTime
	return s, nil
}

// GetActiveSession returns the newest active session of a user on a
// machine, or nil if there is none.
func (d *Database) GetActiveSession(ctx context.Context, userID int64, machine string) (*Session, error) {
	var s Session
	found := false
	err := d.read(ctx, "get_active_session", func(q querier) error {
		err := sqlx.GetContext(ctx, q, &s, `
			SELECT * FROM user_sessions
			WHERE user_id = ? AND machine_name = ? AND is_active = 1
			ORDER BY login_time DESC, id DESC LIMIT 1`, userID, machine)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

// ValidateSession returns the active user owning token and refreshes the
// session's activity time, or nil if the token is unknown or ended.
func (d *Database) ValidateSession(ctx context.Context, token string) (*User, error) {
	var u User
	found := false
	err := d.write(ctx, "validate_session", func(q querier) error {
		err := sqlx.GetContext(ctx, q, &u, `
			SELECT u.* FROM users u
			INNER JOIN user_sessions s ON s.user_id = u.id
			WHERE s.token_hash = ? AND s.is_active = 1 AND u.is_active = 1`, hashToken(token))
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		_, err = q.ExecContext(ctx,
			"UPDATE user_sessions SET last_activity = CURRENT_TIMESTAMP WHERE token_hash = ?", hashToken(token))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to validate session: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &u, nil
}

// EndSession marks a session inactive.
func (d *Database) EndSession(ctx context.Context, sessionID int64) (bool, error) {
	return d.execCount(ctx, "end_session", "UPDATE user_sessions SET is_active = 0 WHERE id = ?", sessionID)
}
