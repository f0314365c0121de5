// internal/users/users.go
//
// User accounts: SQLite rows with bcrypt password hashes and a role.
// Balances are not stored here; a user's funds live in the ledger under
// ledger.UserAccount(id).
//
// Everybody signs up as a player. The operator role is granted out of band
// with SetRole (the `promote` command), never through the public API.

package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// Role gates what a user may do.
type Role string

const (
	RolePlayer   Role = "player"
	RoleOperator Role = "operator"
)

var (
	ErrUsernameTaken = errors.New("username taken")
	ErrNotFound      = errors.New("user not found")
	ErrInvalid       = errors.New("invalid signup")
)

// User matches the users table shape.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Store reads and writes the users table.
type Store struct{ db *sql.DB }

// NewStore wraps a migrated database handle.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Create validates input, hashes the password and inserts a new player.
// Usernames are unique case-insensitively; the table constraint decides.
func (s *Store) Create(ctx context.Context, username, pw string) (*User, error) {
	username = Normalize(username)
	if err := Validate(username, pw); err != nil {
		return nil, err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(h),
		Role:         RolePlayer,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.CreatedAt.Format(time.RFC3339)); err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Delete removes a user row (rollback of a half-finished signup).
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// SetRole changes the role of username.
func (s *Store) SetRole(ctx context.Context, username string, role Role) error {
	if role != RolePlayer && role != RoleOperator {
		return fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role=? WHERE lower(username)=lower(?)`, string(role), Normalize(username))
	if err != nil {
		return err
	}
	return expectRow(res)
}

// ByUsername/ByID load a user row or return ErrNotFound.
func (s *Store) ByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE lower(username)=lower(?)`,
		Normalize(username)))
}

func (s *Store) ByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE id=?`, id))
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u             User
		role, created string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckPassword is a bcrypt verifier.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func Normalize(u string) string {
	return strings.TrimSpace(u)
}

// Validate enforces basic username/password rules.
func Validate(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return fmt.Errorf("%w: username must be 3-24 chars", ErrInvalid)
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("%w: username: letters, numbers, underscore only", ErrInvalid)
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return fmt.Errorf("%w: password must be 8-100 chars", ErrInvalid)
	}
	return nil
}
