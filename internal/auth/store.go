package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is a stored account. The password hash never leaves the store.
type User struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists user credentials in SQLite with bcrypt password hashes.
// On first open it seeds the default accounts the server ships with
// (admin/admin123 and user/user123); operators are expected to replace them.
type Store struct {
	db         *sql.DB
	bcryptCost int
}

// OpenStore opens (or creates) the credential database.
// DSN format follows the history sinks:
//   - "sqlite:///path/to/file.db"
//   - "/path/to/file.db"
//   - ":memory:"
func OpenStore(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty credential store DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, bcryptCost: bcrypt.DefaultCost}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.seedDefaults(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS users(
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP)
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Store) seedDefaults(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for user, pass := range map[string]string{"admin": "admin123", "user": "user123"} {
		if err := s.CreateUser(ctx, user, pass); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser adds an account with a bcrypt-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(username, password_hash) VALUES(?, ?) ON CONFLICT(username) DO NOTHING;`,
		username, string(hash))
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrUserAlreadyExists
	}
	return nil
}

// DeleteUser removes an account.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?;`, username)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns all accounts, without hashes.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, created_at FROM users ORDER BY username;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Username, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Verify checks a username/password pair against the stored hash.
func (s *Store) Verify(ctx context.Context, username, password string) error {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE username = ?;`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		// Burn comparable time so absent users are not distinguishable by latency.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
