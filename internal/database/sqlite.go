package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL DEFAULT '',
    avatar_path   TEXT NOT NULL DEFAULT '',
    is_active     INTEGER NOT NULL DEFAULT 1,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_states (
    state      TEXT PRIMARY KEY,
    provider   TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);`

const sqliteUserColumns = `id, name, email, password_hash, avatar_path, is_active, created_at, updated_at`

// SQLiteRepository stores timestamps as unix seconds.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	now := time.Now().Unix()
	id := uuid.New()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO users (id, name, email, password_hash, is_active, created_at, updated_at)
        VALUES (?, ?, ?, ?, 1, ?, ?)`,
		id.String(), arg.Name, arg.Email, arg.PasswordHash, now, now,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("could not create user: %w", err)
	}
	return r.GetUserByID(ctx, id)
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id.String())
	user, err := scanSQLiteUser(row)
	if err != nil {
		return User{}, fmt.Errorf("could not get user by id: %w", err)
	}
	return user, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE email = ?`, email)
	user, err := scanSQLiteUser(row)
	if err != nil {
		return User{}, fmt.Errorf("could not get user by email: %w", err)
	}
	return user, nil
}

func (r *SQLiteRepository) SetUserAvatar(ctx context.Context, id uuid.UUID, avatarPath string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar_path = ?, updated_at = ? WHERE id = ?`,
		avatarPath, time.Now().Unix(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("could not update avatar: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not update avatar: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreateOAuthState(ctx context.Context, arg OAuthState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_states (state, provider, expires_at) VALUES (?, ?, ?)`,
		arg.State, arg.Provider, arg.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("could not store oauth state: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ConsumeOAuthState(ctx context.Context, state string) (OAuthState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return OAuthState{}, fmt.Errorf("could not consume oauth state: %w", err)
	}
	defer tx.Rollback()

	var (
		s         OAuthState
		expiresAt int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT state, provider, expires_at FROM oauth_states WHERE state = ?`, state,
	).Scan(&s.State, &s.Provider, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OAuthState{}, ErrNotFound
		}
		return OAuthState{}, fmt.Errorf("could not consume oauth state: %w", err)
	}

	// Single use: deleted regardless of expiry.
	if _, err := tx.ExecContext(ctx, `DELETE FROM oauth_states WHERE state = ?`, state); err != nil {
		return OAuthState{}, fmt.Errorf("could not consume oauth state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return OAuthState{}, fmt.Errorf("could not consume oauth state: %w", err)
	}

	s.ExpiresAt = time.Unix(expiresAt, 0)
	return s, nil
}

func (r *SQLiteRepository) PurgeOAuthStates(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("could not purge oauth states: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() {
	r.db.Close()
}

func scanSQLiteUser(row *sql.Row) (User, error) {
	var (
		u                    User
		id                   string
		active               int64
		createdAt, updatedAt int64
	)
	err := row.Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &u.AvatarPath, &active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if u.ID, err = uuid.Parse(id); err != nil {
		return User{}, fmt.Errorf("invalid user id %q: %w", id, err)
	}
	u.IsActive = active != 0
	u.CreatedAt = time.Unix(createdAt, 0)
	u.UpdatedAt = time.Unix(updatedAt, 0)
	return u, nil
}

func isSQLiteUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
