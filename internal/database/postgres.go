package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            UUID PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL DEFAULT '',
    avatar_path   TEXT NOT NULL DEFAULT '',
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_states (
    state      TEXT PRIMARY KEY,
    provider   TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);`

const pgUniqueViolation = "23505"

const userColumns = `id::text, name, email, password_hash, avatar_path, is_active, created_at, updated_at`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	now := time.Now().UTC()
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
        INSERT INTO users (id, name, email, password_hash, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, TRUE, $5, $5)
        RETURNING `+userColumns,
		id.String(), arg.Name, arg.Email, arg.PasswordHash, now,
	)
	user, err := scanPostgresUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("could not create user: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	user, err := scanPostgresUser(row)
	if err != nil {
		return User{}, fmt.Errorf("could not get user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanPostgresUser(row)
	if err != nil {
		return User{}, fmt.Errorf("could not get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) SetUserAvatar(ctx context.Context, id uuid.UUID, avatarPath string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET avatar_path = $2, updated_at = $3 WHERE id = $1`,
		id.String(), avatarPath, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("could not update avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateOAuthState(ctx context.Context, arg OAuthState) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO oauth_states (state, provider, expires_at) VALUES ($1, $2, $3)`,
		arg.State, arg.Provider, arg.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("could not store oauth state: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ConsumeOAuthState(ctx context.Context, state string) (OAuthState, error) {
	var s OAuthState
	err := r.pool.QueryRow(ctx,
		`DELETE FROM oauth_states WHERE state = $1 RETURNING state, provider, expires_at`,
		state,
	).Scan(&s.State, &s.Provider, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OAuthState{}, ErrNotFound
		}
		return OAuthState{}, fmt.Errorf("could not consume oauth state: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) PurgeOAuthStates(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM oauth_states WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("could not purge oauth states: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func scanPostgresUser(row pgx.Row) (User, error) {
	var (
		u  User
		id string
	)
	err := row.Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &u.AvatarPath, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if u.ID, err = uuid.Parse(id); err != nil {
		return User{}, fmt.Errorf("invalid user id %q: %w", id, err)
	}
	return u, nil
}
