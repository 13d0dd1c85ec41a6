package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlinks/internal/auth"
)

// PostgresUserStore is a PostgreSQL implementation of auth.Repository.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore creates a new PostgreSQL-backed user store.
func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

func (p *PostgresUserStore) Create(ctx context.Context, user *auth.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
		RETURNING id
	`

	var id string

	err := p.pool.QueryRow(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.ErrUserExists
		}

		return err
	}

	return nil
}

func (p *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	query := `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`

	var user auth.User

	err := p.pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}

		return nil, err
	}

	return &user, nil
}

var _ auth.Repository = (*PostgresUserStore)(nil)
