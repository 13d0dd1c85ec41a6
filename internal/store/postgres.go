package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlinks/internal/shortener"
)

const linkColumns = `id, short_code, original_url, user_id, created_at, expires_at, clicks`

// PostgresStore is a PostgreSQL implementation of shortener.Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed link store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Save(ctx context.Context, link *shortener.Link) error {
	query := `
		INSERT INTO links (id, short_code, original_url, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (short_code) DO NOTHING
		RETURNING id
	`

	var id string

	err := p.pool.QueryRow(ctx, query,
		link.ID,
		string(link.Code),
		link.OriginalURL,
		link.UserID,
		link.CreatedAt,
		link.ExpiresAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shortener.ErrCodeConflict
		}

		return err
	}

	return nil
}

func (p *PostgresStore) GetByCode(ctx context.Context, code shortener.Code) (*shortener.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`

	link, err := scanLink(p.pool.QueryRow(ctx, query, string(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	return link, nil
}

func (p *PostgresStore) ListByOwner(ctx context.Context, userID string) ([]*shortener.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE user_id = $1 ORDER BY created_at DESC`

	return p.queryLinks(ctx, query, userID)
}

func (p *PostgresStore) DeleteOwned(ctx context.Context, id, userID string) (*shortener.Link, error) {
	query := `DELETE FROM links WHERE id = $1 AND user_id = $2 RETURNING ` + linkColumns

	link, err := scanLink(p.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	return link, nil
}

func (p *PostgresStore) ListExpired(ctx context.Context, before time.Time) ([]*shortener.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE expires_at IS NOT NULL AND expires_at < $1`

	return p.queryLinks(ctx, query, before)
}

func (p *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (p *PostgresStore) IncrementClicks(ctx context.Context, code shortener.Code) error {
	tag, err := p.pool.Exec(ctx, `UPDATE links SET clicks = clicks + 1 WHERE short_code = $1`, string(code))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64

	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM links`).Scan(&n)

	return n, err
}

func (p *PostgresStore) queryLinks(ctx context.Context, query string, args ...any) ([]*shortener.Link, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]*shortener.Link, 0)

	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}

		links = append(links, link)
	}

	return links, rows.Err()
}

func scanLink(row pgx.Row) (*shortener.Link, error) {
	var (
		link shortener.Link
		code string
	)

	err := row.Scan(
		&link.ID,
		&code,
		&link.OriginalURL,
		&link.UserID,
		&link.CreatedAt,
		&link.ExpiresAt,
		&link.Clicks,
	)
	if err != nil {
		return nil, err
	}

	link.Code = shortener.Code(code)

	return &link, nil
}

var _ shortener.Repository = (*PostgresStore)(nil)
