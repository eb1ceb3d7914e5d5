package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"novel-translate-service/internal/entity"
)

// GoogleProvider is the account provider whose refresh token lets the worker
// write into the user's drive folder.
const GoogleProvider = "google"

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// CredentialRepository reads delegated credentials from the auth account table.
// Accounts are owned by the auth service; this side only reads.
type CredentialRepository struct {
	pool     *pgxpool.Pool
	provider string
}

func NewCredentialRepository(pool *pgxpool.Pool, provider string) *CredentialRepository {
	if provider == "" {
		provider = GoogleProvider
	}
	return &CredentialRepository{pool: pool, provider: provider}
}

// RefreshToken returns entity.ErrNoCredential when the user has no linked
// account or the account was linked without offline access.
func (r *CredentialRepository) RefreshToken(ctx context.Context, userID string) (string, error) {
	const q = `
SELECT refresh_token
FROM account
WHERE user_id = $1 AND provider_id = $2
ORDER BY updated_at DESC
LIMIT 1;
`
	var token *string
	if err := r.pool.QueryRow(ctx, q, userID, r.provider).Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", entity.ErrNoCredential
		}
		return "", err
	}
	if token == nil || *token == "" {
		return "", entity.ErrNoCredential
	}
	return *token, nil
}
