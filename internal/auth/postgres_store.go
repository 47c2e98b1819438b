package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipstream/internal/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRefreshStore persists refresh token digests to a Postgres table,
// allowing multiple API replicas to share rotation state. The rotation runs
// as one conditional UPDATE so the compare and the swap cannot interleave
// with a concurrent refresh on another replica.
type PostgresRefreshStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRefreshStore opens a Postgres-backed refresh store using the
// provided DSN and ensures its table exists.
func NewPostgresRefreshStore(ctx context.Context, dsn string) (*PostgresRefreshStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres refresh store dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres refresh store config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres refresh store pool: %w", err)
	}
	store := &PostgresRefreshStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresRefreshStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS refresh_tokens (
    account_id TEXT PRIMARY KEY,
    token_hash TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
)
`)
	if err != nil {
		return fmt.Errorf("migrate refresh_tokens: %w", err)
	}
	return nil
}

// Close releases the connection pool resources.
func (s *PostgresRefreshStore) Close(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Ping verifies the backing database is reachable.
func (s *PostgresRefreshStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Set stores or replaces the account's token digest.
func (s *PostgresRefreshStore) Set(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error {
	const op = "auth.PostgresRefreshStore.Set"
	_, err := s.pool.Exec(ctx, `
INSERT INTO refresh_tokens (account_id, token_hash, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (account_id) DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at
`, accountID, tokenHash, expiresAt.UTC())
	if err != nil {
		return storeFailure(op, err)
	}
	return nil
}

// Get fetches the stored digest for the account. Expired rows report as
// absent.
func (s *PostgresRefreshStore) Get(ctx context.Context, accountID string) (string, bool, error) {
	const op = "auth.PostgresRefreshStore.Get"
	row := s.pool.QueryRow(ctx, `
SELECT token_hash
FROM refresh_tokens
WHERE account_id = $1 AND expires_at > now()
`, accountID)
	var tokenHash string
	if err := row.Scan(&tokenHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, storeFailure(op, err)
	}
	return tokenHash, true, nil
}

// Rotate swaps the stored digest only when it still equals currentHash,
// reporting whether the conditional update took effect.
func (s *PostgresRefreshStore) Rotate(ctx context.Context, accountID, currentHash, nextHash string, expiresAt time.Time) (bool, error) {
	const op = "auth.PostgresRefreshStore.Rotate"
	tag, err := s.pool.Exec(ctx, `
UPDATE refresh_tokens
SET token_hash = $1, expires_at = $2
WHERE account_id = $3 AND token_hash = $4 AND expires_at > now()
`, nextHash, expiresAt.UTC(), accountID, currentHash)
	if err != nil {
		return false, storeFailure(op, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Clear removes the account's refresh token row.
func (s *PostgresRefreshStore) Clear(ctx context.Context, accountID string) error {
	const op = "auth.PostgresRefreshStore.Clear"
	_, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1`, accountID)
	if err != nil {
		return storeFailure(op, err)
	}
	return nil
}

// PurgeExpired deletes expired rows from the table.
func (s *PostgresRefreshStore) PurgeExpired(ctx context.Context, now time.Time) error {
	const op = "auth.PostgresRefreshStore.PurgeExpired"
	_, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return storeFailure(op, err)
	}
	return nil
}

// storeFailure classifies pgx errors: deadline and cancellation surface as
// the retryable kind, anything else as an invariant failure.
func storeFailure(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Unavailable(op, err)
	}
	return apperr.Internal(op, err)
}

var _ RefreshTokenStore = (*PostgresRefreshStore)(nil)
