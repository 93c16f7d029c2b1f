package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// FetchTokenMints returns the mints of all tokens tracked by a
// portfolio. The observer refreshes its monitoring set from this on
// each tick.
func (s *Store) FetchTokenMints(ctx context.Context, portfolioID uuid.UUID) ([]solana.PublicKey, error) {
	query := `
		SELECT token_mint
		FROM portfolio_tokens
		WHERE portfolio_id = $1
		ORDER BY token_mint
	`

	rows, err := s.pool.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch portfolio tokens: %w", err)
	}
	defer rows.Close()

	var mints []solana.PublicKey
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan token mint: %w", err)
		}
		mint, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid token mint %q: %w", raw, err)
		}
		mints = append(mints, mint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read portfolio tokens: %w", err)
	}

	return mints, nil
}

// AddToken registers a token under a portfolio. Idempotent.
func (s *Store) AddToken(ctx context.Context, portfolioID uuid.UUID, mint solana.PublicKey) error {
	query := `
		INSERT INTO portfolio_tokens (portfolio_id, token_mint, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (portfolio_id, token_mint) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query, portfolioID, mint.String(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to add portfolio token: %w", err)
	}
	return nil
}
