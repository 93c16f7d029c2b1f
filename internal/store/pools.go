package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

// Pool is the persisted metadata of one trading pool.
type Pool struct {
	Creator  solana.PublicKey
	Name     string
	Strategy strategy.Tag
	Tokens   []solana.PublicKey
	Target   uint64
	EndTime  time.Time
	FeeBps   uint16
}

// UpsertPool writes pool metadata on creation, replacing any earlier
// record for the same (creator, name).
func (s *Store) UpsertPool(ctx context.Context, p Pool) error {
	if p.Name == "" {
		return fmt.Errorf("pool name must not be empty")
	}
	if _, err := strategy.ParseTag(string(p.Strategy)); err != nil {
		return err
	}

	tokens := make([]string, len(p.Tokens))
	for i, t := range p.Tokens {
		tokens[i] = t.String()
	}

	query := `
		INSERT INTO pools (creator, name, strategy, tokens, target, end_time, fee_bps, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (creator, name) DO UPDATE SET
			strategy = EXCLUDED.strategy,
			tokens = EXCLUDED.tokens,
			target = EXCLUDED.target,
			end_time = EXCLUDED.end_time,
			fee_bps = EXCLUDED.fee_bps,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		p.Creator.String(),
		p.Name,
		string(p.Strategy),
		tokens,
		p.Target,
		p.EndTime,
		p.FeeBps,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pool: %w", err)
	}
	return nil
}

// FetchStrategies lists every pool's strategy keyed by "creator_name".
func (s *Store) FetchStrategies(ctx context.Context) (map[string]strategy.Tag, error) {
	query := `
		SELECT creator, name, strategy
		FROM pools
		ORDER BY creator, name
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pool strategies: %w", err)
	}
	defer rows.Close()

	out := make(map[string]strategy.Tag)
	for rows.Next() {
		var creator, name, tag string
		if err := rows.Scan(&creator, &name, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan pool strategy: %w", err)
		}
		out[creator+"_"+name] = strategy.Tag(tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pool strategies: %w", err)
	}

	return out, nil
}
