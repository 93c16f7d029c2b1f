package market

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const mirrorWriteTimeout = 2 * time.Second

// Cache holds the latest quote per directed pair and the latest price per
// mint. Fully in-memory and safe for concurrent use; entries are
// overwritten in place and never evicted. Freshness is the caller's call.
//
// When a Redis client is attached, price writes are mirrored to Redis
// asynchronously so external dashboards can read them; the mirror is
// best-effort and never blocks or fails a local write.
type Cache struct {
	mu     sync.RWMutex
	quotes map[PairKey]Quote
	prices map[solana.PublicKey]float64

	mirror *redis.Client
	log    zerolog.Logger
}

// NewCache creates an empty cache. mirror may be nil.
func NewCache(mirror *redis.Client, log zerolog.Logger) *Cache {
	return &Cache{
		quotes: make(map[PairKey]Quote),
		prices: make(map[solana.PublicKey]float64),
		mirror: mirror,
		log:    log,
	}
}

// PutQuote stores the latest quote for its pair.
func (c *Cache) PutQuote(q Quote) {
	c.mu.Lock()
	c.quotes[q.Key()] = q
	c.mu.Unlock()
}

// GetQuote returns the latest quote for the pair, if any.
func (c *Cache) GetQuote(key PairKey) (Quote, bool) {
	c.mu.RLock()
	q, ok := c.quotes[key]
	c.mu.RUnlock()
	return q, ok
}

// SnapshotQuotes returns a copy of all cached quotes.
func (c *Cache) SnapshotQuotes() map[PairKey]Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[PairKey]Quote, len(c.quotes))
	for k, v := range c.quotes {
		out[k] = v
	}
	return out
}

// PutPrice stores the latest price for a mint and mirrors it to Redis
// when a mirror is attached.
func (c *Cache) PutPrice(mint solana.PublicKey, price float64) {
	c.mu.Lock()
	c.prices[mint] = price
	c.mu.Unlock()

	if c.mirror != nil {
		go c.mirrorPrice(mint, price)
	}
}

// GetPrice returns the latest price for a mint, if any.
func (c *Cache) GetPrice(mint solana.PublicKey) (float64, bool) {
	c.mu.RLock()
	p, ok := c.prices[mint]
	c.mu.RUnlock()
	return p, ok
}

// Len returns the number of cached quotes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}

func (c *Cache) mirrorPrice(mint solana.PublicKey, price float64) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()

	key := "price:" + mint.String()
	val := strconv.FormatFloat(price, 'f', -1, 64)
	if err := c.mirror.Set(ctx, key, val, 0).Err(); err != nil {
		c.log.Debug().Err(err).Str("mint", mint.String()).Msg("price mirror write failed")
	}
}
