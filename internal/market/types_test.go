package market

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testUSDC = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	testSOL  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

func TestQuoteFresh(t *testing.T) {
	interval := time.Second
	now := time.Now()

	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{"just fetched", 0, true},
		{"under the cutoff", 2900 * time.Millisecond, true},
		{"at the cutoff", 3 * time.Second, false},
		{"stale", time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Quote{Timestamp: now.Add(-tt.age)}
			assert.Equal(t, tt.want, q.Fresh(now, interval))
		})
	}
}

func TestQuotePrice(t *testing.T) {
	assert.Equal(t, 1.1, Quote{InAmount: 1_000_000, OutAmount: 1_100_000}.Price())
	assert.Zero(t, Quote{OutAmount: 1_100_000}.Price())
}

func TestPairKey(t *testing.T) {
	p := Pair{InputMint: testUSDC, OutputMint: testSOL, Amount: 1_000_000}
	q := Quote{InputMint: testUSDC, OutputMint: testSOL}

	assert.Equal(t, p.Key(), q.Key())

	reversed := Pair{InputMint: testSOL, OutputMint: testUSDC}
	assert.NotEqual(t, p.Key(), reversed.Key(), "pair keys are directed")
}

func TestRoutePlanRoundTrip(t *testing.T) {
	steps := []RouteStep{
		{
			AMMKey:     "AMM111",
			Label:      "Orca",
			InputMint:  testUSDC.String(),
			OutputMint: testSOL.String(),
			InAmount:   "1000000",
			OutAmount:  "550000",
			Percent:    60,
		},
		{
			AMMKey:     "AMM222",
			Label:      "Raydium",
			InputMint:  testUSDC.String(),
			OutputMint: testSOL.String(),
			InAmount:   "400000",
			OutAmount:  "220000",
			Percent:    40,
		},
	}

	blob, err := EncodeRoutePlan(steps)
	require.NoError(t, err)

	decoded, err := DecodeRoutePlan(blob)
	require.NoError(t, err)
	assert.Equal(t, steps, decoded)
}

func TestDecodeRoutePlanEmpty(t *testing.T) {
	decoded, err := DecodeRoutePlan(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeRoutePlanMalformed(t *testing.T) {
	_, err := DecodeRoutePlan([]byte("{not json"))
	assert.Error(t, err)
}
