package store

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

var (
	storeUSDC = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	storeSOL  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewWithQuerier(mock), mock
}

func TestFetchTokenMints(t *testing.T) {
	s, mock := newMockStore(t)
	portfolioID := uuid.New()

	mock.ExpectQuery("SELECT token_mint").
		WithArgs(portfolioID).
		WillReturnRows(pgxmock.NewRows([]string{"token_mint"}).
			AddRow(storeSOL.String()).
			AddRow(storeUSDC.String()))

	mints, err := s.FetchTokenMints(context.Background(), portfolioID)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{storeSOL, storeUSDC}, mints)
}

func TestFetchTokenMintsRejectsBadMint(t *testing.T) {
	s, mock := newMockStore(t)
	portfolioID := uuid.New()

	mock.ExpectQuery("SELECT token_mint").
		WithArgs(portfolioID).
		WillReturnRows(pgxmock.NewRows([]string{"token_mint"}).AddRow("not-a-mint"))

	_, err := s.FetchTokenMints(context.Background(), portfolioID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-mint")
}

func TestAddToken(t *testing.T) {
	s, mock := newMockStore(t)
	portfolioID := uuid.New()

	mock.ExpectExec("INSERT INTO portfolio_tokens").
		WithArgs(portfolioID, storeSOL.String(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.AddToken(context.Background(), portfolioID, storeSOL))
}

func TestUpsertPool(t *testing.T) {
	s, mock := newMockStore(t)

	pool := Pool{
		Creator:  storeUSDC,
		Name:     "steady-grid",
		Strategy: strategy.GridTrading,
		Tokens:   []solana.PublicKey{storeSOL},
		Target:   1_000_000,
		EndTime:  time.Now().Add(24 * time.Hour),
		FeeBps:   25,
	}

	mock.ExpectExec("INSERT INTO pools").
		WithArgs(pool.Creator.String(), pool.Name, string(pool.Strategy),
			[]string{storeSOL.String()}, pool.Target, pool.EndTime, pool.FeeBps, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertPool(context.Background(), pool))
}

func TestUpsertPoolValidation(t *testing.T) {
	s, _ := newMockStore(t)

	noName := Pool{Strategy: strategy.DCA}
	assert.Error(t, s.UpsertPool(context.Background(), noName))

	badTag := Pool{Name: "x", Strategy: "Momentum"}
	err := s.UpsertPool(context.Background(), badTag)
	var cfgErr *strategy.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestFetchStrategies(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT creator, name, strategy").
		WillReturnRows(pgxmock.NewRows([]string{"creator", "name", "strategy"}).
			AddRow(storeUSDC.String(), "steady-grid", "GridTrading").
			AddRow(storeSOL.String(), "weekly-dca", "DCA"))

	got, err := s.FetchStrategies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]strategy.Tag{
		storeUSDC.String() + "_steady-grid": strategy.GridTrading,
		storeSOL.String() + "_weekly-dca":   strategy.DCA,
	}, got)
}

func TestHealth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewWithQuerier(mock)
	mock.ExpectPing()
	assert.NoError(t, s.Health(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRejectsEmptyDSN(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)
}
