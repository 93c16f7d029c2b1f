package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/vaultfunk/vaultfunk/internal/agent"
	"github.com/vaultfunk/vaultfunk/internal/chain"
	"github.com/vaultfunk/vaultfunk/internal/market"
	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

var (
	apiUSDC = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	apiSOL  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	a, err := agent.New(agent.Config{
		PortfolioID:             uuid.New(),
		Pairs:                   []market.Pair{{InputMint: apiUSDC, OutputMint: apiSOL, Amount: 1_000_000}},
		FetchInterval:           time.Second,
		EvaluationInterval:      time.Second,
		MaxConcurrentExecutions: 1,
		Strategies: []strategy.Config{{
			Strategy: strategy.Arbitrage,
			Params:   strategy.Params{MinSpreadBps: 500, MaxSlippageBps: 50},
		}},
	}, agent.Deps{
		Chain: chain.NewMock(),
		Cache: market.NewCache(nil, zerolog.Nop()),
		Log:   zerolog.Nop(),
	})
	require.NoError(t, err)

	return NewServer(Config{Host: "127.0.0.1", Port: 0, Agent: a})
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string              `json:"status"`
		Params agent.LearnedParams `json:"learned_params"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "stopped", body.Status)
	assert.Equal(t, agent.DefaultLearnedParams(), body.Params)
}

func TestStats(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats agent.AgentStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.False(t, stats.Running)
	assert.Zero(t, stats.Planner.PlansEmitted)
}

func TestUpdateStrategy(t *testing.T) {
	s := newTestServer(t)

	valid := `{
		"strategy": "DCA",
		"parameters": {"max_slippage_bps": 50, "position_size_usd": 5}
	}`
	w := doRequest(s, http.MethodPut, "/strategies", valid)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "DCA")
}

func TestUpdateStrategyRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, http.MethodPut, "/strategies", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	reserved := `{"strategy": "MeanReversion"}`
	w = doRequest(s, http.MethodPut, "/strategies", reserved)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
