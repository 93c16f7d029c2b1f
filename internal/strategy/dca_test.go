package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dcaConfig(intervalHours float64) Config {
	return Config{
		Strategy: DCA,
		Params: Params{
			MaxSlippageBps:  50,
			PositionSizeUSD: 1.0,
			Custom:          map[string]float64{"interval_hours": intervalHours},
		},
	}
}

func TestDCAIntervalSchedule(t *testing.T) {
	s := NewDCAStrategy()
	cfg := dcaConfig(1)
	q := arbQuote(1_000_000, 1_050_000, 50)
	t0 := time.Now()

	eval := func(now time.Time) *Plan {
		plan, err := s.Evaluate(EvalInput{
			Quote:      q,
			Conditions: calmConditions(),
			Config:     cfg,
			Now:        now,
		})
		require.NoError(t, err)
		return plan
	}

	first := eval(t0)
	require.NotNil(t, first, "first tick must emit a plan")
	assert.Equal(t, DCA, first.Strategy)
	assert.Equal(t, 0.8, first.Confidence)
	assert.Equal(t, t0.Add(time.Hour), first.ExpiresAt)

	assert.Nil(t, eval(t0.Add(30*time.Minute)), "second tick inside the interval must not emit")

	third := eval(t0.Add(61 * time.Minute))
	require.NotNil(t, third, "tick after the interval must emit again")
}

func TestDCATracksPairsIndependently(t *testing.T) {
	s := NewDCAStrategy()
	cfg := dcaConfig(24)
	t0 := time.Now()

	forward := arbQuote(1_000_000, 1_050_000, 50)
	reverse := forward
	reverse.InputMint, reverse.OutputMint = forward.OutputMint, forward.InputMint

	plan, err := s.Evaluate(EvalInput{Quote: forward, Config: cfg, Now: t0})
	require.NoError(t, err)
	require.NotNil(t, plan)

	// The reverse direction is a different pair and gets its own schedule.
	plan, err = s.Evaluate(EvalInput{Quote: reverse, Config: cfg, Now: t0})
	require.NoError(t, err)
	require.NotNil(t, plan)

	plan, err = s.Evaluate(EvalInput{Quote: forward, Config: cfg, Now: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestDCADefaultInterval(t *testing.T) {
	s := NewDCAStrategy()
	cfg := dcaConfig(24)
	cfg.Params.Custom = nil
	t0 := time.Now()
	q := arbQuote(1_000_000, 1_050_000, 50)

	plan, err := s.Evaluate(EvalInput{Quote: q, Config: cfg, Now: t0})
	require.NoError(t, err)
	require.NotNil(t, plan)

	plan, err = s.Evaluate(EvalInput{Quote: q, Config: cfg, Now: t0.Add(23 * time.Hour)})
	require.NoError(t, err)
	assert.Nil(t, plan, "default interval is 24 h")

	plan, err = s.Evaluate(EvalInput{Quote: q, Config: cfg, Now: t0.Add(25 * time.Hour)})
	require.NoError(t, err)
	require.NotNil(t, plan)
}

func TestDCAValidate(t *testing.T) {
	s := NewDCAStrategy()

	assert.NoError(t, s.Validate(dcaConfig(1)))
	assert.Error(t, s.Validate(dcaConfig(-2)))

	bad := dcaConfig(1)
	bad.Params.PositionSizeUSD = -5
	assert.Error(t, s.Validate(bad))
}
