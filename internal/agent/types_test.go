package agent

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slippage(bps uint16) *uint16 { return &bps }

func TestAssessQuality(t *testing.T) {
	tests := []struct {
		name     string
		success  bool
		timeMS   uint64
		slippage *uint16
		want     Quality
	}{
		{"fast and tight", true, 1500, slippage(20), QualityExcellent},
		{"medium time medium slippage", true, 2500, slippage(80), QualityGood},
		{"slow and wide", true, 6000, slippage(200), QualityPoor},
		{"fast without slippage evidence", true, 900, nil, QualityExcellent},
		{"medium without slippage evidence", true, 2500, nil, QualityGood},
		{"slow without slippage evidence", true, 6000, nil, QualityPoor},
		{"failure is always poor", false, 100, slippage(10), QualityPoor},
		{"fast but wide", true, 1000, slippage(300), QualityGood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ExecutionResult{
				Success:         tt.success,
				ExecutionTimeMS: tt.timeMS,
				SlippageBps:     tt.slippage,
			}
			assert.Equal(t, tt.want, AssessQuality(r))
		})
	}
}

func TestQualityAdjustments(t *testing.T) {
	poor := QualityPoor.Adjustments()
	assert.Equal(t, 5.0, poor["priority_fee_percentile"])
	assert.Equal(t, 10.0, poor["max_slippage_bps"])
	assert.Equal(t, -0.10, poor["position_size_multiplier"])

	fair := QualityFair.Adjustments()
	assert.Equal(t, 2.0, fair["priority_fee_percentile"])
	assert.Equal(t, 5.0, fair["max_slippage_bps"])
	assert.NotContains(t, fair, "position_size_multiplier")

	good := QualityGood.Adjustments()
	assert.Equal(t, 0.05, good["position_size_multiplier"])
	assert.Len(t, good, 1)

	excellent := QualityExcellent.Adjustments()
	assert.Equal(t, -1.0, excellent["priority_fee_percentile"])
	assert.Equal(t, 0.10, excellent["position_size_multiplier"])
}

func TestExecutionResultCheckInvariants(t *testing.T) {
	sig := solana.Signature{1, 2, 3}

	valid := ExecutionResult{
		PlanID:    uuid.New(),
		Success:   true,
		Signature: &sig,
		Timestamp: time.Now(),
	}
	require.NoError(t, valid.CheckInvariants())

	noSig := valid
	noSig.Signature = nil
	assert.Error(t, noSig.CheckInvariants(), "success requires a signature")

	failure := ExecutionResult{PlanID: uuid.New(), Success: false, ErrorMessage: "boom"}
	require.NoError(t, failure.CheckInvariants())

	silentFailure := failure
	silentFailure.ErrorMessage = ""
	assert.Error(t, silentFailure.CheckInvariants(), "failure requires an error message")
}
