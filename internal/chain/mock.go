package chain

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

// Outcome is one scripted mock response.
type Outcome struct {
	Receipt *Receipt
	Err     error
}

// Mock is a deterministic in-process chain client used in paper-trading
// mode and in tests. Unscripted submissions succeed with a signature
// derived from the plan id and an observed output equal to the quoted
// output. Scripted outcomes are consumed FIFO.
type Mock struct {
	mu        sync.Mutex
	script    []Outcome
	submitted []*strategy.Plan
	delay     time.Duration
	gasUsed   uint64
}

// NewMock creates a mock chain client.
func NewMock() *Mock {
	return &Mock{gasUsed: 5000}
}

// Script queues outcomes to return for the next submissions.
func (m *Mock) Script(outcomes ...Outcome) {
	m.mu.Lock()
	m.script = append(m.script, outcomes...)
	m.mu.Unlock()
}

// SetDelay makes every submission take at least d.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// Submitted returns the plans submitted so far, in order.
func (m *Mock) Submitted() []*strategy.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*strategy.Plan, len(m.submitted))
	copy(out, m.submitted)
	return out
}

// SubmitCount returns how many submissions were attempted.
func (m *Mock) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitted)
}

// Submit records the plan and returns the next scripted outcome, or a
// deterministic success.
func (m *Mock) Submit(ctx context.Context, plan *strategy.Plan) (*Receipt, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, plan)
	delay := m.delay
	var next *Outcome
	if len(m.script) > 0 {
		next = &m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &Error{Kind: KindTimeout, Msg: "submit cancelled", Err: ctx.Err()}
		}
	}

	if next != nil {
		return next.Receipt, next.Err
	}

	var sig solana.Signature
	copy(sig[:], plan.ID[:])
	return &Receipt{
		Signature:   sig,
		ObservedOut: plan.QuotedOutAmount,
		GasUsed:     m.gasUsed,
	}, nil
}
