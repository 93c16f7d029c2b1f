// Package chain abstracts transaction submission. The agent core treats
// the chain as an opaque capability: hand it a plan, get back a signature
// and the observed output, or a typed error. Transaction layout belongs
// to the vault engine, not to this module.
package chain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/vaultfunk/vaultfunk/internal/strategy"
)

// Receipt is the outcome of a confirmed swap.
type Receipt struct {
	Signature   solana.Signature `json:"signature"`
	ObservedOut uint64           `json:"observed_out"`
	GasUsed     uint64           `json:"gas_used"`
}

// Client submits plans for execution. Submit blocks until the
// transaction is confirmed, rejected, or ctx expires.
type Client interface {
	Submit(ctx context.Context, plan *strategy.Plan) (*Receipt, error)
}

// ErrorKind classifies submission failures for retry decisions.
type ErrorKind int

const (
	// KindTimeout: confirmation did not arrive in time. Retryable.
	KindTimeout ErrorKind = iota
	// KindNetwork: transport failure before a response. Retryable.
	KindNetwork
	// KindUpstream: the engine answered 5xx or equivalent. Retryable.
	KindUpstream
	// KindValidation: the engine rejected the plan (malformed,
	// insufficient balance, expired). Never retryable.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindUpstream:
		return "upstream"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a typed submission failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chain %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("chain %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the executor may retry after this error.
func (e *Error) Retryable() bool {
	return e.Kind != KindValidation
}

// Errorf builds a chain Error.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
