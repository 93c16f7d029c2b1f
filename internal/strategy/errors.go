package strategy

import "fmt"

// ConfigError reports an invalid strategy or agent configuration. The
// agent refuses to start on one.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config error: " + e.Msg }

// Configf builds a ConfigError.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// EvalError reports a failure inside a single strategy evaluation. The
// planner logs it and moves on to the next strategy.
type EvalError struct {
	Strategy Tag
	Msg      string
	Err      error
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("strategy %s: %s: %v", e.Strategy, e.Msg, e.Err)
	}
	return fmt.Sprintf("strategy %s: %s", e.Strategy, e.Msg)
}

func (e *EvalError) Unwrap() error { return e.Err }

// InvariantError reports a broken internal assertion. Fatal to the
// owning task, logged loudly, never silently swallowed.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

// Invariantf builds an InvariantError.
func Invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}
