package advisor

import "context"

// Stub is a deterministic advisor for tests and paper trading. It
// returns the configured guidance (or error) on every call and counts
// invocations.
type Stub struct {
	Guidance *Guidance
	Err      error
	Calls    int
}

// Advise returns the canned guidance.
func (s *Stub) Advise(_ context.Context, _ Request) (*Guidance, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Guidance, nil
}
