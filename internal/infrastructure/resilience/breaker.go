package resilience

import (
	"errors"
	"sync"

	"github.com/sony/gobreaker/v2"
)

// breakerSet lazily creates one breaker per operation. The classifier seen
// on first use decides which failures trip that breaker.
type breakerSet struct {
	cfg      Config
	onChange func(name string, from, to gobreaker.State)

	mu   sync.Mutex
	byOp map[string]*gobreaker.CircuitBreaker[any]
}

func newBreakerSet(cfg Config, onChange func(string, gobreaker.State, gobreaker.State)) *breakerSet {
	return &breakerSet{
		cfg:      cfg,
		onChange: onChange,
		byOp:     make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (s *breakerSet) state(operation string) gobreaker.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.byOp[operation]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

func (s *breakerSet) get(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.byOp[operation]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: s.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     s.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: s.onChange,
	})
	s.byOp[operation] = cb
	return cb
}

// IsCircuitOpen reports whether err came from a breaker refusing the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
