package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor what to do with a failed attempt.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// StateObserver is told about every breaker transition.
type StateObserver func(operation string, from, to gobreaker.State)

// Executor runs calls to a remote dependency with bounded retries and a
// circuit breaker per operation name.
type Executor struct {
	cfg      Config
	logger   *slog.Logger
	observer StateObserver
	breakers *breakerSet
}

type ExecutorOption func(*Executor)

// WithLogger sets the logger used for retry and breaker events. Default is
// slog.Default().
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithStateObserver(observer StateObserver) ExecutorOption {
	return func(e *Executor) {
		e.observer = observer
	}
}

func NewExecutor(cfg Config, opts ...ExecutorOption) *Executor {
	e := &Executor{
		cfg:    cfg.normalize(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.breakers = newBreakerSet(e.cfg, e.onStateChange)
	return e
}

// State reports the breaker state for an operation. Operations that have
// never run report closed.
func (e *Executor) State(operation string) gobreaker.State {
	return e.breakers.state(strings.TrimSpace(operation))
}

// Execute runs fn under the retry policy. When breakers are enabled the
// whole retry sequence counts as one breaker request.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = recordOnly
	}

	run := func() error { return e.retry(ctx, op, fn, classifier) }
	if !e.cfg.BreakerEnabled {
		return run()
	}
	_, err := e.breakers.get(op, classifier).Execute(func() (any, error) {
		return nil, run()
	})
	return err
}

func (e *Executor) onStateChange(name string, from, to gobreaker.State) {
	e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
	if e.observer != nil {
		e.observer(name, from, to)
	}
}

func recordOnly(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
