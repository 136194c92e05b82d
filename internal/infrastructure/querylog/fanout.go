// Package querylog combines query log sinks.
package querylog

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
	"github.com/kirillkom/pbs-retrieval/internal/core/ports"
)

type namedRecorder struct {
	name     string
	recorder ports.RetrievalRecorder
}

// Fanout writes each entry to every sink. A failing sink does not stop the
// others; their errors are joined.
type Fanout struct {
	sinks []namedRecorder
}

func NewFanout() *Fanout {
	return &Fanout{}
}

// Add registers a sink. Nil recorders are ignored.
func (f *Fanout) Add(name string, recorder ports.RetrievalRecorder) *Fanout {
	if recorder != nil {
		f.sinks = append(f.sinks, namedRecorder{name: name, recorder: recorder})
	}
	return f
}

func (f *Fanout) Len() int {
	return len(f.sinks)
}

func (f *Fanout) Record(ctx context.Context, entry domain.QueryLog) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.recorder.Record(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.name, err))
		}
	}
	return errors.Join(errs...)
}
