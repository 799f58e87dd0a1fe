package sink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"fare-matrix/internal/batch"
	"fare-matrix/internal/metrics"
)

// Sink receives the report of a finished run.
type Sink interface {
	Name() string
	Write(ctx context.Context, rep *batch.Report) error
}

// Fanout writes a report to every sink. A failing sink does not stop the
// others; all errors are returned joined.
type Fanout struct {
	sinks   []Sink
	metrics *metrics.Collector
}

func NewFanout(m *metrics.Collector, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, metrics: m}
}

func (f *Fanout) Add(s Sink) { f.sinks = append(f.sinks, s) }

func (f *Fanout) Write(ctx context.Context, rep *batch.Report) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Write(ctx, rep); err != nil {
			if f.metrics != nil {
				f.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			}
			log.Printf("sink %s: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if f.metrics != nil {
			f.metrics.SinkWrites.WithLabelValues(s.Name()).Add(float64(len(rep.Results)))
		}
		log.Printf("sink %s: wrote %d fares", s.Name(), len(rep.Results))
	}
	return errors.Join(errs...)
}

func cents(v int) string { return strconv.Itoa(v) }
