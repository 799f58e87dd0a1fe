package batch

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fare-matrix/internal/fare"
	mmetrics "fare-matrix/internal/metrics"
	"fare-matrix/internal/rules"
)

// Result is the settled fare of one OD pair.
type Result struct {
	Pair      fare.Pair
	Option    int
	FareCents int
	Instances int
	Fallbacks int
}

// Failure records a pair whose settlement was aborted.
type Failure struct {
	Pair fare.Pair
	Err  error
}

// Reason classifies a failure for reporting.
func (f Failure) Reason() string {
	switch {
	case errors.Is(f.Err, rules.ErrRuleNotFound):
		return "rule_not_found"
	case errors.Is(f.Err, fare.ErrDataIntegrity):
		return "data_integrity"
	default:
		return "other"
	}
}

type Report struct {
	RunID    string
	Region   string
	Results  []Result
	Failures []Failure
	Skipped  int // pairs not dispatched because the run was cancelled
	Elapsed  time.Duration
}

// Runner settles the itineraries of a Collection on a pool of workers. The
// store is shared by all workers and must not change during a run.
type Runner struct {
	// RunID, when set, replaces the generated run id.
	RunID string

	store   rules.Store
	workers int
	verbose bool
	metrics *mmetrics.Collector

	mu     sync.Mutex
	report *Report
	wg     sync.WaitGroup
}

func NewRunner(store rules.Store, workers int, verbose bool, metrics *mmetrics.Collector) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		store:   store,
		workers: workers,
		verbose: verbose,
		metrics: metrics,
	}
}

// Run settles every pair of c. A failing pair is logged and recorded without
// affecting the others. Cancelling ctx stops dispatching new pairs; pairs
// already being settled finish.
func (r *Runner) Run(ctx context.Context, region string, c *Collection) *Report {
	start := time.Now()
	id := r.RunID
	if id == "" {
		id = uuid.NewString()
	}
	r.report = &Report{RunID: id, Region: region}
	if r.metrics != nil {
		r.metrics.Workers.Set(float64(r.workers))
		r.metrics.PairsQueued.Set(float64(c.Size()))
		r.metrics.PairsDiscarded.Set(float64(c.Discarded))
	}
	for _, f := range c.Rejected() {
		r.fail(f)
	}
	log.Printf("run %s: settling %d pairs on %d workers (%d discarded, %d self pairs, %d rejected)", r.report.RunID, c.Size(), r.workers, c.Discarded, c.SelfPairs, len(r.report.Failures))

	jobs := make(chan fare.Pair)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for p := range jobs {
				r.settle(c, p)
			}
		}()
	}

	pairs := c.Pairs()
dispatch:
	for i, p := range pairs {
		select {
		case <-ctx.Done():
			r.report.Skipped = len(pairs) - i
			log.Printf("run %s: cancelled, %d pairs not dispatched", r.report.RunID, r.report.Skipped)
			break dispatch
		case jobs <- p:
		}
	}
	close(jobs)
	r.wg.Wait()

	rep := r.report
	sort.Slice(rep.Results, func(i, j int) bool { return pairLess(rep.Results[i].Pair, rep.Results[j].Pair) })
	sort.Slice(rep.Failures, func(i, j int) bool { return pairLess(rep.Failures[i].Pair, rep.Failures[j].Pair) })
	rep.Elapsed = time.Since(start)
	log.Printf("run %s: %d settled, %d failed in %s", rep.RunID, len(rep.Results), len(rep.Failures), rep.Elapsed.Round(time.Millisecond))
	return rep
}

func (r *Runner) settle(c *Collection, p fare.Pair) {
	t := time.Now()
	res, err := r.settleOne(c, p)
	if r.metrics != nil {
		r.metrics.SettleDuration.Observe(time.Since(t).Seconds())
		r.metrics.PairsQueued.Dec()
	}

	if err != nil {
		r.fail(Failure{Pair: p, Err: err})
		return
	}
	r.mu.Lock()
	r.report.Results = append(r.report.Results, res)
	r.mu.Unlock()
}

func (r *Runner) fail(f Failure) {
	r.mu.Lock()
	r.report.Failures = append(r.report.Failures, f)
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.ItinerariesFailed.WithLabelValues(f.Reason()).Inc()
	}
	log.Printf("pair %s failed: %v", f.Pair, f.Err)
}

func (r *Runner) settleOne(c *Collection, p fare.Pair) (Result, error) {
	it, err := c.Itinerary(p, r.store)
	if err != nil {
		return Result{}, err
	}
	s, err := it.Settle(r.store)
	if err != nil {
		return Result{}, err
	}
	if r.metrics != nil {
		r.metrics.ItinerariesSettled.Inc()
		r.metrics.FareInstances.Add(float64(len(s.Instances)))
		r.metrics.FallbacksApplied.Add(float64(s.Fallbacks))
		r.metrics.ExpiredInstances.Add(float64(s.Expired))
	}
	if r.verbose {
		for _, line := range it.Describe() {
			log.Printf("pair %s: %s", p, line)
		}
		if s.Fallbacks > 0 {
			log.Printf("pair %s: %d transfer rule(s) found no active fare, charged a new fare", p, s.Fallbacks)
		}
	}
	return Result{
		Pair:      p,
		Option:    it.Option,
		FareCents: s.Total,
		Instances: len(s.Instances),
		Fallbacks: s.Fallbacks,
	}, nil
}

func pairLess(a, b fare.Pair) bool {
	if a.FromID != b.FromID {
		return a.FromID < b.FromID
	}
	return a.ToID < b.ToID
}
