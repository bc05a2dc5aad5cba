// Package repeat sends the same request many times, optionally paced and
// in parallel, and summarizes latency and outcomes.
package repeat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/multisync/packages/http"
)

// Config controls a run.
type Config struct {
	Count       int     // total requests, at least 1
	Concurrency int     // parallel in-flight requests, default 1
	Rate        float64 // requests per second, 0 for unpaced
}

func (c Config) Validate() error {
	if c.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", c.Count)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative, got %d", c.Concurrency)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate cannot be negative, got %g", c.Rate)
	}
	return nil
}

// ResultFunc observes each exchange. Calls are serialized.
type ResultFunc func(i int, resp *http.Response, err error)

type Runner struct {
	client   *http.Client
	config   Config
	limiter  *rate.Limiter
	onResult ResultFunc
	metrics  *Metrics
}

type Option func(*Runner)

func WithResultFunc(fn ResultFunc) Option {
	return func(r *Runner) {
		r.onResult = fn
	}
}

func NewRunner(client *http.Client, config Config, opts ...Option) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Concurrency == 0 {
		config.Concurrency = 1
	}
	if client == nil {
		client = http.DefaultClient
	}

	r := &Runner{
		client:  client,
		config:  config,
		metrics: NewMetrics(),
	}
	if config.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run sends opts Count times. Request failures are counted, not returned;
// the error is non-nil only when ctx ends the run early, in which case the
// summary covers the requests sent so far.
func (r *Runner) Run(ctx context.Context, opts *http.Options) (*Summary, error) {
	var (
		mu     sync.Mutex
		runErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	r.metrics.Start()
	for i := 0; i < r.config.Count; i++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(gctx); err != nil {
				runErr = err
				break
			}
		}
		if err := gctx.Err(); err != nil {
			runErr = err
			break
		}

		i := i // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			resp, err := r.client.DoContext(gctx, opts)
			r.record(resp, err)

			if r.onResult != nil {
				mu.Lock()
				r.onResult(i, resp, err)
				mu.Unlock()
			}
			if resp != nil {
				resp.End()
			}
			return nil
		})
	}
	_ = g.Wait()
	r.metrics.Stop()

	return r.metrics.GetSummary(), runErr
}

func (r *Runner) record(resp *http.Response, err error) {
	if err != nil {
		var timeoutErr *http.TimeoutError
		r.metrics.Record(0, 0, 0, err, errors.As(err, &timeoutErr))
		return
	}
	r.metrics.Record(resp.StatusCode, len(resp.Body), resp.Duration, nil, false)
}

// Metrics exposes the live counters of the run.
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}
