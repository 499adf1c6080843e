// Package query keeps market-data queries fresh by polling them on a fixed
// interval and exposing their latest state.
package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amirphl/marketboard/internal/utils"
)

// ErrDisabled is returned by Refetch while a query lacks a required parameter.
var ErrDisabled = errors.New("query is disabled")

// Fetcher performs one request.
type Fetcher[T any] func(ctx context.Context) (T, error)

// State is a snapshot of a query. Data from the last success survives later
// errors.
type State[T any] struct {
	Data      T
	HasData   bool
	Loading   bool
	Err       error
	UpdatedAt time.Time
}

// Stale reports that Data is shown alongside a newer error.
func (s State[T]) Stale() bool {
	return s.HasData && s.Err != nil
}

type config struct {
	name      string
	interval  time.Duration
	scheduler Scheduler
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*config)

func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithInterval overrides the poll interval. Non-positive values disable polling.
func WithInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

func WithScheduler(s Scheduler) Option {
	return func(c *config) { c.scheduler = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

func newConfig(name string, interval time.Duration, opts []Option) config {
	cfg := config{
		name:      name,
		interval:  interval,
		scheduler: TickerScheduler{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = utils.GetLogger()
	}
	return cfg
}

// Query polls a Fetcher and tracks its state.
//
// Overlapping requests are allowed. A completion is applied only if no newer
// request has completed before it and the query has not been stopped or
// rebound since the request was issued.
type Query[T any] struct {
	cfg config

	mu       sync.Mutex
	fetch    Fetcher[T]
	enabled  bool
	mounted  bool
	ctx      context.Context
	stop     func()
	epoch    uint64
	seq      uint64
	applied  uint64
	inflight int
	state    State[T]
	subs     map[chan State[T]]struct{}

	wg sync.WaitGroup
}

// New creates a query. A disabled query never fetches until rebound with
// enabled set.
func New[T any](fetch Fetcher[T], enabled bool, opts ...Option) *Query[T] {
	return newQuery("query", 0, fetch, enabled, opts)
}

func newQuery[T any](name string, interval time.Duration, fetch Fetcher[T], enabled bool, opts []Option) *Query[T] {
	return &Query[T]{
		cfg:     newConfig(name, interval, opts),
		fetch:   fetch,
		enabled: enabled,
		subs:    make(map[chan State[T]]struct{}),
	}
}

// Start issues a request immediately and then on every interval tick. ctx is
// the parent of every background request.
func (q *Query[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.mounted {
		return
	}
	q.mounted = true
	q.ctx = ctx
	q.startLocked()
}

// Stop cancels the poll timer. Requests already in flight keep running but
// their results are discarded.
func (q *Query[T]) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.mounted {
		return
	}
	q.mounted = false
	q.stopLocked()
	q.epoch++
	q.inflight = 0
	if q.state.Loading {
		q.state.Loading = false
		q.publishLocked()
	}
}

// Wait blocks until every background request has returned.
func (q *Query[T]) Wait() {
	q.wg.Wait()
}

// Refetch runs a request on the caller's goroutine through the same path as
// timer ticks. It is not coalesced with requests already in flight.
func (q *Query[T]) Refetch(ctx context.Context) error {
	q.mu.Lock()
	enabled := q.enabled
	q.mu.Unlock()

	if !enabled {
		return ErrDisabled
	}
	return q.run(ctx)
}

// State returns the current snapshot.
func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Enabled reports whether the query has everything it needs to fetch.
func (q *Query[T]) Enabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enabled
}

// Subscribe returns a channel receiving state snapshots. Only the most recent
// undelivered snapshot is kept.
func (q *Query[T]) Subscribe() <-chan State[T] {
	ch := make(chan State[T], 1)
	q.mu.Lock()
	q.subs[ch] = struct{}{}
	q.mu.Unlock()
	return ch
}

func (q *Query[T]) Unsubscribe(sub <-chan State[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for ch := range q.subs {
		if ch == sub {
			delete(q.subs, ch)
			close(ch)
			return
		}
	}
}

// Rebind swaps the fetcher, e.g. after a parameter change. State is reset,
// in-flight results are discarded and polling restarts if the query is
// mounted and enabled.
func (q *Query[T]) Rebind(fetch Fetcher[T], enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopLocked()
	q.epoch++
	q.inflight = 0
	q.fetch = fetch
	q.enabled = enabled
	q.state = State[T]{}
	q.publishLocked()

	if q.mounted {
		q.startLocked()
	}
}

func (q *Query[T]) startLocked() {
	if !q.enabled {
		q.cfg.logger.Debug("Query | polling suspended", zap.String("query", q.cfg.name))
		return
	}
	ctx := q.ctx
	q.launchLocked(ctx)
	if q.cfg.interval > 0 {
		q.stop = q.cfg.scheduler.Every(q.cfg.interval, func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			if q.mounted && q.enabled {
				q.launchLocked(ctx)
			}
		})
	}
}

func (q *Query[T]) stopLocked() {
	if q.stop != nil {
		q.stop()
		q.stop = nil
	}
}

func (q *Query[T]) launchLocked(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		_ = q.run(ctx)
	}()
}

func (q *Query[T]) run(ctx context.Context) error {
	q.mu.Lock()
	fetch := q.fetch
	epoch := q.epoch
	q.seq++
	seq := q.seq
	q.inflight++
	if !q.state.Loading {
		q.state.Loading = true
		q.publishLocked()
	}
	q.mu.Unlock()

	data, err := fetch(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	if epoch != q.epoch {
		q.cfg.logger.Debug("Query | discarded result from previous binding",
			zap.String("query", q.cfg.name), zap.Uint64("request", seq))
		return err
	}
	q.inflight--

	if seq < q.applied {
		q.cfg.logger.Debug("Query | discarded out-of-order result",
			zap.String("query", q.cfg.name), zap.Uint64("request", seq), zap.Uint64("applied", q.applied))
	} else {
		q.applied = seq
		if err != nil {
			q.state.Err = err
			q.cfg.logger.Warn("Query | fetch failed",
				zap.String("query", q.cfg.name), zap.Bool("stale", q.state.HasData), zap.Error(err))
		} else {
			q.state.Data = data
			q.state.HasData = true
			q.state.Err = nil
			q.state.UpdatedAt = q.cfg.now()
		}
	}
	q.state.Loading = q.inflight > 0
	q.publishLocked()
	return err
}

func (q *Query[T]) publishLocked() {
	s := q.state
	for ch := range q.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
