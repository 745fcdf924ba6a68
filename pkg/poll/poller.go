package poll

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is used when neither Options nor the Decision set one.
const DefaultInterval = 5 * time.Second

var (
	// ErrStopped is returned once a subscription was stopped by its owner.
	ErrStopped = errors.New("poll: subscription stopped")
	// ErrMisconfigured is returned when Fetch or Classify is missing.
	ErrMisconfigured = errors.New("poll: fetch and classify are required")
)

// Decision is what a predicate concludes about one fetched response.
// Failed marks a terminal status that means the operation did not succeed.
type Decision struct {
	Stop     bool
	Failed   bool
	Status   string
	Interval time.Duration
}

// State is the progress of one poll loop.
type State struct {
	Status       string    `json:"status"`
	LastPolledAt time.Time `json:"lastPolledAt"`
	Attempts     int       `json:"attempts"`
}

// Result describes how a poll loop ended. Failed is only set together
// with Terminal.
type Result struct {
	State    State
	GaveUp   bool
	Terminal bool
	Failed   bool
}

// Options configures a poll loop over values of type T.
type Options[T any] struct {
	// Resource labels metrics and log lines, e.g. "deployment".
	Resource string
	Fetch    func(ctx context.Context) (T, error)
	Classify func(T) Decision
	// Interval between fetches. Zero means DefaultInterval.
	Interval time.Duration
	// MaxDuration bounds the loop. Zero means unbounded.
	MaxDuration time.Duration

	Store Store
	Key   string

	// OnUpdate is called after every accepted fetch.
	OnUpdate func(T, State)

	Metrics *Metrics
	Logger  *zap.Logger
	Clock   Clock
}

func (o *Options[T]) defaults() error {
	if o.Fetch == nil || o.Classify == nil {
		return ErrMisconfigured
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Clock == nil {
		o.Clock = RealClock
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Resource == "" {
		o.Resource = "resource"
	}
	return nil
}

// Run polls until the predicate says stop, MaxDuration elapses, Fetch
// fails, or ctx is done. Giving up is not an error: it is reported through
// Result.GaveUp with the last fetched value.
func Run[T any](ctx context.Context, opts Options[T]) (T, Result, error) {
	if err := opts.defaults(); err != nil {
		var zero T
		return zero, Result{}, err
	}
	l := &loop[T]{opts: opts, live: func() bool { return true }}
	return l.run(ctx)
}

// Subscription is a poll loop running in the background.
type Subscription[T any] struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
	done    chan struct{}

	mu     sync.Mutex
	state  State
	value  T
	result Result
	err    error
}

// Subscribe starts a poll loop in its own goroutine.
func Subscribe[T any](ctx context.Context, opts Options[T]) (*Subscription[T], error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{cancel: cancel, done: make(chan struct{})}
	l := &loop[T]{
		opts: opts,
		live: func() bool { return !sub.stopped.Load() },
		record: func(s State) {
			sub.mu.Lock()
			sub.state = s
			sub.mu.Unlock()
		},
	}
	go func() {
		defer close(sub.done)
		defer cancel()
		v, res, err := l.run(ctx)
		sub.mu.Lock()
		sub.value, sub.result, sub.err = v, res, err
		sub.mu.Unlock()
	}()
	return sub, nil
}

// State returns the latest recorded poll state.
func (s *Subscription[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop ends the loop. A fetch already in flight is discarded.
func (s *Subscription[T]) Stop() {
	s.stopped.Store(true)
	s.cancel()
}

// Done is closed when the loop has ended.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Result blocks until the loop ends and returns its outcome.
func (s *Subscription[T]) Result() (T, Result, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.result, s.err
}

type loop[T any] struct {
	opts   Options[T]
	live   func() bool
	record func(State)
}

func (l *loop[T]) run(ctx context.Context) (T, Result, error) {
	var (
		last  T
		state State
	)
	o := l.opts
	log := o.Logger.With(zap.String("resource", o.Resource), zap.String("key", o.Key))
	start := o.Clock.Now()

	for {
		fetchStart := o.Clock.Now()
		v, err := o.Fetch(ctx)
		if !l.live() {
			return last, Result{State: state}, ErrStopped
		}
		if err != nil {
			o.Metrics.observeFetch(o.Resource, "error", o.Clock.Now().Sub(fetchStart))
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, Result{State: state}, ctxErr
			}
			log.Debug("poll fetch failed", zap.Int("attempt", state.Attempts+1), zap.Error(err))
			return last, Result{State: state}, err
		}

		decision := o.Classify(v)
		last = v
		state = State{Status: decision.Status, LastPolledAt: o.Clock.Now(), Attempts: state.Attempts + 1}
		l.accept(ctx, log, v, state, decision)
		o.Metrics.observeFetch(o.Resource, outcome(decision), state.LastPolledAt.Sub(fetchStart))

		if decision.Stop {
			return last, Result{State: state, Terminal: true, Failed: decision.Failed}, nil
		}

		wait := decision.Interval
		if wait <= 0 {
			wait = o.Interval
		}
		if o.MaxDuration > 0 {
			remaining := o.MaxDuration - o.Clock.Now().Sub(start)
			if remaining <= 0 {
				return l.giveUp(log, last, state)
			}
			wait = min(wait, remaining)
		}
		select {
		case <-ctx.Done():
			if !l.live() {
				return last, Result{State: state}, ErrStopped
			}
			return last, Result{State: state}, ctx.Err()
		case <-o.Clock.After(wait):
		}

		if o.MaxDuration > 0 && o.Clock.Now().Sub(start) >= o.MaxDuration {
			return l.giveUp(log, last, state)
		}
	}
}

func (l *loop[T]) giveUp(log *zap.Logger, last T, state State) (T, Result, error) {
	log.Debug("poll gave up", zap.Duration("max_duration", l.opts.MaxDuration), zap.Int("attempts", state.Attempts))
	l.opts.Metrics.observeGiveUp(l.opts.Resource)
	return last, Result{State: state, GaveUp: true}, nil
}

func (l *loop[T]) accept(ctx context.Context, log *zap.Logger, v T, state State, decision Decision) {
	o := l.opts
	log.Debug("poll tick", zap.String("status", decision.Status), zap.Int("attempt", state.Attempts), zap.Bool("stop", decision.Stop))
	if l.record != nil {
		l.record(state)
	}
	if o.Store != nil && o.Key != "" {
		payload, err := json.Marshal(v)
		if err == nil {
			err = o.Store.Put(ctx, o.Key, payload)
		}
		if err != nil {
			log.Warn("poll cache write failed", zap.Error(err))
		}
	}
	if o.OnUpdate != nil {
		o.OnUpdate(v, state)
	}
}

func outcome(d Decision) string {
	if d.Stop && d.Failed {
		return "failed"
	}
	if d.Stop {
		return "terminal"
	}
	return "pending"
}
