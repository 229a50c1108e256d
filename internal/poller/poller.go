// Package poller implements a generic short-interval poller that turns a
// repeated fetch into a de-duplicated stream of values.
package poller

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nouns-dao/nouns-onchain/internal/apperror"
	"github.com/nouns-dao/nouns-onchain/internal/logger"
)

const meterName = "poller"

// State is the lifecycle state of a Poller.
type State int32

const (
	// StateIdle means no loop is running.
	StateIdle State = iota
	// StatePolling means an action is in flight.
	StatePolling
	// StateSuspended means the loop is waiting for the next tick.
	StateSuspended
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateSuspended:
		return "suspended"
	default:
		return "idle"
	}
}

// Action produces the next value.
type Action[T any] func(ctx context.Context) (T, error)

// Update carries either a new value or the terminal error of a run.
type Update[T any] struct {
	Value T
	Err   error
}

type pollerMetrics struct {
	actions      metric.Int64Counter
	errors       metric.Int64Counter
	publications metric.Int64Counter
}

// Poller runs Action every interval while at least one subscriber is attached.
type Poller[T any] struct {
	name     string
	interval time.Duration
	action   Action[T]
	equal    func(a, b T) bool
	buffer   int
	logger   logger.LoggerInterface

	mu       sync.Mutex
	state    State
	runID    uint64
	cancel   context.CancelFunc
	loopDone chan struct{}
	subs     map[*Subscription[T]]struct{}
	last     T
	hasLast  bool

	metrics *pollerMetrics
	attrs   metric.MeasurementOption
}

// Option configures a Poller.
type Option[T any] func(*Poller[T])

// WithEqual sets the equality used to suppress repeated values.
func WithEqual[T any](eq func(a, b T) bool) Option[T] {
	return func(p *Poller[T]) {
		p.equal = eq
	}
}

// WithLogger sets the logger.
func WithLogger[T any](log logger.LoggerInterface) Option[T] {
	return func(p *Poller[T]) {
		p.logger = log
	}
}

// WithBuffer sets the per-subscriber channel buffer. Minimum 1.
func WithBuffer[T any](n int) Option[T] {
	return func(p *Poller[T]) {
		p.buffer = n
	}
}

// New creates an idle poller.
func New[T any](name string, interval time.Duration, action Action[T], opts ...Option[T]) (*Poller[T], error) {
	if interval <= 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("poller %s: interval must be positive", name))
	}
	if action == nil {
		return nil, apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("poller %s: nil action", name))
	}

	p := &Poller[T]{
		name:     name,
		interval: interval,
		action:   action,
		equal:    func(a, b T) bool { return reflect.DeepEqual(a, b) },
		buffer:   1,
		subs:     make(map[*Subscription[T]]struct{}),
		attrs:    metric.WithAttributes(attribute.String("poller", name)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer < 1 {
		p.buffer = 1
	}
	if p.logger == nil {
		p.logger = logger.NewDiscard()
	}

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return p, nil
}

func (p *Poller[T]) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &pollerMetrics{}

	p.metrics.actions, err = meter.Int64Counter(
		"poller_actions_total",
		metric.WithDescription("Total poll actions executed"),
	)
	if err != nil {
		return err
	}

	p.metrics.errors, err = meter.Int64Counter(
		"poller_errors_total",
		metric.WithDescription("Poll actions that failed and stopped the loop"),
	)
	if err != nil {
		return err
	}

	p.metrics.publications, err = meter.Int64Counter(
		"poller_publications_total",
		metric.WithDescription("Distinct values published to subscribers"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Name returns the poller name.
func (p *Poller[T]) Name() string {
	return p.name
}

// State returns the current lifecycle state.
func (p *Poller[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribers returns the number of attached subscribers.
func (p *Poller[T]) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Start begins polling if no loop is running. Calling it again is a no-op.
func (p *Poller[T]) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	prev := p.loopDone
	done := make(chan struct{})

	p.runID++
	p.cancel = cancel
	p.loopDone = done

	go func(id uint64) {
		// A stopped run may still be unwinding its action.
		if prev != nil {
			<-prev
		}
		p.run(ctx, id, done)
	}(p.runID)
}

// Stop cancels the running loop and waits for it to exit.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	cancel, done := p.detachLocked()
	p.mu.Unlock()

	halt(cancel, done)
}

// detachLocked clears the running loop so the next Start begins a new one.
// Callers hold p.mu and pass the result to halt after unlocking.
func (p *Poller[T]) detachLocked() (context.CancelFunc, chan struct{}) {
	cancel, done := p.cancel, p.loopDone
	p.cancel = nil
	return cancel, done
}

func halt(cancel context.CancelFunc, done chan struct{}) {
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Subscribe attaches a consumer, replays the last published value to it,
// and starts the loop.
func (p *Poller[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		ch:     make(chan Update[T], p.buffer),
		done:   make(chan struct{}),
		poller: p,
	}

	p.mu.Lock()
	p.subs[s] = struct{}{}
	if p.hasLast {
		s.ch <- Update[T]{Value: p.last}
	}
	p.mu.Unlock()

	p.Start()
	return s
}

// SubscribeContext is Subscribe with the subscription closed when ctx is done.
func (p *Poller[T]) SubscribeContext(ctx context.Context) *Subscription[T] {
	s := p.Subscribe()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s
}

// unsubscribe detaches s and, if it was the last subscriber, stops the loop.
// The emptiness check and the detach share one critical section so that a
// concurrent Subscribe either keeps the current loop or starts a new one.
func (p *Poller[T]) unsubscribe(s *Subscription[T]) {
	p.mu.Lock()
	delete(p.subs, s)
	var cancel context.CancelFunc
	var done chan struct{}
	if len(p.subs) == 0 {
		cancel, done = p.detachLocked()
	}
	p.mu.Unlock()

	halt(cancel, done)
}

func (p *Poller[T]) run(ctx context.Context, id uint64, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.runID == id {
			p.cancel = nil
			p.state = StateIdle
		}
		p.mu.Unlock()
		close(done)
	}()

	p.logger.Debug(ctx, "poller started", "poller", p.name, "interval", p.interval.String())

	for {
		p.setState(id, StatePolling)
		p.metrics.actions.Add(ctx, 1, p.attrs)

		v, err := p.action(ctx)
		if ctx.Err() != nil {
			p.logger.Debug(ctx, "poller stopped", "poller", p.name)
			return
		}

		if err != nil {
			p.metrics.errors.Add(ctx, 1, p.attrs)
			p.logger.Warn(ctx, "poll action failed, stopping", "poller", p.name, "error", err)
			p.broadcast(ctx, Update[T]{Err: apperror.New(apperror.CodeStreamPollFailure,
				apperror.WithCause(err),
				apperror.WithContext(p.name))}, false)
			return
		}

		p.broadcast(ctx, Update[T]{Value: v}, true)

		p.setState(id, StateSuspended)
		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Debug(ctx, "poller stopped", "poller", p.name)
			return
		case <-timer.C:
		}
	}
}

func (p *Poller[T]) setState(id uint64, s State) {
	p.mu.Lock()
	if p.runID == id {
		p.state = s
	}
	p.mu.Unlock()
}

// broadcast delivers u to every subscriber. Values equal to the last
// published one are dropped when dedup is set.
func (p *Poller[T]) broadcast(ctx context.Context, u Update[T], dedup bool) {
	p.mu.Lock()
	if dedup {
		if p.hasLast && p.equal(p.last, u.Value) {
			p.mu.Unlock()
			return
		}
		p.last = u.Value
		p.hasLast = true
	}
	subs := make([]*Subscription[T], 0, len(p.subs))
	for s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	if dedup {
		p.metrics.publications.Add(ctx, 1, p.attrs)
	}

	for _, s := range subs {
		select {
		case s.ch <- u:
		case <-s.done:
		case <-ctx.Done():
			return
		}
	}
}

// Subscription is a consumer attached to a Poller. C is never closed;
// select on Done to observe detachment.
type Subscription[T any] struct {
	ch     chan Update[T]
	done   chan struct{}
	once   sync.Once
	poller *Poller[T]
}

// C returns the update channel.
func (s *Subscription[T]) C() <-chan Update[T] {
	return s.ch
}

// Done is closed once the subscription is closed.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Close detaches the consumer. The last detach stops the poller.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		close(s.done)
		s.poller.unsubscribe(s)
	})
}
