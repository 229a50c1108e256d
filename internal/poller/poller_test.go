package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nouns-dao/nouns-onchain/internal/apperror"
)

const tick = 2 * time.Millisecond

// sequence returns the given values in order, then repeats the last one.
func sequence[T any](values ...T) (Action[T], *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context) (T, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(values) {
			n = len(values) - 1
		}
		return values[n], nil
	}, &calls
}

func receive[T any](t *testing.T, s *Subscription[T]) Update[T] {
	t.Helper()
	select {
	case u := <-s.C():
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
	panic("unreachable")
}

func expectSilence[T any](t *testing.T, s *Subscription[T], d time.Duration) {
	t.Helper()
	select {
	case u := <-s.C():
		t.Fatalf("unexpected update: %+v", u)
	case <-time.After(d):
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNew_RejectsBadInput(t *testing.T) {
	action, _ := sequence(1)
	if _, err := New[int]("zero", 0, action); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Errorf("zero interval: got %v", err)
	}
	if _, err := New[int]("nil", time.Second, nil); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Errorf("nil action: got %v", err)
	}
}

func TestPoller_SuppressesConsecutiveDuplicates(t *testing.T) {
	action, calls := sequence("A", "A", "B", "B", "B", "A")
	p, err := New("dedup", tick, action)
	if err != nil {
		t.Fatal(err)
	}

	sub := p.Subscribe()
	defer sub.Close()

	for _, want := range []string{"A", "B", "A"} {
		u := receive(t, sub)
		if u.Err != nil {
			t.Fatalf("unexpected error: %v", u.Err)
		}
		if u.Value != want {
			t.Fatalf("got %q, want %q", u.Value, want)
		}
	}

	waitFor(t, func() bool { return calls.Load() > 8 })
	expectSilence(t, sub, 10*tick)
}

func TestPoller_ErrorIsPublishedOnceAndStops(t *testing.T) {
	boom := errors.New("subgraph down")
	var calls atomic.Int32
	action := func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 7, nil
		}
		return 0, boom
	}

	p, err := New("errors", tick, action)
	if err != nil {
		t.Fatal(err)
	}
	sub := p.Subscribe()
	defer sub.Close()

	if u := receive(t, sub); u.Err != nil || u.Value != 7 {
		t.Fatalf("first update = %+v", u)
	}

	u := receive(t, sub)
	if !errors.Is(u.Err, apperror.ErrStreamPoll) {
		t.Fatalf("expected stream poll failure, got %v", u.Err)
	}
	if !errors.Is(u.Err, boom) {
		t.Errorf("expected cause to be preserved, got %v", u.Err)
	}

	waitFor(t, func() bool { return p.State() == StateIdle })
	expectSilence(t, sub, 10*tick)
	if got := calls.Load(); got != 2 {
		t.Errorf("action ran %d times after failure, want 2", got)
	}
}

func TestPoller_StartIsIdempotent(t *testing.T) {
	var inFlight, maxInFlight, calls atomic.Int32
	action := func(ctx context.Context) (int, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(tick)
		inFlight.Add(-1)
		return int(calls.Add(1)), nil
	}

	p, err := New("idempotent", tick, action, WithEqual(func(a, b int) bool { return a == b }))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Start()
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return calls.Load() >= 5 })
	p.Stop()

	if got := maxInFlight.Load(); got != 1 {
		t.Fatalf("max concurrent actions = %d, want 1", got)
	}
	if p.State() != StateIdle {
		t.Errorf("state after stop = %s", p.State())
	}
}

func TestPoller_WaitsIntervalBetweenEndAndNextStart(t *testing.T) {
	const interval = 20 * time.Millisecond
	const work = 10 * time.Millisecond

	var mu sync.Mutex
	var starts, ends []time.Time
	action := func(ctx context.Context) (int, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		time.Sleep(work)
		mu.Lock()
		ends = append(ends, time.Now())
		n := len(ends)
		mu.Unlock()
		return n, nil
	}

	p, err := New("interval", interval, action)
	if err != nil {
		t.Fatal(err)
	}
	sub := p.Subscribe()
	for i := 0; i < 3; i++ {
		receive(t, sub)
	}
	sub.Close()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(starts) && i < len(ends); i++ {
		if gap := starts[i].Sub(ends[i-1]); gap < interval {
			t.Errorf("gap %d = %s, want >= %s", i, gap, interval)
		}
	}
}

func TestPoller_LastDetachStopsLoop(t *testing.T) {
	action, calls := sequence(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	p, err := New("detach", tick, action)
	if err != nil {
		t.Fatal(err)
	}

	a := p.Subscribe()
	b := p.Subscribe()
	receive(t, a)
	receive(t, b)

	a.Close()
	if p.State() == StateIdle {
		t.Fatal("loop stopped while a subscriber remained")
	}

	b.Close()
	if p.State() != StateIdle {
		t.Fatalf("state = %s after last detach", p.State())
	}

	before := calls.Load()
	time.Sleep(10 * tick)
	if after := calls.Load(); after != before {
		t.Errorf("action ran %d more times after detach", after-before)
	}
}

func TestPoller_ReplaysLastValueToNewSubscriber(t *testing.T) {
	action, _ := sequence("live")
	p, err := New("replay", time.Hour, action)
	if err != nil {
		t.Fatal(err)
	}

	first := p.Subscribe()
	defer first.Close()
	if u := receive(t, first); u.Value != "live" {
		t.Fatalf("first = %+v", u)
	}

	second := p.Subscribe()
	defer second.Close()
	if u := receive(t, second); u.Value != "live" {
		t.Fatalf("replay = %+v", u)
	}
	if p.Subscribers() != 2 {
		t.Errorf("subscribers = %d", p.Subscribers())
	}
}

func TestPoller_SubscribeContextClosesOnCancel(t *testing.T) {
	action, _ := sequence(1)
	p, err := New("ctx", tick, action)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := p.SubscribeContext(ctx)
	receive(t, sub)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not closed on cancel")
	}
	waitFor(t, func() bool { return p.State() == StateIdle })
}

func TestPoller_RestartsAfterFailure(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	var n atomic.Int32
	action := func(ctx context.Context) (int32, error) {
		if fail.Load() {
			return 0, errors.New("transient")
		}
		return n.Add(1), nil
	}

	p, err := New("restart", tick, action)
	if err != nil {
		t.Fatal(err)
	}
	sub := p.Subscribe()
	defer sub.Close()

	if u := receive(t, sub); u.Err == nil {
		t.Fatalf("expected failure, got %+v", u)
	}
	waitFor(t, func() bool { return p.State() == StateIdle })

	fail.Store(false)
	p.Start()
	if u := receive(t, sub); u.Err != nil || u.Value != 1 {
		t.Fatalf("after restart = %+v", u)
	}
}

func TestPoller_SubscribeDuringLastDetachKeepsPolling(t *testing.T) {
	var n atomic.Int64
	action := func(ctx context.Context) (int64, error) {
		return n.Add(1), nil
	}

	p, err := New("handover", tick, action)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 200; i++ {
		a := p.Subscribe()
		receive(t, a)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Close()
		}()
		b := p.Subscribe()
		wg.Wait()

		// b may first see the replayed value; a second distinct value proves
		// the loop is still running for it.
		first := receive(t, b)
		if u := receive(t, b); u.Value <= first.Value {
			t.Fatalf("iteration %d: stale update %+v after %+v", i, u, first)
		}
		if p.State() == StateIdle {
			t.Fatalf("iteration %d: poller idle with a subscriber attached", i)
		}
		b.Close()
		waitFor(t, func() bool { return p.State() == StateIdle })
	}
}
