package circuitbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/nouns-dao/nouns-onchain/internal/circuitbreaker"
)

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("test")
	cfg.ConsecutiveFailures = 3
	cfg.Timeout = time.Hour
	cb := circuitbreaker.New[int](cfg)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if !circuitbreaker.IsOpen(err) {
		t.Fatalf("expected open-state rejection, got %v", err)
	}
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("cancel")
	cfg.ConsecutiveFailures = 1
	cb := circuitbreaker.New[string](cfg)

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (string, error) { return "", context.Canceled })
	}

	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}

	got, err := cb.Execute(func() (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Fatalf("got %q, %v", got, err)
	}
}
