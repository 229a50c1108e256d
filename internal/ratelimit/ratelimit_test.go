package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nouns-dao/nouns-onchain/internal/apperror"
)

func TestNew_Burst(t *testing.T) {
	l := New(60) // 1 rps, burst 6
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow() {
			allowed++
		}
	}
	if allowed != 6 {
		t.Errorf("allowed %d, want burst of 6", allowed)
	}
}

func TestNew_Unlimited(t *testing.T) {
	l := New(0)
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatalf("request %d rejected by unlimited limiter", i)
		}
	}
}

func TestWait_ContextDeadline(t *testing.T) {
	l := New(1) // one request per minute
	if !l.Allow() {
		t.Fatal("first request should pass")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("expected wait to fail")
	}
	if apperror.GetCode(err) != apperror.CodeRateLimitExceeded {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWait_CancelledContextKeepsCause(t *testing.T) {
	l := New(1)
	l.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if apperror.GetCode(err) != apperror.CodeRateLimitExceeded {
		t.Errorf("code = %s", apperror.GetCode(err))
	}
}
