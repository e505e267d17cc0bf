package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(maxConcurrent, maxPerMin int, timeout time.Duration) *Limiter {
	l := New(maxConcurrent, maxPerMin, timeout)
	l.pollInterval = time.Millisecond
	return l
}

func TestAcquireReservesBothBudgets(t *testing.T) {
	l := newTestLimiter(2, 10, 50*time.Millisecond)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	st := l.Status()
	if st.InFlight != 1 || st.RequestsLastMinute != 1 {
		t.Fatalf("status after acquire = %+v", st)
	}

	l.Release()
	st = l.Status()
	if st.InFlight != 0 {
		t.Fatalf("in-flight after release = %d", st.InFlight)
	}
	if st.RequestsLastMinute != 1 {
		t.Fatalf("release must not return the request budget, got %d", st.RequestsLastMinute)
	}
}

func TestConcurrencyCapRejectsWithinTimeout(t *testing.T) {
	l := newTestLimiter(1, 100, 20*time.Millisecond)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	err := l.Acquire(context.Background())
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
}

func TestRequestBudgetRejectsEvenWhenSlotsFree(t *testing.T) {
	l := newTestLimiter(10, 2, 20*time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		l.Release()
	}
	err := l.Acquire(context.Background())
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
}

func TestAcquireSucceedsOnceSlotFrees(t *testing.T) {
	l := newTestLimiter(1, 100, time.Second)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Release()
	}()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("waiting acquire: %v", err)
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	l := newTestLimiter(1, 100, time.Minute)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := l.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWindowSlides(t *testing.T) {
	l := newTestLimiter(10, 1, 10*time.Millisecond)
	current := time.Now()
	l.now = func() time.Time { return current }

	if !l.tryAcquire() {
		t.Fatal("first reservation refused")
	}
	l.Release()
	if l.tryAcquire() {
		t.Fatal("budget exhausted but reservation succeeded")
	}

	current = current.Add(61 * time.Second)
	if !l.tryAcquire() {
		t.Fatal("reservation refused after window slid")
	}
	if got := l.Status().RequestsLastMinute; got != 1 {
		t.Fatalf("stale entries not pruned, window = %d", got)
	}
}

func TestConcurrentAcquireNeverExceedsCaps(t *testing.T) {
	const maxConcurrent = 3
	l := newTestLimiter(maxConcurrent, 1000, time.Second)

	var mu sync.Mutex
	var inFlight, peak int

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			l.Release()
		}()
	}
	wg.Wait()

	if peak > maxConcurrent {
		t.Fatalf("observed %d concurrent holders, cap is %d", peak, maxConcurrent)
	}
}
