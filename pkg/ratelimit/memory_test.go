package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryLimiter_Window(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(DefaultWindow, clock.Now, zerolog.Nop())
	ctx := context.Background()

	if !limiter.TryAcquire(ctx, "departure:TPE") {
		t.Fatal("first call should be granted")
	}
	if limiter.TryAcquire(ctx, "departure:TPE") {
		t.Fatal("second call inside window should be rejected")
	}

	clock.Advance(29 * time.Second)
	if limiter.TryAcquire(ctx, "departure:TPE") {
		t.Fatal("call at 29s should be rejected")
	}

	clock.Advance(1*time.Second + time.Millisecond)
	if !limiter.TryAcquire(ctx, "departure:TPE") {
		t.Fatal("call after the window should be granted")
	}
}

func TestMemoryLimiter_RejectionDoesNotExtendWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(DefaultWindow, clock.Now, zerolog.Nop())
	ctx := context.Background()

	limiter.TryAcquire(ctx, "k")
	first := limiter.Marks()["k"].LastCallAt

	clock.Advance(20 * time.Second)
	limiter.TryAcquire(ctx, "k")

	if got := limiter.Marks()["k"].LastCallAt; !got.Equal(first) {
		t.Errorf("rejected call moved the mark from %v to %v", first, got)
	}

	clock.Advance(10*time.Second + time.Millisecond)
	if !limiter.TryAcquire(ctx, "k") {
		t.Error("window should reopen relative to the last granted call")
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(DefaultWindow, clock.Now, zerolog.Nop())
	ctx := context.Background()

	if !limiter.TryAcquire(ctx, "departure:TPE") {
		t.Fatal("TPE should be granted")
	}
	if !limiter.TryAcquire(ctx, "departure:KHH") {
		t.Fatal("KHH should be granted independently")
	}
}

func TestMemoryLimiter_ConcurrentBurstGrantsOnce(t *testing.T) {
	limiter := NewMemoryLimiter(DefaultWindow, nil, zerolog.Nop())
	ctx := context.Background()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.TryAcquire(ctx, "burst") {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	if granted.Load() != 1 {
		t.Errorf("granted = %d, want exactly 1", granted.Load())
	}
}

func TestMemoryLimiter_Marks(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(DefaultWindow, clock.Now, zerolog.Nop())

	limiter.TryAcquire(context.Background(), "k1")

	marks := limiter.Marks()
	mark, ok := marks["k1"]
	if !ok {
		t.Fatal("mark for k1 missing")
	}
	if !mark.LastCallAt.Equal(clock.Now()) {
		t.Errorf("LastCallAt = %v, want %v", mark.LastCallAt, clock.Now())
	}
}

func TestMemoryLimiter_Prune(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(DefaultWindow, clock.Now, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i <= pruneThreshold; i++ {
		limiter.TryAcquire(ctx, fmt.Sprintf("k%d", i))
	}

	clock.Advance(DefaultWindow + time.Second)
	limiter.TryAcquire(ctx, "fresh")

	if n := len(limiter.Marks()); n != 1 {
		t.Errorf("expected expired marks to be pruned, %d remain", n)
	}
}

func TestMemoryLimiter_ZeroWindowDisables(t *testing.T) {
	limiter := NewMemoryLimiter(0, nil, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !limiter.TryAcquire(ctx, "k") {
			t.Fatalf("call %d rejected with zero window", i)
		}
	}
}

func TestMemoryLimiter_RetryAfter(t *testing.T) {
	clock := newFakeClock()
	limiter := NewMemoryLimiter(DefaultWindow, clock.Now, zerolog.Nop())
	ctx := context.Background()

	if got := limiter.RetryAfter(ctx, "weather:TPE"); got != 0 {
		t.Errorf("RetryAfter() without mark = %v, want 0", got)
	}

	limiter.TryAcquire(ctx, "weather:TPE")
	clock.Advance(10 * time.Second)

	if got := limiter.RetryAfter(ctx, "weather:TPE"); got != 20*time.Second {
		t.Errorf("RetryAfter() = %v, want 20s", got)
	}

	clock.Advance(time.Minute)
	if got := limiter.RetryAfter(ctx, "weather:TPE"); got != 0 {
		t.Errorf("RetryAfter() after window = %v, want 0", got)
	}
}
