package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestThrottle_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", rps: 1, burst: 2, calls: 5, wantPass: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := NewThrottle(tt.rps, tt.burst, 0)
			defer th.Stop()

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if th.Allow("bookmarks") {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestThrottle_WaitContextCancelled(t *testing.T) {
	th := NewThrottle(0.1, 1, 0) // 1 request per 10 seconds
	defer th.Stop()

	th.Allow("token")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := th.Wait(ctx, "token"); err == nil {
		t.Error("Wait() should fail when context canceled")
	}
}

func TestThrottle_IndependentKeys(t *testing.T) {
	th := NewThrottle(1, 1, 0)
	defer th.Stop()

	th.Allow("users/me")
	if th.Allow("users/me") {
		t.Error("users/me should be exhausted")
	}
	if !th.Allow("bookmarks") {
		t.Error("bookmarks should be independent and allowed")
	}
}

func TestThrottle_EvictsIdleKeys(t *testing.T) {
	th := NewThrottle(1, 1, 0)
	defer th.Stop()
	th.idleTTL = time.Minute

	th.Allow("a")
	th.Allow("b")
	if th.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", th.Len())
	}

	th.evictIdle(time.Now().Add(2 * time.Minute))
	if th.Len() != 0 {
		t.Errorf("Len() after eviction = %d, want 0", th.Len())
	}
}
