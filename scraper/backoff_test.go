package scraper

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJitterBackoffDoublesAndCaps(t *testing.T) {
	b := NewJitterBackoff(3*time.Second, 30*time.Second, 0)

	want := []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second, 24 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestJitterBackoffAddsJitter(t *testing.T) {
	b := NewJitterBackoff(3*time.Second, 30*time.Second, 3*time.Second)
	b.rnd = func(n int64) int64 { return n - 1 }

	got := b.Delay(1)
	if got != 6*time.Second-time.Nanosecond {
		t.Fatalf("Delay(1) = %v, want just under 6s", got)
	}

	b.rnd = func(int64) int64 { return 0 }
	if got := b.Delay(0); got != 3*time.Second {
		t.Fatalf("Delay(0) = %v, want base delay", got)
	}
}

func TestJitterBackoffDefaultRange(t *testing.T) {
	b := NewJitterBackoff(3*time.Second, 30*time.Second, 3*time.Second)
	for i := 0; i < 100; i++ {
		got := b.Delay(1)
		if got < 3*time.Second || got >= 6*time.Second {
			t.Fatalf("Delay(1) = %v, want within [3s, 6s)", got)
		}
	}
}

func TestRandomBetween(t *testing.T) {
	if got := randomBetween(time.Second, 5*time.Second, func(n int64) int64 { return n - 1 }); got != 5*time.Second-time.Nanosecond {
		t.Fatalf("randomBetween upper = %v", got)
	}
	if got := randomBetween(2*time.Second, 2*time.Second, nil); got != 2*time.Second {
		t.Fatalf("randomBetween equal bounds = %v", got)
	}
	for i := 0; i < 100; i++ {
		got := randomBetween(time.Second, 5*time.Second, nil)
		if got < time.Second || got >= 5*time.Second {
			t.Fatalf("randomBetween = %v, want within [1s, 5s)", got)
		}
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleep: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
