package scraper

import (
	"context"
	"math/rand"
	"time"
)

// Backoff decides how long to wait before the next fetch attempt.
// attempt is the number of the attempt that just failed, starting at 1.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// JitterBackoff doubles Base after every failed attempt, caps it at Max
// and adds a uniformly random Jitter on top.
type JitterBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration

	rnd func(n int64) int64
}

// NewJitterBackoff returns a JitterBackoff drawing jitter from math/rand.
func NewJitterBackoff(base, max, jitter time.Duration) *JitterBackoff {
	return &JitterBackoff{
		Base:   base,
		Max:    max,
		Jitter: jitter,
		rnd:    rand.Int63n,
	}
}

// Delay implements Backoff.
func (b *JitterBackoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	delay := b.Base
	for i := 1; i < attempt && delay > 0; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			break
		}
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	if delay < 0 {
		delay = 0
	}

	if b.Jitter > 0 {
		delay += time.Duration(b.draw(int64(b.Jitter)))
	}
	return delay
}

func (b *JitterBackoff) draw(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if b.rnd == nil {
		return rand.Int63n(n)
	}
	return b.rnd(n)
}

// randomBetween returns a duration in [min, max).
func randomBetween(min, max time.Duration, rnd func(n int64) int64) time.Duration {
	if max <= min {
		return min
	}
	if rnd == nil {
		rnd = rand.Int63n
	}
	return min + time.Duration(rnd(int64(max-min)))
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
