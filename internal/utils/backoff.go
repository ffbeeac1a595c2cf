package utils

import (
	"context"
	"math/rand"
	"time"
)

type Backoff struct {
	base       time.Duration
	maxRetries int
}

func NewBackoff(base time.Duration, maxRetries int) Backoff {
	return Backoff{base: base, maxRetries: maxRetries}
}

// Do calls fn until it succeeds, retry reports false, or the retries run out.
// Waits double each attempt and carry up to 50% jitter.
func (b Backoff) Do(ctx context.Context, fn func(i int) (retry bool, err error)) error {
	var err error
	for i := 0; i <= b.maxRetries; i++ {
		var retry bool
		retry, err = fn(i)
		if err == nil || !retry || i == b.maxRetries {
			return err
		}
		t := time.Duration(1<<i) * b.base
		if b.base > 0 {
			t += time.Duration(rand.Int63n(int64(t)/2 + 1))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t):
		}
	}
	return err
}
