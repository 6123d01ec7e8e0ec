package agent

import (
	"context"
	"time"
)

// Clock abstracts the backoff sleep so tests can assert retry/backoff
// behavior without waiting in real time.
type Clock interface {
	// Sleep blocks for d or until ctx is done, whichever comes first. It
	// returns ctx.Err() if ctx ended the wait early, nil otherwise.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock returns a Clock that sleeps in real time.
func RealClock() Clock { return realClock{} }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
