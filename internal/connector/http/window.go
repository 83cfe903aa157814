package http

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so the request window can be tested without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
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

// requestWindow tracks the timestamps of recent requests.
type requestWindow struct {
	mu        sync.Mutex
	perMinute int
	perHour   int
	stamps    []time.Time
}

func newRequestWindow(perMinute, perHour int) *requestWindow {
	return &requestWindow{perMinute: perMinute, perHour: perHour}
}

// reserve blocks until a request may be sent and records it. It returns the
// total time spent waiting. A full hourly window is rejected immediately.
func (w *requestWindow) reserve(ctx context.Context, clock Clock, client string) (time.Duration, error) {
	var waited time.Duration
	for {
		wait, err := w.tryReserve(clock.Now(), client)
		if err != nil {
			return waited, err
		}
		if wait <= 0 {
			return waited, nil
		}
		if err := clock.Sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
	}
}

func (w *requestWindow) tryReserve(now time.Time, client string) (time.Duration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hourAgo := now.Add(-time.Hour)
	keep := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(hourAgo) {
			keep = append(keep, ts)
		}
	}
	w.stamps = keep

	if w.perHour > 0 && len(w.stamps) >= w.perHour {
		return 0, &RateLimitError{Client: client, Message: "hourly request limit reached"}
	}

	if w.perMinute > 0 {
		minuteAgo := now.Add(-time.Minute)
		first := len(w.stamps)
		for i, ts := range w.stamps {
			if ts.After(minuteAgo) {
				first = i
				break
			}
		}
		if len(w.stamps)-first >= w.perMinute {
			return w.stamps[first].Add(time.Minute).Sub(now), nil
		}
	}

	w.stamps = append(w.stamps, now)
	return 0, nil
}

// size returns the number of requests recorded in the last hour.
func (w *requestWindow) size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.stamps)
}
