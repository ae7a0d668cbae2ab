package rotation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the auto-rotation period.
const DefaultInterval = 3 * time.Second

// Ticker drives timer inputs. It never touches machine state; it only calls sink.
// sink receives the ticker context and must return once it is cancelled.
type Ticker struct {
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewTicker creates a stopped ticker. Non-positive intervals use DefaultInterval.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{interval: interval}
}

// Start spawns the timer goroutine. Calling Start on a running ticker restarts it.
func (t *Ticker) Start(ctx context.Context, sink func(ctx context.Context)) {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		tk := time.NewTicker(t.interval)
		defer tk.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Debug("Rotation ticker stopped")
				return
			case <-tk.C:
				sink(ctx)
			}
		}
	}()
}

// Stop cancels the timer and waits for the goroutine to exit. Safe to call repeatedly.
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		t.wg.Wait()
	}
}

// Interval returns the configured period.
func (t *Ticker) Interval() time.Duration { return t.interval }
