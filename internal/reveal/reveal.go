package reveal

import (
	"context"
	"sync"
	"time"
)

// Reveal is the handle of one progressive reveal. It owns the ticker
// goroutine; Stop releases it.
type Reveal struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// startReveal calls tick every interval until tick reports completion, ctx
// is cancelled or Stop is called.
func startReveal(ctx context.Context, interval time.Duration, tick func() bool) *Reveal {
	ctx, cancel := context.WithCancel(ctx)
	r := &Reveal{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go r.run(ctx, interval, tick)

	return r
}

// finishedReveal is returned for messages shown in full at once.
func finishedReveal() *Reveal {
	r := &Reveal{
		cancel: func() {},
		done:   make(chan struct{}),
	}
	close(r.done)
	return r
}

func (r *Reveal) run(ctx context.Context, interval time.Duration, tick func() bool) {
	defer close(r.done)
	defer r.cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if tick() {
				return
			}
		}
	}
}

// Stop cancels the reveal and waits for its goroutine to exit. It is safe to
// call more than once. It must not be called from Config.OnProgress.
func (r *Reveal) Stop() {
	r.stopOnce.Do(r.cancel)
	<-r.done
}

// Done is closed once the reveal has finished or been stopped.
func (r *Reveal) Done() <-chan struct{} {
	return r.done
}
