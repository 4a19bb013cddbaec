package crash

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// errRoundOver ends the ticker once the round can no longer advance.
var errRoundOver = errors.New("round over")

// Loop drives Engine.Tick on a fixed interval. It stops by itself when the
// round crashes, or when Stop is called or its context is cancelled.
type Loop struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
	err    error
}

// StartLoop begins ticking e every interval using clock.
func StartLoop(ctx context.Context, e *Engine, clock quartz.Clock, interval time.Duration) *Loop {
	ctx, cancel := context.WithCancel(ctx)
	l := &Loop{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	waiter := clock.TickerFunc(ctx, interval, func() error {
		snap, err := e.Tick(clock.Now())
		if err != nil || snap.State == StateCrashed {
			return errRoundOver
		}
		return nil
	}, "crash", "tick")

	go func() {
		defer close(l.done)
		err := waiter.Wait()
		l.Stop()
		if !errors.Is(err, errRoundOver) {
			l.err = err
		}
	}()

	return l
}

// Stop cancels the loop. It is safe to call more than once.
func (l *Loop) Stop() {
	l.once.Do(l.cancel)
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the loop exits. It returns nil when the round ended and
// the context error when the loop was stopped first.
func (l *Loop) Wait() error {
	<-l.done
	return l.err
}
