package crash

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 100 * time.Millisecond

func waitLoop(t *testing.T, l *Loop) error {
	t.Helper()
	select {
	case <-l.Done():
		return l.Wait()
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit")
		return nil
	}
}

func TestLoopRunsUntilCrash(t *testing.T) {
	r := newRig(t, 2.00)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var mu sync.Mutex
	var multipliers []float64
	r.engine.Subscribe(SubscriberFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		multipliers = append(multipliers, ev.Round.Multiplier)
	}))

	_, err := r.engine.StartRound(decimal.NewFromInt(10))
	require.NoError(t, err)

	loop := StartLoop(ctx, r.engine, r.clock, testInterval)

	ticks := 0
	for r.engine.State() == StateRunning {
		require.Less(t, ticks, 100, "round never crashed")
		r.clock.Advance(testInterval).MustWait(ctx)
		ticks++
	}

	require.NoError(t, waitLoop(t, loop))
	assert.Equal(t, 35, ticks, "2.00x is first shown at 3.5s")

	snap := r.engine.Snapshot()
	assert.Equal(t, StateCrashed, snap.State)
	assert.Equal(t, 2.00, snap.Multiplier)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(multipliers); i++ {
		assert.GreaterOrEqual(t, multipliers[i], multipliers[i-1])
	}
	assert.Equal(t, 2.00, multipliers[len(multipliers)-1])
}

func TestLoopStopsAfterCrash(t *testing.T) {
	r := newRig(t, 1.10)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := r.engine.StartRound(decimal.NewFromInt(10))
	require.NoError(t, err)
	loop := StartLoop(ctx, r.engine, r.clock, testInterval)

	for r.engine.State() == StateRunning {
		r.clock.Advance(testInterval).MustWait(ctx)
	}
	require.NoError(t, waitLoop(t, loop))

	// no ticker is left behind: advancing further does not touch the engine
	r.clock.Advance(testInterval).MustWait(ctx)
	assert.Equal(t, StateCrashed, r.engine.State())
}

func TestLoopStop(t *testing.T) {
	r := newRig(t, 50)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := r.engine.StartRound(decimal.NewFromInt(10))
	require.NoError(t, err)

	loop := StartLoop(ctx, r.engine, r.clock, testInterval)
	r.clock.Advance(testInterval).MustWait(ctx)

	loop.Stop()
	loop.Stop()

	require.ErrorIs(t, waitLoop(t, loop), context.Canceled)
	assert.Equal(t, StateRunning, r.engine.State())
}

func TestLoopCancelledByParentContext(t *testing.T) {
	r := newRig(t, 50)
	parent, cancelParent := context.WithCancel(context.Background())

	_, err := r.engine.StartRound(decimal.NewFromInt(10))
	require.NoError(t, err)

	loop := StartLoop(parent, r.engine, r.clock, testInterval)
	cancelParent()

	require.ErrorIs(t, waitLoop(t, loop), context.Canceled)
}

func TestLoopExitsWhenRoundAbandoned(t *testing.T) {
	r := newRig(t, 50)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := r.engine.StartRound(decimal.NewFromInt(10))
	require.NoError(t, err)
	loop := StartLoop(ctx, r.engine, r.clock, testInterval)

	r.engine.Abandon()
	r.clock.Advance(testInterval).MustWait(ctx)

	require.NoError(t, waitLoop(t, loop))
}
