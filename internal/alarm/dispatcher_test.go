package alarm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/gmsas95/medremind/internal/errors"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsJobsInOrder(t *testing.T) {
	d := NewDispatcher(4, nil)
	d.Start(context.Background())
	defer d.Stop()

	out := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		n := i
		require.NoError(t, d.Submit(func(context.Context) { out <- n }))
	}

	for want := 1; want <= 3; want++ {
		select {
		case got := <-out:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatal("job did not run")
		}
	}
}

func TestDispatcher_SubmitNeverBlocks(t *testing.T) {
	d := NewDispatcher(1, nil)

	require.NoError(t, d.Submit(func(context.Context) {}))
	err := d.Submit(func(context.Context) {})
	assert.True(t, errors.Is(err, apperrors.ErrAlarmQueueFull))
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	d := NewDispatcher(2, nil)
	d.Start(context.Background())
	defer d.Stop()

	var ran atomic.Bool
	require.NoError(t, d.Submit(func(context.Context) { panic("boom") }))
	require.NoError(t, d.Submit(func(context.Context) { ran.Store(true) }))

	assert.Eventually(t, ran.Load, time.Second, 5*time.Millisecond)
}

func TestDispatcher_StopTwice(t *testing.T) {
	d := NewDispatcher(1, nil)
	d.Stop()
	d.Start(context.Background())
	d.Start(context.Background())
	d.Stop()
	d.Stop()
}

func TestDispatcher_StopDropsQueuedJobs(t *testing.T) {
	d := NewDispatcher(4, nil)
	d.Start(context.Background())

	started := make(chan struct{})
	require.NoError(t, d.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	<-started

	var stale atomic.Bool
	require.NoError(t, d.Submit(func(context.Context) { stale.Store(true) }))
	require.NoError(t, d.Submit(func(context.Context) { stale.Store(true) }))
	d.Stop()

	d.Start(context.Background())
	defer d.Stop()

	var fresh atomic.Bool
	require.NoError(t, d.Submit(func(context.Context) { fresh.Store(true) }))
	assert.Eventually(t, fresh.Load, time.Second, 5*time.Millisecond)
	assert.False(t, stale.Load())
}

func TestClockTicker_FiresAndStops(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tk := NewClockTicker(time.Second, clock)

	var n atomic.Int32
	require.NoError(t, tk.Start(func() { n.Add(1) }))
	assert.Error(t, tk.Start(func() {}))

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)

	tk.Stop()
	tk.Stop()
}

func TestTickers_RejectNonPositiveInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()

	assert.Error(t, NewClockTicker(0, clock).Start(func() {}))
	assert.Error(t, NewGocronTicker(-time.Second, clock, nil).Start(func() {}))
}

func TestGocronTicker_StopWithoutStart(t *testing.T) {
	tk := NewGocronTicker(time.Minute, nil, nil)
	tk.Stop()
}
