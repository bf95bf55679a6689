package campaignsync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRunsImmediatelyAndOnTick(t *testing.T) {
	var calls atomic.Int32
	task := NewTask("test")

	assert.True(t, task.Start(context.Background(), 10*time.Millisecond, func(context.Context) { calls.Add(1) }))
	assert.False(t, task.Start(context.Background(), 10*time.Millisecond, func(context.Context) {}))
	assert.True(t, task.Running())

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	task.Stop()
	task.Wait()
	assert.False(t, task.Running())

	n := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestTaskRestartAfterStop(t *testing.T) {
	var calls atomic.Int32
	task := NewTask("test")

	task.Start(context.Background(), time.Hour, func(context.Context) { calls.Add(1) })
	task.Stop()
	assert.True(t, task.Start(context.Background(), time.Hour, func(context.Context) { calls.Add(1) }))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	task.Stop()
	task.Wait()
}

func TestTaskStopFromInsideFn(t *testing.T) {
	task := NewTask("test")
	task.Start(context.Background(), time.Millisecond, func(context.Context) { task.Stop() })

	done := make(chan struct{})
	go func() {
		task.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not exit")
	}
}

func TestTaskSetInterval(t *testing.T) {
	var calls atomic.Int32
	task := NewTask("test")
	task.SetInterval(time.Millisecond) // no-op before start

	task.Start(context.Background(), time.Hour, func(context.Context) { calls.Add(1) })
	defer func() {
		task.Stop()
		task.Wait()
	}()

	task.SetInterval(2 * time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestTaskSetIntervalForIgnoresStoppedRun(t *testing.T) {
	task := NewTask("test")
	stale := make(chan context.Context, 1)
	task.Start(context.Background(), time.Hour, func(ctx context.Context) { stale <- ctx })
	oldCtx := <-stale
	task.Stop()

	var calls atomic.Int32
	current := make(chan context.Context, 1)
	require.True(t, task.Start(context.Background(), time.Hour, func(ctx context.Context) {
		if calls.Add(1) == 1 {
			current <- ctx
		}
	}))
	defer func() {
		task.Stop()
		task.Wait()
	}()
	newCtx := <-current

	task.SetIntervalFor(oldCtx, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "a stopped run must not retune the new one")

	task.SetIntervalFor(newCtx, time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestTaskParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := NewTask("test")
	task.Start(ctx, time.Hour, func(context.Context) {})

	cancel()
	task.Wait()
	task.Stop()
}

func TestTimersFireOnce(t *testing.T) {
	timers := NewTimers()
	defer timers.Close()

	fired := make(chan struct{}, 2)
	assert.True(t, timers.After(time.Millisecond, func() { fired <- struct{}{} }))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return timers.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestTimersCloseCancelsPending(t *testing.T) {
	timers := NewTimers()
	var fired atomic.Bool

	timers.After(20*time.Millisecond, func() { fired.Store(true) })
	assert.Equal(t, 1, timers.Pending())

	timers.Close()
	assert.Equal(t, 0, timers.Pending())
	assert.False(t, timers.After(time.Millisecond, func() { fired.Store(true) }))

	time.Sleep(40 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestTimersCloseWaitsForRunningCallback(t *testing.T) {
	timers := NewTimers()
	started := make(chan struct{})
	var finished atomic.Bool

	timers.After(time.Millisecond, func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	<-started

	timers.Close()
	assert.True(t, finished.Load())
}
