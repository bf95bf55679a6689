package campaignsync

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is an owned periodic job. It runs fn once immediately and then on
// every tick until Stop; the interval can be changed while it runs.
type Task struct {
	name string

	mu     sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	reset  chan time.Duration
}

// NewTask creates a stopped task
func NewTask(name string) *Task {
	return &Task{name: name}
}

// Start launches the loop. It returns false when the task is already running.
func (t *Task) Start(parent context.Context, interval time.Duration, fn func(ctx context.Context)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	t.ctx = ctx
	t.cancel = cancel
	t.reset = make(chan time.Duration, 1)

	t.wg.Add(1)
	go t.run(ctx, interval, fn, t.reset)
	logrus.Debugf("Task %s started (interval: %v)", t.name, interval)
	return true
}

// SetInterval changes the tick interval of a running task
func (t *Task) SetInterval(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setIntervalLocked(interval)
}

// SetIntervalFor changes the interval only if ctx belongs to the current run.
// A late fn call from a stopped run passes its own, cancelled, ctx and is
// ignored.
func (t *Task) SetIntervalFor(ctx context.Context, interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx == nil || t.ctx != ctx || ctx.Err() != nil {
		return
	}
	t.setIntervalLocked(interval)
}

func (t *Task) setIntervalLocked(interval time.Duration) {
	if t.reset == nil {
		return
	}
	// Keep only the latest request
	select {
	case <-t.reset:
	default:
	}
	t.reset <- interval
}

// Stop cancels the loop without waiting for it, so it is safe to call from
// inside fn
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
		t.ctx = nil
	}
}

// Wait blocks until every loop started by this task has exited
func (t *Task) Wait() {
	t.wg.Wait()
}

// Running reports whether the loop is active
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Task) run(ctx context.Context, interval time.Duration, fn func(ctx context.Context), reset chan time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run initial tick
	fn(ctx)

	for {
		select {
		case <-ctx.Done():
			logrus.Debugf("Task %s stopped", t.name)
			return
		case d := <-reset:
			if d > 0 && d != interval {
				interval = d
				ticker.Reset(interval)
			}
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
		}
	}
}

// Timers is a set of one-shot timers owned by a session. Close cancels every
// pending timer and waits for callbacks that already started.
type Timers struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
	nextID uint64
	timers map[uint64]*time.Timer
}

// NewTimers creates an empty timer set
func NewTimers() *Timers {
	return &Timers{timers: make(map[uint64]*time.Timer)}
}

// After runs fn once after d. It returns false when the set is closed.
func (t *Timers) After(d time.Duration, fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}

	t.nextID++
	id := t.nextID
	t.wg.Add(1)
	t.timers[id] = time.AfterFunc(d, func() {
		defer t.wg.Done()

		t.mu.Lock()
		_, pending := t.timers[id]
		delete(t.timers, id)
		closed := t.closed
		t.mu.Unlock()

		if !pending || closed {
			return
		}
		fn()
	})
	return true
}

// Pending returns the number of timers that have not fired
func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Close cancels all pending timers and waits for running callbacks
func (t *Timers) Close() {
	t.mu.Lock()
	t.closed = true
	for id, timer := range t.timers {
		if timer.Stop() {
			t.wg.Done()
		}
		delete(t.timers, id)
	}
	t.mu.Unlock()

	t.wg.Wait()
}
