package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNop() *zap.Logger { return zap.NewNop() }

func TestAddTicker_Fires(t *testing.T) {
	s := New(newNop(), nil)
	defer s.Stop()

	var count int32
	s.AddTicker("tick", 20*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&count, 1)
	})

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 3 }, time.Second, 10*time.Millisecond)
}

func TestAddTicker_Replaces(t *testing.T) {
	s := New(newNop(), nil)
	defer s.Stop()

	var count1, count2 int32
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count1, 1) })
	time.Sleep(30 * time.Millisecond)
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count2, 1) })
	time.Sleep(80 * time.Millisecond)

	// Old ticker should have stopped, new one should be running
	snap1 := atomic.LoadInt32(&count1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&count1), "old ticker must stop after replacement")
	assert.Positive(t, atomic.LoadInt32(&count2))
}

func TestAddCron(t *testing.T) {
	s := New(newNop(), nil)
	defer s.Stop()

	var count int32
	require.NoError(t, s.AddCron("every", "@every 1s", func(context.Context) { atomic.AddInt32(&count, 1) }))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 1 }, 3*time.Second, 50*time.Millisecond)

	assert.Error(t, s.AddCron("bad", "not a schedule", func(context.Context) {}))
	assert.Equal(t, []string{"every"}, s.ListTasks())
}

func TestRemove(t *testing.T) {
	s := New(newNop(), nil)
	defer s.Stop()

	var count int32
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 1) })
	require.NoError(t, s.AddCron("nightly", "0 4 * * *", func(context.Context) {}))
	time.Sleep(50 * time.Millisecond)
	s.Remove("task")
	s.Remove("nightly")
	s.Remove("nope") // must not panic
	snap := atomic.LoadInt32(&count)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&count), "ticker must stop after Remove")
	assert.Empty(t, s.ListTasks())
}

func TestStop_CancelsContext(t *testing.T) {
	s := New(newNop(), nil)

	started := make(chan struct{})
	var cancelled atomic.Bool
	s.AddTicker("long", 10*time.Millisecond, func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
			return
		}
		<-ctx.Done()
		cancelled.Store(true)
	})
	<-started
	s.Stop()
	assert.True(t, cancelled.Load(), "Stop waits for running tasks")
	s.Stop() // must not panic on double-stop
}

func TestListTasks(t *testing.T) {
	s := New(newNop(), nil)
	defer s.Stop()

	require.Empty(t, s.ListTasks())
	s.AddTicker("beta", time.Hour, func(context.Context) {})
	require.NoError(t, s.AddCron("alpha", "@daily", func(context.Context) {}))
	assert.Equal(t, []string{"alpha", "beta"}, s.ListTasks())
}

func TestTicker_PanicRecovery(t *testing.T) {
	s := New(newNop(), nil)
	defer s.Stop()

	var calls int32
	s.AddTicker("panic", 20*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&calls, 1)
		panic("oops")
	})
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, time.Second, 10*time.Millisecond,
		"ticker keeps running after a panic")
}
