package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecutorValidation(t *testing.T) {
	_, err := NewExecutor(0, 1)
	assert.ErrorIs(t, err, ErrInvalidWorkerCount)
	_, err = NewExecutor(1, 0)
	assert.ErrorIs(t, err, ErrInvalidQueueSize)
}

func TestExecutorRunsAllTasks(t *testing.T) {
	e, err := NewExecutor(4, 16)
	require.NoError(t, err)

	var n atomic.Int64
	for i := 0; i < 200; i++ {
		require.NoError(t, e.Submit(context.Background(), func() { n.Add(1) }))
	}
	e.Close()

	assert.Equal(t, int64(200), n.Load())
	assert.Equal(t, int64(200), e.Stats().Completed)
	assert.Equal(t, 4, e.NumWorkers())
}

func TestExecutorNeverExceedsWorkerCount(t *testing.T) {
	e, err := NewExecutor(3, 64)
	require.NoError(t, err)

	var cur, peak atomic.Int64
	for i := 0; i < 60; i++ {
		require.NoError(t, e.Submit(context.Background(), func() {
			c := cur.Add(1)
			for {
				p := peak.Load()
				if c <= p || peak.CompareAndSwap(p, c) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			cur.Add(-1)
		}))
	}
	e.Close()
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestSubmitBlocksWhenBacklogFull(t *testing.T) {
	e, err := NewExecutor(1, 1)
	require.NoError(t, err)
	defer e.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, e.Submit(context.Background(), func() {
		close(started)
		<-release
	}))
	<-started
	// fills the single backlog slot
	require.NoError(t, e.Submit(context.Background(), func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = e.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	submitted := make(chan error, 1)
	go func() { submitted <- e.Submit(context.Background(), func() {}) }()
	select {
	case <-submitted:
		t.Fatal("Submit returned while backlog was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-submitted:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit did not unblock after capacity freed")
	}
}

func TestCloseDrainsQueuedTasksAndRejectsNew(t *testing.T) {
	e, err := NewExecutor(1, 8)
	require.NoError(t, err)

	gate := make(chan struct{})
	var ran atomic.Int64
	require.NoError(t, e.Submit(context.Background(), func() { <-gate; ran.Add(1) }))
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Submit(context.Background(), func() { ran.Add(1) }))
	}

	closed := make(chan struct{})
	go func() {
		e.Close()
		close(closed)
	}()

	// Close must wait for the in-flight task.
	select {
	case <-closed:
		t.Fatal("Close returned before in-flight task finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(gate)
	<-closed

	assert.Equal(t, int64(6), ran.Load())
	assert.ErrorIs(t, e.Submit(context.Background(), func() {}), ErrExecutorClosed)
	e.Close() // idempotent
}

func TestCloseWakesBlockedSubmitters(t *testing.T) {
	e, err := NewExecutor(1, 1)
	require.NoError(t, err)

	gate := make(chan struct{})
	require.NoError(t, e.Submit(context.Background(), func() { <-gate }))
	require.NoError(t, e.Submit(context.Background(), func() {}))

	errCh := make(chan error, 1)
	go func() { errCh <- e.Submit(context.Background(), func() {}) }()
	time.Sleep(20 * time.Millisecond)

	go e.Close()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrExecutorClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Submit not released by Close")
	}
	close(gate)
}

func TestPanickingTaskKeepsWorkerAlive(t *testing.T) {
	var mu sync.Mutex
	var recovered []any
	e, err := NewExecutor(1, 4, WithPanicHandler(func(r any, stack []byte) {
		mu.Lock()
		recovered = append(recovered, r)
		mu.Unlock()
		assert.NotEmpty(t, stack)
	}))
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, e.Submit(context.Background(), func() { panic("boom") }))
	require.NoError(t, e.Submit(context.Background(), func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panic")
	}
	e.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{"boom"}, recovered)
	assert.Equal(t, int64(1), e.Stats().Panics)
}

func TestStatsReflectOccupancy(t *testing.T) {
	e, err := NewExecutor(1, 4)
	require.NoError(t, err)

	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, e.Submit(context.Background(), func() { close(started); <-gate }))
	<-started
	require.NoError(t, e.Submit(context.Background(), func() {}))
	require.NoError(t, e.Submit(context.Background(), func() {}))

	st := e.Stats()
	assert.Equal(t, 1, st.Workers)
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, 2, st.Queued)

	close(gate)
	e.Close()
	st = e.Stats()
	assert.Equal(t, 0, st.Active)
	assert.Equal(t, 0, st.Queued)
	assert.Equal(t, int64(3), st.Completed)
}
