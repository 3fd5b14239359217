// ABOUTME: Tests for the control-thread dispatcher.
// ABOUTME: Covers serialization, detached failures, cancellation, and stop.

package uithread

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDispatcher runs a dispatcher loop for the duration of the test.
func startDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := New(nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d
}

func TestDispatcher_InvokeReturnsResult(t *testing.T) {
	d := startDispatcher(t)

	ran := false
	err := d.Invoke(t.Context(), func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	wantErr := errors.New("window gone")
	err = d.Invoke(t.Context(), func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestDispatcher_CallsRunInSubmissionOrder(t *testing.T) {
	d := startDispatcher(t)

	var mu sync.Mutex
	var order []int
	for i := range 20 {
		d.Post(func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	// A final Invoke flushes everything posted before it.
	require.NoError(t, d.Invoke(t.Context(), func() error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 20)
	for i, v := range order {
		assert.Equal(t, i, v, "control-thread calls must run in submission order")
	}
}

func TestDispatcher_DetachedFailureDoesNotKillLoop(t *testing.T) {
	d := startDispatcher(t)

	d.Post(func() error { return errors.New("minimize failed") })
	d.Post(func() error { panic("window handle invalid") })

	// The loop must survive both and keep serving.
	err := d.Invoke(t.Context(), func() error { return nil })
	assert.NoError(t, err)
}

func TestDispatcher_InvokePanicSurfacesAsError(t *testing.T) {
	d := startDispatcher(t)

	err := d.Invoke(t.Context(), func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestDispatcher_InvokeHonorsContext(t *testing.T) {
	// No Run loop: the call sits queued until the context gives up.
	d := New(nil, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := d.Invoke(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcher_StopUnblocksAndDrops(t *testing.T) {
	d := New(nil, 0)

	loopDone := make(chan error, 1)
	go func() { loopDone <- d.Run(context.Background()) }()

	d.Stop()

	select {
	case err := <-loopDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	err := d.Invoke(t.Context(), func() error { return nil })
	assert.ErrorIs(t, err, ErrStopped)

	// Post after stop must not block or panic.
	d.Post(func() error { return nil })
	d.Stop()
}

func TestDispatcher_RunReturnsOnContextCancel(t *testing.T) {
	d := New(nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- d.Run(ctx) }()

	cancel()

	select {
	case err := <-loopDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}
