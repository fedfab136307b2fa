package rendezvous

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignal_ImposesOrder(t *testing.T) {
	for i := 0; i < 10; i++ {
		signaler, waiter := New()

		var mu sync.Mutex
		var log []string
		record := func(event string) {
			mu.Lock()
			log = append(log, event)
			mu.Unlock()
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond)
			record("signaler")
			signaler.Signal()
		}()

		waiter.Wait()
		record("waiter")
		wg.Wait()

		require.Equal(t, []string{"signaler", "waiter"}, log)
		require.True(t, waiter.Signaled())
	}
}

func TestSignal_WriteBeforeSignalIsVisible(t *testing.T) {
	signaler, waiter := New()
	var value int

	go func() {
		value = 42
		signaler.Signal()
	}()

	waiter.Wait()
	require.Equal(t, 42, value)
}

func TestClose_WithoutSignalReleasesWaiter(t *testing.T) {
	waiter := func() *Waiter {
		signaler, waiter := New()
		signaler.Close()
		return waiter
	}()

	done := make(chan struct{})
	go func() {
		waiter.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Wait did not return after the signaler was dropped")
	}
	require.False(t, waiter.Signaled())
}

func TestSignal_AtMostOnce(t *testing.T) {
	signaler, waiter := New()

	signaler.Signal()
	signaler.Signal()
	signaler.Close()

	waiter.Wait()
	// A second Wait sees the closed channel and must not block either.
	waiter.Wait()
	require.True(t, waiter.Signaled())
}

func TestWaitContext_Cancelled(t *testing.T) {
	signaler, waiter := New()
	defer signaler.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := waiter.WaitContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitContext_Signaled(t *testing.T) {
	signaler, waiter := New()
	signaler.Signal()

	require.NoError(t, waiter.WaitContext(context.Background()))
}

func TestDroppedSignalerReleasesWaiter(t *testing.T) {
	waiter := func() *Waiter {
		_, waiter := New()
		return waiter
	}()

	done := make(chan struct{})
	go func() {
		waiter.Wait()
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		runtime.GC()
		select {
		case <-done:
			require.False(t, waiter.Signaled())
			return
		case <-time.After(20 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("waiter not released after the signaler was collected")
		}
	}
}
