package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueRunsSameKeyInArrivalOrder(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	var mu sync.Mutex
	var order []int
	running := 0
	overlap := false

	record := func(i int) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			running++
			if running > 1 {
				overlap = true
			}
			order = append(order, i)
			mu.Unlock()
			if i == 0 {
				close(started)
				<-release
			}
			mu.Lock()
			running--
			mu.Unlock()
			return nil
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, q.Do(context.Background(), "u:s", record(0)))
	}()
	<-started

	// queue the rest one by one so arrival order is well defined
	for i := 1; i <= 5; i++ {
		i := i
		wg.Add(1)
		enqueued := make(chan struct{})
		go func() {
			defer wg.Done()
			close(enqueued)
			assert.NoError(t, q.Do(context.Background(), "u:s", record(i)))
		}()
		<-enqueued
		require.Eventually(t, func() bool { return q.pending("u:s") == i }, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
	assert.False(t, overlap)
	assert.Eventually(t, func() bool { return q.lanesOpen() == 0 }, time.Second, time.Millisecond, "idle lanes exit")
}

func TestQueueKeysRunConcurrently(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	block := make(chan struct{})
	inA := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- q.Do(context.Background(), "a", func(context.Context) error {
			close(inA)
			<-block
			return nil
		})
	}()
	<-inA

	ran := false
	require.NoError(t, q.Do(context.Background(), "b", func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	close(block)
	require.NoError(t, <-done)
}

func TestQueueSkipsCancelledWaiters(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	block := make(chan struct{})
	inFirst := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- q.Do(context.Background(), "k", func(context.Context) error {
			close(inFirst)
			<-block
			return nil
		})
	}()
	<-inFirst

	ctx, cancel := context.WithCancel(context.Background())
	waiting := make(chan error, 1)
	called := false
	go func() {
		waiting <- q.Do(ctx, "k", func(context.Context) error {
			called = true
			return nil
		})
	}()
	require.Eventually(t, func() bool { return q.pending("k") == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-waiting, context.Canceled)

	close(block)
	require.NoError(t, <-first)
	q.Close()
	assert.False(t, called)
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue()
	q.Close()
	err := q.Do(context.Background(), "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func (q *Queue) pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[key]; ok {
		return len(l.jobs)
	}
	return 0
}

func (q *Queue) lanesOpen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}
