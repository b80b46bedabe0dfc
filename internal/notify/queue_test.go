package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()

	for _, id := range []string{"1", "2", "3"} {
		_, ok := q.Enqueue(task{versionID: id})
		assert.True(t, ok)
	}

	for _, want := range []string{"1", "2", "3"} {
		got, ok := q.TryDequeue()
		assert.True(t, ok)
		assert.Equal(t, want, got.versionID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "queue should be empty")
}

func TestTaskQueue_EnqueueReportsDepth(t *testing.T) {
	q := newTaskQueue()

	depth, _ := q.Enqueue(task{versionID: "1"})
	assert.Equal(t, 1, depth)
	depth, _ = q.Enqueue(task{versionID: "2"})
	assert.Equal(t, 2, depth)

	q.TryDequeue()
	depth, _ = q.Enqueue(task{versionID: "3"})
	assert.Equal(t, 2, depth)
}

func TestTaskQueue_EnqueueAfterClose(t *testing.T) {
	q := newTaskQueue()
	q.Close()
	_, ok := q.Enqueue(task{versionID: "1"})
	assert.False(t, ok)
	assert.True(t, q.Drained())
}

func TestTaskQueue_DrainedOnlyWhenEmpty(t *testing.T) {
	q := newTaskQueue()
	q.Enqueue(task{versionID: "1"})
	q.Close()

	assert.False(t, q.Drained(), "closed queue with work is not drained")
	q.TryDequeue()
	assert.True(t, q.Drained())
}

func TestTaskQueue_CloseWakesWaiter(t *testing.T) {
	q := newTaskQueue()
	woke := make(chan struct{})

	go func() {
		<-q.Wait()
		close(woke)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-woke:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("waiter not woken by Close")
	}
}

func TestTaskQueue_ThreadSafe(t *testing.T) {
	q := newTaskQueue()

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(task{versionID: "v"})
			}
		}()
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*perProducer, received)
}
