package queue

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsZeroCapacity(t *testing.T) {
	require.Panics(t, func() { New[int](0) })
}

func TestFIFOSingleProducer(t *testing.T) {
	q := New[int](4)
	for i := range 4 {
		q.Put(i)
	}
	require.Equal(t, 4, q.Len())
	for i := range 4 {
		require.Equal(t, i, q.Get())
	}
	require.Zero(t, q.Len())
}

func TestPutBlocksWhenFull(t *testing.T) {
	defer leaktest.Check(t)()
	q := New[string](3)
	for range 3 {
		q.Put("x")
	}
	require.Equal(t, q.Cap(), q.Len())

	putDone := make(chan struct{})
	go func() {
		q.Put("overflow")
		close(putDone)
	}()
	select {
	case <-putDone:
		t.Fatal("put on a full queue returned before any get")
	case <-time.After(50 * time.Millisecond):
	}

	require.Equal(t, "x", q.Get())
	select {
	case <-putDone:
	case <-time.After(time.Second):
		t.Fatal("blocked put was not released by get")
	}
	require.Equal(t, 3, q.Len())
}

func TestGetBlocksWhenEmpty(t *testing.T) {
	defer leaktest.Check(t)()
	q := New[int](1)
	got := make(chan int)
	go func() { got <- q.Get() }()
	select {
	case <-got:
		t.Fatal("get on an empty queue returned")
	case <-time.After(50 * time.Millisecond):
	}
	q.Put(42)
	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("blocked get was not released by put")
	}
}

func TestManyProducersManyConsumers(t *testing.T) {
	defer leaktest.Check(t)()
	const producers, perProducer, consumers = 8, 200, 5
	q := New[int](4)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := range perProducer {
				q.Put(p*perProducer + i)
				assert.LessOrEqual(t, q.Len(), q.Cap())
			}
		}(p)
	}

	results := make(chan int, producers*perProducer)
	var cwg sync.WaitGroup
	per := producers * perProducer / consumers
	for range consumers {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for range per {
				results <- q.Get()
			}
		}()
	}
	wg.Wait()
	cwg.Wait()
	close(results)

	var seen []int
	for v := range results {
		seen = append(seen, v)
	}
	sort.Ints(seen)
	require.Len(t, seen, producers*perProducer)
	for i, v := range seen {
		require.Equal(t, i, v, "every item is returned exactly once")
	}
}
