package queue

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(n int) *Item {
	return GetItem(model.PubMessage{Topic: "t", Payload: strconv.Itoa(n)}, time.Unix(int64(n), 0))
}

func TestDispatchOrder(t *testing.T) {
	q := New(0)

	var got []string
	var wg sync.WaitGroup
	wg.Add(1)
	go q.StartDispatcher(func(i *Item) error {
		got = append(got, i.P.Payload)
		return nil
	}, &wg)

	for n := 0; n < 100; n++ {
		assert.Nil(t, q.Add(item(n)))
	}
	q.Close()
	wg.Wait()

	require.Len(t, got, 100)
	for n, p := range got {
		assert.Equal(t, strconv.Itoa(n), p)
	}
	assert.Zero(t, q.Len())
}

func TestEvictOldest(t *testing.T) {
	q := New(2)

	assert.Nil(t, q.Add(item(1)))
	assert.Nil(t, q.Add(item(2)))
	ev := q.Add(item(3))
	require.NotNil(t, ev)
	assert.Equal(t, "1", ev.P.Payload)
	assert.Equal(t, 2, q.Len())

	var got []string
	q.Close()
	q.StartDispatcher(func(i *Item) error {
		got = append(got, i.P.Payload)
		return nil
	}, nil)
	assert.Equal(t, []string{"2", "3"}, got)
}

func TestDispatcherStopsOnError(t *testing.T) {
	q := New(0)
	q.Add(item(1))
	q.Add(item(2))

	calls := 0
	q.StartDispatcher(func(i *Item) error {
		calls++
		return errors.New("sink gone")
	}, nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, q.Len())
}

func TestCloseWakesIdleDispatcher(t *testing.T) {
	q := New(0)
	done := make(chan struct{})
	go func() {
		q.StartDispatcher(func(*Item) error { return nil }, nil)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher still waiting")
	}
}
