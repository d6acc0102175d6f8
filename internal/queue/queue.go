// Package queue decouples the subscriber's read loop from slow consumers of the messages it receives.
package queue

import (
	"sync"
)

// Queue is a FIFO of received messages drained by a single dispatcher.
type Queue struct {
	h, t *Item
	n    int
	max  int // 0 for unbounded

	closed bool
	trig   *sync.Cond
	sync.Mutex
}

func New(max int) *Queue {
	q := Queue{max: max}
	q.trig = sync.NewCond(&q)
	return &q
}

// Add appends i. When the queue is full the oldest item is evicted and returned.
func (q *Queue) Add(i *Item) (evicted *Item) {
	q.Lock()
	if q.max > 0 && q.n >= q.max {
		evicted = q.pop()
	}
	q.add(i)
	q.trig.Signal()
	q.Unlock()
	return evicted
}

func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()
	return q.n
}

// Close stops the dispatcher once the items already queued are dispatched.
func (q *Queue) Close() {
	q.Lock()
	q.closed = true
	q.trig.Broadcast()
	q.Unlock()
}

func (q *Queue) add(i *Item) {
	if q.h == nil {
		q.h = i
		q.t = i
	} else {
		q.t.next = i
		i.prev = q.t
		q.t = i
	}
	q.n++
}

func (q *Queue) pop() *Item {
	i := q.h
	if i == nil {
		return nil
	}

	q.h = i.next
	if q.h == nil {
		q.t = nil
	} else {
		q.h.prev = nil
	}
	i.next = nil // avoid memory leakage
	q.n--
	return i
}

// StartDispatcher will continuously dispatch queue items and remove them.
// Items are returned to the pool after d. It returns when d fails or the queue is closed and empty.
func (q *Queue) StartDispatcher(d func(*Item) error, wg *sync.WaitGroup) {
	defer func() {
		if wg != nil {
			wg.Done()
		}
	}()
	for {
		q.Lock()
		for q.h == nil && !q.closed {
			q.trig.Wait()
		}
		i := q.pop()
		q.Unlock()

		if i == nil { // closed
			return
		}

		err := d(i)
		ReturnItem(i)
		if err != nil {
			return
		}
	}
}
