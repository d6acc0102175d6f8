package queue

import (
	"sync"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/model"
)

// Item is a received PUBLISH waiting in a Queue.
type Item struct {
	P        model.PubMessage
	Received time.Time

	next, prev *Item
}

var pool = sync.Pool{}

func GetItem(p model.PubMessage, received time.Time) (i *Item) {
	if pi := pool.Get(); pi == nil {
		i = new(Item)
	} else {
		i = pi.(*Item)
	}

	i.P, i.Received = p, received
	return i
}

func ReturnItem(i *Item) {
	i.P = model.PubMessage{}
	pool.Put(i)
}
