package client

import "time"

// keepAlive tracks when the next PINGREQ is owed.
type keepAlive struct {
	interval time.Duration
	last     time.Time
}

func (k *keepAlive) due(now time.Time) bool {
	return k.interval > 0 && now.Sub(k.last) >= k.interval
}

func (k *keepAlive) reset(now time.Time) {
	k.last = now
}
