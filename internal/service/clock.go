package service

import (
	"sync"
	"time"
)

// Clock hands out message timestamps. Each value is at millisecond
// resolution, which every backend stores losslessly, and strictly after
// the previous one so timestamps alone order a conversation.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}
