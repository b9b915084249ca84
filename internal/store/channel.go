package store

import (
	"sort"
	"sync"
	"time"
)

// Channel is an append-only message sequence for one named topic. A message's
// id is allocated inside the append critical section, so fetch can rely on
// ids within a channel being strictly increasing in slice order.
type Channel struct {
	name string

	mu       sync.RWMutex
	messages []Message
}

func newChannel(name string) *Channel {
	return &Channel{name: name}
}

// Name returns the channel's name.
func (c *Channel) Name() string { return c.name }

// append allocates an id, stamps the creation time, and stores the message.
// Allocation happens under the channel lock so a concurrent append cannot
// slot a lower id after a higher one.
func (c *Channel) append(ids *allocator, sender, text string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := Message{
		ID:        ids.next(),
		Channel:   c.name,
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	c.messages = append(c.messages, msg)
	return msg
}

// messagesSince returns a copy of every message with id greater than sinceID
// in ascending id order. When limit is positive and more messages qualify,
// the oldest ones are returned so a caller polling with the last id it saw
// never skips past unseen messages.
func (c *Channel) messagesSince(sinceID int64, limit int) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Ids are sorted within the slice, so binary-search the first qualifying
	// index instead of scanning the whole history on every poll.
	start := sort.Search(len(c.messages), func(i int) bool {
		return c.messages[i].ID > sinceID
	})
	tail := c.messages[start:]
	if limit > 0 && len(tail) > limit {
		tail = tail[:limit]
	}

	out := make([]Message, len(tail))
	copy(out, tail)
	return out
}

// stats reports the message count and the id of the newest message, or zero
// when the channel is empty.
func (c *Channel) stats() (count int, lastID int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n := len(c.messages); n > 0 {
		return n, c.messages[n-1].ID
	}
	return 0, 0
}
