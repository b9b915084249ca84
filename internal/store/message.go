package store

import "time"

// Message is a single immutable relay message. Ids are globally unique and
// strictly increasing in creation order, starting at 1; within a channel id
// order equals insertion order.
type Message struct {
	ID        int64     `json:"id"`
	Channel   string    `json:"channel"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
