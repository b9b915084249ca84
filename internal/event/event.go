package event

import "time"

// EventType identifies the kind of relay event.
type EventType string

const (
	// Message lifecycle
	MessagePosted  EventType = "message.posted"
	MessageFetched EventType = "message.fetched"

	// Channel lifecycle
	ChannelCreated EventType = "channel.created"
)

// Event carries data about something that happened in the relay. Data holds
// message metadata only, never message text, so every sink downstream (log
// file, webhook, audit trail, event stream) stays content-free.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(t EventType, data map[string]interface{}) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}
}
