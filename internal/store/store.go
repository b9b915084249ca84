package store

import (
	"sync/atomic"

	"github.com/wiresharks/claudecodex/internal/errors"
	"github.com/wiresharks/claudecodex/internal/event"
)

// allocator hands out globally unique, strictly increasing message ids. The
// first id is 1 so since_id=0 always means "from the beginning".
type allocator struct {
	last atomic.Int64
}

func (a *allocator) next() int64 {
	return a.last.Add(1)
}

// lastID returns the most recently allocated id, or 0 before any allocation.
func (a *allocator) lastID() int64 {
	return a.last.Load()
}

// Store is the relay's in-memory message store and its single synchronization
// boundary. Both transports (MCP tools and the web API) go through it, so the
// locking here is what keeps concurrent agents consistent. All state lives in
// process memory; a restart starts over from an empty store.
type Store struct {
	registry *Registry
	ids      allocator
	bus      *event.Bus
}

// ChannelStats describes one channel for the stats endpoint.
type ChannelStats struct {
	Name     string `json:"name"`
	Messages int    `json:"messages"`
	LastID   int64  `json:"last_id"`
}

// Stats is a point-in-time snapshot of the whole store.
type Stats struct {
	TotalMessages int64          `json:"total_messages"`
	Channels      []ChannelStats `json:"channels"`
}

// New creates a store with the given channels pre-seeded. The bus may be nil;
// emitting on a nil bus is a no-op.
func New(seed []string, bus *event.Bus) *Store {
	s := &Store{
		registry: NewRegistry(),
		bus:      bus,
	}
	s.registry.Seed(seed)
	return s
}

// PostMessage appends a message to the target channel, creating the channel
// on first use. Empty text is allowed; agents use it as a ping. The returned
// message carries the assigned id and timestamp.
//
// Hook failures never fail the post: the bus runs notification hooks in
// goroutines and the emit result is discarded.
func (s *Store) PostMessage(target, sender, text string) (Message, error) {
	if target == "" {
		return Message{}, errors.New(errors.CodeValidation, "target must not be empty").
			WithSuggestion("pass the channel name both agents agreed on, e.g. \"proj-x\"")
	}
	if sender == "" {
		return Message{}, errors.New(errors.CodeValidation, "sender must not be empty").
			WithSuggestion("identify yourself, e.g. \"claude\" or \"codex\"")
	}

	ch, created := s.registry.GetOrCreate(target)
	if created {
		s.bus.Emit(event.NewEvent(event.ChannelCreated, map[string]interface{}{
			"target": target,
		}))
	}

	msg := ch.append(&s.ids, sender, text)

	s.bus.Emit(event.NewEvent(event.MessagePosted, map[string]interface{}{
		"id":       msg.ID,
		"target":   msg.Channel,
		"sender":   msg.Sender,
		"text_len": len(msg.Text),
	}))

	return msg, nil
}

// FetchMessages returns messages in the target channel with id greater than
// sinceID, oldest first, at most limit of them. Fetching never creates a
// channel: an unknown target is a NOT_FOUND error so a typo doesn't read as
// an idle silent peer.
func (s *Store) FetchMessages(target string, sinceID int64, limit int) ([]Message, error) {
	if target == "" {
		return nil, errors.New(errors.CodeValidation, "target must not be empty").
			WithSuggestion("pass the channel name both agents agreed on, e.g. \"proj-x\"")
	}

	ch := s.registry.Get(target)
	if ch == nil {
		return nil, errors.Newf(errors.CodeNotFound, "unknown channel %q", target).
			WithSuggestion("post to the channel first or call list_channels to see what exists")
	}
	if sinceID < 0 {
		sinceID = 0
	}

	return ch.messagesSince(sinceID, limit), nil
}

// ListChannels returns every channel name the store has seen, seeded and
// dynamically created alike, in first-seen order.
func (s *Store) ListChannels() []string {
	return s.registry.ListNames()
}

// Stats snapshots message counts per channel. Counts for different channels
// are read under separate locks, so the totals are approximate during
// concurrent writes but exact once the store is quiet.
func (s *Store) Stats() Stats {
	channels := s.registry.snapshot()
	out := Stats{Channels: make([]ChannelStats, 0, len(channels))}
	for _, ch := range channels {
		count, lastID := ch.stats()
		out.TotalMessages += int64(count)
		out.Channels = append(out.Channels, ChannelStats{
			Name:     ch.Name(),
			Messages: count,
			LastID:   lastID,
		})
	}
	return out
}

// LastAssignedID reports the highest message id handed out so far.
func (s *Store) LastAssignedID() int64 {
	return s.ids.lastID()
}
