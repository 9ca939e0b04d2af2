package models

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultFeedCapacity bounds how many deliveries a feed retains.
const DefaultFeedCapacity = 500

// Delivery is one verified webhook request received from Asana.
type Delivery struct {
	ID           string          `json:"id"`
	ConnectionID string          `json:"connection_id"`
	ReceivedAt   time.Time       `json:"received_at"`
	Events       json.RawMessage `json:"events"`
}

// EventFeed is an append-only, bounded list of deliveries for one connection.
// Offsets are absolute: they keep counting after old entries are dropped.
type EventFeed struct {
	mu       sync.RWMutex
	capacity int
	dropped  int
	items    []Delivery
}

// NewEventFeed creates a feed retaining at most capacity deliveries.
func NewEventFeed(capacity int) *EventFeed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &EventFeed{capacity: capacity}
}

// Append records a delivery and returns it with its ID set.
func (f *EventFeed) Append(connID string, body []byte) Delivery {
	d := Delivery{
		ID:           uuid.New().String(),
		ConnectionID: connID,
		ReceivedAt:   time.Now(),
		Events:       extractEvents(body),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, d)
	if over := len(f.items) - f.capacity; over > 0 {
		f.items = append([]Delivery(nil), f.items[over:]...)
		f.dropped += over
	}
	return d
}

// Since returns deliveries at absolute offset and later, plus the next offset.
func (f *EventFeed) Since(offset int) ([]Delivery, int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	next := f.dropped + len(f.items)
	idx := offset - f.dropped
	if idx < 0 {
		idx = 0
	}
	if idx >= len(f.items) {
		return nil, next
	}
	out := make([]Delivery, len(f.items)-idx)
	copy(out, f.items[idx:])
	return out, next
}

// extractEvents pulls the "events" array out of an Asana delivery body,
// keeping the whole body when it has a different shape.
func extractEvents(body []byte) json.RawMessage {
	var envelope struct {
		Events json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Events) > 0 {
		return envelope.Events
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	b, _ := json.Marshal(string(body))
	return b
}

// FeedStore holds one EventFeed per connection.
type FeedStore struct {
	mu       sync.Mutex
	capacity int
	feeds    map[string]*EventFeed
}

// NewFeedStore creates an empty feed store.
func NewFeedStore(capacity int) *FeedStore {
	return &FeedStore{capacity: capacity, feeds: make(map[string]*EventFeed)}
}

// For returns the feed for a connection, creating it on first use.
func (s *FeedStore) For(connID string) *EventFeed {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[connID]
	if !ok {
		f = NewEventFeed(s.capacity)
		s.feeds[connID] = f
	}
	return f
}

// Drop removes the feed for a connection.
func (s *FeedStore) Drop(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.feeds, connID)
}
