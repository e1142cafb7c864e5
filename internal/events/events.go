// Package events carries completion and change notifications from background
// work to interested listeners. Publishing never blocks: a subscriber that
// falls behind loses events rather than stalling the producer.
package events

import (
	"sync"

	"aria/internal/cachekey"
)

// Type identifies the kind of event published on the bus.
type Type string

const (
	// TypeEntryReady fires when a cache entry has been fetched and stored.
	TypeEntryReady Type = "entry-ready"
	// TypeEntryFailed fires when every provider failed for a token.
	TypeEntryFailed Type = "entry-failed"
	// TypeBlurReady fires when a blurred background rendition is available.
	TypeBlurReady Type = "blur-ready"
	// TypeTrackChanged fires when the player moves to a different track.
	TypeTrackChanged Type = "track-changed"
)

// Event is a single bus notification. Fields beyond Type are populated
// depending on the event type.
type Event struct {
	Type       Type
	Key        cachekey.Key
	Kind       cachekey.Kind
	Reason     string // entry-failed
	Target     string // blur-ready
	Generation uint64 // blur-ready
	URI        string // track-changed
}

const defaultSubscriberBuffer = 64

// Bus fans events out to subscriber channels.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	dropped     uint64
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]chan Event)}
}

// Subscribe registers a buffered listener channel. The returned cancel
// function unregisters it and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, defaultSubscriberBuffer)
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers event to every subscriber without blocking. A subscriber
// whose buffer is full loses its oldest pending event instead of the new one.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
			continue
		default:
		}
		select {
		case <-ch:
			b.dropped++
		default:
		}
		select {
		case ch <- event:
		default:
			b.dropped++
		}
	}
}

// Dropped reports how many events were discarded because a subscriber buffer
// was full.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// EntryReady publishes a completion notification for a token.
func (b *Bus) EntryReady(token cachekey.Token) {
	b.Publish(Event{Type: TypeEntryReady, Key: token.Key, Kind: token.Kind})
}

// EntryFailed publishes a terminal failure notification for a token.
func (b *Bus) EntryFailed(token cachekey.Token, reason string) {
	b.Publish(Event{Type: TypeEntryFailed, Key: token.Key, Kind: token.Kind, Reason: reason})
}

// BlurReady publishes availability of a blurred rendition for a target.
func (b *Bus) BlurReady(target string, generation uint64) {
	b.Publish(Event{Type: TypeBlurReady, Target: target, Generation: generation})
}

// TrackChanged publishes a player track transition.
func (b *Bus) TrackChanged(uri string) {
	b.Publish(Event{Type: TypeTrackChanged, URI: uri})
}
