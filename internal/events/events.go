// Package events fans out "data changed" notifications to interested views.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names the collection that changed
type Kind string

const (
	KindMedicine  Kind = "medicine"
	KindReminder  Kind = "reminder"
	KindInventory Kind = "inventory"
	KindHistory   Kind = "history"
)

// Event is a single change notification
type Event struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Subject int64     `json:"subject,omitempty"` // id of the changed record, 0 when several changed
	At      time.Time `json:"at"`
}

// Publisher is the narrow interface producers depend on
type Publisher interface {
	Publish(kind Kind, subject int64)
}

type subscription struct {
	ch    chan Event
	kinds map[Kind]bool
}

// Bus is an in-process publish/subscribe hub. Delivery never blocks the
// publisher: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
	now    func() time.Time
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
		now:  time.Now,
	}
}

// Subscribe registers for the given kinds (all kinds when none are given).
// The returned cancel func closes the channel and is safe to call twice.
func (b *Bus) Subscribe(buffer int, kinds ...Kind) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	sub := &subscription{ch: make(chan Event, buffer)}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers an event to every matching subscriber
func (b *Bus) Publish(kind Kind, subject int64) {
	evt := Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Subject: subject,
		At:      b.now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.kinds != nil && !sub.kinds[kind] {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
