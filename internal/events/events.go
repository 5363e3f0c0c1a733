// Package events carries refresh notifications between components.
package events

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Reason says what part of the dashboard must refresh.
type Reason int

const (
	RefreshBackground Reason = iota + 1
	RefreshSettings
	RefreshStorage
)

func (r Reason) String() string {
	switch r {
	case RefreshBackground:
		return "background"
	case RefreshSettings:
		return "settings"
	case RefreshStorage:
		return "storage"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// ParseReason accepts the names returned by String.
func ParseReason(value string) (Reason, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "background":
		return RefreshBackground, nil
	case "settings":
		return RefreshSettings, nil
	case "storage":
		return RefreshStorage, nil
	default:
		return 0, fmt.Errorf("unknown refresh reason %q", value)
	}
}

// MarshalText encodes the reason by name.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a reason name.
func (r *Reason) UnmarshalText(text []byte) error {
	parsed, err := ParseReason(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Event is one refresh notification.
type Event struct {
	Seq    uint64    `json:"seq"`
	Reason Reason    `json:"reason"`
	At     time.Time `json:"at"`
}

// Bus fans events out to subscribers. Subscribers that fall behind lose
// events instead of blocking publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	seq    atomic.Uint64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan Event)}
}

// Publish stamps and dispatches an event for reason.
func (b *Bus) Publish(reason Reason) Event {
	ev := Event{Seq: b.seq.Add(1), Reason: reason, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel func unregisters it and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
