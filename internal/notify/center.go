// Package notify is the process-wide queue of toast messages. Every
// notification owns its own expiry timer.
package notify

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rflorenc/facility-workbench/internal/models"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 3 * time.Second

// EventKind says what happened to a notification.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventExpired EventKind = "expired"
)

// Event is delivered to subscribers.
type Event struct {
	Kind         EventKind           `json:"kind"`
	Notification models.Notification `json:"notification"`
}

// Center holds live notifications in insertion order.
type Center struct {
	ttl time.Duration

	mu      sync.Mutex
	items   []models.Notification
	timers  map[string]*time.Timer
	subs    map[int]chan Event
	nextSub int
	entropy *ulid.MonotonicEntropy
	closed  bool
}

// NewCenter creates a Center. A non-positive ttl selects DefaultTTL.
func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		ttl:     ttl,
		timers:  make(map[string]*time.Timer),
		subs:    make(map[int]chan Event),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// TTL returns the display duration.
func (c *Center) TTL() time.Duration { return c.ttl }

// Notify appends a notification and arms its expiry timer.
func (c *Center) Notify(message string, kind models.NotificationKind) models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	n := models.Notification{
		// Monotonic ULIDs stay unique and ordered within the same millisecond.
		ID:        ulid.MustNew(ulid.Timestamp(now), c.entropy).String(),
		Message:   message,
		Kind:      kind,
		CreatedAt: now,
	}
	if c.closed {
		return n
	}
	c.items = append(c.items, n)
	id := n.ID
	c.timers[id] = time.AfterFunc(c.ttl, func() { c.expire(id) })
	c.publish(Event{Kind: EventAdded, Notification: n})

	level := slog.LevelInfo
	if kind == models.NotifyError {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "notification", "kind", kind, "message", message)
	return n
}

// Success queues a success notification.
func (c *Center) Success(message string) models.Notification {
	return c.Notify(message, models.NotifySuccess)
}

// Error queues an error notification.
func (c *Center) Error(message string) models.Notification {
	return c.Notify(message, models.NotifyError)
}

// Info queues an informational notification.
func (c *Center) Info(message string) models.Notification {
	return c.Notify(message, models.NotifyInfo)
}

func (c *Center) expire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.remove(id); ok {
		c.publish(Event{Kind: EventExpired, Notification: n})
	}
}

// Dismiss removes a notification before its timer fires.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
	}
	n, ok := c.remove(id)
	if ok {
		c.publish(Event{Kind: EventExpired, Notification: n})
	}
	return ok
}

// remove deletes one entry; caller holds mu.
func (c *Center) remove(id string) (models.Notification, bool) {
	delete(c.timers, id)
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return n, true
		}
	}
	return models.Notification{}, false
}

// List returns live notifications in insertion order.
func (c *Center) List() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Subscribe returns a channel of events and a cancel func. Slow subscribers
// miss events rather than stalling timers.
func (c *Center) Subscribe(buffer int) (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Event, buffer)
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// publish fans an event out; caller holds mu.
func (c *Center) publish(ev Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close stops all timers, clears the queue and closes subscriber channels.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = make(map[string]*time.Timer)
	c.items = nil
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.closed = true
}
