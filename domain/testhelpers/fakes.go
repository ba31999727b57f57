package testhelpers

import (
	"sync"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/events"
)

// RecordingPublisher captures published events in order
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of the captured events
func (p *RecordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// OfType returns the captured events of one type
func (p *RecordingPublisher) OfType(eventType events.EventType) []events.Event {
	var matched []events.Event
	for _, e := range p.Events() {
		if e.Type() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// RecordingHistory captures balance history entries handed to the recorder
type RecordingHistory struct {
	mu      sync.Mutex
	entries []*entities.BalanceHistory
}

func (r *RecordingHistory) RecordAsync(history *entities.BalanceHistory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, history)
}

// Entries returns a copy of the captured entries
func (r *RecordingHistory) Entries() []*entities.BalanceHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entities.BalanceHistory(nil), r.entries...)
}

// FixedRandom returns the same value on every call
type FixedRandom float64

func (r FixedRandom) Float64() float64 {
	return float64(r)
}

// FakeClock is a settable clock for time-dependent tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock stopped at now
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
