// Package broadcaster fans sweep events out to watching clients.
package broadcaster

import (
	"sync"
	"time"

	"github.com/google/uuid"

	srmv1 "github.com/jamesainslie/srm/pkg/api/srm/v1"
	"github.com/jamesainslie/srm/pkg/srm/trash"
)

// bufferSize is the per-subscriber queue length. A subscriber that falls
// further behind loses events rather than stalling the sweeper.
const bufferSize = 100

// Subscriber receives events until it is unsubscribed or the
// broadcaster closes, at which point Events is closed.
type Subscriber struct {
	ID     string
	Types  map[string]bool // empty means every type
	Events chan *srmv1.Event
}

// Broadcaster manages subscribers and distributes sweep events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
}

// New creates a new Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe registers a subscriber for the given event types, or for all
// of them when none are given. It returns nil after Close.
func (b *Broadcaster) Subscribe(types ...string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Types:  make(map[string]bool, len(types)),
		Events: make(chan *srmv1.Event, bufferSize),
	}
	for _, t := range types {
		sub.Types[t] = true
	}

	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Notify sends ev to every subscriber that wants its type.
func (b *Broadcaster) Notify(ev *srmv1.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if len(sub.Types) > 0 && !sub.Types[ev.Type] {
			continue
		}
		select {
		case sub.Events <- ev:
		default:
			// Subscriber is behind; event dropped.
		}
	}
}

// PublishSweep turns one sweep outcome into events: one per purged or
// failed entry, then a summary.
func (b *Broadcaster) PublishSweep(report trash.SweepReport, err error) {
	at := report.Started.Add(report.Elapsed)
	if report.Started.IsZero() {
		at = time.Now()
	}

	for _, e := range report.Purged {
		b.Notify(&srmv1.Event{
			Type:         srmv1.EventPurged,
			Time:         at,
			Name:         e.Name(),
			OriginalPath: e.OriginalPath,
			Size:         e.SizeBytes,
		})
	}
	for _, f := range report.Failed {
		b.Notify(&srmv1.Event{
			Type:         srmv1.EventPurgeFailed,
			Time:         at,
			Name:         f.Entry.Name(),
			OriginalPath: f.Entry.OriginalPath,
			Size:         f.Entry.SizeBytes,
			Error:        f.Err.Error(),
		})
	}

	summary := &srmv1.Event{
		Type:   srmv1.EventSwept,
		Time:   at,
		Size:   report.PurgedBytes(),
		Purged: len(report.Purged),
		Failed: len(report.Failed),
	}
	if err != nil {
		summary.Error = err.Error()
	}
	b.Notify(summary)
}

// Close closes the broadcaster and all subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
