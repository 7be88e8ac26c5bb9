// Package eventbus fans phase-lifecycle events out to subscribers of a
// single project. Publication never blocks on a slow subscriber: a
// subscriber whose buffer is full is disconnected and removed from the
// set (spec §4.10) rather than left to silently miss events forever.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// EventType enumerates the kinds of events the pipeline publishes (spec §4.6).
type EventType string

const (
	EventPhaseStarted    EventType = "phase_started"
	EventPhaseCompleted  EventType = "phase_completed"
	EventPhaseFailed     EventType = "phase_failed"
	EventWorkerSpawned   EventType = "worker_spawned"
	EventWorkerCompleted EventType = "worker_completed"
	EventNodeAdded       EventType = "node_added"
	EventProjectPaused   EventType = "project_paused"
	EventProjectResumed  EventType = "project_resumed"
)

// Event is a single notification about a project's progress.
type Event struct {
	ProjectID string         `json:"projectId"`
	Type      EventType      `json:"type"`
	At        time.Time      `json:"at"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// subscription pairs a subscriber's channel with the guard that ensures it
// is closed exactly once, whether the close is triggered by the caller's
// cancel function or by Publish disconnecting a full buffer.
type subscription struct {
	ch   chan Event
	once sync.Once
}

// subscriberSet is the mutable per-project collection of live subscriptions.
// It has its own lock because xsync.MapOf guarantees atomic access to the
// value stored under a key, not to the set's internal members.
type subscriberSet struct {
	mu   sync.Mutex
	subs map[int64]*subscription
	next int64
}

// Bus is the process-wide event fan-out registry, keyed by project id.
type Bus struct {
	bufferSize int
	projects   *xsync.MapOf[string, *subscriberSet]
}

// New constructs a Bus. bufferSize bounds each subscriber's channel; a
// value of 0 falls back to 64.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		bufferSize: bufferSize,
		projects:   xsync.NewMapOf[string, *subscriberSet](),
	}
}

// Subscribe registers a new listener for a project's events. The returned
// cancel function must be called to release the subscription; it is safe to
// call multiple times.
func (b *Bus) Subscribe(ctx context.Context, projectID string) (<-chan Event, func()) {
	set, _ := b.projects.LoadOrCompute(projectID, func() *subscriberSet {
		return &subscriberSet{subs: make(map[int64]*subscription)}
	})

	sub := &subscription{ch: make(chan Event, b.bufferSize)}

	set.mu.Lock()
	id := set.next
	set.next++
	set.subs[id] = sub
	set.mu.Unlock()

	cancel := func() {
		set.mu.Lock()
		delete(set.subs, id)
		set.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return sub.ch, cancel
}

// Publish delivers an event to every live subscriber of ev.ProjectID. A
// subscriber whose buffer is full is disconnected: removed from the set
// and its channel closed, rather than left to silently miss the event.
func (b *Bus) Publish(ev Event) {
	set, ok := b.projects.Load(ev.ProjectID)
	if !ok {
		return
	}

	set.mu.Lock()
	targets := make(map[int64]*subscription, len(set.subs))
	for id, sub := range set.subs {
		targets[id] = sub
	}
	set.mu.Unlock()

	var full []int64
	for id, sub := range targets {
		select {
		case sub.ch <- ev:
		default:
			full = append(full, id)
		}
	}
	if len(full) == 0 {
		return
	}

	set.mu.Lock()
	for _, id := range full {
		delete(set.subs, id)
	}
	set.mu.Unlock()

	for _, id := range full {
		targets[id].once.Do(func() { close(targets[id].ch) })
	}
}

// SubscriberCount reports the number of live subscriptions for a project,
// mostly useful in tests and diagnostics.
func (b *Bus) SubscriberCount(projectID string) int {
	set, ok := b.projects.Load(projectID)
	if !ok {
		return 0
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.subs)
}

// Close releases all subscriber channels for a project, used when a project
// is deleted.
func (b *Bus) Close(projectID string) {
	set, ok := b.projects.LoadAndDelete(projectID)
	if !ok {
		return
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	for _, sub := range set.subs {
		sub.once.Do(func() { close(sub.ch) })
	}
	set.subs = nil
}
