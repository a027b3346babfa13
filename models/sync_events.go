package models

import (
	"fmt"
	"sync"
	"time"

	"github.com/rohanthewiz/logger"
)

// ============================================================================
// Sync Events
//
// A small in-process bus the UI layers subscribe to: spinners on sync_start,
// badges on conflict, toasts on sync_error. Listeners run synchronously in
// registration order; a panicking listener is recovered and logged so one
// bad subscriber cannot take down a sync cycle or starve later listeners.
// ============================================================================

// SyncEventKind identifies what a SyncEvent describes.
type SyncEventKind string

const (
	EventSyncStart    SyncEventKind = "sync_start"
	EventSyncComplete SyncEventKind = "sync_complete"
	EventSyncError    SyncEventKind = "sync_error"
	EventConflict     SyncEventKind = "conflict"
)

// SyncEvent is one notification from the sync engine. Err is set only for
// sync_error; the note fields only for conflict.
type SyncEvent struct {
	Kind          SyncEventKind
	Err           error
	NoteID        string
	ServerVersion time.Time
	ClientVersion time.Time
}

// EventBus fans sync events out to registered listeners.
type EventBus struct {
	mu        sync.Mutex
	nextID    int
	order     []int
	listeners map[int]func(SyncEvent)
}

func NewEventBus() *EventBus {
	return &EventBus{listeners: make(map[int]func(SyncEvent))}
}

// Subscribe registers a listener and returns an id for Unsubscribe.
func (eb *EventBus) Subscribe(fn func(SyncEvent)) int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.listeners[id] = fn
	eb.order = append(eb.order, id)
	return id
}

// Unsubscribe removes a listener. Unknown ids are ignored.
func (eb *EventBus) Unsubscribe(id int) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if _, ok := eb.listeners[id]; !ok {
		return
	}
	delete(eb.listeners, id)
	for i, oid := range eb.order {
		if oid == id {
			eb.order = append(eb.order[:i], eb.order[i+1:]...)
			break
		}
	}
}

// Emit delivers the event to every listener in registration order.
func (eb *EventBus) Emit(ev SyncEvent) {
	eb.mu.Lock()
	fns := make([]func(SyncEvent), 0, len(eb.order))
	for _, id := range eb.order {
		fns = append(fns, eb.listeners[id])
	}
	eb.mu.Unlock()

	for _, fn := range fns {
		eb.deliver(fn, ev)
	}
}

func (eb *EventBus) deliver(fn func(SyncEvent), ev SyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogErr(fmt.Errorf("%v", r), "sync event listener panicked", "kind", string(ev.Kind))
		}
	}()
	fn(ev)
}
