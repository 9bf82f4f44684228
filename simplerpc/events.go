package simplerpc

import (
	"sort"
	"sync"
)

// Event is a connection lifecycle event.
type Event int

const (
	// EventOpen fires when a connection becomes a live peer.
	EventOpen Event = iota
	// EventClose fires when a live connection is lost. The error is the
	// reason, io.EOF for a clean close.
	EventClose
	// EventError fires on connection failures that did not produce a peer,
	// such as a failed dial.
	EventError
)

func (e Event) String() string {
	switch e {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Listener receives lifecycle events. The Remote is nil when there is no
// live connection associated with the event.
type Listener func(r *Remote, err error)

// ListenerID identifies a registered Listener, for Off.
type ListenerID uint64

type emitter struct {
	mu        sync.Mutex
	lastID    ListenerID
	listeners map[Event]map[ListenerID]Listener
}

// On registers a listener for an event.
func (em *emitter) On(event Event, l Listener) ListenerID {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.listeners == nil {
		em.listeners = map[Event]map[ListenerID]Listener{}
	}
	if em.listeners[event] == nil {
		em.listeners[event] = map[ListenerID]Listener{}
	}
	em.lastID++
	em.listeners[event][em.lastID] = l
	return em.lastID
}

// Off removes a listener registered with On.
func (em *emitter) Off(event Event, id ListenerID) {
	em.mu.Lock()
	defer em.mu.Unlock()
	delete(em.listeners[event], id)
}

// emit calls the listeners of event in registration order.
func (em *emitter) emit(event Event, r *Remote, err error) {
	em.mu.Lock()
	ids := make([]ListenerID, 0, len(em.listeners[event]))
	for id := range em.listeners[event] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, em.listeners[event][id])
	}
	em.mu.Unlock()

	for _, l := range listeners {
		l(r, err)
	}
}
