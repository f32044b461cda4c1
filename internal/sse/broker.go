// Package sse implements a Server-Sent Events broker that streams index and
// link-graph changes to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types.
const (
	EventNoteIndexed   = "note.indexed"
	EventNoteRemoved   = "note.removed"
	EventGraphUpdated  = "graph.updated"
	EventLinksRepaired = "links.repaired"
)

const (
	// heartbeatInterval keeps idle connections open through proxies.
	heartbeatInterval = 15 * time.Second
	// replayLimit is how many recent messages a reconnecting client can
	// recover with Last-Event-ID. It matches the client buffer.
	replayLimit = 64
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// GraphUpdate is the payload of graph.updated: how many changes it covers.
type GraphUpdate struct {
	Changes int `json:"changes"`
}

type message struct {
	id  uint64
	raw []byte
}

type subscription struct {
	ch     chan []byte
	lastID uint64
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set, the replay history and
// the graph throttle state. Public methods talk to it over channels.
//
// Changes are coalesced into graph.updated events at most once per throttle
// interval. A change inside the interval is announced when it ends.
type Broker struct {
	graphMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given graph throttle interval.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq     uint64
		history []message

		lastGraph time.Time
		pending   int
		trailing  *time.Timer
		trailC    <-chan time.Time
	)
	defer func() {
		if trailing != nil {
			trailing.Stop()
		}
	}()

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		history = append(history, message{id: seq, raw: raw})
		if len(history) > replayLimit {
			history = history[len(history)-replayLimit:]
		}

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; drop for this client only.
			}
		}
	}

	flushGraph := func(now time.Time) {
		lastGraph = now
		broadcast(Event{Type: EventGraphUpdated, Data: GraphUpdate{Changes: pending}})
		pending = 0
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = struct{}{}
			if sub.lastID == 0 {
				continue
			}
			for _, m := range history {
				if m.id <= sub.lastID {
					continue
				}
				select {
				case sub.ch <- m.raw:
				default:
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case event := <-b.changeCh:
			broadcast(event)
			pending++

			now := time.Now()
			if wait := b.graphMin - now.Sub(lastGraph); wait <= 0 {
				flushGraph(now)
			} else if trailC == nil {
				if trailing == nil {
					trailing = time.NewTimer(wait)
				} else {
					trailing.Reset(wait)
				}
				trailC = trailing.C
			}

		case now := <-trailC:
			trailC = nil
			if pending > 0 {
				flushGraph(now)
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeFrom(0)
}

// SubscribeFrom adds a client that first receives the retained messages
// with an id above lastID. Zero means live events only.
func (b *Broker) SubscribeFrom(lastID uint64) chan []byte {
	ch := make(chan []byte, replayLimit)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, lastID: lastID}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishChange sends an event that alters the link graph. It is followed
// by a graph.updated event at most once per throttle interval.
func (b *Broker) PublishChange(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteEvent maps an indexer event kind ("indexed", "removed") to a
// note event and publishes it as a graph change. Unknown kinds are ignored.
func (b *Broker) PublishNoteEvent(kind, noteID string) {
	var typ string
	switch kind {
	case "indexed":
		typ = EventNoteIndexed
	case "removed":
		typ = EventNoteRemoved
	default:
		return
	}
	b.PublishChange(Event{Type: typ, Data: map[string]string{"note_id": noteID}})
}

// PublishLinksRepaired announces a completed repair pass.
func (b *Broker) PublishLinksRepaired(report any) {
	b.PublishChange(Event{Type: EventLinksRepaired, Data: report})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). A reconnecting
// client's Last-Event-ID header resumes the stream after that event.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	ch := b.SubscribeFrom(lastID)
	defer b.Unsubscribe(ch)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
