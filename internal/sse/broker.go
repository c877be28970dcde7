// Package sse streams catalog and tree changes to browsers as Server-Sent
// Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	EventBookCreated = "book.created"
	EventBookUpdated = "book.updated"
	EventBookDeleted = "book.deleted"
	EventVFSChanged  = "vfs.changed"
)

// Reasons carried by a vfs.changed event.
const (
	ReasonCatalog = "catalog"
	ReasonCommand = "command"
)

const keepAlive = 25 * time.Second

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Change is the payload of vfs.changed. Count is set when several changes
// inside one window were folded into this event; the other fields then
// describe the last of them.
type Change struct {
	Reason  string `json:"reason"`
	Command string `json:"command,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// Broker fans events out to connected streams.
//
// A single goroutine owns the client set and the change window. Callers
// hand it closures: control operations over an unbuffered channel, so they
// have taken effect when the call returns, and events over a buffered one.
//
// vfs.changed is rate limited to one event per window. The first change in
// a quiet period goes out at once; later ones are held and flushed as a
// single event when the window closes, so the last change is never lost.
type Broker struct {
	window time.Duration

	control chan func(*hub)
	events  chan func(*hub)

	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

type hub struct {
	clients    map[chan []byte]struct{}
	window     time.Duration
	lastChange time.Time
	pending    *Change
	flush      *time.Timer
}

// NewBroker starts a broker that emits at most one vfs.changed per window.
func NewBroker(window time.Duration) *Broker {
	if window <= 0 {
		window = 2 * time.Second
	}
	b := &Broker{
		window:  window,
		control: make(chan func(*hub)),
		events:  make(chan func(*hub), 256),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)
	h := &hub{clients: make(map[chan []byte]struct{}), window: b.window}

	for {
		select {
		case <-b.stop:
			h.shutdown()
			return
		case op := <-b.control:
			op(h)
		case op := <-b.events:
			op(h)
		case <-h.flushC():
			h.flushPending(time.Now())
		}
	}
}

// flushC is nil, and so never ready, while no change is held back.
func (h *hub) flushC() <-chan time.Time {
	if h.flush == nil {
		return nil
	}
	return h.flush.C
}

func (h *hub) broadcast(ev Event) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	msg := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, payload))
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Slow client; drop rather than stall every other stream.
		}
	}
}

func (h *hub) change(c Change, now time.Time) {
	if h.pending != nil {
		count := h.pending.Count + 1
		c.Count = count
		h.pending = &c
		return
	}
	since := now.Sub(h.lastChange)
	if since >= h.window {
		h.lastChange = now
		h.broadcast(Event{Type: EventVFSChanged, Data: c})
		return
	}
	c.Count = 1
	h.pending = &c
	h.flush = time.NewTimer(h.window - since)
}

func (h *hub) flushPending(now time.Time) {
	h.flush = nil
	if h.pending == nil {
		return
	}
	c := *h.pending
	h.pending = nil
	if c.Count == 1 {
		c.Count = 0
	}
	h.lastChange = now
	h.broadcast(Event{Type: EventVFSChanged, Data: c})
}

func (h *hub) shutdown() {
	if h.flush != nil {
		h.flush.Stop()
	}
	for ch := range h.clients {
		close(ch)
	}
	h.clients = nil
}

// send queues op for the loop. It reports false once the broker is closed.
func (b *Broker) send(to chan func(*hub), op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case to <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes every subscriber channel. Held-back
// changes are discarded.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe registers a new stream. The channel is closed by Unsubscribe
// or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if !b.send(b.control, func(h *hub) { h.clients[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a stream and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.send(b.control, func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected streams.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.send(b.control, func(h *hub) { resp <- len(h.clients) }) {
		return 0
	}
	return <-resp
}

// Publish broadcasts ev unthrottled.
func (b *Broker) Publish(ev Event) {
	b.send(b.events, func(h *hub) { h.broadcast(ev) })
}

// PublishBookEvent reports a catalog record change. kind is "created",
// "updated" or "deleted"; source is the record's path in the catalog. It
// also counts as a tree change.
func (b *Broker) PublishBookEvent(kind, source string) {
	var typ string
	switch kind {
	case "created":
		typ = EventBookCreated
	case "updated":
		typ = EventBookUpdated
	case "deleted":
		typ = EventBookDeleted
	}
	b.send(b.events, func(h *hub) {
		if typ != "" {
			h.broadcast(Event{Type: typ, Data: map[string]string{"source": source}})
		}
		h.change(Change{Reason: ReasonCatalog}, time.Now())
	})
}

// PublishVFSChange reports that a shell command changed the tree.
func (b *Broker) PublishVFSChange(command string) {
	b.send(b.events, func(h *hub) {
		h.change(Change{Reason: ReasonCommand, Command: command}, time.Now())
	})
}

// ServeHTTP streams events to one client until it disconnects or the
// broker closes. A comment line is written periodically so proxies keep
// the connection open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
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
