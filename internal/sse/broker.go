// Package sse streams task index changes to browsers over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/taskboard/internal/taskindex"
)

// Event types sent to clients.
const (
	TypeTaskCreated    = "task.created"
	TypeTaskUpdated    = "task.updated"
	TypeTaskDeleted    = "task.deleted"
	TypeTaskRenamed    = "task.renamed"
	TypeMinimapUpdated = "minimap.updated"
	TypeScanNotice     = "scan.notice"
)

// Event is one SSE frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type noticeData struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Broker fans events out to connected clients.
//
// A single loop goroutine owns the client set and the minimap throttle
// timestamp; public methods talk to it over channels.
type Broker struct {
	minimapMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	taskEventCh   chan taskindex.Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits at most one minimap.updated per
// minimapThrottle.
func NewBroker(minimapThrottle time.Duration) *Broker {
	if minimapThrottle <= 0 {
		minimapThrottle = 2 * time.Second
	}

	b := &Broker{
		minimapMin:    minimapThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		taskEventCh:   make(chan taskindex.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func typeOf(kind string) (string, bool) {
	switch kind {
	case taskindex.EventCreated:
		return TypeTaskCreated, true
	case taskindex.EventUpdated:
		return TypeTaskUpdated, true
	case taskindex.EventDeleted:
		return TypeTaskDeleted, true
	case taskindex.EventRenamed:
		return TypeTaskRenamed, true
	}
	return "", false
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastMinimap time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.taskEventCh:
			typ, ok := typeOf(ev.Kind)
			if !ok {
				continue
			}
			broadcast(Event{Type: typ, Data: ev})

			now := time.Now()
			if now.Sub(lastMinimap) >= b.minimapMin {
				lastMinimap = now
				broadcast(Event{Type: TypeMinimapUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// PublishTaskEvent broadcasts an index change followed, at most once per
// throttle interval, by minimap.updated.
func (b *Broker) PublishTaskEvent(ev taskindex.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.taskEventCh <- ev:
	case <-b.stopped:
	}
}

// PublishNotices broadcasts one scan.notice per skipped file.
func (b *Broker) PublishNotices(notices []taskindex.Notice) {
	for _, n := range notices {
		b.Publish(Event{Type: TypeScanNotice, Data: noticeData{Path: n.Path, Message: n.Message()}})
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
