package sheetboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// BroadcastHook fans out board events to in-process subscribers.
type BroadcastHook struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	ch      chan BoardEvent
	session string
	all     bool
}

// NewBroadcastHook creates a broadcast hook.
func NewBroadcastHook() *BroadcastHook {
	return &BroadcastHook{
		subs: make(map[int]subscriber),
	}
}

// BoardUpdated satisfies RefreshHook. Slow subscribers miss events rather
// than block the caller.
func (h *BroadcastHook) BoardUpdated(_ context.Context, event BoardEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.all && (sub.session == "" || sub.session != event.SessionID) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of the events of one session and a cancel
// func. An empty sessionID matches no events.
func (h *BroadcastHook) Subscribe(sessionID string) (<-chan BoardEvent, func()) {
	return h.subscribe(subscriber{session: sessionID})
}

// SubscribeAll receives the events of every session. It is meant for
// in-process listeners and must not back a public endpoint.
func (h *BroadcastHook) SubscribeAll() (<-chan BoardEvent, func()) {
	return h.subscribe(subscriber{all: true})
}

func (h *BroadcastHook) subscribe(sub subscriber) (<-chan BoardEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan BoardEvent, 8)
	sub.ch = ch
	h.subs[id] = sub
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
	}
	return ch, cancel
}

// Subscribers reports the number of live subscriptions.
func (h *BroadcastHook) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ErrNoStreamSession reports an event stream request without a session.
var ErrNoStreamSession = errors.New("sheetboard: event stream requires a session")

// StreamSession resolves the session an event stream is scoped to: the
// session cookie first, then a "session" query parameter. Both must be ids
// issued by NewSessionID.
func StreamSession(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && ValidSessionID(cookie.Value) {
		return strings.TrimSpace(cookie.Value), nil
	}
	if id := strings.TrimSpace(r.URL.Query().Get("session")); ValidSessionID(id) {
		return id, nil
	}
	return "", ErrNoStreamSession
}

// ServeWebSocket upgrades the request and streams the events of the
// caller's session as JSON.
func (h *BroadcastHook) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	session, err := StreamSession(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.Subscribe(session)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// ServeSSE provides a Server-Sent Events endpoint for the events of the
// caller's session.
func (h *BroadcastHook) ServeSSE(w http.ResponseWriter, r *http.Request) {
	session, err := StreamSession(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	events, cancel := h.Subscribe(session)
	defer cancel()

	encoder := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.Write([]byte("data: "))
			if err := encoder.Encode(event); err != nil {
				return
			}
			w.Write([]byte("\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

type noopRefreshHook struct{}

func (noopRefreshHook) BoardUpdated(context.Context, BoardEvent) error {
	return nil
}
