package inspect

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/filament-dev/filament/pkg/filament"
)

// Event is one instrumentation event as streamed to websocket clients.
type Event struct {
	Type           string `json:"type"`
	Event          string `json:"event,omitempty"`
	DurationMicros int64  `json:"duration_us,omitempty"`
	Subscribers    int    `json:"subscribers,omitempty"`
	Tasks          int    `json:"tasks,omitempty"`
	Groups         int    `json:"groups,omitempty"`
	Records        int    `json:"records,omitempty"`
}

// Event type names.
const (
	EventEvaluation   = "evaluation"
	EventNotification = "notification"
	EventFlush        = "flush"
	EventArrayDiff    = "arrayDiff"
)

const defaultBufferSize = 1024

// writeWait bounds how long a slow client may stall a broadcast.
const writeWait = 5 * time.Second

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithBufferSize sets the capacity of the runtime-to-broadcaster channel.
func WithBufferSize(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.events = make(chan Event, n)
		}
	}
}

// Server is the inspector. It implements filament.Hooks; install it on the
// runtime with filament.WithHooks and mount Handler somewhere reachable.
type Server struct {
	rt      *filament.Runtime
	events  chan Event
	dropped atomic.Uint64

	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader

	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates an inspector for rt and starts its broadcast loop.
func NewServer(rt *filament.Runtime, opts ...ServerOption) *Server {
	s := &Server{
		rt:      rt,
		events:  make(chan Event, defaultBufferSize),
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // inspector is a dev tool
			},
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Handler returns the inspector's HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/stats", s.handleStats)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// statsResponse is the /api/stats payload.
type statsResponse struct {
	filament.Stats
	DroppedEvents uint64 `json:"dropped_events"`
	Clients       int    `json:"clients"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsResponse{
		Stats:         s.rt.Stats(),
		DroppedEvents: s.dropped.Load(),
		Clients:       s.ClientCount(),
	})
}

// handleWebSocket upgrades the connection and keeps it registered until the
// client disconnects. Reads are discarded; the stream is one-way.
func (s *Server) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// run consumes events from the runtime side and broadcasts them.
func (s *Server) run() {
	for {
		select {
		case ev := <-s.events:
			s.broadcast(ev)
		case <-s.done:
			return
		}
	}
}

func (s *Server) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			s.mu.Lock()
			delete(s.clients, client)
			s.mu.Unlock()
			client.Close()
		}
	}
}

// offer hands an event to the broadcaster without ever blocking the runtime
// goroutine. Overflow is counted and dropped.
func (s *Server) offer(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

// ComputedEvaluated implements filament.Hooks.
func (s *Server) ComputedEvaluated(d time.Duration) {
	s.offer(Event{Type: EventEvaluation, DurationMicros: d.Microseconds()})
}

// NotificationDelivered implements filament.Hooks.
func (s *Server) NotificationDelivered(event string, subscribers int) {
	s.offer(Event{Type: EventNotification, Event: event, Subscribers: subscribers})
}

// FlushCompleted implements filament.Hooks.
func (s *Server) FlushCompleted(tasks, groups int) {
	s.offer(Event{Type: EventFlush, Tasks: tasks, Groups: groups})
}

// ArrayDiffed implements filament.Hooks.
func (s *Server) ArrayDiffed(records int) {
	s.offer(Event{Type: EventArrayDiff, Records: records})
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// DroppedEvents returns the number of events dropped due to backpressure.
func (s *Server) DroppedEvents() uint64 {
	return s.dropped.Load()
}

// Close stops the broadcast loop and disconnects all clients.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		for client := range s.clients {
			client.Close()
			delete(s.clients, client)
		}
	})
}
