package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	graphql "github.com/graph-gophers/graphql-go"
)

// Executor runs a GraphQL operation and streams its results.
// *graphql.Schema satisfies it.
type Executor interface {
	Subscribe(ctx context.Context, query, operationName string, variables map[string]interface{}) (<-chan interface{}, error)
}

// Handler upgrades HTTP requests and serves graphql-transport-ws sessions.
type Handler struct {
	exec        Executor
	upgrader    websocket.Upgrader
	initTimeout time.Duration

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
}

// NewHandler creates a Handler executing operations with exec.
func NewHandler(exec Executor) *Handler {
	return &Handler{
		exec: exec,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Subprotocol},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
		initTimeout: initWait,
		sessions:    make(map[*session]struct{}),
	}
}

// IsUpgrade reports whether r asks for a websocket upgrade.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// ServeHTTP upgrades the connection and blocks until the session ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}

	s := newSession(conn, h.exec, h.initTimeout)
	if conn.Subprotocol() != Subprotocol {
		s.close(CloseSubprotocolNotAcceptable, "Subprotocol not acceptable")
		return
	}

	if !h.track(s) {
		s.close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer h.untrack(s)

	s.run()
}

// Close terminates every open session. Later upgrades are refused.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close(websocket.CloseGoingAway, "server shutting down")
	}
}

func (h *Handler) track(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	return true
}

func (h *Handler) untrack(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

// session is one websocket connection. Reads happen on the ServeHTTP
// goroutine, writes on writePump, and each operation on its own goroutine.
type session struct {
	conn        *websocket.Conn
	exec        Executor
	initTimeout time.Duration
	send        chan Message
	ctx         context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	initSeen bool
	ops      map[string]context.CancelFunc

	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, exec Executor, initTimeout time.Duration) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		conn:        conn,
		exec:        exec,
		initTimeout: initTimeout,
		send:        make(chan Message, sendBuffer),
		ctx:         ctx,
		cancel:      cancel,
		ops:         make(map[string]context.CancelFunc),
	}
}

func (s *session) run() {
	defer s.shutdown()
	go s.writePump()
	s.readPump()
}

func (s *session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	initTimer := time.AfterFunc(s.initTimeout, func() {
		s.mu.Lock()
		seen := s.initSeen
		s.mu.Unlock()
		if !seen {
			s.close(CloseInitTimeout, "Connection initialisation timeout")
		}
	})
	defer initTimer.Stop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.close(CloseBadRequest, "Invalid message received")
			return
		}
		if !s.handle(msg) {
			return
		}
	}
}

// handle processes one client message and reports whether the session
// should keep reading.
func (s *session) handle(msg Message) bool {
	switch msg.Type {
	case MsgConnectionInit:
		s.mu.Lock()
		if s.initSeen {
			s.mu.Unlock()
			s.close(CloseTooManyInitRequests, "Too many initialisation requests")
			return false
		}
		s.initSeen = true
		s.mu.Unlock()
		s.write(Message{Type: MsgConnectionAck})

	case MsgPing:
		s.write(Message{Type: MsgPong})

	case MsgPong:

	case MsgSubscribe:
		s.mu.Lock()
		acked := s.initSeen
		s.mu.Unlock()
		if !acked {
			s.close(CloseUnauthorized, "Unauthorized")
			return false
		}

		var payload SubscribePayload
		if msg.ID == "" || json.Unmarshal(msg.Payload, &payload) != nil || payload.Query == "" {
			s.close(CloseBadRequest, "Invalid subscribe message")
			return false
		}

		s.mu.Lock()
		if _, exists := s.ops[msg.ID]; exists {
			s.mu.Unlock()
			s.close(CloseSubscriberExists, fmt.Sprintf("Subscriber for %s already exists", msg.ID))
			return false
		}
		opCtx, cancel := context.WithCancel(s.ctx)
		s.ops[msg.ID] = cancel
		s.mu.Unlock()

		go s.execute(opCtx, msg.ID, payload)

	case MsgComplete:
		s.mu.Lock()
		cancel, ok := s.ops[msg.ID]
		delete(s.ops, msg.ID)
		s.mu.Unlock()
		if ok {
			cancel()
		}

	default:
		s.close(CloseBadRequest, fmt.Sprintf("Unexpected message type %q", msg.Type))
		return false
	}
	return true
}

// execute streams one operation's results as next messages, then complete.
// Results that arrive after the client completed the operation are dropped.
func (s *session) execute(ctx context.Context, id string, p SubscribePayload) {
	defer s.finish(id)

	responses, err := s.exec.Subscribe(ctx, p.Query, p.OperationName, p.Variables)
	if err != nil {
		s.writeError(id, []ErrorEntry{{Message: err.Error()}})
		return
	}

	first := true
	for resp := range responses {
		if ctx.Err() != nil {
			continue
		}

		// A lone errors-only first result is a request error, not an event.
		if r, ok := resp.(*graphql.Response); ok && first && r.Data == nil && len(r.Errors) > 0 {
			entries := make([]ErrorEntry, len(r.Errors))
			for i, qe := range r.Errors {
				entries[i] = ErrorEntry{Message: qe.Message}
			}
			s.writeError(id, entries)
			for range responses {
			}
			return
		}
		first = false

		payload, err := json.Marshal(resp)
		if err != nil {
			log.Printf("[WS] Failed to encode result for %s: %v", id, err)
			continue
		}
		s.write(Message{ID: id, Type: MsgNext, Payload: payload})
	}

	if ctx.Err() == nil {
		s.write(Message{ID: id, Type: MsgComplete})
	}
}

func (s *session) finish(id string) {
	s.mu.Lock()
	cancel, ok := s.ops[id]
	delete(s.ops, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *session) writeError(id string, entries []ErrorEntry) {
	payload, err := json.Marshal(entries)
	if err != nil {
		log.Printf("[WS] Failed to encode errors for %s: %v", id, err)
		return
	}
	s.write(Message{ID: id, Type: MsgError, Payload: payload})
}

func (s *session) write(msg Message) {
	select {
	case s.send <- msg:
	case <-s.ctx.Done():
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.shutdown()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				log.Printf("[WS] Write error: %v", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close sends a close frame with code and reason, then tears the session down.
func (s *session) close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	s.shutdown()
}

func (s *session) shutdown() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
	})
}
