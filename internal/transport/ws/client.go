package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned when subscribing on a closed Client.
var ErrClientClosed = errors.New("ws: client closed")

// Client is a graphql-transport-ws client multiplexing subscriptions over a
// single connection. Callbacks run on the client's read goroutine in
// arrival order.
type Client struct {
	conn   *websocket.Conn
	send   chan Message
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	subs map[string]*Subscription

	closeOnce sync.Once
}

// Dial connects to url, negotiates the subprotocol and completes the
// connection_init handshake.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{
		Subprotocols:     []string{Subprotocol},
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	success := false
	defer func() {
		if !success {
			conn.Close()
		}
	}()

	if conn.Subprotocol() != Subprotocol {
		return nil, fmt.Errorf("server at %s did not accept subprotocol %s", url, Subprotocol)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(Message{Type: MsgConnectionInit}); err != nil {
		return nil, fmt.Errorf("failed to send connection_init: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(initWait))
	var ack Message
	if err := conn.ReadJSON(&ack); err != nil {
		return nil, fmt.Errorf("failed to read connection_ack: %w", err)
	}
	if ack.Type != MsgConnectionAck {
		return nil, fmt.Errorf("expected %s, got %s", MsgConnectionAck, ack.Type)
	}

	success = true

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		ctx:    cctx,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[string]*Subscription),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

// Subscribe starts an operation. onNext receives the data object of each
// result; onError receives GraphQL errors and transport failures.
func (c *Client) Subscribe(ctx context.Context, query string, variables map[string]interface{}, onNext func(json.RawMessage), onError func(error)) (*Subscription, error) {
	if c.ctx.Err() != nil {
		return nil, ErrClientClosed
	}

	payload, err := json.Marshal(SubscribePayload{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to encode subscribe payload: %w", err)
	}

	sub := &Subscription{
		id:      uuid.NewString(),
		client:  c,
		onNext:  onNext,
		onError: onError,
	}

	c.mu.Lock()
	c.subs[sub.id] = sub
	c.mu.Unlock()

	select {
	case c.send <- Message{ID: sub.id, Type: MsgSubscribe, Payload: payload}:
		return sub, nil
	case <-c.ctx.Done():
		c.remove(sub.id)
		return nil, ErrClientClosed
	case <-ctx.Done():
		c.remove(sub.id)
		return nil, ctx.Err()
	}
}

// Close ends every subscription and closes the connection.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.conn.Close()
	})
	<-c.done
	return nil
}

func (c *Client) lookup(id string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[id]
}

func (c *Client) remove(id string) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *Client) readPump() {
	defer close(c.done)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPingHandler(func(data string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[WS] Ignoring undecodable message: %v", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	switch msg.Type {
	case MsgNext:
		sub := c.lookup(msg.ID)
		if sub == nil {
			return
		}
		var result struct {
			Data   json.RawMessage `json:"data"`
			Errors []ErrorEntry    `json:"errors"`
		}
		if err := json.Unmarshal(msg.Payload, &result); err != nil {
			sub.deliverError(fmt.Errorf("undecodable result for %s: %w", msg.ID, err))
			return
		}
		if len(result.Errors) > 0 {
			sub.deliverError(&OperationError{ID: msg.ID, Errors: result.Errors})
		}
		if len(result.Data) > 0 && string(result.Data) != "null" {
			sub.deliverNext(result.Data)
		}

	case MsgError:
		sub := c.lookup(msg.ID)
		if sub == nil {
			return
		}
		c.remove(msg.ID)
		var entries []ErrorEntry
		if err := json.Unmarshal(msg.Payload, &entries); err != nil {
			entries = []ErrorEntry{{Message: string(msg.Payload)}}
		}
		sub.deliverError(&OperationError{ID: msg.ID, Errors: entries})

	case MsgComplete:
		c.remove(msg.ID)

	case MsgPing:
		select {
		case c.send <- Message{Type: MsgPong}:
		case <-c.ctx.Done():
		}
	}
}

// fail reports a lost connection to every live subscription unless the
// client is closing on purpose.
func (c *Client) fail(err error) {
	closing := c.ctx.Err() != nil
	c.cancel()
	c.conn.Close()

	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.subs = make(map[string]*Subscription)
	c.mu.Unlock()

	if closing {
		return
	}
	for _, sub := range subs {
		sub.deliverError(fmt.Errorf("connection lost: %w", err))
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("[WS] Write error: %v", err)
				c.conn.Close()
				return
			}
		}
	}
}

// Subscription is one operation on a Client.
type Subscription struct {
	id       string
	client   *Client
	onNext   func(json.RawMessage)
	onError  func(error)
	released atomic.Bool
	once     sync.Once
}

// Release completes the operation on the server. Callbacks are not invoked
// once Release has returned, except one already in flight.
// Safe to call multiple times.
func (s *Subscription) Release() {
	s.once.Do(func() {
		s.released.Store(true)
		s.client.remove(s.id)
		select {
		case s.client.send <- Message{ID: s.id, Type: MsgComplete}:
		case <-s.client.ctx.Done():
		}
	})
}

func (s *Subscription) deliverNext(data json.RawMessage) {
	if s.released.Load() || s.onNext == nil {
		return
	}
	s.onNext(data)
}

func (s *Subscription) deliverError(err error) {
	if s.released.Load() || s.onError == nil {
		return
	}
	s.onError(err)
}
