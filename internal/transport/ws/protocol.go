// Package ws implements the graphql-transport-ws subprotocol over gorilla
// websockets: a server Handler that runs GraphQL subscriptions and a Client
// that consumes them.
package ws

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Subprotocol is the websocket subprotocol negotiated by both ends.
const Subprotocol = "graphql-transport-ws"

// Message types.
const (
	MsgConnectionInit = "connection_init"
	MsgConnectionAck  = "connection_ack"
	MsgPing           = "ping"
	MsgPong           = "pong"
	MsgSubscribe      = "subscribe"
	MsgNext           = "next"
	MsgError          = "error"
	MsgComplete       = "complete"
)

// Close codes defined by the subprotocol.
const (
	CloseBadRequest               = 4400
	CloseUnauthorized             = 4401
	CloseSubprotocolNotAcceptable = 4406
	CloseInitTimeout              = 4408
	CloseSubscriberExists         = 4409
	CloseTooManyInitRequests      = 4429
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 16
)

// initWait bounds the time between upgrade and connection_init (server) or
// between connection_init and connection_ack (client).
const initWait = 3 * time.Second

// Message is a single frame of the subprotocol.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload is the payload of a subscribe message.
type SubscribePayload struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// ErrorEntry is one GraphQL error as carried in error and next payloads.
type ErrorEntry struct {
	Message string `json:"message"`
}

// OperationError reports GraphQL errors returned for a single operation.
type OperationError struct {
	ID     string
	Errors []ErrorEntry
}

func (e *OperationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, entry := range e.Errors {
		msgs[i] = entry.Message
	}
	return fmt.Sprintf("operation %s failed: %s", e.ID, strings.Join(msgs, "; "))
}
