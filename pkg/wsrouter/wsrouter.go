package wsrouter

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// ErrorFunc reports a failed message back to the client. Writes to the
// connection must go through the same writer the event push path uses, so the
// router never writes to the connection itself.
type ErrorFunc func(err error)

// WSRouter dispatches typed JSON messages read from a websocket connection to
// registered handlers.
type WSRouter struct {
	routes  map[string]HandlerFunc
	onError ErrorFunc
}

func New(onError ErrorFunc) *WSRouter {
	return &WSRouter{
		routes:  make(map[string]HandlerFunc),
		onError: onError,
	}
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// ServeConn reads messages from the connection until it fails or the context
// is cancelled, routing each message to its handler. Handler errors are
// passed to the error callback; they do not end the loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		handler, exists := r.routes[msg.Type]
		if !exists {
			r.report(ErrUnknownMessageType)
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		if err := handler(msgCtx, msg.Payload); err != nil {
			r.report(err)
		}
	}
}

func (r *WSRouter) report(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}
