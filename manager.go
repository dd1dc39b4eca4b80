// manager.go

// central event loop. The manager handles client registration, unregistration,
// and every inbound event, so presence and history never need a lock.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errUnknownEvent = errors.New("unknown event")
	errDecode       = errors.New("decode payload")
)

func newManager(cfg Config, log *zap.Logger) *ClientManager {
	return &ClientManager{
		clients:      make(map[string]*Client),
		history:      make(map[string][]MessageRecord),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		inbound:      make(chan inboundFrame),
		done:         make(chan struct{}),
		policy:       cfg.PresencePolicy,
		historyLimit: cfg.HistoryLimit,
		newID:        newMessageID,
		log:          log,
	}
}

// newMessageID returns a time-ordered id; the leading bits are the current
// millisecond, so ids sort in send order.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (manager *ClientManager) start(ctx context.Context) {
	defer func() {
		close(manager.done)
		for id, conn := range manager.clients {
			close(conn.send)
			delete(manager.clients, id)
		}
	}()

	for {
		select {
		case conn := <-manager.register:
			manager.clients[conn.id] = conn
			manager.log.Debug("client connected", zap.String("socketId", conn.id))

		case conn := <-manager.unregister:
			manager.disconnect(conn)

		case frame := <-manager.inbound:
			if err := manager.dispatch(frame.client, frame.envelope); err != nil {
				manager.log.Warn("dropped frame",
					zap.String("socketId", frame.client.id),
					zap.String("event", frame.envelope.Event),
					zap.Error(err),
				)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (manager *ClientManager) disconnect(conn *Client) {
	if _, ok := manager.clients[conn.id]; !ok {
		return
	}
	close(conn.send)
	delete(manager.clients, conn.id)
	manager.log.Debug("client disconnected", zap.String("socketId", conn.id))
	manager.remove(conn.id)
}

// dispatch runs one inbound event to completion.
func (manager *ClientManager) dispatch(conn *Client, env Envelope) error {
	switch env.Event {
	case eventAddUser:
		var userID string
		if err := decode(env.Data, &userID); err != nil {
			return err
		}
		manager.announce(userID, conn.id)

	case eventSendMessage:
		var p sendMessagePayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		manager.sendMessage(p.SenderID, p.ReceiverID, p.Text, p.Images)

	case eventMessageSeen:
		var p seenPayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		manager.markSeen(p.SenderID, p.ReceiverID, p.MessageID)

	case eventUpdateLastMessage:
		var p lastMessagePayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		manager.broadcastLastMessage(p.LastMessage, p.LastMessageID)

	default:
		return fmt.Errorf("%w: %q", errUnknownEvent, env.Event)
	}
	return nil
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", errDecode, err)
	}
	return nil
}

// emit pushes one event to one connection without waiting on it. A full
// queue drops the frame.
func (manager *ClientManager) emit(conn *Client, event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		manager.log.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	manager.push(conn, event, frame)
}

// broadcast pushes one event to every open connection.
func (manager *ClientManager) broadcast(event string, payload any) {
	frame, err := encode(event, payload)
	if err != nil {
		manager.log.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	for _, conn := range manager.clients {
		manager.push(conn, event, frame)
	}
}

func (manager *ClientManager) push(conn *Client, event string, frame []byte) {
	select {
	case conn.send <- frame:
	default:
		manager.log.Warn("send queue full, frame dropped",
			zap.String("socketId", conn.id),
			zap.String("event", event),
		)
	}
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
