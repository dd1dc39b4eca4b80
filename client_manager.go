// client_manager.go
package main

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event names carried in Envelope.Event.
const (
	eventAddUser           = "addUser"
	eventGetUsers          = "getUsers"
	eventSendMessage       = "sendMessage"
	eventGetMessage        = "getMessage"
	eventMessageSeen       = "messageSeen"
	eventUpdateLastMessage = "updateLastMessage"
	eventGetLastMessage    = "getLastMessage"
)

// ClientManager owns every open connection, the presence registry and the
// per-user message history. All of it is touched only from the start loop.
type ClientManager struct {
	clients  map[string]*Client
	presence []PresenceEntry
	history  map[string][]MessageRecord

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	done       chan struct{}

	policy       PresencePolicy
	historyLimit int
	newID        func() string
	log          *zap.Logger
}

// Client represents a single WebSocket connection.
type Client struct {
	id      string
	socket  *websocket.Conn
	send    chan []byte
	manager *ClientManager
}

// Envelope is the frame exchanged between server and UI in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type inboundFrame struct {
	client   *Client
	envelope Envelope
}

// PresenceEntry binds a user to the connection it announced from.
type PresenceEntry struct {
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`
}

// MessageRecord is one stored chat message. Seen only ever goes false -> true.
type MessageRecord struct {
	ID         string          `json:"id"`
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId"`
	Text       string          `json:"text"`
	Images     json.RawMessage `json:"images"`
	Seen       bool            `json:"seen"`
}

type sendMessagePayload struct {
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId"`
	Text       string          `json:"text"`
	Images     json.RawMessage `json:"images"`
}

type seenPayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	MessageID  string `json:"messageId"`
}

type lastMessagePayload struct {
	LastMessage   json.RawMessage `json:"lastMessage"`
	LastMessageID string          `json:"lastMessageId"`
}
