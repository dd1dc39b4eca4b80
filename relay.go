// relay.go
// Presence registry, message routing, seen acknowledgements and broadcasts.
// Every function here runs on the manager loop.

package main

import (
	"encoding/json"

	"go.uber.org/zap"
)

// announce binds userID to socketID. Under keep-first an existing binding
// wins; under replace the user moves to the new connection.
func (manager *ClientManager) announce(userID, socketID string) {
	i := manager.indexOf(userID)
	switch {
	case i < 0:
		manager.presence = append(manager.presence, PresenceEntry{UserID: userID, SocketID: socketID})
	case manager.policy == PolicyReplace && manager.presence[i].SocketID != socketID:
		manager.log.Info("presence rebound",
			zap.String("userId", userID),
			zap.String("from", manager.presence[i].SocketID),
			zap.String("to", socketID),
		)
		manager.presence[i].SocketID = socketID
	}
	manager.broadcastUsers()
}

// remove drops every entry bound to socketID.
func (manager *ClientManager) remove(socketID string) {
	kept := manager.presence[:0]
	for _, entry := range manager.presence {
		if entry.SocketID != socketID {
			kept = append(kept, entry)
		}
	}
	manager.presence = kept
	manager.broadcastUsers()
}

func (manager *ClientManager) lookup(userID string) (*Client, bool) {
	i := manager.indexOf(userID)
	if i < 0 {
		return nil, false
	}
	conn, ok := manager.clients[manager.presence[i].SocketID]
	return conn, ok
}

func (manager *ClientManager) indexOf(userID string) int {
	for i, entry := range manager.presence {
		if entry.UserID == userID {
			return i
		}
	}
	return -1
}

// sendMessage stores the message in both users' buckets and pushes it to
// the receiver when online. Offline receivers get nothing.
func (manager *ClientManager) sendMessage(senderID, receiverID, text string, images json.RawMessage) MessageRecord {
	record := MessageRecord{
		ID:         manager.newID(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Images:     images,
	}
	manager.appendHistory(receiverID, record)
	manager.appendHistory(senderID, record)

	if conn, ok := manager.lookup(receiverID); ok {
		manager.emit(conn, eventGetMessage, record)
	} else {
		manager.log.Debug("receiver offline", zap.String("receiverId", receiverID), zap.String("id", record.ID))
	}
	return record
}

func (manager *ClientManager) appendHistory(userID string, record MessageRecord) {
	bucket := append(manager.history[userID], record)
	if manager.historyLimit > 0 && len(bucket) > manager.historyLimit {
		// Trimmed in place; the next reallocating append drops the prefix.
		drop := len(bucket) - manager.historyLimit
		clear(bucket[:drop])
		bucket = bucket[drop:]
	}
	manager.history[userID] = bucket
}

// markSeen flips the record in the sender's bucket, mirrors it into the
// receiver's bucket and tells the sender. Repeats notify again.
func (manager *ClientManager) markSeen(senderID, receiverID, messageID string) {
	i := findRecord(manager.history[senderID], func(r MessageRecord) bool {
		return r.ReceiverID == receiverID && r.ID == messageID
	})
	if i < 0 {
		return
	}
	manager.history[senderID][i].Seen = true

	// A self-addressed message keeps both copies in one bucket; the mirror
	// is the copy other than i.
	bucket := manager.history[receiverID]
	for j := range bucket {
		if senderID == receiverID && j == i {
			continue
		}
		if bucket[j].SenderID == senderID && bucket[j].ID == messageID {
			bucket[j].Seen = true
			break
		}
	}

	if conn, ok := manager.lookup(senderID); ok {
		manager.emit(conn, eventMessageSeen, seenPayload{
			SenderID:   senderID,
			ReceiverID: receiverID,
			MessageID:  messageID,
		})
	}
}

func findRecord(bucket []MessageRecord, match func(MessageRecord) bool) int {
	for i := range bucket {
		if match(bucket[i]) {
			return i
		}
	}
	return -1
}

func (manager *ClientManager) broadcastUsers() {
	users := make([]PresenceEntry, len(manager.presence))
	copy(users, manager.presence)
	manager.broadcast(eventGetUsers, users)
}

func (manager *ClientManager) broadcastLastMessage(lastMessage json.RawMessage, lastMessageID string) {
	manager.broadcast(eventGetLastMessage, lastMessagePayload{
		LastMessage:   lastMessage,
		LastMessageID: lastMessageID,
	})
}
