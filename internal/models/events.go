package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType enumerates the closed set of event-stream message kinds. The
// stream manager rejects anything outside this set at decode time.
type EventType string

const (
	// client -> server
	EventAuthenticate EventType = "authenticate"

	// server -> client
	EventNewMessage     EventType = "new_message"
	EventMessageEdited  EventType = "message_edited"
	EventMessageDeleted EventType = "message_deleted"
	EventMessagesRead   EventType = "messages_read"
	EventUserStatus     EventType = "user_status"
	EventActiveUsers    EventType = "active_users"

	// both directions
	EventTypingStart EventType = "typing_start"
	EventTypingStop  EventType = "typing_stop"
)

// Envelope is the wire frame for every event-stream message.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a payload for sending.
func NewEnvelope(event EventType, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// AuthenticatePayload binds the connection to a user after transport-level
// connect; the stream is not logically connected until it has been sent.
type AuthenticatePayload struct {
	UserID string `json:"userId"`
}

// TypingPayload carries typing signals. Outbound frames set ReceiverID;
// inbound frames set SenderID.
type TypingPayload struct {
	SenderID   string `json:"senderId,omitempty"`
	ReceiverID string `json:"receiverId,omitempty"`
}

type MessageEditedPayload struct {
	MessageID string    `json:"messageId"`
	NewText   string    `json:"newText"`
	EditedAt  time.Time `json:"editedAt"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
}

// MessagesReadPayload announces that ReaderID has read everything in the
// conversation identified by the sorted-and-concatenated participant ids.
type MessagesReadPayload struct {
	ConversationID string    `json:"conversationId"`
	ReaderID       string    `json:"readerId"`
	ReadAt         time.Time `json:"readAt"`
}

type UserStatusPayload struct {
	UserID     string         `json:"userId"`
	Status     PresenceStatus `json:"status"`
	LastActive time.Time      `json:"lastActive"`
}

// ActiveUsersPayload is the bulk presence snapshot pushed once per connect.
type ActiveUsersPayload struct {
	UserIDs []string `json:"userIds"`
}
