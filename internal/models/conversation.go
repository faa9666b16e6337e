package models

import "time"

// UserRef is a resolvable reference to a platform user. The inbox can be
// rendered from the bare ID before the full profile arrives.
type UserRef struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// LastMessage is the inbox snapshot of a conversation's most recent entry.
type LastMessage struct {
	Label    string    `json:"label"`
	At       time.Time `json:"at"`
	SenderID string    `json:"senderId"`
}

// Conversation is one inbox summary entry. At most one exists per unique
// other-user; the summary list is ordered most-recently-active first.
type Conversation struct {
	ID          string       `json:"id"`
	OtherUser   UserRef      `json:"otherUser"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	UnreadCount int          `json:"unreadCount"`
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// Presence is the ephemeral connectivity state of a user. It is rebuilt on
// every (re)connect from the server snapshot and never persisted.
type Presence struct {
	Status     PresenceStatus `json:"status"`
	LastActive time.Time      `json:"lastActive"`
}
