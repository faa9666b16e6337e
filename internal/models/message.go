package models

import (
	"encoding/json"
	"strings"
	"time"

	"shelfchat/internal/constants"
)

// Sender identifies who authored a message. A locally-created optimistic
// message carries the Local marker until the server confirms it and assigns
// the real sender identity; everything off the wire is a remote user id.
type Sender struct {
	Local  bool
	UserID string
}

func LocalSender() Sender {
	return Sender{Local: true}
}

func RemoteSender(userID string) Sender {
	return Sender{UserID: userID}
}

// Resolve returns the concrete user id for this sender.
func (s Sender) Resolve(currentUserID string) string {
	if s.Local {
		return currentUserID
	}
	return s.UserID
}

// IsSelf reports whether the sender is the authenticated local user.
func (s Sender) IsSelf(currentUserID string) bool {
	return s.Local || s.UserID == currentUserID
}

// On the wire a sender is a bare user id string. The Local marker never
// leaves the process; it marshals as an empty id.
func (s Sender) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.UserID)
}

func (s *Sender) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*s = Sender{UserID: id}
	return nil
}

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
)

// Attachment is a reference to media hosted elsewhere. Width/Height are
// optional; zero means unknown.
type Attachment struct {
	URL    string         `json:"url"`
	Kind   AttachmentKind `json:"kind"`
	Width  int            `json:"width,omitempty"`
	Height int            `json:"height,omitempty"`
}

// Message is one entry in a two-party conversation timeline.
type Message struct {
	ID          string      `json:"id"`
	Sender      Sender      `json:"sender"`
	ReceiverID  string      `json:"receiver"`
	Text        string      `json:"text,omitempty"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	Pending     bool        `json:"pending,omitempty"`
	IsEdited    bool        `json:"isEdited,omitempty"`
	EditedAt    *time.Time  `json:"editedAt,omitempty"`
	IsDeleted   bool        `json:"isDeleted,omitempty"`
	Read        bool        `json:"read,omitempty"`
	ReadAt      *time.Time  `json:"readAt,omitempty"`
	DeliveredAt *time.Time  `json:"deliveredAt,omitempty"`

	// LocalPreview is a client-side stand-in for the attachment while an
	// optimistic send is in flight, so the UI shows content before the
	// upload finishes. Display-only: the attachment itself keeps the
	// server reference, which inbound echoes are matched against. Never
	// serialized.
	LocalPreview string `json:"-"`
}

// IsTemp reports whether the message still carries a client-generated
// identity used only for optimistic reconciliation.
func (m Message) IsTemp() bool {
	return strings.HasPrefix(m.ID, constants.TempIDPrefix)
}

// AttachmentURL returns the attachment reference, or "" if none.
func (m Message) AttachmentURL() string {
	if m.Attachment == nil {
		return ""
	}
	return m.Attachment.URL
}

// DisplayAttachmentURL returns the reference the UI should render: the
// local preview while one is set, otherwise the attachment reference.
func (m Message) DisplayAttachmentURL() string {
	if m.LocalPreview != "" {
		return m.LocalPreview
	}
	return m.AttachmentURL()
}

// Label is the short inbox description of a message: its text, a media
// placeholder, or a deletion marker.
func (m Message) Label() string {
	switch {
	case m.IsDeleted:
		return "Message deleted"
	case m.Text != "":
		return m.Text
	case m.Attachment != nil && m.Attachment.Kind == AttachmentVideo:
		return "Video"
	case m.Attachment != nil:
		return "Photo"
	default:
		return ""
	}
}

// ConversationID derives the deterministic two-party conversation identity:
// the participant ids sorted lexicographically and concatenated. Inbound
// messages_read events match on exactly this derivation.
func ConversationID(a, b string) string {
	if a <= b {
		return a + b
	}
	return b + a
}
