package store

import (
	"context"
	"sync"
	"time"

	"shelfchat/internal/constants"
	"shelfchat/internal/models"
	"shelfchat/pkg/api"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client is the request/response surface the store mutates against.
// Satisfied by *api.Client.
type Client interface {
	GetConversations(ctx context.Context) ([]models.Conversation, error)
	GetMessages(ctx context.Context, peerID string, page int) (api.MessagePage, error)
	SendMessage(ctx context.Context, peerID string, req api.SendMessageRequest) (*models.Message, error)
	MarkRead(ctx context.Context, peerID string) error
	EditMessage(ctx context.Context, messageID, text string) error
	DeleteForMe(ctx context.Context, messageID string) error
	DeleteForEveryone(ctx context.Context, messageID string) error
	ClearChat(ctx context.Context, peerID string) error
	GetUnreadCount(ctx context.Context) (int, error)
}

// Store owns the per-peer message timelines and the conversation index.
// Timelines are newest-first and never contain two entries with the same
// identity; every mutation runs through an identity-keyed collapse. Local
// sends are applied optimistically and reconciled against both the HTTP
// response and the stream echo, whichever lands first.
type Store struct {
	mu            sync.Mutex
	logger        *logrus.Logger
	client        Client
	currentUserID string

	timelines     map[string][]models.Message
	conversations []models.Conversation
	unreadTotal   int
	activePeer    string

	now       func() time.Time
	newTempID func() string
}

func New(client Client, currentUserID string, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}

	return &Store{
		logger:        logger,
		client:        client,
		currentUserID: currentUserID,
		timelines:     make(map[string][]models.Message),
		now:           time.Now,
		newTempID: func() string {
			return constants.TempIDPrefix + uuid.NewString()
		},
	}
}

// Messages returns a copy of the peer's timeline, newest-first.
func (s *Store) Messages(peerID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.timelines[peerID]...)
}

// Conversations returns a copy of the inbox summary list,
// most-recently-active first.
func (s *Store) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Conversation(nil), s.conversations...)
}

// UnreadTotal returns the global unread message count.
func (s *Store) UnreadTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadTotal
}

// ActivePeer returns the peer whose conversation is currently on-screen,
// or "" if none.
func (s *Store) ActivePeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePeer
}

// SetActiveConversation marks the conversation with peer as on-screen,
// suppressing unread increments for it. At most one conversation is active
// at a time; the previous one is implicitly deactivated.
func (s *Store) SetActiveConversation(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePeer = peerID
}

// ClearActiveConversation must be called on navigation-away so unread
// counts for a no-longer-visible conversation are not suppressed.
func (s *Store) ClearActiveConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePeer = ""
}

// FetchConversations replaces the conversation index from the server.
func (s *Store) FetchConversations(ctx context.Context) error {
	convs, err := s.client.GetConversations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// One summary entry per unique other-user, first occurrence wins.
	seen := make(map[string]bool, len(convs))
	deduped := convs[:0]
	total := 0
	for _, conv := range convs {
		if seen[conv.OtherUser.ID] {
			continue
		}
		seen[conv.OtherUser.ID] = true
		deduped = append(deduped, conv)
		total += conv.UnreadCount
	}

	s.conversations = append([]models.Conversation(nil), deduped...)
	s.unreadTotal = total
	return nil
}

// --- conversation index internals ---

func (s *Store) findConversationLocked(peerID string) int {
	for i := range s.conversations {
		if s.conversations[i].OtherUser.ID == peerID {
			return i
		}
	}
	return -1
}

// touchConversationLocked updates or lazily creates the summary entry for
// peer, sets its last-message snapshot, moves it to the front, and bumps
// the unread counter when asked.
func (s *Store) touchConversationLocked(peerID string, msg models.Message, incrementUnread bool) {
	var conv models.Conversation

	if idx := s.findConversationLocked(peerID); idx >= 0 {
		conv = s.conversations[idx]
		s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	} else {
		conv = models.Conversation{
			ID:        models.ConversationID(s.currentUserID, peerID),
			OtherUser: models.UserRef{ID: peerID},
		}
	}

	conv.LastMessage = &models.LastMessage{
		Label:    msg.Label(),
		At:       msg.CreatedAt,
		SenderID: msg.Sender.Resolve(s.currentUserID),
	}
	if incrementUnread {
		conv.UnreadCount++
	}

	s.conversations = append([]models.Conversation{conv}, s.conversations...)
}
