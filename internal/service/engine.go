package service

import (
	"context"
	"net/http"
	"time"

	"shelfchat/internal/constants"
	"shelfchat/internal/grouping"
	"shelfchat/internal/metrics"
	"shelfchat/internal/models"
	"shelfchat/internal/presence"
	"shelfchat/internal/retry"
	"shelfchat/internal/store"
	"shelfchat/internal/stream"
	"shelfchat/pkg/api"

	"github.com/sirupsen/logrus"
)

// Engine is the composition root: it wires the API client, the message
// store, the presence tracker, and the event-stream manager together and
// routes stream events into the right state holder. Callers drive the chat
// session entirely through the Engine.
type Engine struct {
	cfg      models.Config
	logger   *logrus.Logger
	client   *api.Client
	store    *store.Store
	presence *presence.Tracker
	stream   *stream.Manager
}

func NewEngine(cfg models.Config, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}

	timeout := cfg.API.TimeoutSec
	if timeout <= 0 {
		timeout = constants.DefaultAPITimeoutSec
	}
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Token, &http.Client{
		Timeout: time.Duration(timeout) * time.Second,
	}, logger)

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		client: client,
		store:  store.New(client, cfg.UserID, logger),
	}

	e.stream = stream.NewManager(cfg.Stream, e, logger)
	e.stream.OnReconnect = e.onReconnect
	e.presence = presence.New(presence.Config{}, e.stream, logger)

	return e
}

// Connect loads the initial conversation index and starts the event-stream
// session. The bootstrap fetch retries with backoff but stays best-effort:
// the stream reconnect path refreshes the index again once connected.
func (e *Engine) Connect(ctx context.Context) error {
	policy := retry.DefaultPolicy()
	err := policy.Do(ctx, constants.DefaultBootstrapFetchRetries, func() error {
		return e.store.FetchConversations(ctx)
	})
	if err != nil {
		e.logger.WithError(err).Warn("Initial conversation fetch failed")
	}
	return e.stream.Connect(ctx, e.cfg.UserID)
}

// Close ends the session. Presence and typing state do not outlive an
// intentional disconnect.
func (e *Engine) Close() {
	e.stream.Disconnect()
	e.presence.Reset()
}

// IsConnected reports the logical stream state.
func (e *Engine) IsConnected() bool {
	return e.stream.IsConnected()
}

// onReconnect refreshes everything that may have changed while the stream
// was down: the conversation index always, the open timeline if there is
// one.
func (e *Engine) onReconnect() {
	metrics.IncrementCounter("stream_reconnects", nil)
	ctx := context.Background()

	if err := e.store.FetchConversations(ctx); err != nil {
		e.logger.WithError(err).Warn("Conversation refresh after reconnect failed")
	}

	if peerID := e.store.ActivePeer(); peerID != "" {
		if _, err := e.store.FetchMessages(ctx, peerID, 1); err != nil {
			e.logger.WithError(err).WithField("peer", peerID).Warn("Timeline refresh after reconnect failed")
		}
	}
}

// --- conversation lifecycle ---

// OpenConversation marks the peer's conversation active, loads its first
// page, and marks it read.
func (e *Engine) OpenConversation(ctx context.Context, peerID string) error {
	e.store.SetActiveConversation(peerID)

	if _, err := e.store.FetchMessages(ctx, peerID, 1); err != nil {
		return err
	}
	if err := e.store.MarkAsRead(ctx, peerID); err != nil {
		e.logger.WithError(err).WithField("peer", peerID).Warn("Mark-as-read failed")
	}
	return nil
}

// CloseConversation deactivates the open conversation and cancels any
// in-flight typing burst toward its peer.
func (e *Engine) CloseConversation(ctx context.Context) {
	if peerID := e.store.ActivePeer(); peerID != "" {
		e.presence.InputChanged(ctx, peerID, "")
	}
	e.store.ClearActiveConversation()
}

// LoadOlderMessages fetches the next page of the peer's history. It
// reports whether more pages remain.
func (e *Engine) LoadOlderMessages(ctx context.Context, peerID string, page int) (bool, error) {
	return e.store.FetchMessages(ctx, peerID, page)
}

// --- message operations, delegated to the store ---

func (e *Engine) SendMessage(ctx context.Context, peerID, text string, attachment *models.Attachment, localPreview string) (*models.Message, error) {
	return e.store.SendMessage(ctx, peerID, text, attachment, localPreview)
}

func (e *Engine) EditMessage(ctx context.Context, messageID, newText string) error {
	return e.store.EditMessage(ctx, messageID, newText)
}

func (e *Engine) DeleteMessageForMe(ctx context.Context, messageID string) error {
	return e.store.DeleteMessageForMe(ctx, messageID)
}

func (e *Engine) DeleteMessageForEveryone(ctx context.Context, messageID string) error {
	return e.store.DeleteMessageForEveryone(ctx, messageID)
}

func (e *Engine) ClearChatHistory(ctx context.Context, peerID string) error {
	return e.store.ClearChatHistory(ctx, peerID)
}

func (e *Engine) MarkAsRead(ctx context.Context, peerID string) error {
	return e.store.MarkAsRead(ctx, peerID)
}

// --- read-side views ---

func (e *Engine) Conversations() []models.Conversation {
	return e.store.Conversations()
}

func (e *Engine) UnreadTotal() int {
	return e.store.UnreadTotal()
}

// Timeline projects the peer's messages into render-ready entries with
// date separators, avatar flags, and run positions.
func (e *Engine) Timeline(peerID string) []grouping.Entry {
	return grouping.Project(e.store.Messages(peerID), e.cfg.UserID, time.Now())
}

// DisplayStatus derives the peer's user-visible presence line.
func (e *Engine) DisplayStatus(userID string) string {
	return e.presence.DisplayStatus(userID)
}

// IsPeerTyping reports whether the peer is currently typing.
func (e *Engine) IsPeerTyping(userID string) bool {
	return e.presence.IsTyping(userID)
}

// InputChanged feeds local text-input changes into the outbound typing
// debounce for the peer.
func (e *Engine) InputChanged(ctx context.Context, peerID, text string) {
	e.presence.InputChanged(ctx, peerID, text)
}

// --- stream.Handler ---

func (e *Engine) HandleNewMessage(msg models.Message) {
	e.store.AddReceivedMessage(msg)
}

func (e *Engine) HandleMessageEdited(p models.MessageEditedPayload) {
	e.store.ApplyEdited(p)
}

func (e *Engine) HandleMessageDeleted(p models.MessageDeletedPayload) {
	e.store.ApplyDeleted(p)
}

func (e *Engine) HandleMessagesRead(p models.MessagesReadPayload) {
	e.store.ApplyRead(p)
}

func (e *Engine) HandleUserStatus(p models.UserStatusPayload) {
	e.presence.SetStatus(p.UserID, p.Status, p.LastActive)
}

func (e *Engine) HandleActiveUsers(p models.ActiveUsersPayload) {
	e.presence.ApplyActiveUsers(p.UserIDs)
}

func (e *Engine) HandleTyping(userID string, typing bool) {
	e.presence.SetTyping(userID, typing)
}

// Snapshot is the status-endpoint view of the session.
type Snapshot struct {
	UserID        string `json:"userId"`
	Connected     bool   `json:"connected"`
	Conversations int    `json:"conversations"`
	UnreadTotal   int    `json:"unreadTotal"`
	ActivePeer    string `json:"activePeer,omitempty"`
}

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		UserID:        e.cfg.UserID,
		Connected:     e.stream.IsConnected(),
		Conversations: len(e.store.Conversations()),
		UnreadTotal:   e.store.UnreadTotal(),
		ActivePeer:    e.store.ActivePeer(),
	}
}
