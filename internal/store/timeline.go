package store

import (
	"context"

	apperrors "shelfchat/internal/errors"
	"shelfchat/internal/metrics"
	"shelfchat/internal/models"
	"shelfchat/pkg/api"

	"github.com/sirupsen/logrus"
)

// SendMessage optimistically prepends a temporary entry for peer and issues
// the send request. On success the temporary entry is replaced in place by
// the server-confirmed message, unless the stream echo already delivered it,
// in which case the temporary entry is dropped. On failure the temporary
// entry is removed and the error is returned for direct display.
//
// The attachment reference is what the server receives and is kept on the
// temporary entry so an inbound echo content-matches it; localPreview, when
// set, rides along as a display-only stand-in until confirmation so the UI
// has content before the upload finishes. The conversation summary is
// bumped before confirmation and intentionally not rolled back on failure.
func (s *Store) SendMessage(ctx context.Context, peerID, text string, attachment *models.Attachment, localPreview string) (*models.Message, error) {
	if peerID == "" {
		return nil, apperrors.NewValidationError("peer", "missing peer id")
	}
	if text == "" && attachment == nil {
		return nil, apperrors.NewValidationError("message", "message has no content")
	}

	temp := models.Message{
		ID:         s.newTempID(),
		Sender:     models.LocalSender(),
		ReceiverID: peerID,
		Text:       text,
		CreatedAt:  s.now(),
		Pending:    true,
	}
	if attachment != nil {
		att := *attachment
		temp.Attachment = &att
		temp.LocalPreview = localPreview
	}

	s.mu.Lock()
	s.prependLocked(peerID, temp)
	s.touchConversationLocked(peerID, temp, false)
	s.mu.Unlock()

	confirmed, err := s.client.SendMessage(ctx, peerID, api.SendMessageRequest{
		Text:       text,
		Attachment: attachment,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.removeLocked(peerID, temp.ID)
		metrics.IncrementCounter("messages_send_failed", nil)
		s.logger.WithFields(logrus.Fields{
			"peer": peerID,
		}).WithError(err).Warn("Send failed, optimistic entry rolled back")
		return nil, err
	}

	if s.indexOfLocked(peerID, confirmed.ID) >= 0 {
		// The stream echo resolved this send first; the confirmed entry is
		// already in the timeline and the temporary one just has to go.
		s.removeLocked(peerID, temp.ID)
		metrics.IncrementCounter("echoes_collapsed", nil)
	} else {
		s.replaceLocked(peerID, temp.ID, *confirmed)
	}
	s.dedupeLocked(peerID)
	metrics.IncrementCounter("messages_sent", nil)

	result := *confirmed
	return &result, nil
}

// FetchMessages loads one page of the peer's timeline. Page 1 replaces the
// sequence wholesale; later pages append. Both paths re-deduplicate.
// Returns whether more pages exist.
func (s *Store) FetchMessages(ctx context.Context, peerID string, page int) (bool, error) {
	if peerID == "" {
		return false, apperrors.NewValidationError("peer", "missing peer id")
	}

	resp, err := s.client.GetMessages(ctx, peerID, page)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if page <= 1 {
		s.timelines[peerID] = append([]models.Message(nil), resp.Messages...)
	} else {
		s.timelines[peerID] = append(s.timelines[peerID], resp.Messages...)
	}
	s.dedupeLocked(peerID)

	return resp.HasMore(), nil
}

// AddReceivedMessage reconciles an inbound stream push into the timeline.
// The conversation partner is whichever side is not the local user. An echo
// of the local user's own optimistic send (matched by content against a
// pending entry) replaces that entry in place; anything else is prepended.
// Unread counters increment only for non-self messages in conversations
// that are not currently active.
func (s *Store) AddReceivedMessage(msg models.Message) {
	senderID := msg.Sender.Resolve(s.currentUserID)
	fromSelf := senderID == s.currentUserID

	peerID := senderID
	if fromSelf {
		peerID = msg.ReceiverID
	}
	if peerID == "" {
		s.logger.WithField("message", msg.ID).Warn("Dropping stream message with no resolvable peer")
		return
	}

	msg.Pending = false

	s.mu.Lock()
	defer s.mu.Unlock()

	pendingIdx := -1
	if fromSelf {
		pendingIdx = s.matchPendingLocked(peerID, msg)
	}
	switch {
	case pendingIdx >= 0:
		s.timelines[peerID][pendingIdx] = msg
		metrics.IncrementCounter("echoes_collapsed", nil)
	case s.indexOfLocked(peerID, msg.ID) >= 0:
		// Duplicate delivery after a reconnect; position is preserved.
	default:
		s.prependLocked(peerID, msg)
	}
	s.dedupeLocked(peerID)

	increment := !fromSelf && s.activePeer != peerID
	s.touchConversationLocked(peerID, msg, increment)
	if increment {
		s.unreadTotal++
	}
	metrics.IncrementCounter("messages_received", nil)
}

// EditMessage optimistically rewrites a message's text, then confirms with
// the server. The prior state is restored if the request fails.
func (s *Store) EditMessage(ctx context.Context, messageID, newText string) error {
	if newText == "" {
		return apperrors.NewValidationError("text", "edited text is empty")
	}

	s.mu.Lock()
	peerID, idx := s.findLocked(messageID)
	if idx < 0 {
		s.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeNotFound, "message not found").
			WithUserMessage("Message no longer exists")
	}
	prev := s.timelines[peerID][idx]

	edited := prev
	edited.Text = newText
	edited.IsEdited = true
	at := s.now()
	edited.EditedAt = &at
	s.timelines[peerID][idx] = edited
	s.mu.Unlock()

	if err := s.client.EditMessage(ctx, messageID, newText); err != nil {
		s.restoreSnapshot(peerID, messageID, prev)
		return err
	}
	return nil
}

// DeleteMessageForMe removes a message from the local timeline only, then
// confirms with the server. The entry is reinserted if the request fails.
func (s *Store) DeleteMessageForMe(ctx context.Context, messageID string) error {
	s.mu.Lock()
	peerID, idx := s.findLocked(messageID)
	if idx < 0 {
		s.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeNotFound, "message not found").
			WithUserMessage("Message no longer exists")
	}
	prev := s.timelines[peerID][idx]
	s.timelines[peerID] = append(s.timelines[peerID][:idx], s.timelines[peerID][idx+1:]...)
	s.mu.Unlock()

	if err := s.client.DeleteForMe(ctx, messageID); err != nil {
		s.mu.Lock()
		tl := s.timelines[peerID]
		if idx > len(tl) {
			idx = len(tl)
		}
		s.timelines[peerID] = append(tl[:idx], append([]models.Message{prev}, tl[idx:]...)...)
		s.dedupeLocked(peerID)
		s.mu.Unlock()
		return err
	}
	return nil
}

// DeleteMessageForEveryone replaces the message content with a tombstone,
// then confirms with the server; the peer receives a mirrored
// message_deleted stream event. The prior state is restored on failure.
func (s *Store) DeleteMessageForEveryone(ctx context.Context, messageID string) error {
	s.mu.Lock()
	peerID, idx := s.findLocked(messageID)
	if idx < 0 {
		s.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeNotFound, "message not found").
			WithUserMessage("Message no longer exists")
	}
	prev := s.timelines[peerID][idx]
	s.timelines[peerID][idx] = tombstone(prev)
	s.mu.Unlock()

	if err := s.client.DeleteForEveryone(ctx, messageID); err != nil {
		s.restoreSnapshot(peerID, messageID, prev)
		return err
	}
	return nil
}

// ApplyEdited reconciles an inbound message_edited event.
func (s *Store) ApplyEdited(p models.MessageEditedPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peerID, idx := s.findLocked(p.MessageID)
	if idx < 0 {
		return
	}

	msg := s.timelines[peerID][idx]
	msg.Text = p.NewText
	msg.IsEdited = true
	at := p.EditedAt
	msg.EditedAt = &at
	s.timelines[peerID][idx] = msg
}

// ApplyDeleted reconciles an inbound message_deleted event. Idempotent
// against a tombstone already applied locally by DeleteMessageForEveryone.
func (s *Store) ApplyDeleted(p models.MessageDeletedPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	peerID, idx := s.findLocked(p.MessageID)
	if idx < 0 || s.timelines[peerID][idx].IsDeleted {
		return
	}
	s.timelines[peerID][idx] = tombstone(s.timelines[peerID][idx])
}

// ApplyRead reconciles an inbound messages_read event: the other party has
// read my messages. Only messages sent by the local user in the matching
// conversation flip to read; the peer's own messages are untouched.
func (s *Store) ApplyRead(p models.MessagesReadPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for peerID, tl := range s.timelines {
		if models.ConversationID(s.currentUserID, peerID) != p.ConversationID {
			continue
		}
		for i := range tl {
			if tl[i].Sender.IsSelf(s.currentUserID) && !tl[i].Read {
				tl[i].Read = true
				at := p.ReadAt
				tl[i].ReadAt = &at
			}
		}
	}
}

// MarkAsRead zeroes the conversation's unread counter, informs the server,
// and refreshes the global unread count from server truth. The refresh is
// best-effort; its failure does not fail the operation.
func (s *Store) MarkAsRead(ctx context.Context, peerID string) error {
	if peerID == "" {
		return apperrors.NewValidationError("peer", "missing peer id")
	}

	s.mu.Lock()
	if idx := s.findConversationLocked(peerID); idx >= 0 {
		s.unreadTotal -= s.conversations[idx].UnreadCount
		if s.unreadTotal < 0 {
			s.unreadTotal = 0
		}
		s.conversations[idx].UnreadCount = 0
	}
	s.mu.Unlock()

	if err := s.client.MarkRead(ctx, peerID); err != nil {
		return err
	}

	count, err := s.client.GetUnreadCount(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Unread count refresh failed")
		return nil
	}

	s.mu.Lock()
	s.unreadTotal = count
	s.mu.Unlock()
	return nil
}

// ClearChatHistory empties the local timeline for peer, then requests
// server-side deletion. Device-scoped: this is not an unsend. The timeline
// is restored if the request fails.
func (s *Store) ClearChatHistory(ctx context.Context, peerID string) error {
	if peerID == "" {
		return apperrors.NewValidationError("peer", "missing peer id")
	}

	s.mu.Lock()
	prev := s.timelines[peerID]
	s.timelines[peerID] = nil
	s.mu.Unlock()

	if err := s.client.ClearChat(ctx, peerID); err != nil {
		s.mu.Lock()
		s.timelines[peerID] = prev
		s.mu.Unlock()
		return err
	}
	return nil
}

func tombstone(msg models.Message) models.Message {
	msg.IsDeleted = true
	msg.Text = ""
	msg.Attachment = nil
	return msg
}

// --- timeline internals, all called with s.mu held ---

func (s *Store) prependLocked(peerID string, msg models.Message) {
	s.timelines[peerID] = append([]models.Message{msg}, s.timelines[peerID]...)
}

func (s *Store) indexOfLocked(peerID, messageID string) int {
	for i, m := range s.timelines[peerID] {
		if m.ID == messageID {
			return i
		}
	}
	return -1
}

// findLocked locates a message across all timelines.
func (s *Store) findLocked(messageID string) (string, int) {
	for peerID := range s.timelines {
		if idx := s.indexOfLocked(peerID, messageID); idx >= 0 {
			return peerID, idx
		}
	}
	return "", -1
}

func (s *Store) removeLocked(peerID, messageID string) {
	if idx := s.indexOfLocked(peerID, messageID); idx >= 0 {
		s.timelines[peerID] = append(s.timelines[peerID][:idx], s.timelines[peerID][idx+1:]...)
	}
}

// replaceLocked swaps the entry with oldID for replacement, keeping the
// position the old entry occupied.
func (s *Store) replaceLocked(peerID, oldID string, replacement models.Message) {
	if idx := s.indexOfLocked(peerID, oldID); idx >= 0 {
		s.timelines[peerID][idx] = replacement
	}
}

// matchPendingLocked finds a pending optimistic entry matching the inbound
// message by content: same text and same attachment reference.
func (s *Store) matchPendingLocked(peerID string, msg models.Message) int {
	for i, m := range s.timelines[peerID] {
		if m.Pending && m.Text == msg.Text && m.AttachmentURL() == msg.AttachmentURL() {
			return i
		}
	}
	return -1
}

// dedupeLocked collapses the timeline by identity, keeping the first
// (newest-positioned) occurrence.
func (s *Store) dedupeLocked(peerID string) {
	tl := s.timelines[peerID]
	seen := make(map[string]bool, len(tl))
	out := tl[:0]
	for _, m := range tl {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	s.timelines[peerID] = out
}

// restoreSnapshot puts a snapshot back in place of an optimistic mutation
// that failed to confirm.
func (s *Store) restoreSnapshot(peerID, messageID string, prev models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOfLocked(peerID, messageID); idx >= 0 {
		s.timelines[peerID][idx] = prev
	}
}
