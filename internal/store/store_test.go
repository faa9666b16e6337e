package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "shelfchat/internal/errors"
	"shelfchat/internal/models"
	"shelfchat/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selfID = "u1"

type mockClient struct {
	mu sync.Mutex

	sendResp   *models.Message
	sendErr    error
	beforeSend func() // runs while the send request is "in flight"
	sendCalls  int

	messagesResp api.MessagePage
	messagesErr  error

	convs    []models.Conversation
	convsErr error

	markReadErr  error
	editErr      error
	deleteMeErr  error
	deleteAllErr error
	clearErr     error

	unreadCount int
	unreadErr   error
}

func (m *mockClient) GetConversations(ctx context.Context) ([]models.Conversation, error) {
	return m.convs, m.convsErr
}

func (m *mockClient) GetMessages(ctx context.Context, peerID string, page int) (api.MessagePage, error) {
	return m.messagesResp, m.messagesErr
}

func (m *mockClient) SendMessage(ctx context.Context, peerID string, req api.SendMessageRequest) (*models.Message, error) {
	m.mu.Lock()
	m.sendCalls++
	hook := m.beforeSend
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return m.sendResp, m.sendErr
}

func (m *mockClient) MarkRead(ctx context.Context, peerID string) error   { return m.markReadErr }
func (m *mockClient) EditMessage(ctx context.Context, id, t string) error { return m.editErr }
func (m *mockClient) DeleteForMe(ctx context.Context, id string) error    { return m.deleteMeErr }
func (m *mockClient) DeleteForEveryone(ctx context.Context, id string) error {
	return m.deleteAllErr
}
func (m *mockClient) ClearChat(ctx context.Context, peerID string) error { return m.clearErr }
func (m *mockClient) GetUnreadCount(ctx context.Context) (int, error) {
	return m.unreadCount, m.unreadErr
}

func newTestStore(client *mockClient) *Store {
	s := New(client, selfID, nil)
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	tempSeq := 0
	s.newTempID = func() string {
		mu.Lock()
		defer mu.Unlock()
		tempSeq++
		return fmt.Sprintf("temp-%d", tempSeq)
	}
	return s
}

func peerMessage(id, peerID, text string, at time.Time) models.Message {
	return models.Message{
		ID:         id,
		Sender:     models.RemoteSender(peerID),
		ReceiverID: selfID,
		Text:       text,
		CreatedAt:  at,
	}
}

func confirmed(id, peerID, text string) *models.Message {
	return &models.Message{
		ID:         id,
		Sender:     models.RemoteSender(selfID),
		ReceiverID: peerID,
		Text:       text,
		CreatedAt:  time.Date(2026, 8, 20, 12, 0, 30, 0, time.UTC),
	}
}

func assertNoDuplicateIDs(t *testing.T, msgs []models.Message) {
	t.Helper()
	seen := make(map[string]bool)
	for _, m := range msgs {
		assert.Falsef(t, seen[m.ID], "duplicate message id %s", m.ID)
		seen[m.ID] = true
	}
}

func TestSendMessage_OptimisticRoundTrip(t *testing.T) {
	client := &mockClient{sendResp: confirmed("srv-1", "u2", "hi")}
	s := newTestStore(client)

	msg, err := s.SendMessage(context.Background(), "u2", "hi", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)

	tl := s.Messages("u2")
	require.Len(t, tl, 1)
	assert.Equal(t, "srv-1", tl[0].ID)
	assert.False(t, tl[0].Pending)
	assert.False(t, tl[0].IsTemp())
}

func TestSendMessage_TempEntryVisibleWhileInFlight(t *testing.T) {
	client := &mockClient{sendResp: confirmed("srv-1", "u2", "hi")}
	s := newTestStore(client)

	var inFlight []models.Message
	client.beforeSend = func() {
		inFlight = s.Messages("u2")
	}

	_, err := s.SendMessage(context.Background(), "u2", "hi", nil, "")
	require.NoError(t, err)

	require.Len(t, inFlight, 1)
	assert.True(t, inFlight[0].Pending)
	assert.True(t, inFlight[0].IsTemp())
	assert.True(t, inFlight[0].Sender.Local)
}

func TestSendMessage_RollbackOnFailure(t *testing.T) {
	client := &mockClient{
		sendErr: apperrors.NewAPIError("/send/u2", 0, "", fmt.Errorf("offline")),
	}
	s := newTestStore(client)
	s.AddReceivedMessage(peerMessage("m0", "u2", "earlier", time.Now()))

	before := s.Messages("u2")
	_, err := s.SendMessage(context.Background(), "u2", "hi", nil, "")
	require.Error(t, err)
	assert.NotEmpty(t, apperrors.GetUserMessage(err))

	assert.Equal(t, before, s.Messages("u2"))
}

func TestSendMessage_OfflineScenario(t *testing.T) {
	// Send "hi" while offline: temp entry appears pending, the request
	// times out, the entry is removed, the summary stays (stale by design).
	client := &mockClient{sendErr: apperrors.NewTimeoutError("send")}
	s := newTestStore(client)

	var pendingSeen bool
	client.beforeSend = func() {
		tl := s.Messages("u2")
		pendingSeen = len(tl) == 1 && tl[0].Pending
	}

	_, err := s.SendMessage(context.Background(), "u2", "hi", nil, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.True(t, pendingSeen)
	assert.Empty(t, s.Messages("u2"))

	convs := s.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "hi", convs[0].LastMessage.Label)
}

func TestSendMessage_EchoArrivesBeforeResponse(t *testing.T) {
	client := &mockClient{sendResp: confirmed("srv-1", "u2", "hi")}
	s := newTestStore(client)

	client.beforeSend = func() {
		echo := *confirmed("srv-1", "u2", "hi")
		s.AddReceivedMessage(echo)
	}

	msg, err := s.SendMessage(context.Background(), "u2", "hi", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)

	// Exactly one final entry: the echo replaced the temp in place and the
	// late HTTP response must not reintroduce it.
	tl := s.Messages("u2")
	require.Len(t, tl, 1)
	assert.Equal(t, "srv-1", tl[0].ID)
	assert.False(t, tl[0].Pending)
	assertNoDuplicateIDs(t, tl)
}

func TestSendMessage_EchoAfterResponseIsDeduplicated(t *testing.T) {
	client := &mockClient{sendResp: confirmed("srv-1", "u2", "hi")}
	s := newTestStore(client)

	_, err := s.SendMessage(context.Background(), "u2", "hi", nil, "")
	require.NoError(t, err)

	s.AddReceivedMessage(*confirmed("srv-1", "u2", "hi"))

	tl := s.Messages("u2")
	require.Len(t, tl, 1)
	assert.Equal(t, "srv-1", tl[0].ID)
}

func TestSendMessage_AttachmentUsesLocalPreview(t *testing.T) {
	att := &models.Attachment{URL: "https://cdn.example.com/up/abc", Kind: models.AttachmentImage, Width: 640, Height: 480}
	client := &mockClient{sendResp: &models.Message{
		ID: "srv-1", Sender: models.RemoteSender(selfID), ReceiverID: "u2", Attachment: att,
	}}
	s := newTestStore(client)

	var inFlightDisplay, inFlightRef string
	client.beforeSend = func() {
		tl := s.Messages("u2")
		if len(tl) == 1 && tl[0].Attachment != nil {
			inFlightDisplay = tl[0].DisplayAttachmentURL()
			inFlightRef = tl[0].Attachment.URL
		}
	}

	_, err := s.SendMessage(context.Background(), "u2", "", att, "file:///tmp/preview.jpg")
	require.NoError(t, err)

	// The preview is display-only; the entry keeps the server reference
	// underneath so an inbound echo still content-matches it.
	assert.Equal(t, "file:///tmp/preview.jpg", inFlightDisplay)
	assert.Equal(t, "https://cdn.example.com/up/abc", inFlightRef)

	tl := s.Messages("u2")
	require.Len(t, tl, 1)
	assert.Equal(t, "https://cdn.example.com/up/abc", tl[0].Attachment.URL)
	assert.Empty(t, tl[0].LocalPreview)
	assert.Equal(t, "https://cdn.example.com/up/abc", tl[0].DisplayAttachmentURL())
}

func TestSendMessage_AttachmentEchoArrivesBeforeResponse(t *testing.T) {
	att := &models.Attachment{URL: "https://cdn.example.com/up/abc", Kind: models.AttachmentImage}
	client := &mockClient{sendResp: &models.Message{
		ID: "srv-1", Sender: models.RemoteSender(selfID), ReceiverID: "u2", Attachment: att,
	}}
	s := newTestStore(client)

	var inFlight []models.Message
	client.beforeSend = func() {
		// The echo carries the server reference, not the local preview.
		s.AddReceivedMessage(models.Message{
			ID: "srv-1", Sender: models.RemoteSender(selfID), ReceiverID: "u2", Attachment: att,
		})
		inFlight = s.Messages("u2")
	}

	_, err := s.SendMessage(context.Background(), "u2", "", att, "file:///tmp/preview.jpg")
	require.NoError(t, err)

	// The echo must collapse into the pending entry while the request is
	// still outstanding; two entries for one logical message is exactly the
	// flicker the pending match exists to prevent.
	require.Len(t, inFlight, 1)
	assert.Equal(t, "srv-1", inFlight[0].ID)
	assert.False(t, inFlight[0].Pending)

	tl := s.Messages("u2")
	require.Len(t, tl, 1)
	assert.Equal(t, "srv-1", tl[0].ID)
	assertNoDuplicateIDs(t, tl)
}

func TestSendMessage_Validation(t *testing.T) {
	client := &mockClient{}
	s := newTestStore(client)

	_, err := s.SendMessage(context.Background(), "", "hi", nil, "")
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	_, err = s.SendMessage(context.Background(), "u2", "", nil, "")
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))

	// Validation short-circuits before any request is issued.
	assert.Zero(t, client.sendCalls)
	assert.Empty(t, s.Messages("u2"))
}

func TestSendMessage_OverlappingSendsKeepBothEntries(t *testing.T) {
	client := &mockClient{sendErr: apperrors.NewTimeoutError("send")}
	s := newTestStore(client)

	started := make(chan struct{})
	release := make(chan struct{})
	client.beforeSend = func() {
		close(started)
		<-release
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.SendMessage(context.Background(), "u2", "first", nil, "")
	}()

	<-started
	// A second send is issued before the first resolves; both temporary
	// entries must coexist, each with its own identity.
	client.mu.Lock()
	client.beforeSend = func() {
		tl := s.Messages("u2")
		assert.Len(t, tl, 2)
		assertNoDuplicateIDs(t, tl)
		close(release)
	}
	client.mu.Unlock()

	_, _ = s.SendMessage(context.Background(), "u2", "second", nil, "")
	<-done

	assert.Empty(t, s.Messages("u2"))
}

func TestFetchMessages_FirstPageReplaces(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	client := &mockClient{messagesResp: api.MessagePage{
		Messages: []models.Message{
			peerMessage("m2", "u2", "two", base.Add(time.Minute)),
			peerMessage("m1", "u2", "one", base),
		},
		Page:       1,
		TotalPages: 2,
	}}
	s := newTestStore(client)
	s.AddReceivedMessage(peerMessage("stale", "u2", "stale", base))

	hasMore, err := s.FetchMessages(context.Background(), "u2", 1)
	require.NoError(t, err)
	assert.True(t, hasMore)

	tl := s.Messages("u2")
	require.Len(t, tl, 2)
	assert.Equal(t, "m2", tl[0].ID)
	assert.Equal(t, "m1", tl[1].ID)
}

func TestFetchMessages_LaterPagesAppendAndDedupe(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	client := &mockClient{messagesResp: api.MessagePage{
		Messages: []models.Message{
			peerMessage("m2", "u2", "two", base.Add(time.Minute)),
			peerMessage("m1", "u2", "one", base),
		},
		Page:       1,
		TotalPages: 2,
	}}
	s := newTestStore(client)

	_, err := s.FetchMessages(context.Background(), "u2", 1)
	require.NoError(t, err)

	// Page 2 overlaps page 1 at the boundary, as real pagination does.
	client.messagesResp = api.MessagePage{
		Messages: []models.Message{
			peerMessage("m1", "u2", "one", base),
			peerMessage("m0", "u2", "zero", base.Add(-time.Minute)),
		},
		Page:       2,
		TotalPages: 2,
	}

	hasMore, err := s.FetchMessages(context.Background(), "u2", 2)
	require.NoError(t, err)
	assert.False(t, hasMore)

	tl := s.Messages("u2")
	require.Len(t, tl, 3)
	assert.Equal(t, []string{"m2", "m1", "m0"}, []string{tl[0].ID, tl[1].ID, tl[2].ID})
	assertNoDuplicateIDs(t, tl)
}

func TestAddReceivedMessage_UnreadAccounting(t *testing.T) {
	s := newTestStore(&mockClient{})
	now := time.Now()

	s.SetActiveConversation("u2")

	// Active conversation: never increments.
	s.AddReceivedMessage(peerMessage("m1", "u2", "hello", now))
	assert.Equal(t, 0, s.UnreadTotal())

	// Any other peer: exactly +1 per non-self message.
	s.AddReceivedMessage(peerMessage("m2", "u3", "hey", now))
	assert.Equal(t, 1, s.UnreadTotal())

	// Self echo: never increments.
	s.AddReceivedMessage(models.Message{
		ID: "m3", Sender: models.RemoteSender(selfID), ReceiverID: "u3", Text: "mine", CreatedAt: now,
	})
	assert.Equal(t, 1, s.UnreadTotal())

	convs := s.Conversations()
	for _, c := range convs {
		if c.OtherUser.ID == "u2" {
			assert.Equal(t, 0, c.UnreadCount)
		}
		if c.OtherUser.ID == "u3" {
			assert.Equal(t, 1, c.UnreadCount)
		}
	}
}

func TestAddReceivedMessage_BackToBackUpdatesSummary(t *testing.T) {
	s := newTestStore(&mockClient{})
	now := time.Now()

	s.AddReceivedMessage(peerMessage("m1", "u2", "first", now))
	s.AddReceivedMessage(peerMessage("m2", "u2", "second", now.Add(time.Second)))

	assert.Equal(t, 2, s.UnreadTotal())

	convs := s.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].UnreadCount)
	assert.Equal(t, "second", convs[0].LastMessage.Label)
}

func TestAddReceivedMessage_MovesConversationToFront(t *testing.T) {
	s := newTestStore(&mockClient{})
	now := time.Now()

	s.AddReceivedMessage(peerMessage("m1", "u2", "a", now))
	s.AddReceivedMessage(peerMessage("m2", "u3", "b", now))
	s.AddReceivedMessage(peerMessage("m3", "u2", "c", now))

	convs := s.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "u2", convs[0].OtherUser.ID)
	assert.Equal(t, "u3", convs[1].OtherUser.ID)
}

func TestAddReceivedMessage_DuplicateDeliveryIsIdempotent(t *testing.T) {
	s := newTestStore(&mockClient{})
	now := time.Now()

	msg := peerMessage("m1", "u2", "hello", now)
	s.AddReceivedMessage(msg)
	s.AddReceivedMessage(msg)
	s.AddReceivedMessage(peerMessage("m2", "u2", "again", now))
	s.AddReceivedMessage(msg)

	tl := s.Messages("u2")
	require.Len(t, tl, 2)
	assert.Equal(t, "m2", tl[0].ID)
	assert.Equal(t, "m1", tl[1].ID)
	assertNoDuplicateIDs(t, tl)
}

func TestApplyRead_OnlyFlipsOwnMessages(t *testing.T) {
	s := newTestStore(&mockClient{sendResp: confirmed("srv-1", "u2", "mine")})
	now := time.Now()

	_, err := s.SendMessage(context.Background(), "u2", "mine", nil, "")
	require.NoError(t, err)
	s.AddReceivedMessage(peerMessage("m1", "u2", "theirs", now))
	s.AddReceivedMessage(peerMessage("m9", "u3", "other convo", now))

	readAt := now.Add(time.Minute)
	s.ApplyRead(models.MessagesReadPayload{
		ConversationID: models.ConversationID(selfID, "u2"),
		ReaderID:       "u2",
		ReadAt:         readAt,
	})

	for _, m := range s.Messages("u2") {
		if m.Sender.IsSelf(selfID) {
			assert.True(t, m.Read)
			require.NotNil(t, m.ReadAt)
			assert.True(t, m.ReadAt.Equal(readAt))
		} else {
			assert.False(t, m.Read, "peer's message must not be marked read")
		}
	}

	// A different conversation is untouched.
	for _, m := range s.Messages("u3") {
		assert.False(t, m.Read)
	}
}

func TestEditMessage_OptimisticWithRollback(t *testing.T) {
	client := &mockClient{}
	s := newTestStore(client)
	s.AddReceivedMessage(*confirmed("srv-1", "u2", "typo"))

	require.NoError(t, s.EditMessage(context.Background(), "srv-1", "fixed"))
	tl := s.Messages("u2")
	assert.Equal(t, "fixed", tl[0].Text)
	assert.True(t, tl[0].IsEdited)

	client.editErr = apperrors.NewAPIError("/edit/srv-1", 500, "", fmt.Errorf("boom"))
	require.Error(t, s.EditMessage(context.Background(), "srv-1", "fixed again"))

	tl = s.Messages("u2")
	assert.Equal(t, "fixed", tl[0].Text)
	assert.True(t, tl[0].IsEdited)
}

func TestEditMessage_NotFound(t *testing.T) {
	s := newTestStore(&mockClient{})
	err := s.EditMessage(context.Background(), "ghost", "text")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
}

func TestDeleteMessageForMe_RollbackReinserts(t *testing.T) {
	client := &mockClient{}
	s := newTestStore(client)
	now := time.Now()
	s.AddReceivedMessage(peerMessage("m1", "u2", "one", now))
	s.AddReceivedMessage(peerMessage("m2", "u2", "two", now))
	s.AddReceivedMessage(peerMessage("m3", "u2", "three", now))

	client.deleteMeErr = apperrors.NewAPIError("/delete-me/m2", 500, "", fmt.Errorf("boom"))
	require.Error(t, s.DeleteMessageForMe(context.Background(), "m2"))

	tl := s.Messages("u2")
	require.Len(t, tl, 3)
	assert.Equal(t, []string{"m3", "m2", "m1"}, []string{tl[0].ID, tl[1].ID, tl[2].ID})

	client.deleteMeErr = nil
	require.NoError(t, s.DeleteMessageForMe(context.Background(), "m2"))
	tl = s.Messages("u2")
	require.Len(t, tl, 2)
	assert.Equal(t, []string{"m3", "m1"}, []string{tl[0].ID, tl[1].ID})
}

func TestDeleteMessageForEveryone_TombstoneAndMirror(t *testing.T) {
	client := &mockClient{}
	s := newTestStore(client)
	s.AddReceivedMessage(*confirmed("srv-1", "u2", "regret"))

	require.NoError(t, s.DeleteMessageForEveryone(context.Background(), "srv-1"))

	tl := s.Messages("u2")
	require.Len(t, tl, 1)
	assert.True(t, tl[0].IsDeleted)
	assert.Empty(t, tl[0].Text)

	// The mirrored stream event must be idempotent against the local
	// tombstone already applied.
	s.ApplyDeleted(models.MessageDeletedPayload{MessageID: "srv-1"})
	tl = s.Messages("u2")
	require.Len(t, tl, 1)
	assert.True(t, tl[0].IsDeleted)
}

func TestDeleteMessageForEveryone_RollbackOnFailure(t *testing.T) {
	client := &mockClient{deleteAllErr: apperrors.NewAPIError("/delete-everyone/srv-1", 500, "", fmt.Errorf("boom"))}
	s := newTestStore(client)
	s.AddReceivedMessage(*confirmed("srv-1", "u2", "regret"))

	require.Error(t, s.DeleteMessageForEveryone(context.Background(), "srv-1"))

	tl := s.Messages("u2")
	require.Len(t, tl, 1)
	assert.False(t, tl[0].IsDeleted)
	assert.Equal(t, "regret", tl[0].Text)
}

func TestApplyDeleted_ForInboundEvent(t *testing.T) {
	s := newTestStore(&mockClient{})
	now := time.Now()
	s.AddReceivedMessage(peerMessage("m1", "u2", "take this back", now))

	s.ApplyDeleted(models.MessageDeletedPayload{MessageID: "m1"})

	tl := s.Messages("u2")
	require.Len(t, tl, 1)
	assert.True(t, tl[0].IsDeleted)
	assert.Empty(t, tl[0].Text)
	assert.Equal(t, "Message deleted", tl[0].Label())
}

func TestApplyEdited(t *testing.T) {
	s := newTestStore(&mockClient{})
	now := time.Now()
	s.AddReceivedMessage(peerMessage("m1", "u2", "helo", now))

	editedAt := now.Add(time.Minute)
	s.ApplyEdited(models.MessageEditedPayload{MessageID: "m1", NewText: "hello", EditedAt: editedAt})

	tl := s.Messages("u2")
	assert.Equal(t, "hello", tl[0].Text)
	assert.True(t, tl[0].IsEdited)
	require.NotNil(t, tl[0].EditedAt)
	assert.True(t, tl[0].EditedAt.Equal(editedAt))
}

func TestMarkAsRead_ZeroesAndRefreshes(t *testing.T) {
	client := &mockClient{unreadCount: 4}
	s := newTestStore(client)
	now := time.Now()

	s.AddReceivedMessage(peerMessage("m1", "u2", "a", now))
	s.AddReceivedMessage(peerMessage("m2", "u2", "b", now))
	s.AddReceivedMessage(peerMessage("m3", "u3", "c", now))
	require.Equal(t, 3, s.UnreadTotal())

	require.NoError(t, s.MarkAsRead(context.Background(), "u2"))

	for _, c := range s.Conversations() {
		if c.OtherUser.ID == "u2" {
			assert.Equal(t, 0, c.UnreadCount)
		}
	}
	// Global count comes back from server truth.
	assert.Equal(t, 4, s.UnreadTotal())
}

func TestMarkAsRead_RefreshFailureIsBestEffort(t *testing.T) {
	client := &mockClient{unreadErr: fmt.Errorf("unavailable")}
	s := newTestStore(client)
	s.AddReceivedMessage(peerMessage("m1", "u2", "a", time.Now()))

	require.NoError(t, s.MarkAsRead(context.Background(), "u2"))
	assert.Equal(t, 0, s.UnreadTotal())
}

func TestClearChatHistory(t *testing.T) {
	client := &mockClient{}
	s := newTestStore(client)
	now := time.Now()
	s.AddReceivedMessage(peerMessage("m1", "u2", "a", now))

	require.NoError(t, s.ClearChatHistory(context.Background(), "u2"))
	assert.Empty(t, s.Messages("u2"))
}

func TestClearChatHistory_RestoredOnFailure(t *testing.T) {
	client := &mockClient{clearErr: apperrors.NewAPIError("/clear/u2", 500, "", fmt.Errorf("boom"))}
	s := newTestStore(client)
	now := time.Now()
	s.AddReceivedMessage(peerMessage("m1", "u2", "a", now))

	require.Error(t, s.ClearChatHistory(context.Background(), "u2"))
	require.Len(t, s.Messages("u2"), 1)
}

func TestFetchConversations_DedupesAndTotals(t *testing.T) {
	client := &mockClient{convs: []models.Conversation{
		{ID: "u1u2", OtherUser: models.UserRef{ID: "u2"}, UnreadCount: 2},
		{ID: "u1u3", OtherUser: models.UserRef{ID: "u3"}, UnreadCount: 1},
		{ID: "u1u2-dup", OtherUser: models.UserRef{ID: "u2"}, UnreadCount: 9},
	}}
	s := newTestStore(client)

	require.NoError(t, s.FetchConversations(context.Background()))

	convs := s.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, 3, s.UnreadTotal())
}

func TestActiveConversation_ClearRestoresCounting(t *testing.T) {
	s := newTestStore(&mockClient{})
	now := time.Now()

	s.SetActiveConversation("u2")
	s.AddReceivedMessage(peerMessage("m1", "u2", "a", now))
	assert.Equal(t, 0, s.UnreadTotal())

	s.ClearActiveConversation()
	s.AddReceivedMessage(peerMessage("m2", "u2", "b", now))
	assert.Equal(t, 1, s.UnreadTotal())
}

func TestConversationID_Derivation(t *testing.T) {
	assert.Equal(t, models.ConversationID("a", "b"), models.ConversationID("b", "a"))
	assert.Equal(t, "ab", models.ConversationID("b", "a"))
	assert.Equal(t, "u1u2", models.ConversationID("u2", "u1"))
}
