package grouping

import (
	"time"

	"shelfchat/internal/models"
)

// Position is a message's place within a run of consecutive same-sender,
// same-day messages.
type Position string

const (
	PositionSingle Position = "single"
	PositionStart  Position = "start"
	PositionMiddle Position = "middle"
	PositionEnd    Position = "end"
)

// Entry is one projected timeline row: the message plus its derived
// presentation hints. DateLabel is set on the entry that closes a day
// (the oldest message of that day in newest-first order).
type Entry struct {
	Message    *models.Message
	DateLabel  string
	ShowAvatar bool
	Position   Position
}

// Project derives the presentation metadata for a newest-first timeline.
// It is a pure function of its inputs: same timeline, same output. Nothing
// is stored; callers re-project after every timeline change.
func Project(messages []models.Message, currentUserID string, now time.Time) []Entry {
	entries := make([]Entry, 0, len(messages))

	for i := range messages {
		msg := &messages[i]
		fromSelf := msg.Sender.IsSelf(currentUserID)

		entry := Entry{
			Message:  msg,
			Position: position(messages, currentUserID, i),
		}

		// Exactly one separator per distinct calendar day: under the
		// oldest message of the day, which in newest-first order is the
		// one whose older neighbour (or list end) is on a different day.
		if i == len(messages)-1 || !sameDay(msg.CreatedAt, messages[i+1].CreatedAt) {
			entry.DateLabel = DateLabel(msg.CreatedAt, now)
		}

		// Peer avatars only, and only on the newest message of a sender
		// run so a burst shows a single avatar.
		if !fromSelf && (i == 0 || !sameSender(messages[i-1], *msg, currentUserID)) {
			entry.ShowAvatar = true
		}

		entries = append(entries, entry)
	}

	return entries
}

// DateLabel renders a day separator: "Today", "Yesterday", or the date.
func DateLabel(t, now time.Time) string {
	if sameDay(t, now) {
		return "Today"
	}
	if sameDay(t, now.AddDate(0, 0, -1)) {
		return "Yesterday"
	}
	return t.Format("Jan 2, 2006")
}

// position classifies index i within its same-sender, same-day run.
// Neighbours in newest-first order: i-1 is newer, i+1 is older.
func position(messages []models.Message, currentUserID string, i int) Position {
	newerSame := i > 0 &&
		sameSender(messages[i-1], messages[i], currentUserID) &&
		sameDay(messages[i-1].CreatedAt, messages[i].CreatedAt)
	olderSame := i < len(messages)-1 &&
		sameSender(messages[i], messages[i+1], currentUserID) &&
		sameDay(messages[i].CreatedAt, messages[i+1].CreatedAt)

	switch {
	case !newerSame && !olderSame:
		return PositionSingle
	case olderSame && !newerSame:
		// Newest of the run.
		return PositionEnd
	case !olderSame && newerSame:
		// Oldest of the run.
		return PositionStart
	default:
		return PositionMiddle
	}
}

func sameSender(a, b models.Message, currentUserID string) bool {
	return a.Sender.Resolve(currentUserID) == b.Sender.Resolve(currentUserID)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
