package grouping

import (
	"testing"
	"time"

	"shelfchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selfID = "u1"

var now = time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

func msg(id, senderID string, at time.Time) models.Message {
	sender := models.RemoteSender(senderID)
	if senderID == selfID {
		sender = models.LocalSender()
	}
	return models.Message{ID: id, Sender: sender, Text: "t-" + id, CreatedAt: at}
}

func TestProject_EmptyTimeline(t *testing.T) {
	assert.Empty(t, Project(nil, selfID, now))
}

func TestProject_DateLabels(t *testing.T) {
	// Newest-first: two today, one yesterday, one older.
	messages := []models.Message{
		msg("m4", "u2", now.Add(-time.Hour)),
		msg("m3", selfID, now.Add(-2*time.Hour)),
		msg("m2", "u2", now.AddDate(0, 0, -1)),
		msg("m1", "u2", time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)),
	}

	entries := Project(messages, selfID, now)
	require.Len(t, entries, 4)

	// One separator per day, under the oldest message of that day.
	assert.Empty(t, entries[0].DateLabel)
	assert.Equal(t, "Today", entries[1].DateLabel)
	assert.Equal(t, "Yesterday", entries[2].DateLabel)
	assert.Equal(t, "Mar 2, 2024", entries[3].DateLabel)
}

func TestProject_MidnightBoundarySplitsDays(t *testing.T) {
	beforeMidnight := time.Date(2024, 3, 14, 23, 59, 0, 0, time.UTC)
	afterMidnight := time.Date(2024, 3, 15, 0, 1, 0, 0, time.UTC)

	messages := []models.Message{
		msg("m2", "u2", afterMidnight),
		msg("m1", "u2", beforeMidnight),
	}

	entries := Project(messages, selfID, now)
	assert.Equal(t, "Today", entries[0].DateLabel)
	assert.Equal(t, "Yesterday", entries[1].DateLabel)
}

func TestProject_AvatarOnlyOnNewestOfPeerRun(t *testing.T) {
	messages := []models.Message{
		msg("m5", "u2", now.Add(-1*time.Minute)),
		msg("m4", "u2", now.Add(-2*time.Minute)),
		msg("m3", selfID, now.Add(-3*time.Minute)),
		msg("m2", "u2", now.Add(-4*time.Minute)),
	}

	entries := Project(messages, selfID, now)

	assert.True(t, entries[0].ShowAvatar)  // newest of the u2 run
	assert.False(t, entries[1].ShowAvatar) // continuation
	assert.False(t, entries[2].ShowAvatar) // own message, never an avatar
	assert.True(t, entries[3].ShowAvatar)  // new run after the break
}

func TestProject_RunPositions(t *testing.T) {
	messages := []models.Message{
		msg("m5", "u2", now.Add(-1*time.Minute)),
		msg("m4", "u2", now.Add(-2*time.Minute)),
		msg("m3", "u2", now.Add(-3*time.Minute)),
		msg("m2", selfID, now.Add(-4*time.Minute)),
		msg("m1", "u2", now.Add(-5*time.Minute)),
	}

	entries := Project(messages, selfID, now)

	assert.Equal(t, PositionEnd, entries[0].Position)
	assert.Equal(t, PositionMiddle, entries[1].Position)
	assert.Equal(t, PositionStart, entries[2].Position)
	assert.Equal(t, PositionSingle, entries[3].Position)
	assert.Equal(t, PositionSingle, entries[4].Position)
}

func TestProject_RunBrokenByDayBoundary(t *testing.T) {
	// Same sender across midnight: two separate runs.
	messages := []models.Message{
		msg("m2", "u2", time.Date(2024, 3, 15, 0, 5, 0, 0, time.UTC)),
		msg("m1", "u2", time.Date(2024, 3, 14, 23, 55, 0, 0, time.UTC)),
	}

	entries := Project(messages, selfID, now)

	assert.Equal(t, PositionSingle, entries[0].Position)
	assert.Equal(t, PositionSingle, entries[1].Position)
	assert.True(t, entries[0].ShowAvatar)
	assert.True(t, entries[1].ShowAvatar)
}

func TestProject_SelfRunsGetPositionsButNoAvatar(t *testing.T) {
	messages := []models.Message{
		msg("m2", selfID, now.Add(-1*time.Minute)),
		msg("m1", selfID, now.Add(-2*time.Minute)),
	}

	entries := Project(messages, selfID, now)

	assert.Equal(t, PositionEnd, entries[0].Position)
	assert.Equal(t, PositionStart, entries[1].Position)
	assert.False(t, entries[0].ShowAvatar)
	assert.False(t, entries[1].ShowAvatar)
}

func TestProject_IsDeterministic(t *testing.T) {
	messages := []models.Message{
		msg("m3", "u2", now.Add(-time.Minute)),
		msg("m2", selfID, now.AddDate(0, 0, -1)),
		msg("m1", "u2", now.AddDate(0, 0, -3)),
	}

	first := Project(messages, selfID, now)
	second := Project(messages, selfID, now)
	assert.Equal(t, first, second)
}

func TestDateLabel(t *testing.T) {
	assert.Equal(t, "Today", DateLabel(now.Add(-time.Hour), now))
	assert.Equal(t, "Yesterday", DateLabel(now.AddDate(0, 0, -1), now))
	assert.Equal(t, "Jan 2, 2024", DateLabel(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), now))
}
