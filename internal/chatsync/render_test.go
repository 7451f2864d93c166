package chatsync_test

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textenger/internal/chatsync"
	"textenger/internal/model"
)

func collect(msgs []*model.Message, window time.Duration) [][]int64 {
	var out [][]int64
	for r := range chatsync.Runs(msgs, window) {
		out = append(out, ids(r.Messages))
	}
	return out
}

func TestRunsGroupingWindow(t *testing.T) {
	a := msg(1, 7, 0)
	b := msg(2, 7, 4*time.Minute)
	c := msg(3, 7, 9*time.Minute) // 与 b 相差正好 5 分钟，不合并

	assert.Equal(t, [][]int64{{1, 2}, {3}}, collect([]*model.Message{a, b, c}, chatsync.GroupWindow))
}

func TestRunsSplitOnAuthorChange(t *testing.T) {
	msgs := []*model.Message{msg(1, 1, 0), msg(2, 2, time.Second), msg(3, 2, 2*time.Second), msg(4, 1, 3*time.Second)}
	assert.Equal(t, [][]int64{{1}, {2, 3}, {4}}, collect(msgs, chatsync.GroupWindow))
}

func TestRunsIsPureAndRestartable(t *testing.T) {
	msgs := []*model.Message{msg(1, 1, 0), msg(2, 1, time.Minute), msg(3, 2, 2*time.Minute)}
	before := slices.Clone(msgs)

	seq := chatsync.Runs(msgs, 0)
	var first, second int
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	assert.Equal(t, 2, first)
	assert.Equal(t, first, second)
	assert.Equal(t, before, msgs)

	for r := range seq {
		assert.Equal(t, len(r.Messages), cap(r.Messages), "run slices are clipped")
		break
	}
	assert.Empty(t, collect(nil, 0))
}

func TestRunHeader(t *testing.T) {
	edited := t0.Add(time.Hour)
	m := msg(1, 1, 0)
	m.EditedAt = &edited
	m.Author = &model.Profile{ID: 1, Username: "neo", DisplayName: "Thomas", AvatarURL: "http://a/1.png"}

	var runs []chatsync.Run
	for r := range chatsync.Runs([]*model.Message{m, msg(2, 1, time.Second)}, 0) {
		runs = append(runs, r)
	}
	require.Len(t, runs, 1)
	h := runs[0].Header()
	assert.Equal(t, "Thomas", h.DisplayName)
	assert.Equal(t, "http://a/1.png", h.AvatarURL)
	assert.True(t, h.Edited)
	assert.Equal(t, m.CreatedAt, h.Timestamp)
}

func TestMissingProfileRendersUnknownUser(t *testing.T) {
	assert.Equal(t, model.UnknownUser, chatsync.DisplayName(msg(1, 1, 0)))
}

func TestBodyPlaceholders(t *testing.T) {
	deleted := msg(1, 1, 0)
	assert.Equal(t, chatsync.DeletedPlaceholder, chatsync.Body(model.KindChannel, deleted))
	assert.Equal(t, "", chatsync.Body(model.KindDirect, deleted))

	withFile := msg(2, 1, 0)
	withFile.AttachmentURL = "http://f"
	assert.Equal(t, "", chatsync.Body(model.KindChannel, withFile))

	text := msg(3, 1, 0)
	text.Content = "hello"
	assert.Equal(t, "hello", chatsync.Body(model.KindChannel, text))
}

func TestEmptyState(t *testing.T) {
	title, sub := chatsync.EmptyState(model.ChannelScope(1), "")
	assert.Equal(t, "No messages yet", title)
	assert.Equal(t, "Be the first to send a message in this channel!", sub)

	_, sub = chatsync.EmptyState(model.DirectScope(1, 2), "trinity")
	assert.Equal(t, "This is the beginning of your conversation with @trinity", sub)

	title, _ = chatsync.EmptyState(model.RoomScope(1), "general")
	assert.Equal(t, "Welcome to #general!", title)
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, "Today at 09:30", chatsync.FormatTimestamp(time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC), now))
	assert.Equal(t, "Yesterday at 23:59", chatsync.FormatTimestamp(time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC), now))
	assert.Equal(t, "2024-04-01 08:00", chatsync.FormatTimestamp(time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC), now))
}
