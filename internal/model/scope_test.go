package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		scope Scope
		self  int64
		key   string
	}{
		{"channel", ChannelScope(7), 1, "channel:7"},
		{"room", RoomScope(9), 1, "room:9"},
		{"dm self first", DirectScope(3, 5), 3, "dm:3:5"},
		{"dm self second", DirectScope(5, 3), 5, "dm:3:5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.scope.Key())
			parsed, err := ParseScope(tt.key, tt.self)
			require.NoError(t, err)
			assert.Equal(t, tt.scope, parsed)
		})
	}
}

func TestParseScopeRejects(t *testing.T) {
	for _, key := range []string{"", "channel", "channel:x", "room:-1", "dm:1:2:3", "thread:4"} {
		_, err := ParseScope(key, 1)
		assert.ErrorIs(t, err, ErrInvalidScope, key)
	}

	_, err := ParseScope("dm:2:3", 1)
	assert.ErrorIs(t, err, ErrInvalidScope, "outsider cannot open a dm")

	s, err := ParseScope("dm:4", 1)
	require.NoError(t, err)
	assert.Equal(t, DirectScope(1, 4), s)
}

func TestScopeMatches(t *testing.T) {
	dm := DirectScope(1, 2)
	assert.True(t, dm.Matches(&Message{Kind: KindDirect, AuthorID: 1, ReceiverID: 2}))
	assert.True(t, dm.Matches(&Message{Kind: KindDirect, AuthorID: 2, ReceiverID: 1}))
	assert.False(t, dm.Matches(&Message{Kind: KindDirect, AuthorID: 2, ReceiverID: 3}))
	assert.False(t, dm.Matches(nil))

	ch := ChannelScope(10)
	assert.True(t, ch.Matches(&Message{Kind: KindChannel, ChannelID: 10}))
	assert.False(t, ch.Matches(&Message{Kind: KindRoom, RoomID: 10}))
	assert.False(t, ch.Matches(&Message{Kind: KindChannel, ChannelID: 11}))
}

func TestScopeStampAndTable(t *testing.T) {
	var m Message
	DirectScope(1, 2).Stamp(&m)
	assert.Equal(t, KindDirect, m.Kind)
	assert.EqualValues(t, 2, m.ReceiverID)

	// 对方发来的消息，接收者是自己
	reply := Message{AuthorID: 2}
	DirectScope(1, 2).Stamp(&reply)
	assert.EqualValues(t, 1, reply.ReceiverID)
	assert.True(t, DirectScope(1, 2).Matches(&reply))
	assert.True(t, DirectScope(2, 1).Matches(&reply))
	assert.Equal(t, "direct_messages", DirectScope(1, 2).Table())
	assert.Equal(t, "room_messages", RoomScope(1).Table())
	assert.Equal(t, "messages", ChannelScope(1).Table())
	assert.Equal(t, 20, DirectScope(1, 2).PageSize())
	assert.Equal(t, 50, ChannelScope(1).PageSize())
}

func TestCursorEncoding(t *testing.T) {
	c := &Cursor{ID: 42, CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	got, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))

	none, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestCursorBeforeAfter(t *testing.T) {
	at := time.Unix(100, 0)
	c := &Cursor{ID: 5, CreatedAt: at}
	assert.True(t, c.Before(&Message{ID: 4, CreatedAt: at}))
	assert.True(t, c.Before(&Message{ID: 9, CreatedAt: at.Add(-time.Second)}))
	assert.False(t, c.Before(&Message{ID: 5, CreatedAt: at}))
	assert.True(t, c.After(&Message{ID: 6, CreatedAt: at}))
	assert.False(t, c.After(&Message{ID: 1, CreatedAt: at}))
}

func TestProfileName(t *testing.T) {
	var p *Profile
	assert.Equal(t, UnknownUser, p.Name())
	assert.Equal(t, "neo", (&Profile{Username: "neo"}).Name())
	assert.Equal(t, "Thomas", (&Profile{Username: "neo", DisplayName: "Thomas"}).Name())
}
