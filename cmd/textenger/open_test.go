package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"textenger/internal/appstate"
	"textenger/internal/chatsync"
	"textenger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinterAppendsOnlyNewMessages(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, model.KindChannel, time.Minute)
	p.setEmptyState(chatsync.EmptyState(model.ChannelScope(1), ""))

	p.OnChange(chatsync.Change{ScrollToNewest: true})
	assert.Contains(t, buf.String(), "No messages yet")

	base := time.Now()
	alice := &model.Profile{ID: 1, Username: "alice"}
	m1 := &model.Message{ID: 1, AuthorID: 1, Author: alice, Content: "one", CreatedAt: base}
	m2 := &model.Message{ID: 2, AuthorID: 1, Author: alice, Content: "two", CreatedAt: base.Add(time.Second)}
	m3 := &model.Message{ID: 3, AuthorID: 2, Content: "", CreatedAt: base.Add(2 * time.Second)}

	buf.Reset()
	p.OnChange(chatsync.Change{Messages: []*model.Message{m1}, ScrollToNewest: true})
	p.OnChange(chatsync.Change{Messages: []*model.Message{m1, m2}, Live: true, ScrollToNewest: true})
	p.OnChange(chatsync.Change{Messages: []*model.Message{m1, m2, m3}, Live: true, ScrollToNewest: true})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "one"))
	// 同组的第二条不重复头部
	assert.Equal(t, 1, strings.Count(out, "alice"))
	assert.Contains(t, out, model.UnknownUser)
	assert.Contains(t, out, chatsync.DeletedPlaceholder)
}

func TestSelectAction(t *testing.T) {
	state := appstate.New(appstate.State{CurrentUserID: 7})
	for _, scope := range []model.Scope{
		model.ChannelScope(3),
		model.RoomScope(4),
		model.DirectScope(7, 9),
	} {
		state.Dispatch(appstate.ClearSelection{})
		state.Dispatch(selectAction(scope))
		sel, ok := state.Selection()
		require.True(t, ok)
		assert.Equal(t, scope.Key(), sel.Key())
	}
}

func TestParseSwitch(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "OFF": false, "true": true, "0": false} {
		got, err := parseSwitch(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseSwitch("loud")
	assert.Error(t, err)
}
