package chatsync_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textenger/internal/chatsync"
	"textenger/internal/chatsync/chatsynctest"
	"textenger/internal/model"
)

type playerFunc func(kind model.ScopeKind, volume float64) error

func (f playerFunc) Play(kind model.ScopeKind, volume float64) error { return f(kind, volume) }

func TestNotificationsDefaultsAndSave(t *testing.T) {
	backend := chatsynctest.New(nil)
	backend.SignIn(alice)

	var played []float64
	n := chatsync.NewNotifications(backend, playerFunc(func(_ model.ScopeKind, v float64) error {
		played = append(played, v)
		return nil
	}), nil)
	require.NoError(t, n.Load(t.Context()))
	assert.True(t, n.Settings().NotificationSoundEnabled)
	assert.InDelta(t, 0.7, n.Settings().NotificationSoundVolume, 1e-9)

	n.Cue(context.Background(), model.KindDirect)
	assert.Equal(t, []float64{0.7}, played)

	saved, err := n.Save(t.Context(), func(s *model.UserSettings) { s.NotificationSoundVolume = 3 })
	require.NoError(t, err)
	assert.InDelta(t, 1.0, saved.NotificationSoundVolume, 1e-9, "volume clamped")

	_, err = n.Save(t.Context(), func(s *model.UserSettings) { s.NotificationSoundEnabled = false })
	require.NoError(t, err)
	n.Cue(context.Background(), model.KindDirect)
	assert.Len(t, played, 1, "muted")

	reloaded := chatsync.NewNotifications(backend, nil, nil)
	require.NoError(t, reloaded.Load(t.Context()))
	assert.False(t, reloaded.Settings().NotificationSoundEnabled)
}

func TestTerminalBell(t *testing.T) {
	var buf bytes.Buffer
	bell := chatsync.TerminalBell{W: &buf}
	require.NoError(t, bell.Play(model.KindChannel, 0))
	require.NoError(t, bell.Play(model.KindChannel, 0.5))
	assert.Equal(t, "\a", buf.String())
}
