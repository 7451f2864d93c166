package service

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"textenger/config"
	"textenger/internal/model"
	"textenger/internal/repository"
	"textenger/pkg/db"
	"textenger/pkg/jwt"
	"textenger/pkg/redis"
	"textenger/pkg/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	orm      *gorm.DB
	users    *UserService
	messages *MessageService
	rooms    *RoomService
	settings *SettingsService
	alice    *model.Profile
	bob      *model.Profile
}

func setup(t *testing.T, limiter *SendLimiter) *fixture {
	t.Helper()
	orm, err := db.Open(sqlite.Open(":memory:"), "silent")
	require.NoError(t, err)
	sqlDB, err := orm.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(orm))

	mr := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	redis.SetClient(rc)
	t.Cleanup(func() {
		_ = rc.Close()
		redis.SetClient(nil)
	})

	profiles := repository.NewProfileRepository(orm)
	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "s", Issuer: "textenger", ExpireTime: time.Hour})
	f := &fixture{
		orm:      orm,
		users:    NewUserService(profiles, jwtSvc),
		messages: NewMessageService(repository.NewMessageRepository(orm), profiles, limiter),
		rooms:    NewRoomService(repository.NewRoomRepository(orm)),
		settings: NewSettingsService(repository.NewSettingsRepository(orm)),
	}
	ctx := t.Context()
	f.alice, _, err = f.users.Register(ctx, "alice", "alice@example.com", "Alice", "secret1")
	require.NoError(t, err)
	f.bob, _, err = f.users.Register(ctx, "bob", "bob@example.com", "", "secret2")
	require.NoError(t, err)
	return f
}

func TestUserService(t *testing.T) {
	f := setup(t, nil)
	ctx := t.Context()

	_, _, err := f.users.Register(ctx, "alice", "other@example.com", "", "secret1")
	assert.ErrorIs(t, err, ErrUserExists)

	p, token, err := f.users.Login(ctx, "bob@example.com", "secret2")
	require.NoError(t, err)
	assert.Equal(t, f.bob.ID, p.ID)
	assert.NotEmpty(t, token)

	_, _, err = f.users.Login(ctx, "bob", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.users.Login(ctx, "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	others, err := f.users.Others(ctx, f.alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "bob", others[0].Username)
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := setup(t, nil)
	ctx := t.Context()
	ptr := func(s string) *string { return &s }

	p, err := f.users.UpdateProfile(ctx, f.bob.ID, model.ProfileUpdate{
		DisplayName: ptr("  Bobby "),
		Bio:         ptr("plays mid"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Bobby", p.DisplayName)
	assert.Equal(t, "plays mid", p.Bio)
	assert.Equal(t, "bob", p.Username)

	// 用户名和邮箱共用登录标识
	_, err = f.users.UpdateProfile(ctx, f.bob.ID, model.ProfileUpdate{Username: ptr("alice")})
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = f.users.UpdateProfile(ctx, f.bob.ID, model.ProfileUpdate{Username: ptr("alice@example.com")})
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = f.users.UpdateProfile(ctx, f.bob.ID, model.ProfileUpdate{Username: ptr(" ")})
	assert.ErrorIs(t, err, ErrUsernameRequired)

	// 改回自己的用户名不算冲突
	p, err = f.users.UpdateProfile(ctx, f.bob.ID, model.ProfileUpdate{Username: ptr("bob")})
	require.NoError(t, err)
	assert.Equal(t, "Bobby", p.DisplayName)

	p, err = f.users.UpdateProfile(ctx, f.bob.ID, model.ProfileUpdate{Username: ptr("robert")})
	require.NoError(t, err)
	assert.Equal(t, "robert", p.Username)
	_, _, err = f.users.Login(ctx, "robert", "secret2")
	assert.NoError(t, err)

	_, err = f.users.UpdateProfile(ctx, 42, model.ProfileUpdate{Bio: ptr("x")})
	assert.ErrorIs(t, err, repository.ErrProfileNotFound)
}

func TestUserService_SetAvatar(t *testing.T) {
	f := setup(t, nil)
	ctx := t.Context()

	_, err := f.users.SetAvatar(ctx, f.alice.ID, "me.png", strings.NewReader("png"))
	assert.ErrorIs(t, err, ErrAvatarsDisabled)

	store, err := storage.NewLocal(config.StorageConfig{Root: t.TempDir(), BaseURL: "http://files.test", MaxUploadSize: 1 << 10}, nil)
	require.NoError(t, err)
	f.users.WithAvatarStore(store, "avatars")

	_, err = f.users.SetAvatar(ctx, f.alice.ID, "notes.txt", strings.NewReader("text"))
	assert.ErrorIs(t, err, ErrUnsupportedAvatar)
	_, err = f.users.SetAvatar(ctx, f.alice.ID, "huge.png", strings.NewReader(strings.Repeat("x", 2<<10)))
	assert.ErrorIs(t, err, storage.ErrTooLarge)

	p, err := f.users.SetAvatar(ctx, f.alice.ID, "Me.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	prefix := "http://files.test/files/avatars/" + strconv.FormatInt(f.alice.ID, 10) + "-"
	assert.True(t, strings.HasPrefix(p.AvatarURL, prefix), p.AvatarURL)
	assert.True(t, strings.HasSuffix(p.AvatarURL, ".png"), p.AvatarURL)
	assert.Equal(t, "Alice", p.DisplayName)

	obj, err := store.Open("avatars", strings.TrimPrefix(p.AvatarURL, "http://files.test/files/avatars/"))
	require.NoError(t, err)
	_ = obj.Close()
}

func TestMessageService_SendPublishesAndCaches(t *testing.T) {
	f := setup(t, nil)
	ctx := t.Context()
	scope := model.DirectScope(f.alice.ID, f.bob.ID)

	ps, err := redis.Subscribe(ctx, redis.ScopeChannel(scope.Key()))
	require.NoError(t, err)
	defer ps.Close()

	// 先读一次，填充最新一页缓存
	empty, err := f.messages.List(ctx, f.alice.ID, model.MessageQuery{Scope: scope})
	require.NoError(t, err)
	assert.Empty(t, empty)

	sent, err := f.messages.Send(ctx, f.alice.ID, scope, &model.Message{Content: "  hi bob  "})
	require.NoError(t, err)
	assert.Equal(t, "hi bob", sent.Content)
	require.NotNil(t, sent.Author)
	assert.Equal(t, "Alice", sent.Author.Name())

	select {
	case raw := <-ps.Channel():
		var ev model.InsertEvent
		require.NoError(t, json.Unmarshal([]byte(raw.Payload), &ev))
		assert.Equal(t, sent.ID, ev.Message.ID)
		assert.Nil(t, ev.Message.Author)
	case <-time.After(2 * time.Second):
		t.Fatal("insert event not published")
	}

	// 对方视角读取同一会话
	list, err := f.messages.List(ctx, f.bob.ID, model.MessageQuery{Scope: model.DirectScope(f.bob.ID, f.alice.ID)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sent.ID, list[0].ID)

	convs, err := f.messages.Conversations(ctx, f.bob.ID, 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "alice", convs[0].Partner.Username)
	assert.Equal(t, "hi bob", convs[0].LastMessage)
}

func TestMessageService_ConversationsHonorsLimit(t *testing.T) {
	f := setup(t, nil)
	ctx := t.Context()
	carol, _, err := f.users.Register(ctx, "carol", "carol@example.com", "", "secret3")
	require.NoError(t, err)

	_, err = f.messages.Send(ctx, f.alice.ID, model.DirectScope(f.alice.ID, f.bob.ID), &model.Message{Content: "to bob"})
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, f.alice.ID, model.DirectScope(f.alice.ID, carol.ID), &model.Message{Content: "to carol"})
	require.NoError(t, err)

	one, err := f.messages.Conversations(ctx, f.alice.ID, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "carol", one[0].Partner.Username)

	// 第二次命中缓存，仍按新的 limit 返回
	all, err := f.messages.Conversations(ctx, f.alice.ID, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMessageService_Rejects(t *testing.T) {
	f := setup(t, NewSendLimiter(0.001, 1))
	ctx := t.Context()

	_, err := f.messages.Send(ctx, f.alice.ID, model.ChannelScope(1), &model.Message{Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.messages.Send(ctx, f.alice.ID, model.DirectScope(f.alice.ID, 999), &model.Message{Content: "hello?"})
	assert.ErrorIs(t, err, ErrReceiverNotFound)

	_, err = f.messages.List(ctx, f.alice.ID, model.MessageQuery{Scope: model.DirectScope(f.bob.ID, 999)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.messages.Send(ctx, f.alice.ID, model.ChannelScope(1), &model.Message{Content: "one"})
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, f.alice.ID, model.ChannelScope(1), &model.Message{Content: "two"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestMessageService_EditInvalidatesCache(t *testing.T) {
	f := setup(t, nil)
	ctx := t.Context()
	scope := model.ChannelScope(3)

	sent, err := f.messages.Send(ctx, f.alice.ID, scope, &model.Message{Content: "draft"})
	require.NoError(t, err)
	_, err = f.messages.List(ctx, f.alice.ID, model.MessageQuery{Scope: scope})
	require.NoError(t, err)

	edited, err := f.messages.Edit(ctx, f.alice.ID, scope, sent.ID, "final")
	require.NoError(t, err)
	assert.NotNil(t, edited.EditedAt)

	list, err := f.messages.List(ctx, f.bob.ID, model.MessageQuery{Scope: scope})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "final", list[0].Content)

	assert.ErrorIs(t, f.messages.Delete(ctx, f.bob.ID, scope, sent.ID), repository.ErrNotAuthor)
}

func TestRoomService(t *testing.T) {
	f := setup(t, nil)
	ctx := t.Context()

	_, err := f.rooms.Create(ctx, f.alice.ID, "  ", "", "", []int64{f.bob.ID})
	assert.ErrorIs(t, err, ErrRoomNameRequired)
	_, err = f.rooms.Create(ctx, f.alice.ID, "solo", "", "", []int64{f.alice.ID})
	assert.ErrorIs(t, err, ErrRoomMembersRequired)

	room, err := f.rooms.Create(ctx, f.alice.ID, "gophers", "go talk", "", []int64{f.bob.ID})
	require.NoError(t, err)

	_, err = f.rooms.CreateChannel(ctx, f.bob.ID, room.ID, "general", "")
	assert.ErrorIs(t, err, ErrNotRoomAdmin)
	ch, err := f.rooms.CreateChannel(ctx, f.alice.ID, room.ID, "general", "")
	require.NoError(t, err)
	assert.Equal(t, model.ChannelText, ch.Type)

	channels, err := f.rooms.Channels(ctx, f.bob.ID, room.ID)
	require.NoError(t, err)
	assert.Len(t, channels, 1)

	_, err = f.rooms.Members(ctx, 424242, room.ID)
	assert.ErrorIs(t, err, ErrNotRoomMember)
}

func TestSettingsService(t *testing.T) {
	f := setup(t, nil)
	ctx := t.Context()

	s, err := f.settings.Get(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.True(t, s.NotificationSoundEnabled)
	assert.InDelta(t, model.DefaultVolume, s.NotificationSoundVolume, 1e-9)

	off := false
	s, err = f.settings.Update(ctx, f.alice.ID, &off, nil)
	require.NoError(t, err)
	assert.False(t, s.NotificationSoundEnabled)
	assert.InDelta(t, model.DefaultVolume, s.NotificationSoundVolume, 1e-9)
}
