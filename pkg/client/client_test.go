package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"textenger/config"
	"textenger/internal/appstate"
	"textenger/internal/chatsync"
	"textenger/internal/handler"
	"textenger/internal/model"
	"textenger/internal/repository"
	"textenger/internal/service"
	"textenger/pkg/db"
	"textenger/pkg/jwt"
	"textenger/pkg/redis"
	"textenger/pkg/storage"
	"textenger/pkg/websocket"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	URL     string
	manager *websocket.Manager
}

// newServer 启动完整的服务端：sqlite + miniredis + 实时网关
func newServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	var router http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "s", Issuer: "textenger", ExpireTime: time.Hour})
	store, err := storage.NewLocal(config.StorageConfig{Root: t.TempDir(), BaseURL: srv.URL, MaxUploadSize: 1 << 20}, jwtSvc)
	require.NoError(t, err)

	profiles := repository.NewProfileRepository(orm)
	h := &handler.Handlers{
		User:     handler.NewUserHandler(service.NewUserService(profiles, jwtSvc).WithAvatarStore(store, "avatars")),
		Message:  handler.NewMessageHandler(service.NewMessageService(repository.NewMessageRepository(orm), profiles, nil)),
		Room:     handler.NewRoomHandler(service.NewRoomService(repository.NewRoomRepository(orm))),
		Settings: handler.NewSettingsHandler(service.NewSettingsService(repository.NewSettingsRepository(orm))),
		Storage:  handler.NewStorageHandler(store, time.Hour),
	}

	manager := websocket.NewManager()
	go func() { _ = manager.Run(t.Context()) }()
	require.Eventually(t, func() bool { return mr.PubSubNumPat() > 0 }, 2*time.Second, 10*time.Millisecond)
	t.Cleanup(manager.CloseAll)

	r := gin.New()
	h.RegisterRoutes(r, jwtSvc.AuthMiddleware())
	r.GET("/ws", websocket.NewHandler(jwtSvc, config.WebSocketConfig{PingInterval: time.Second}, manager).ServeWS)
	router = r
	return &testEnv{URL: srv.URL, manager: manager}
}

func signUp(t *testing.T, env *testEnv, name string) *Client {
	t.Helper()
	c, err := New(env.URL)
	require.NoError(t, err)
	_, err = c.Register(t.Context(), name, name+"@example.com", "", "secret-"+name)
	require.NoError(t, err)
	return c
}

func TestAuthAndErrors(t *testing.T) {
	base := newServer(t)
	alice := signUp(t, base, "alice")
	id, ok := alice.CurrentUserID()
	require.True(t, ok)

	c, err := New(base.URL)
	require.NoError(t, err)
	_, ok = c.CurrentUserID()
	assert.False(t, ok)

	_, err = c.Login(t.Context(), "alice", "wrong-password")
	assert.True(t, IsCode(err, http.StatusUnauthorized), err)

	// 用保存的 token 恢复登录态
	c.SetToken(alice.Token())
	me, err := c.Me(t.Context())
	require.NoError(t, err)
	assert.Equal(t, id, me.ID)

	c.Logout()
	_, err = c.Rooms(t.Context())
	assert.True(t, IsCode(err, http.StatusUnauthorized), err)

	_, err = New("ftp://example.com")
	assert.Error(t, err)
}

func TestMessagesAndRealtime(t *testing.T) {
	base := newServer(t)
	alice := signUp(t, base, "alice")
	bob := signUp(t, base, "bob")
	aliceID, _ := alice.CurrentUserID()
	bobID, _ := bob.CurrentUserID()
	ctx := t.Context()

	sub, err := bob.Subscribe(ctx, model.DirectScope(bobID, aliceID))
	require.NoError(t, err)
	inbox, err := bob.SubscribeInbox(ctx)
	require.NoError(t, err)
	defer inbox.Close()

	draft := &model.Message{AuthorID: aliceID, Content: "hi bob"}
	model.DirectScope(aliceID, bobID).Stamp(draft)
	sent, err := alice.InsertMessage(ctx, draft)
	require.NoError(t, err)
	require.NotNil(t, sent.Author)
	assert.Equal(t, "alice", sent.Author.Username)

	for _, events := range []<-chan model.InsertEvent{sub.Events(), inbox.Events()} {
		select {
		case ev := <-events:
			assert.Equal(t, sent.ID, ev.Message.ID)
		case <-time.After(3 * time.Second):
			t.Fatal("insert event not delivered")
		}
	}

	require.NoError(t, sub.Close())
	_, open := <-sub.Events()
	assert.False(t, open)
	assert.NoError(t, sub.Err())

	scope := model.DirectScope(bobID, aliceID)
	page, err := bob.ListPage(ctx, model.MessageQuery{Scope: scope, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.True(t, page.HasMore)

	got, err := bob.GetMessage(ctx, scope, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi bob", got.Content)

	edited, err := alice.EditMessage(ctx, model.DirectScope(aliceID, bobID), sent.ID, "hi bobby")
	require.NoError(t, err)
	assert.NotNil(t, edited.EditedAt)
	assert.True(t, IsCode(bob.DeleteMessage(ctx, scope, sent.ID), http.StatusForbidden))

	convs, err := bob.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, aliceID, convs[0].Partner.ID)

	// 非参与方订阅私聊被视为非法作用域
	carol := signUp(t, base, "carol")
	_, err = carol.subscribe(ctx, scope.Key())
	assert.ErrorIs(t, err, model.ErrInvalidScope)
}

// 配置的分页大小超过服务端上限时，仍能翻完全部历史
func TestLoaderPagesPastServerCap(t *testing.T) {
	base := newServer(t)
	alice := signUp(t, base, "alice")
	aliceID, _ := alice.CurrentUserID()
	ctx := t.Context()

	scope := model.ChannelScope(9)
	for i := range 130 {
		draft := &model.Message{AuthorID: aliceID, Content: fmt.Sprintf("m%d", i)}
		scope.Stamp(draft)
		_, err := alice.InsertMessage(ctx, draft)
		require.NoError(t, err)
	}

	page, err := alice.ListPage(ctx, model.MessageQuery{Scope: scope, Limit: 120})
	require.NoError(t, err)
	require.Len(t, page.Messages, model.MaxPageSize)
	assert.True(t, page.HasMore)

	loader := chatsync.NewLoader(alice, chatsync.PageSizes{Channel: 120})
	seen := make(map[int64]bool)
	var cursor *model.Cursor
	for range 5 {
		p, err := loader.Load(ctx, scope, cursor)
		require.NoError(t, err)
		for _, m := range p.Messages {
			seen[m.ID] = true
		}
		cursor = p.Cursor
		if !p.HasMore {
			break
		}
	}
	assert.Len(t, seen, 130)
}

func TestStorageAndSettings(t *testing.T) {
	base := newServer(t)
	alice := signUp(t, base, "alice")
	ctx := t.Context()

	content := "hello attachment"
	require.NoError(t, alice.Upload(ctx, "attachments", "attachments/1-2.txt", strings.NewReader(content), int64(len(content)), "text/plain"))

	signed, err := alice.SignedURL(ctx, "attachments", "attachments/1-2.txt", time.Minute)
	require.NoError(t, err)
	for _, u := range []string{signed, alice.PublicURL("attachments", "attachments/1-2.txt")} {
		resp, err := http.Get(u)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, u)
		assert.Equal(t, content, string(body))
	}

	err = alice.Upload(ctx, "attachments", "attachments/big.bin", bytes.NewReader(make([]byte, 2<<20)), 2<<20, "")
	assert.Error(t, err)

	s, err := alice.LoadSettings(ctx)
	require.NoError(t, err)
	assert.True(t, s.NotificationSoundEnabled)
	s.NotificationSoundEnabled = false
	require.NoError(t, alice.SaveSettings(ctx, s))
	s, err = alice.LoadSettings(ctx)
	require.NoError(t, err)
	assert.False(t, s.NotificationSoundEnabled)
}

func TestProfileEditing(t *testing.T) {
	base := newServer(t)
	alice := signUp(t, base, "alice")
	signUp(t, base, "bob")
	ctx := t.Context()

	name, bio := "Alice", "hi there"
	p, err := alice.UpdateProfile(ctx, model.ProfileUpdate{DisplayName: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, "Alice", alice.Self().Name())

	taken := "bob"
	_, err = alice.UpdateProfile(ctx, model.ProfileUpdate{Username: &taken})
	assert.True(t, IsCode(err, http.StatusConflict), err)

	p, err = alice.UploadAvatar(ctx, "me.png", strings.NewReader("avatar-bytes"), "image/png")
	require.NoError(t, err)
	require.NotEmpty(t, p.AvatarURL)
	assert.Equal(t, p.AvatarURL, alice.Self().AvatarURL)

	resp, err := http.Get(p.AvatarURL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "avatar-bytes", string(body))

	_, err = alice.UploadAvatar(ctx, "me.exe", strings.NewReader("nope"), "")
	assert.True(t, IsCode(err, http.StatusBadRequest), err)

	// 其他人读到的是新资料
	bob := signUp(t, base, "bob2")
	seen, err := bob.Profile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi there", seen.Bio)
	assert.Equal(t, p.AvatarURL, seen.AvatarURL)
}

func TestRooms(t *testing.T) {
	base := newServer(t)
	alice := signUp(t, base, "alice")
	bob := signUp(t, base, "bob")
	bobID, _ := bob.CurrentUserID()
	ctx := t.Context()

	others, err := alice.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, others, 1)

	room, err := alice.CreateRoom(ctx, "gophers", "", "", []int64{bobID})
	require.NoError(t, err)
	ch, err := alice.CreateChannel(ctx, room.ID, "general", model.ChannelText)
	require.NoError(t, err)

	channels, err := bob.Channels(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, ch.ID, channels[0].ID)

	members, err := bob.Members(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

// 会话核心直接跑在真实服务端上：发送后只靠实时回显出现一次
func TestConversationOverNetwork(t *testing.T) {
	base := newServer(t)
	alice := signUp(t, base, "alice")
	bob := signUp(t, base, "bob")
	aliceID, _ := alice.CurrentUserID()
	bobID, _ := bob.CurrentUserID()
	ctx := t.Context()

	state := appstate.New(appstate.State{CurrentUserID: aliceID, WindowFocused: true})
	conv := chatsync.NewConversation(alice, chatsync.Options{Focus: state})
	go func() { _ = chatsync.FollowSelection(ctx, state, conv) }()
	state.Dispatch(appstate.SelectDirect{PeerID: bobID})
	topic := redis.ScopeChannel(model.DirectScope(aliceID, bobID).Key())
	require.Eventually(t, func() bool {
		s, ok := conv.Scope()
		return ok && s.PeerID == bobID && !conv.Loading() && base.manager.Count(topic) == 1
	}, 3*time.Second, 10*time.Millisecond)

	composer := chatsync.NewComposer(alice, model.DirectScope(aliceID, bobID), chatsync.ComposerOptions{})
	composer.SetText("ping")
	_, err := composer.Submit(ctx)
	require.NoError(t, err)

	reply := &model.Message{AuthorID: bobID, Content: "pong"}
	model.DirectScope(bobID, aliceID).Stamp(reply)
	_, err = bob.InsertMessage(ctx, reply)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(conv.Messages()) == 2 }, 3*time.Second, 10*time.Millisecond)
	msgs := conv.Messages()
	assert.Equal(t, "ping", msgs[0].Content)
	assert.Equal(t, "pong", msgs[1].Content)
	require.NotNil(t, msgs[1].Author)
	assert.Equal(t, "bob", msgs[1].Author.Username)
}
