// Package chatsynctest 内存版后端，供 chatsync 的测试和离线演示使用
package chatsynctest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"textenger/internal/chatsync"
	"textenger/internal/model"
)

// ErrNotFound 消息不存在
var ErrNotFound = errors.New("chatsynctest: not found")

// Backend 实现 chatsync 所需的全部后端接口
// 钩子字段可在测试中注入失败或阻塞
type Backend struct {
	mu       sync.Mutex
	self     int64
	signedIn bool
	nextID   int64
	clock    func() time.Time
	profiles map[int64]*model.Profile
	messages []*model.Message
	subs     map[*Subscription]struct{}
	blobs    map[string]Blob
	settings map[int64]model.UserSettings

	// ListHook 在 ListMessages 查询前调用，返回错误则查询失败
	ListHook func(ctx context.Context, q model.MessageQuery) error
	// GetHook 在 GetMessage 查询前调用
	GetHook func(ctx context.Context, id int64) error
	// InsertHook 在 InsertMessage 写入前调用
	InsertHook func(ctx context.Context, m *model.Message) error
	// UploadHook 在 Upload 前调用
	UploadHook func(ctx context.Context, bucket, path string) error
	// SubscribeHook 在 Subscribe 前调用
	SubscribeHook func(ctx context.Context, scope model.Scope) error

	listCalls   int
	insertCalls int
	uploadCalls int
	subCalls    int
}

// Blob 已上传的文件
type Blob struct {
	Data        []byte
	ContentType string
}

// New 创建后端，clock 为空时使用一个每次调用前进一秒的假时钟
func New(clock func() time.Time) *Backend {
	if clock == nil {
		clock = SteppingClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), time.Second)
	}
	return &Backend{
		clock:    clock,
		profiles: make(map[int64]*model.Profile),
		subs:     make(map[*Subscription]struct{}),
		blobs:    make(map[string]Blob),
		settings: make(map[int64]model.UserSettings),
	}
}

// SteppingClock 每次调用前进 step 的时钟
func SteppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

// SignIn 设置当前登录用户
func (b *Backend) SignIn(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self, b.signedIn = userID, true
}

func (b *Backend) SignOut() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self, b.signedIn = 0, false
}

func (b *Backend) CurrentUserID() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.self, b.signedIn
}

// AddProfile 添加用户资料
func (b *Backend) AddProfile(p model.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[p.ID] = &p
}

// Seed 直接写入一条消息，不触发实时事件
func (b *Backend) Seed(scope model.Scope, authorID int64, content string) *model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.newRowLocked(scope, authorID, content)
	return b.joinLocked(m)
}

func (b *Backend) newRowLocked(scope model.Scope, authorID int64, content string) *model.Message {
	b.nextID++
	m := &model.Message{ID: b.nextID, AuthorID: authorID, Content: content, CreatedAt: b.clock()}
	scope.Stamp(m)
	b.messages = append(b.messages, m)
	return m
}

// joinLocked 返回关联作者后的副本
func (b *Backend) joinLocked(m *model.Message) *model.Message {
	cp := *m
	if p, ok := b.profiles[m.AuthorID]; ok {
		pc := *p
		cp.Author = &pc
	}
	return &cp
}

func (b *Backend) ListMessages(ctx context.Context, q model.MessageQuery) ([]*model.Message, error) {
	b.mu.Lock()
	b.listCalls++
	hook := b.ListHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, q); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// 与服务端相同的单页上限
	if q.Limit > model.MaxPageSize {
		q.Limit = model.MaxPageSize
	}
	var rows []*model.Message
	for _, m := range b.messages {
		if !q.Scope.Matches(m) || !q.Before.Before(m) || !q.After.After(m) {
			continue
		}
		rows = append(rows, m)
	}
	if q.After != nil {
		// 向后补齐：取紧邻游标之后的 Limit 条
		slices.SortFunc(rows, model.CompareMessages)
		if q.Limit > 0 && len(rows) > q.Limit {
			rows = rows[:q.Limit]
		}
		slices.Reverse(rows)
	} else {
		slices.SortFunc(rows, func(x, y *model.Message) int { return model.CompareMessages(y, x) })
		if q.Limit > 0 && len(rows) > q.Limit {
			rows = rows[:q.Limit]
		}
	}

	out := make([]*model.Message, len(rows))
	for i, m := range rows {
		out[i] = b.joinLocked(m)
	}
	return out, nil
}

func (b *Backend) GetMessage(ctx context.Context, scope model.Scope, id int64) (*model.Message, error) {
	b.mu.Lock()
	hook := b.GetHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, id); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.messages {
		if m.ID == id && scope.Matches(m) {
			return b.joinLocked(m), nil
		}
	}
	return nil, ErrNotFound
}

// InsertMessage 写入消息并向匹配的订阅广播原始行
func (b *Backend) InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	b.mu.Lock()
	b.insertCalls++
	hook := b.InsertHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, msg); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	b.nextID++
	row := *msg
	row.ID = b.nextID
	row.CreatedAt = b.clock()
	row.Author = nil
	b.messages = append(b.messages, &row)
	out := b.joinLocked(&row)
	b.mu.Unlock()

	b.Emit(&row)
	return out, nil
}

// Emit 向所有订阅推送一条原始行（不关联作者）
// 由订阅方自行按作用域过滤
func (b *Backend) Emit(m *model.Message) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		raw := *m
		raw.Author = nil
		s.send(model.InsertEvent{Scope: model.ScopeOf(&raw, raw.AuthorID).Key(), Message: &raw})
	}
}

func (b *Backend) Subscribe(ctx context.Context, scope model.Scope) (chatsync.Subscription, error) {
	b.mu.Lock()
	b.subCalls++
	hook := b.SubscribeHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, scope); err != nil {
			return nil, err
		}
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	sub := &Subscription{
		backend: b,
		scope:   scope,
		events:  make(chan model.InsertEvent, 256),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

// Drop 模拟连接断开：结束所有订阅，Err 返回 cause
func (b *Backend) Drop(cause error) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.end(cause)
	}
}

// ActiveSubscriptions 当前未结束的订阅数
func (b *Backend) ActiveSubscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Backend) Upload(ctx context.Context, bucket, path string, r io.Reader, size int64, contentType string) error {
	b.mu.Lock()
	b.uploadCalls++
	hook := b.UploadHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, bucket, path); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(r, size+1)); err != nil {
		return err
	}
	if int64(buf.Len()) != size {
		return fmt.Errorf("chatsynctest: size mismatch: got %d want %d", buf.Len(), size)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[bucket+"/"+path] = Blob{Data: buf.Bytes(), ContentType: contentType}
	return nil
}

func (b *Backend) PublicURL(bucket, path string) string {
	return "mem://public/" + bucket + "/" + path
}

func (b *Backend) SignedURL(_ context.Context, bucket, path string, ttl time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.blobs[bucket+"/"+path]; !ok {
		return "", ErrNotFound
	}
	return fmt.Sprintf("mem://signed/%s/%s?ttl=%s", bucket, path, ttl), nil
}

// Blob 读取已上传的文件
func (b *Backend) Blob(bucket, path string) (Blob, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blob, ok := b.blobs[bucket+"/"+path]
	return blob, ok
}

func (b *Backend) LoadSettings(context.Context) (model.UserSettings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.settings[b.self]; ok {
		return s, nil
	}
	return model.DefaultSettings(b.self), nil
}

func (b *Backend) SaveSettings(_ context.Context, s model.UserSettings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s.UserID = b.self
	b.settings[b.self] = s
	return nil
}

// Messages 后端中某作用域的全部消息，按时间正序
func (b *Backend) Messages(scope model.Scope) []*model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*model.Message
	for _, m := range b.messages {
		if scope.Matches(m) {
			out = append(out, b.joinLocked(m))
		}
	}
	slices.SortFunc(out, model.CompareMessages)
	return out
}

// Calls 调用计数
type Calls struct {
	List, Insert, Upload, Subscribe int
}

func (b *Backend) Calls() Calls {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Calls{List: b.listCalls, Insert: b.insertCalls, Upload: b.uploadCalls, Subscribe: b.subCalls}
}

// Subscription 内存订阅
type Subscription struct {
	backend *Backend
	scope   model.Scope
	events  chan model.InsertEvent

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *Subscription) Events() <-chan model.InsertEvent { return s.events }

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Close() error {
	s.end(nil)
	return nil
}

func (s *Subscription) send(ev model.InsertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		// 缓冲满时视为连接异常
		s.closeLocked(errors.New("chatsynctest: subscriber too slow"))
	}
}

func (s *Subscription) end(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(cause)
}

func (s *Subscription) closeLocked(cause error) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = cause
	close(s.events)

	s.backend.mu.Lock()
	delete(s.backend.subs, s)
	s.backend.mu.Unlock()
}
