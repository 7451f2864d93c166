package chatsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"textenger/internal/model"
)

// Change 会话内容变化通知
// ScrollToNewest: 首次加载或收到新消息，视图应滚动到底部
// PreserveAnchor: 加载了更早的历史，视图应保持当前可见位置
type Change struct {
	Scope          model.Scope
	Messages       []*model.Message
	ScrollToNewest bool
	PreserveAnchor bool
	Live           bool
}

// CueNotifier 播放新消息提示音
type CueNotifier interface {
	Cue(ctx context.Context, kind model.ScopeKind)
}

// FocusChecker 判断某个作用域当前是否在前台可见
type FocusChecker interface {
	IsFocused(scope model.Scope) bool
}

// Options 会话可选参数
type Options struct {
	Logger      *zap.Logger
	PageSizes   PageSizes
	GroupWindow time.Duration
	Reconnect   ReconnectPolicy
	Toaster     Toaster
	Cue         CueNotifier
	Focus       FocusChecker
	// OnChange 在锁外同步调用，不应阻塞太久
	// 实时消息的变化在订阅goroutine上回调，回调内可以调用 Close 或 Open
	OnChange func(Change)
}

// Conversation 单个会话视图的同步状态：历史分页 + 实时订阅 + 有序消息列表
// 频道、私聊、房间三种会话共用，由 Scope 决定查询与过滤条件
// 每次 Open 递增代数，旧代数的加载结果和实时事件一律丢弃
type Conversation struct {
	backend Backend
	loader  *Loader
	opts    Options
	log     *zap.Logger

	mu      sync.Mutex
	scope   model.Scope
	open    bool
	gen     uint64
	store   *Store
	cursor  *model.Cursor
	hasMore bool
	loading bool
	sub     *Subscriber
}

// NewConversation 创建会话，需调用 Open 选择作用域
func NewConversation(backend Backend, opts Options) *Conversation {
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	if opts.Toaster == nil {
		opts.Toaster = nopToaster{}
	}
	if opts.GroupWindow <= 0 {
		opts.GroupWindow = GroupWindow
	}
	return &Conversation{
		backend: backend,
		loader:  NewLoader(backend, opts.PageSizes),
		opts:    opts,
		log:     opts.Logger.Named("chatsync"),
		store:   NewStore(),
	}
}

// Open 切换到新的作用域：关闭旧订阅、清空列表、建立新订阅、加载最新一页
// 私聊作用域未填本人ID时使用当前登录用户
func (c *Conversation) Open(ctx context.Context, scope model.Scope) error {
	self, ok := c.backend.CurrentUserID()
	if !ok {
		return ErrNoSession
	}
	if scope.Kind == model.KindDirect && scope.UserID == 0 {
		scope.UserID = self
	}
	if err := scope.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	old := c.sub
	c.sub = nil
	c.gen++
	gen := c.gen
	c.scope = scope
	c.open = true
	c.store = NewStore()
	c.cursor = nil
	c.hasMore = true
	c.loading = true
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	sub := newSubscriber(subscriberConfig{
		realtime: c.backend,
		source:   c.backend,
		scope:    scope,
		policy:   c.opts.Reconnect,
		logger:   c.log,
		apply:    func(m *model.Message) { c.applyLive(gen, self, m) },
		resync:   func(ctx context.Context) error { return c.backfill(ctx, gen) },
		onDrop:   func(err error) { c.dropped(gen, err) },
	})
	// 先订阅再加载，加载期间到达的消息由合并去重
	sub.Start(ctx)
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		sub.Close()
		return nil
	}
	c.sub = sub
	c.mu.Unlock()

	page, err := c.loader.Load(ctx, scope, nil)
	return c.finishLoad(gen, page, err, true)
}

// LoadMore 加载更早的一页
// 已在加载中返回 ErrLoadInFlight；没有更多历史时什么也不做
func (c *Conversation) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case !c.open:
		c.mu.Unlock()
		return ErrNotOpen
	case c.loading:
		c.mu.Unlock()
		return ErrLoadInFlight
	case !c.hasMore:
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	gen, scope, cursor := c.gen, c.scope, c.cursor
	c.mu.Unlock()

	page, err := c.loader.Load(ctx, scope, cursor)
	return c.finishLoad(gen, page, err, false)
}

func (c *Conversation) finishLoad(gen uint64, page Page, err error, initial bool) error {
	c.mu.Lock()
	if c.gen != gen {
		kind := c.scope.Kind
		c.mu.Unlock()
		staleResults.WithLabelValues(kind.String()).Inc()
		c.log.Debug("丢弃过期的加载结果", zap.Uint64("generation", gen))
		return nil
	}
	c.loading = false
	scope := c.scope
	if err != nil {
		c.mu.Unlock()
		c.log.Error("加载消息失败", zap.String("scope", scope.Key()), zap.Error(err))
		c.opts.Toaster.Toast("Failed to load messages", err)
		return err
	}

	added := c.store.Merge(page.Messages)
	if len(page.Messages) > 0 {
		c.cursor = page.Cursor
	}
	c.hasMore = page.HasMore
	snapshot := c.store.Snapshot()
	c.mu.Unlock()

	mergedMessages.WithLabelValues(scope.Kind.String(), "history").Add(float64(added))
	c.emit(Change{
		Scope:          scope,
		Messages:       snapshot,
		ScrollToNewest: initial,
		PreserveAnchor: !initial,
	})
	return nil
}

// applyLive 合并一条实时消息，并在需要时播放提示音
func (c *Conversation) applyLive(gen uint64, self int64, m *model.Message) {
	c.mu.Lock()
	if c.gen != gen {
		kind := c.scope.Kind
		c.mu.Unlock()
		staleResults.WithLabelValues(kind.String()).Inc()
		return
	}
	scope := c.scope
	added := c.store.AppendLive(m)
	var snapshot []*model.Message
	if added {
		snapshot = c.store.Snapshot()
	}
	c.mu.Unlock()

	if !added {
		duplicateMessages.WithLabelValues(scope.Kind.String()).Inc()
		return
	}
	mergedMessages.WithLabelValues(scope.Kind.String(), "live").Inc()
	c.emit(Change{Scope: scope, Messages: snapshot, ScrollToNewest: true, Live: true})

	if m.AuthorID != self && c.opts.Cue != nil && !c.focused(scope) {
		c.opts.Cue.Cue(context.Background(), scope.Kind)
	}
}

func (c *Conversation) focused(scope model.Scope) bool {
	return c.opts.Focus != nil && c.opts.Focus.IsFocused(scope)
}

// backfill 重连后向后翻页，补齐断线期间错过的消息，直到遇到不满的一页
func (c *Conversation) backfill(ctx context.Context, gen uint64) error {
	for {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return nil
		}
		scope := c.scope
		newest := c.store.Newest()
		c.mu.Unlock()

		var (
			page Page
			err  error
		)
		if newest == nil {
			page, err = c.loader.Load(ctx, scope, nil)
		} else {
			page, err = c.loader.LoadAfter(ctx, scope, newest.Cursor())
		}
		if err != nil {
			return err
		}

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return nil
		}
		added := c.store.Merge(page.Messages)
		if newest == nil && len(page.Messages) > 0 {
			c.cursor = page.Cursor
			c.hasMore = page.HasMore
		}
		snapshot := c.store.Snapshot()
		c.mu.Unlock()

		if added > 0 {
			mergedMessages.WithLabelValues(scope.Kind.String(), "backfill").Add(float64(added))
			c.emit(Change{Scope: scope, Messages: snapshot, ScrollToNewest: true, Live: true})
		}
		if newest == nil || !page.HasMore {
			return nil
		}
	}
}

func (c *Conversation) dropped(gen uint64, err error) {
	c.mu.Lock()
	current := c.gen == gen
	c.mu.Unlock()
	if current && !errors.Is(err, context.Canceled) {
		c.opts.Toaster.Toast("Realtime connection lost, reconnecting", err)
	}
}

func (c *Conversation) emit(ch Change) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(ch)
	}
}

// Close 关闭实时订阅，之后的加载结果与事件都会被丢弃
func (c *Conversation) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.gen++
	c.open = false
	c.loading = false
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// Scope 当前作用域，未打开时 ok 为 false
func (c *Conversation) Scope() (model.Scope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope, c.open
}

// Messages 当前消息列表副本
func (c *Conversation) Messages() []*model.Message {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	return store.Snapshot()
}

// Runs 按作者与时间窗口分组后的消息
func (c *Conversation) Runs() []Run {
	var runs []Run
	for r := range Runs(c.Messages(), c.opts.GroupWindow) {
		runs = append(runs, r)
	}
	return runs
}

func (c *Conversation) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

func (c *Conversation) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}
