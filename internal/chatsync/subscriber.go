package chatsync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"textenger/internal/model"
)

// ReconnectPolicy 实时订阅断线重连的退避参数
type ReconnectPolicy struct {
	Min time.Duration
	Max time.Duration
}

func (p ReconnectPolicy) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.Min > 0 {
		b.InitialInterval = p.Min
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	// 一直重试，直到会话关闭
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Subscriber 维护单个作用域的实时订阅
// 收到插入事件后回读一次（关联作者）再交给 apply；
// 断线后按指数退避重连，并调用 resync 补齐断线期间的消息
type Subscriber struct {
	rt     Realtime
	src    MessageSource
	scope  model.Scope
	policy ReconnectPolicy
	log    *zap.Logger

	apply  func(*model.Message)
	resync func(context.Context) error
	onDrop func(error)

	cancel context.CancelFunc
	done   chan struct{}
	// 后台goroutine正在执行回调
	inCallback atomic.Bool
}

type subscriberConfig struct {
	realtime Realtime
	source   MessageSource
	scope    model.Scope
	policy   ReconnectPolicy
	logger   *zap.Logger
	apply    func(*model.Message)
	resync   func(context.Context) error
	onDrop   func(error)
}

func newSubscriber(cfg subscriberConfig) *Subscriber {
	s := &Subscriber{
		rt:     cfg.realtime,
		src:    cfg.source,
		scope:  cfg.scope,
		policy: cfg.policy,
		log:    cfg.logger,
		apply:  cfg.apply,
		resync: cfg.resync,
		onDrop: cfg.onDrop,
		done:   make(chan struct{}),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.resync == nil {
		s.resync = func(context.Context) error { return nil }
	}
	if s.onDrop == nil {
		s.onDrop = func(error) {}
	}
	return s
}

// Start 在后台建立订阅并开始消费事件
// 订阅的生命周期独立于 ctx 的取消，只由 Close 结束
func (s *Subscriber) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	go s.run(ctx)
}

// Close 取消订阅并等待后台goroutine退出
// 在回调中调用时只取消不等待，回调返回后goroutine自行退出
func (s *Subscriber) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	if s.inCallback.Load() {
		return
	}
	<-s.done
}

// callback 执行回调并标记，供 Close 判断是否可以等待
func (s *Subscriber) callback(fn func()) {
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	fn()
}

func (s *Subscriber) run(ctx context.Context) {
	defer close(s.done)

	needResync := false
	for {
		sub, retried, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Error("实时订阅失败", zap.String("scope", s.scope.Key()), zap.Error(err))
				s.callback(func() { s.onDrop(err) })
			}
			return
		}
		if needResync || retried {
			reconnects.WithLabelValues(s.scope.Kind.String()).Inc()
			var resyncErr error
			s.callback(func() { resyncErr = s.resync(ctx) })
			if resyncErr != nil && ctx.Err() == nil {
				s.log.Warn("重连后补齐消息失败", zap.String("scope", s.scope.Key()), zap.Error(resyncErr))
			}
		}

		dropErr := s.consume(ctx, sub)
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("实时订阅断开，准备重连", zap.String("scope", s.scope.Key()), zap.Error(dropErr))
		s.callback(func() { s.onDrop(dropErr) })
		needResync = true
	}
}

// connect 带退避地建立订阅，retried 表示是否经历过失败
func (s *Subscriber) connect(ctx context.Context) (Subscription, bool, error) {
	var (
		sub      Subscription
		attempts int
	)
	op := func() error {
		attempts++
		var err error
		sub, err = s.rt.Subscribe(ctx, s.scope)
		if errors.Is(err, model.ErrInvalidScope) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log.Debug("订阅失败，稍后重试",
			zap.String("scope", s.scope.Key()),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	err := backoff.RetryNotify(op, backoff.WithContext(s.policy.backoff(), ctx), notify)
	return sub, attempts > 1, err
}

// consume 消费事件直到订阅断开或 ctx 结束
func (s *Subscriber) consume(ctx context.Context, sub Subscription) error {
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if err := sub.Err(); err != nil {
					return err
				}
				return ErrSubscriptionClosed
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, ev model.InsertEvent) {
	raw := ev.Message
	if !s.scope.Matches(raw) {
		return
	}

	joined, err := s.src.GetMessage(ctx, s.scope, raw.ID)
	if err != nil || joined == nil {
		if ctx.Err() != nil {
			return
		}
		// 回读失败时退回原始行，作者显示为未知用户
		s.log.Warn("回读消息失败，使用原始数据",
			zap.String("scope", s.scope.Key()),
			zap.Int64("message_id", raw.ID),
			zap.Error(err),
		)
		cp := *raw
		cp.Author = nil
		joined = &cp
	}
	s.callback(func() { s.apply(joined) })
}
