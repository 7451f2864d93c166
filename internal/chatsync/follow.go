package chatsync

import (
	"context"

	"go.uber.org/zap"

	"textenger/internal/appstate"
)

// FollowSelection 让会话跟随全局选择：选择变化时重新 Open，取消选择时 Close
// 阻塞直到 ctx 结束，返回前关闭会话
func FollowSelection(ctx context.Context, state *appstate.Container, conv *Conversation) error {
	changes := make(chan struct{}, 1)
	unsubscribe := state.Subscribe(func(prev, next appstate.State) {
		a, aok := prev.Selection()
		b, bok := next.Selection()
		if aok == bok && a.Key() == b.Key() {
			return
		}
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()
	defer conv.Close()

	var current string
	reopen := func() {
		scope, ok := state.Selection()
		if !ok {
			if current != "" {
				conv.Close()
				current = ""
			}
			return
		}
		if scope.Key() == current {
			return
		}
		current = scope.Key()
		if err := conv.Open(ctx, scope); err != nil && ctx.Err() == nil {
			conv.log.Warn("打开会话失败", zap.String("scope", scope.Key()), zap.Error(err))
		}
	}

	reopen()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			reopen()
		}
	}
}

var _ FocusChecker = (*appstate.Container)(nil)
