package chatsync

import (
	"context"
	"fmt"
	"slices"

	"textenger/internal/model"
)

// PageSizes 各类会话的分页大小，0 表示使用作用域默认值
type PageSizes struct {
	Channel int
	Direct  int
	Room    int
}

// For 作用域对应的分页大小，不超过服务端上限
func (p PageSizes) For(scope model.Scope) int {
	var n int
	switch scope.Kind {
	case model.KindChannel:
		n = p.Channel
	case model.KindDirect:
		n = p.Direct
	case model.KindRoom:
		n = p.Room
	}
	if n <= 0 {
		return scope.PageSize()
	}
	return min(n, model.MaxPageSize)
}

// Page 按时间正序的一页历史
type Page struct {
	Messages []*model.Message
	// 下一次请求的锚点：向前翻页取最旧一条，向后补齐取最新一条
	// 空页时保持不变
	Cursor  *model.Cursor
	HasMore bool
}

// Loader 历史消息加载器
type Loader struct {
	src   MessageSource
	sizes PageSizes
}

func NewLoader(src MessageSource, sizes PageSizes) *Loader {
	return &Loader{src: src, sizes: sizes}
}

// Load 加载严格早于 before 的一页；before 为空时加载最新一页
func (l *Loader) Load(ctx context.Context, scope model.Scope, before *model.Cursor) (Page, error) {
	limit := l.sizes.For(scope)
	rows, err := l.src.ListMessages(ctx, model.MessageQuery{Scope: scope, Before: before, Limit: limit})
	if err != nil {
		return Page{Cursor: before}, fmt.Errorf("load %s: %w", scope, err)
	}
	if len(rows) == 0 {
		return Page{Cursor: before}, nil
	}

	msgs := slices.Clone(rows)
	slices.Reverse(msgs)
	return Page{
		Messages: msgs,
		Cursor:   msgs[0].Cursor(),
		HasMore:  len(msgs) == limit,
	}, nil
}

// LoadAfter 加载严格晚于 after 的一页，用于重连后补齐
func (l *Loader) LoadAfter(ctx context.Context, scope model.Scope, after *model.Cursor) (Page, error) {
	limit := l.sizes.For(scope)
	rows, err := l.src.ListMessages(ctx, model.MessageQuery{Scope: scope, After: after, Limit: limit})
	if err != nil {
		return Page{Cursor: after}, fmt.Errorf("load %s after cursor: %w", scope, err)
	}
	if len(rows) == 0 {
		return Page{Cursor: after}, nil
	}

	msgs := slices.Clone(rows)
	slices.Reverse(msgs)
	return Page{
		Messages: msgs,
		Cursor:   msgs[len(msgs)-1].Cursor(),
		HasMore:  len(msgs) == limit,
	}, nil
}
