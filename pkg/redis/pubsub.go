package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"textenger/internal/model"

	"github.com/redis/go-redis/v9"
)

// 发布订阅频道前缀
const (
	ScopeChannelPrefix = KeyPrefix + "scope:"
	InboxChannelPrefix = KeyPrefix + "inbox:"
)

// ScopeChannel 会话作用域对应的频道
func ScopeChannel(scopeKey string) string { return ScopeChannelPrefix + scopeKey }

// InboxChannel 用户私聊收件箱频道，会话列表据此刷新
func InboxChannel(userID int64) string {
	return InboxChannelPrefix + strconv.FormatInt(userID, 10)
}

// PublishInsert 广播插入事件
// 私聊额外发到双方的收件箱
func PublishInsert(ctx context.Context, ev model.InsertEvent) error {
	if client == nil {
		return ErrNotInitialized
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	channels := []string{ScopeChannel(ev.Scope)}
	if m := ev.Message; m != nil && m.Kind == model.KindDirect {
		channels = append(channels, InboxChannel(m.AuthorID), InboxChannel(m.ReceiverID))
	}
	_, err = client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ch := range channels {
			pipe.Publish(ctx, ch, data)
		}
		return nil
	})
	return err
}

// Subscribe 订阅若干频道；调用方负责 Close
func Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	if client == nil {
		return nil, ErrNotInitialized
	}
	ps := client.Subscribe(ctx, channels...)
	// 等待订阅确认，确保之后发布的消息不会丢
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("订阅失败: %w", err)
	}
	return ps, nil
}

// PSubscribe 按模式订阅，网关用一条连接接收所有会话事件
func PSubscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error) {
	if client == nil {
		return nil, ErrNotInitialized
	}
	ps := client.PSubscribe(ctx, patterns...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("订阅失败: %w", err)
	}
	return ps, nil
}
