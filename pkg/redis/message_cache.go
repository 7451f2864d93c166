package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"textenger/internal/model"

	"github.com/redis/go-redis/v9"
)

// 消息缓存相关常量
const (
	RecentKeyPrefix        = KeyPrefix + "recent:"        // 会话最新一页，按作用域key
	ConversationsKeyPrefix = KeyPrefix + "conversations:" // 私聊会话列表，按用户
)

var (
	// ErrNotInitialized 客户端未初始化
	ErrNotInitialized = errors.New("redis客户端未初始化")
	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = errors.New("cache miss")
)

// 缓存配置（从配置文件获取）
var (
	RecentTTL   = 10 * time.Minute // 最新一页缓存TTL
	RecentLimit = 50               // 每个会话最多缓存条数
)

// SetCacheConfig 设置缓存配置，非正值保持默认
func SetCacheConfig(ttl time.Duration, limit int) {
	if ttl > 0 {
		RecentTTL = ttl
	}
	if limit > 0 {
		RecentLimit = limit
	}
}

func recentKey(scopeKey string) string { return RecentKeyPrefix + scopeKey }

func conversationsKey(userID int64) string {
	return ConversationsKeyPrefix + strconv.FormatInt(userID, 10)
}

// CacheRecent 缓存会话最新的一页（msgs 从新到旧）
func CacheRecent(ctx context.Context, scopeKey string, msgs []*model.Message) error {
	if client == nil {
		return ErrNotInitialized
	}
	if len(msgs) > RecentLimit {
		msgs = msgs[:RecentLimit]
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("序列化消息失败: %w", err)
		}
		values = append(values, data)
	}

	key := recentKey(scopeKey)
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
			pipe.Expire(ctx, key, RecentTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("缓存最新消息失败: %w", err)
	}
	return nil
}

// GetRecent 读取缓存的最新 limit 条，返回从新到旧
// 缓存不存在返回 ErrCacheMiss
func GetRecent(ctx context.Context, scopeKey string, limit int) ([]*model.Message, error) {
	if client == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > RecentLimit {
		return nil, ErrCacheMiss
	}
	values, err := client.LRange(ctx, recentKey(scopeKey), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrCacheMiss
	}

	msgs := make([]*model.Message, 0, len(values))
	for _, v := range values {
		var m model.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("反序列化消息失败: %w", err)
		}
		msgs = append(msgs, &m)
	}
	// 并发写入时 LPUSH 顺序可能与时间序不一致
	slices.SortFunc(msgs, func(a, b *model.Message) int { return model.CompareMessages(b, a) })
	return msgs, nil
}

// PushRecent 新消息写入缓存头部；缓存不存在时不创建，避免留下残缺的一页
func PushRecent(ctx context.Context, scopeKey string, msg *model.Message) error {
	if client == nil {
		return ErrNotInitialized
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	key := recentKey(scopeKey)
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPushX(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(RecentLimit-1))
		return nil
	})
	return err
}

// InvalidateRecent 清除会话缓存（编辑、删除后）
func InvalidateRecent(ctx context.Context, scopeKey string) error {
	if client == nil {
		return ErrNotInitialized
	}
	return client.Del(ctx, recentKey(scopeKey)).Err()
}

// CacheConversations 缓存私聊会话列表
func CacheConversations(ctx context.Context, userID int64, conversations []model.ConversationSummary) error {
	if client == nil {
		return ErrNotInitialized
	}
	data, err := json.Marshal(conversations)
	if err != nil {
		return fmt.Errorf("序列化对话列表失败: %w", err)
	}
	if err := client.Set(ctx, conversationsKey(userID), data, RecentTTL).Err(); err != nil {
		return fmt.Errorf("缓存对话列表失败: %w", err)
	}
	return nil
}

// GetCachedConversations 获取缓存的私聊会话列表
func GetCachedConversations(ctx context.Context, userID int64) ([]model.ConversationSummary, error) {
	if client == nil {
		return nil, ErrNotInitialized
	}
	data, err := client.Get(ctx, conversationsKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var conversations []model.ConversationSummary
	if err := json.Unmarshal(data, &conversations); err != nil {
		return nil, fmt.Errorf("反序列化对话列表失败: %w", err)
	}
	return conversations, nil
}

// ClearConversationCache 清除对话缓存
func ClearConversationCache(ctx context.Context, userIDs ...int64) error {
	if client == nil {
		return ErrNotInitialized
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, conversationsKey(id))
	}
	return client.Del(ctx, keys...).Err()
}
