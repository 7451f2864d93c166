package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"textenger/internal/model"
	"textenger/internal/repository"
	"textenger/pkg/logger"
	"textenger/pkg/redis"

	"go.uber.org/zap"
)

var (
	// ErrForbidden 不是该会话的参与方
	ErrForbidden = errors.New("not a participant of this conversation")
	// ErrRateLimited 发送过于频繁
	ErrRateLimited = errors.New("sending too fast")
	// ErrEmptyMessage 内容和附件都为空
	ErrEmptyMessage = errors.New("message has no content or attachment")
	// ErrReceiverNotFound 私聊对象不存在
	ErrReceiverNotFound = errors.New("receiver not found")
)

// MessageService 消息服务
// 写入成功后：更新最新一页缓存、清除私聊会话列表缓存、通过 redis 广播插入事件
type MessageService struct {
	messageRepo *repository.MessageRepository
	profileRepo *repository.ProfileRepository
	limiter     *SendLimiter
}

// NewMessageService 创建MessageService实例
func NewMessageService(messageRepo *repository.MessageRepository, profileRepo *repository.ProfileRepository, limiter *SendLimiter) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		profileRepo: profileRepo,
		limiter:     limiter,
	}
}

// authorize 私聊只允许参与方访问
func authorize(scope model.Scope, self int64) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !scope.Involves(self) {
		return ErrForbidden
	}
	return nil
}

// List 分页读取历史消息（从新到旧）
// 不带游标的最新一页优先走缓存
func (s *MessageService) List(ctx context.Context, self int64, q model.MessageQuery) ([]*model.Message, error) {
	if err := authorize(q.Scope, self); err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = q.Scope.PageSize()
	}
	q.Limit = min(q.Limit, model.MaxPageSize)

	if q.Before != nil || q.After != nil {
		return s.messageRepo.List(ctx, q)
	}

	key := q.Scope.Key()
	cached, err := redis.GetRecent(ctx, key, q.Limit)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.ErrCacheMiss) && !errors.Is(err, redis.ErrNotInitialized) {
		logger.Warn("读取消息缓存失败", zap.String("scope", key), zap.Error(err))
	}

	// 未命中时按缓存容量取一页，填充后截取
	fill := q
	fill.Limit = max(q.Limit, redis.RecentLimit)
	msgs, err := s.messageRepo.List(ctx, fill)
	if err != nil {
		return nil, err
	}
	if err := redis.CacheRecent(ctx, key, msgs); err != nil && !errors.Is(err, redis.ErrNotInitialized) {
		logger.Warn("写入消息缓存失败", zap.String("scope", key), zap.Error(err))
	}
	if len(msgs) > q.Limit {
		msgs = msgs[:q.Limit]
	}
	return msgs, nil
}

// Get 读取单条消息（带作者）
func (s *MessageService) Get(ctx context.Context, self int64, scope model.Scope, id int64) (*model.Message, error) {
	if err := authorize(scope, self); err != nil {
		return nil, err
	}
	return s.messageRepo.Get(ctx, scope, id)
}

// Send 写入新消息并广播
// 返回带作者资料的消息；广播失败只记录日志
func (s *MessageService) Send(ctx context.Context, self int64, scope model.Scope, draft *model.Message) (*model.Message, error) {
	if err := authorize(scope, self); err != nil {
		return nil, err
	}
	draft.Content = strings.TrimSpace(draft.Content)
	if draft.Content == "" && draft.AttachmentURL == "" {
		return nil, ErrEmptyMessage
	}
	if scope.Kind == model.KindDirect {
		if _, err := s.profileRepo.GetByID(ctx, scope.PeerID); err != nil {
			if errors.Is(err, repository.ErrProfileNotFound) {
				return nil, ErrReceiverNotFound
			}
			return nil, err
		}
	}
	if !s.limiter.Allow(self) {
		return nil, ErrRateLimited
	}

	msg := &model.Message{
		AuthorID:       self,
		Content:        draft.Content,
		AttachmentURL:  draft.AttachmentURL,
		AttachmentType: draft.AttachmentType,
		AttachmentName: draft.AttachmentName,
		AttachmentSize: draft.AttachmentSize,
	}
	if err := s.messageRepo.Create(ctx, scope, msg); err != nil {
		return nil, fmt.Errorf("保存消息失败: %w", err)
	}

	joined, err := s.messageRepo.Get(ctx, scope, msg.ID)
	if err != nil {
		logger.Warn("回读新消息失败", zap.Int64("message_id", msg.ID), zap.Error(err))
		joined = msg
	}

	key := scope.Key()
	if err := redis.PushRecent(ctx, key, joined); err != nil && !errors.Is(err, redis.ErrNotInitialized) {
		logger.Warn("更新消息缓存失败", zap.String("scope", key), zap.Error(err))
	}
	if scope.Kind == model.KindDirect {
		if err := redis.ClearConversationCache(ctx, scope.UserID, scope.PeerID); err != nil && !errors.Is(err, redis.ErrNotInitialized) {
			logger.Warn("清除会话缓存失败", zap.Error(err))
		}
	}

	// 广播原始行，作者资料由订阅方回读
	if err := redis.PublishInsert(ctx, model.InsertEvent{Scope: key, Message: msg}); err != nil {
		logger.Error("广播插入事件失败", zap.String("scope", key), zap.Int64("message_id", msg.ID), zap.Error(err))
	}
	return joined, nil
}

// Edit 编辑自己的消息
func (s *MessageService) Edit(ctx context.Context, self int64, scope model.Scope, id int64, content string) (*model.Message, error) {
	if err := authorize(scope, self); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if err := s.messageRepo.Edit(ctx, scope, id, self, content); err != nil {
		return nil, err
	}
	s.invalidate(ctx, scope)
	return s.messageRepo.Get(ctx, scope, id)
}

// Delete 删除自己的消息
func (s *MessageService) Delete(ctx context.Context, self int64, scope model.Scope, id int64) error {
	if err := authorize(scope, self); err != nil {
		return err
	}
	if err := s.messageRepo.Delete(ctx, scope, id, self); err != nil {
		return err
	}
	s.invalidate(ctx, scope)
	return nil
}

func (s *MessageService) invalidate(ctx context.Context, scope model.Scope) {
	if err := redis.InvalidateRecent(ctx, scope.Key()); err != nil && !errors.Is(err, redis.ErrNotInitialized) {
		logger.Warn("清除消息缓存失败", zap.String("scope", scope.Key()), zap.Error(err))
	}
	if scope.Kind == model.KindDirect {
		_ = redis.ClearConversationCache(ctx, scope.UserID, scope.PeerID)
	}
}

// Conversations 私聊会话列表
// 缓存里总是完整的一页（上限条数），按调用方的 limit 截取
func (s *MessageService) Conversations(ctx context.Context, self int64, limit int) ([]model.ConversationSummary, error) {
	if limit <= 0 || limit > model.MaxPageSize {
		limit = 50
	}
	list, err := redis.GetCachedConversations(ctx, self)
	if err != nil {
		if list, err = s.messageRepo.Conversations(ctx, self, model.MaxPageSize); err != nil {
			return nil, err
		}
		if err := redis.CacheConversations(ctx, self, list); err != nil && !errors.Is(err, redis.ErrNotInitialized) {
			logger.Warn("缓存会话列表失败", zap.Error(err))
		}
	}
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
