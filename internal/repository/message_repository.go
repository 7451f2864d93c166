package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"textenger/internal/model"
	"textenger/pkg/idgen"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrMessageNotFound 消息不存在
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotAuthor 只有作者本人可以修改消息
	ErrNotAuthor = errors.New("not the author of this message")
	// ErrMessageDeleted 已删除（只剩占位）的消息不能再编辑
	ErrMessageDeleted = errors.New("message has been deleted")
)

// MessageTables 三种会话各自的消息表
var MessageTables = []string{"messages", "direct_messages", "room_messages"}

// MessageRepository 消息数据仓储
// 每个查询都通过 scope.Table() 选表，并用 scopeWhere 限定会话
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建MessageRepository实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// scopeWhere 会话过滤条件
func scopeWhere(tx *gorm.DB, s model.Scope) *gorm.DB {
	switch s.Kind {
	case model.KindChannel:
		return tx.Where("channel_id = ?", s.ID)
	case model.KindRoom:
		return tx.Where("room_id = ?", s.ID)
	default:
		// 私聊双向
		return tx.Where(
			"(author_id = ? AND receiver_id = ?) OR (author_id = ? AND receiver_id = ?)",
			s.UserID, s.PeerID, s.PeerID, s.UserID,
		)
	}
}

// List 按 (created_at, id) 从新到旧返回一页
// Before: 严格早于游标；After: 严格晚于游标（取紧邻游标的 limit 条，再翻转成从新到旧）
func (r *MessageRepository) List(ctx context.Context, q model.MessageQuery) ([]*model.Message, error) {
	if err := q.Scope.Validate(); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = q.Scope.PageSize()
	}

	tx := scopeWhere(r.db.WithContext(ctx).Table(q.Scope.Table()).Preload("Author"), q.Scope)
	if c := q.Before; c != nil {
		tx = tx.Where("(created_at < ? OR (created_at = ? AND id < ?))", c.CreatedAt, c.CreatedAt, c.ID)
	}
	if c := q.After; c != nil {
		tx = tx.Where("(created_at > ? OR (created_at = ? AND id > ?))", c.CreatedAt, c.CreatedAt, c.ID)
	}

	var messages []*model.Message
	if q.After != nil {
		if err := tx.Order("created_at ASC, id ASC").Limit(limit).Find(&messages).Error; err != nil {
			return nil, err
		}
		slices.Reverse(messages)
		return messages, nil
	}
	err := tx.Order("created_at DESC, id DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

// Get 按ID读取一条消息并关联作者
func (r *MessageRepository) Get(ctx context.Context, s model.Scope, id int64) (*model.Message, error) {
	var message model.Message
	tx := scopeWhere(r.db.WithContext(ctx).Table(s.Table()).Preload("Author"), s)
	err := tx.Where("id = ?", id).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// Create 创建消息，ID 与创建时间在这里分配
func (r *MessageRepository) Create(ctx context.Context, s model.Scope, message *model.Message) error {
	s.Stamp(message)
	message.ID = idgen.New()
	message.CreatedAt = time.Now().UTC()
	message.Author = nil
	return r.db.WithContext(ctx).Table(s.Table()).Omit(clause.Associations).Create(message).Error
}

// Edit 修改消息内容并记录编辑时间
func (r *MessageRepository) Edit(ctx context.Context, s model.Scope, id, authorID int64, content string) error {
	now := time.Now().UTC()
	return r.mutate(ctx, s, id, authorID, func(tx *gorm.DB, existing *model.Message) error {
		if existing.Content == "" && !existing.HasAttachment() {
			return ErrMessageDeleted
		}
		return tx.Updates(map[string]any{"content": content, "edited_at": now}).Error
	})
}

// Delete 删除消息
// 频道消息清空内容保留占位，其余会话软删除
func (r *MessageRepository) Delete(ctx context.Context, s model.Scope, id, authorID int64) error {
	return r.mutate(ctx, s, id, authorID, func(tx *gorm.DB, _ *model.Message) error {
		if s.Kind == model.KindChannel {
			return tx.Updates(map[string]any{
				"content":         "",
				"attachment_url":  "",
				"attachment_type": "",
				"attachment_name": "",
				"attachment_size": 0,
			}).Error
		}
		return tx.Delete(&model.Message{}).Error
	})
}

func (r *MessageRepository) mutate(ctx context.Context, s model.Scope, id, authorID int64, fn func(tx *gorm.DB, existing *model.Message) error) error {
	existing, err := r.Get(ctx, s, id)
	if err != nil {
		return err
	}
	if existing.AuthorID != authorID {
		return ErrNotAuthor
	}
	return fn(r.db.WithContext(ctx).Table(s.Table()).Model(&model.Message{}).Where("id = ?", id), existing)
}

// Conversations 用户最近的私聊会话：每个对方一条，按最后消息时间倒序
// 每个对方取 id 最大的一条，snowflake ID 随时间递增
func (r *MessageRepository) Conversations(ctx context.Context, userID int64, limit int) ([]model.ConversationSummary, error) {
	partnerExpr := fmt.Sprintf("CASE WHEN author_id = %d THEN receiver_id ELSE author_id END", userID)
	latest := r.db.Table("direct_messages").
		Select("MAX(id)").
		Where("(author_id = ? OR receiver_id = ?) AND deleted_at IS NULL", userID, userID).
		Group(partnerExpr)

	var rows []*model.Message
	err := r.db.WithContext(ctx).Table("direct_messages").
		Where("id IN (?)", latest).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	partners := make([]int64, 0, len(rows))
	summaries := make([]model.ConversationSummary, 0, len(rows))
	for _, m := range rows {
		partner := m.ReceiverID
		if m.AuthorID != userID {
			partner = m.AuthorID
		}
		partners = append(partners, partner)
		summaries = append(summaries, model.ConversationSummary{
			Partner:         &model.Profile{ID: partner},
			LastMessage:     m.Content,
			LastMessageTime: m.CreatedAt,
			LastMessageID:   m.ID,
		})
	}
	if len(partners) == 0 {
		return summaries, nil
	}

	var profiles []*model.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", partners).Find(&profiles).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	for i := range summaries {
		if p, ok := byID[summaries[i].Partner.ID]; ok {
			summaries[i].Partner = p
		}
	}
	return summaries, nil
}
