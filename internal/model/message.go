package model

import (
	"cmp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Message 消息模型
// 三种会话（频道、私聊、房间）共用同一结构，按 Scope.Table() 落到不同的表
// Kind 决定哪一个作用域字段有效：ChannelID / ReceiverID / RoomID
type Message struct {
	ID             int64          `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Kind           ScopeKind      `gorm:"type:int;not null;comment:会话类型(1频道,2私聊,3房间)" json:"kind"`
	ChannelID      int64          `gorm:"index;comment:频道ID" json:"channel_id,string,omitempty"`
	RoomID         int64          `gorm:"index;comment:房间ID" json:"room_id,string,omitempty"`
	ReceiverID     int64          `gorm:"index;comment:接收者ID(私聊)" json:"receiver_id,string,omitempty"`
	AuthorID       int64          `gorm:"not null;index;comment:发送者ID" json:"author_id,string"`
	Content        string         `gorm:"type:text;comment:消息内容" json:"content"`
	AttachmentURL  string         `gorm:"type:varchar(1024);comment:附件URL" json:"attachment_url,omitempty"`
	AttachmentType string         `gorm:"type:varchar(128);comment:附件MIME类型" json:"attachment_type,omitempty"`
	AttachmentName string         `gorm:"type:varchar(255);comment:附件名称" json:"attachment_name,omitempty"`
	AttachmentSize int64          `gorm:"comment:附件大小(字节)" json:"attachment_size,omitempty"`
	CreatedAt      time.Time      `gorm:"index;comment:创建时间" json:"created_at"`
	EditedAt       *time.Time     `gorm:"comment:编辑时间" json:"edited_at,omitempty"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Author *Profile `gorm:"foreignKey:AuthorID;references:ID" json:"author,omitempty"`
}

// HasAttachment 是否带附件
func (m *Message) HasAttachment() bool {
	return m.AttachmentURL != ""
}

// AttachmentKind 按MIME前缀区分附件展示方式
func (m *Message) AttachmentKind() string {
	switch {
	case !m.HasAttachment():
		return ""
	case strings.HasPrefix(m.AttachmentType, "image/"):
		return "image"
	case strings.HasPrefix(m.AttachmentType, "audio/"):
		return "audio"
	default:
		return "file"
	}
}

// Cursor 返回以该消息为锚点的分页游标
func (m *Message) Cursor() *Cursor {
	return &Cursor{ID: m.ID, CreatedAt: m.CreatedAt}
}

// CompareMessages 按 (CreatedAt, ID) 升序比较，ID 作为同一时间戳的决胜字段
func CompareMessages(a, b *Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
