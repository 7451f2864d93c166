// Package chatsync 客户端消息同步核心
// 把分页历史与实时插入合并成一条有序、去重的消息流，再按作者和时间分组展示
// 与后端的交互只通过本文件中的接口
package chatsync

import (
	"context"
	"io"
	"time"

	"textenger/internal/model"
)

// MessageSource 消息读写
type MessageSource interface {
	// ListMessages 按从新到旧返回一页
	// Before 有值时取紧邻游标之前的消息，After 有值时取紧邻游标之后的消息
	// 每行尽量带上关联的作者资料
	ListMessages(ctx context.Context, q model.MessageQuery) ([]*model.Message, error)
	// GetMessage 重新读取一条消息并关联作者
	GetMessage(ctx context.Context, scope model.Scope, id int64) (*model.Message, error)
	// InsertMessage 插入消息，ID 与 CreatedAt 由后端分配
	InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, error)
}

// Subscription 单个作用域的实时插入事件流
// 订阅结束时 Events 被关闭，Err 给出原因（主动 Close 时为 nil）
type Subscription interface {
	Events() <-chan model.InsertEvent
	Err() error
	Close() error
}

// Realtime 实时订阅
type Realtime interface {
	Subscribe(ctx context.Context, scope model.Scope) (Subscription, error)
}

// BlobStore 附件存储
type BlobStore interface {
	Upload(ctx context.Context, bucket, path string, r io.Reader, size int64, contentType string) error
	PublicURL(bucket, path string) string
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}

// Session 当前登录用户
type Session interface {
	CurrentUserID() (int64, bool)
}

// SettingsSource 通知设置读写
type SettingsSource interface {
	LoadSettings(ctx context.Context) (model.UserSettings, error)
	SaveSettings(ctx context.Context, s model.UserSettings) error
}

// Backend 会话所需的后端能力
type Backend interface {
	MessageSource
	Realtime
	Session
}

// Toaster 向用户展示短暂的错误提示
type Toaster interface {
	Toast(msg string, err error)
}

type ToastFunc func(msg string, err error)

func (f ToastFunc) Toast(msg string, err error) { f(msg, err) }

type nopToaster struct{}

func (nopToaster) Toast(string, error) {}
