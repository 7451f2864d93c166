package model

// MaxPageSize 服务端单页消息上限，客户端分页大小不会超过它
const MaxPageSize = 100

// MessageQuery 历史消息查询条件
// Before 为空时取最新一页；After 用于断线重连后的向前补齐
// 结果总是按 (created_at, id) 从新到旧返回
type MessageQuery struct {
	Scope  Scope
	Before *Cursor
	After  *Cursor
	Limit  int
}

// InsertEvent 实时插入事件，只携带原始行（不含作者资料）
type InsertEvent struct {
	Scope   string   `json:"scope"`
	Message *Message `json:"message"`
}
