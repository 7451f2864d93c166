package model

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCursor 游标无法解析
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor 分页游标：当前持有的最旧（或最新）一条消息
// 后端按 (created_at, id) 做区间比较

type Cursor struct {
	ID        int64     `json:"id,string"`
	CreatedAt time.Time `json:"created_at"`
}

// Encode 编码为不透明的 base64url 字符串
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor 解析 Encode 生成的字符串，空串返回 nil
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.ID <= 0 {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidCursor)
	}
	return &c, nil
}

// Before 消息 m 是否严格早于游标
func (c *Cursor) Before(m *Message) bool {
	if c == nil {
		return true
	}
	return CompareMessages(m, &Message{ID: c.ID, CreatedAt: c.CreatedAt}) < 0
}

// After 消息 m 是否严格晚于游标
func (c *Cursor) After(m *Message) bool {
	if c == nil {
		return true
	}
	return CompareMessages(m, &Message{ID: c.ID, CreatedAt: c.CreatedAt}) > 0
}
