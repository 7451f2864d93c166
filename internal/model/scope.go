package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ScopeKind 会话作用域类型
type ScopeKind int

const (
	KindChannel ScopeKind = 1 // 频道消息
	KindDirect  ScopeKind = 2 // 私聊消息
	KindRoom    ScopeKind = 3 // 房间广播消息
)

// ErrInvalidScope 作用域参数非法
var ErrInvalidScope = errors.New("invalid scope")

func (k ScopeKind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindDirect:
		return "dm"
	case KindRoom:
		return "room"
	default:
		return "unknown"
	}
}

// Scope 会话作用域：决定查询条件、实时订阅过滤和消息表
// 频道/房间只用 ID；私聊用 UserID(本人) + PeerID(对方)
type Scope struct {
	Kind   ScopeKind
	ID     int64
	UserID int64
	PeerID int64
}

// ChannelScope 频道作用域
func ChannelScope(channelID int64) Scope {
	return Scope{Kind: KindChannel, ID: channelID}
}

// RoomScope 房间作用域
func RoomScope(roomID int64) Scope {
	return Scope{Kind: KindRoom, ID: roomID}
}

// DirectScope 私聊作用域
func DirectScope(self, peer int64) Scope {
	return Scope{Kind: KindDirect, UserID: self, PeerID: peer}
}

// Validate 校验作用域是否完整
func (s Scope) Validate() error {
	switch s.Kind {
	case KindChannel, KindRoom:
		if s.ID <= 0 {
			return fmt.Errorf("%w: %s id is required", ErrInvalidScope, s.Kind)
		}
	case KindDirect:
		if s.UserID <= 0 || s.PeerID <= 0 {
			return fmt.Errorf("%w: dm requires both participants", ErrInvalidScope)
		}
		if s.UserID == s.PeerID {
			return fmt.Errorf("%w: cannot open a dm with yourself", ErrInvalidScope)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidScope, s.Kind)
	}
	return nil
}

// Key 作用域的稳定标识，用作订阅主题与缓存key
// 私聊时保证 小ID在前，双方得到同一个key
func (s Scope) Key() string {
	switch s.Kind {
	case KindDirect:
		a, b := s.UserID, s.PeerID
		if a > b {
			a, b = b, a
		}
		return fmt.Sprintf("dm:%d:%d", a, b)
	default:
		return fmt.Sprintf("%s:%d", s.Kind, s.ID)
	}
}

func (s Scope) String() string { return s.Key() }

// ParseScope 解析 Key() 生成的字符串
// self 为当前用户，私聊时用于区分本人与对方
func ParseScope(key string, self int64) (Scope, error) {
	parts := strings.Split(key, ":")
	parseID := func(v string) (int64, error) {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("%w: bad id %q", ErrInvalidScope, v)
		}
		return id, nil
	}

	switch {
	case len(parts) == 2 && (parts[0] == "channel" || parts[0] == "room"):
		id, err := parseID(parts[1])
		if err != nil {
			return Scope{}, err
		}
		if parts[0] == "channel" {
			return ChannelScope(id), nil
		}
		return RoomScope(id), nil
	case len(parts) == 3 && parts[0] == "dm":
		a, err := parseID(parts[1])
		if err != nil {
			return Scope{}, err
		}
		b, err := parseID(parts[2])
		if err != nil {
			return Scope{}, err
		}
		switch self {
		case a:
			return DirectScope(a, b), nil
		case b:
			return DirectScope(b, a), nil
		default:
			return Scope{}, fmt.Errorf("%w: %d is not a participant of %s", ErrInvalidScope, self, key)
		}
	case len(parts) == 2 && parts[0] == "dm":
		// dm:<peer> 简写，本人由调用方给出
		peer, err := parseID(parts[1])
		if err != nil {
			return Scope{}, err
		}
		s := DirectScope(self, peer)
		return s, s.Validate()
	}
	return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, key)
}

// Table 作用域对应的消息表
func (s Scope) Table() string {
	switch s.Kind {
	case KindDirect:
		return "direct_messages"
	case KindRoom:
		return "room_messages"
	default:
		return "messages"
	}
}

// PageSize 各类会话默认的分页大小
func (s Scope) PageSize() int {
	if s.Kind == KindDirect {
		return 20
	}
	return 50
}

// Matches 实时事件过滤条件：消息是否属于该作用域
func (s Scope) Matches(m *Message) bool {
	if m == nil || m.Kind != s.Kind {
		return false
	}
	switch s.Kind {
	case KindChannel:
		return m.ChannelID == s.ID
	case KindRoom:
		return m.RoomID == s.ID
	case KindDirect:
		return (m.AuthorID == s.UserID && m.ReceiverID == s.PeerID) ||
			(m.AuthorID == s.PeerID && m.ReceiverID == s.UserID)
	}
	return false
}

// Stamp 把作用域引用写入新消息，需先设置作者
// 私聊的接收者取作者以外的一方
func (s Scope) Stamp(m *Message) {
	m.Kind = s.Kind
	switch s.Kind {
	case KindChannel:
		m.ChannelID = s.ID
	case KindRoom:
		m.RoomID = s.ID
	case KindDirect:
		m.ReceiverID = s.PeerID
		if m.AuthorID == s.PeerID {
			m.ReceiverID = s.UserID
		}
	}
}

// Involves 用户是否为该作用域的参与方（仅私聊有意义）
func (s Scope) Involves(userID int64) bool {
	if s.Kind != KindDirect {
		return true
	}
	return s.UserID == userID || s.PeerID == userID
}

// ScopeOf 从消息反推作用域，self 仅对私聊生效
func ScopeOf(m *Message, self int64) Scope {
	switch m.Kind {
	case KindChannel:
		return ChannelScope(m.ChannelID)
	case KindRoom:
		return RoomScope(m.RoomID)
	default:
		if m.AuthorID == self {
			return DirectScope(self, m.ReceiverID)
		}
		return DirectScope(self, m.AuthorID)
	}
}
