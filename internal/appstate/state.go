// Package appstate 客户端全局状态：当前选择、房间列表、成员面板、输入状态、窗口焦点
// 状态只能通过 Dispatch 修改，转换逻辑由纯函数 Reduce 实现
package appstate

import (
	"slices"

	"textenger/internal/model"
)

// State 应用状态快照，按值传递，切片不与外部共享
type State struct {
	CurrentUserID    int64
	CurrentRoomID    int64
	CurrentChannelID int64
	DirectPeerID     int64
	Rooms            []model.Room
	Channels         []model.Channel
	MembersVisible   bool
	TypingUsers      []int64
	WindowFocused    bool
}

// Selection 当前选中的会话
// 私聊优先，其次频道，最后是房间本身的聊天
func (s State) Selection() (model.Scope, bool) {
	switch {
	case s.DirectPeerID != 0 && s.CurrentUserID != 0:
		return model.DirectScope(s.CurrentUserID, s.DirectPeerID), true
	case s.CurrentChannelID != 0:
		return model.ChannelScope(s.CurrentChannelID), true
	case s.CurrentRoomID != 0:
		return model.RoomScope(s.CurrentRoomID), true
	}
	return model.Scope{}, false
}

// Action 状态变更动作
type Action interface {
	isAction()
}

type (
	SetUser           struct{ UserID int64 }
	SelectRoom        struct{ RoomID int64 }
	SelectChannel     struct{ ChannelID int64 }
	SelectDirect      struct{ PeerID int64 }
	ClearSelection    struct{}
	SetRooms          struct{ Rooms []model.Room }
	AddRoom           struct{ Room model.Room }
	SetChannels       struct{ Channels []model.Channel }
	ToggleMembers     struct{}
	SetMembersVisible struct{ Visible bool }
	SetTyping         struct{ UserIDs []int64 }
	SetFocus          struct{ Focused bool }
)

func (SetUser) isAction()           {}
func (SelectRoom) isAction()        {}
func (SelectChannel) isAction()     {}
func (SelectDirect) isAction()      {}
func (ClearSelection) isAction()    {}
func (SetRooms) isAction()          {}
func (AddRoom) isAction()           {}
func (SetChannels) isAction()       {}
func (ToggleMembers) isAction()     {}
func (SetMembersVisible) isAction() {}
func (SetTyping) isAction()         {}
func (SetFocus) isAction()          {}

// Reduce 纯函数：根据动作计算下一个状态，不修改 s
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetUser:
		if a.UserID != s.CurrentUserID {
			s = State{CurrentUserID: a.UserID, WindowFocused: s.WindowFocused}
		}
	case SelectRoom:
		// 切换房间时清空频道与频道列表
		if a.RoomID != s.CurrentRoomID {
			s.Channels = nil
			s.CurrentChannelID = 0
		}
		s.CurrentRoomID = a.RoomID
		s.DirectPeerID = 0
		s.TypingUsers = nil
	case SelectChannel:
		s.CurrentChannelID = a.ChannelID
		s.DirectPeerID = 0
		s.TypingUsers = nil
	case SelectDirect:
		s.DirectPeerID = a.PeerID
		s.CurrentRoomID = 0
		s.CurrentChannelID = 0
		s.Channels = nil
		s.TypingUsers = nil
	case ClearSelection:
		s.CurrentRoomID = 0
		s.CurrentChannelID = 0
		s.DirectPeerID = 0
		s.Channels = nil
		s.TypingUsers = nil
	case SetRooms:
		s.Rooms = slices.Clone(a.Rooms)
	case AddRoom:
		s.Rooms = append(slices.Clone(s.Rooms), a.Room)
	case SetChannels:
		s.Channels = slices.Clone(a.Channels)
		slices.SortStableFunc(s.Channels, func(x, y model.Channel) int { return x.Position - y.Position })
	case ToggleMembers:
		s.MembersVisible = !s.MembersVisible
	case SetMembersVisible:
		s.MembersVisible = a.Visible
	case SetTyping:
		s.TypingUsers = slices.Clone(a.UserIDs)
	case SetFocus:
		s.WindowFocused = a.Focused
	}
	return s
}
