package chatsync

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"textenger/internal/model"
)

// GroupWindow 同一作者连续消息合并的时间窗口
const GroupWindow = 5 * time.Minute

const (
	DeletedPlaceholder = "Message deleted"
	AttachmentFallback = "Sent an attachment"
)

// Run 同一作者在时间窗口内的连续消息，只有第一条显示头部
type Run struct {
	AuthorID int64
	Author   *model.Profile
	Messages []*model.Message
}

// Header 分组头部信息
type Header struct {
	DisplayName string
	AvatarURL   string
	Timestamp   time.Time
	Edited      bool
}

func (r Run) Header() Header {
	first := r.Messages[0]
	h := Header{
		DisplayName: DisplayName(first),
		Timestamp:   first.CreatedAt,
		Edited:      first.EditedAt != nil,
	}
	if r.Author != nil {
		h.AvatarURL = r.Author.AvatarURL
	}
	return h
}

// Runs 把按时间排序的消息切分成分组
// 相邻两条同作者且时间差严格小于 window 时归为一组；不修改输入
func Runs(msgs []*model.Message, window time.Duration) iter.Seq[Run] {
	if window <= 0 {
		window = GroupWindow
	}
	return func(yield func(Run) bool) {
		start := 0
		for i := 1; i <= len(msgs); i++ {
			if i < len(msgs) && sameRun(msgs[i-1], msgs[i], window) {
				continue
			}
			group := slices.Clip(msgs[start:i])
			if !yield(Run{AuthorID: group[0].AuthorID, Author: group[0].Author, Messages: group}) {
				return
			}
			start = i
		}
	}
}

func sameRun(prev, next *model.Message, window time.Duration) bool {
	return prev.AuthorID == next.AuthorID && next.CreatedAt.Sub(prev.CreatedAt) < window
}

// DisplayName 作者展示名，缺失资料时为 "Unknown User"
func DisplayName(m *model.Message) string {
	return m.Author.Name()
}

// Body 消息正文
// 频道中内容被清空且无附件的消息显示为已删除
func Body(kind model.ScopeKind, m *model.Message) string {
	if kind == model.KindChannel && strings.TrimSpace(m.Content) == "" && !m.HasAttachment() {
		return DeletedPlaceholder
	}
	return m.Content
}

// EmptyState 会话为空时的提示文案
// name: 私聊为对方用户名，房间为房间名，频道忽略
func EmptyState(scope model.Scope, name string) (title, subtitle string) {
	switch scope.Kind {
	case model.KindDirect:
		if name == "" {
			name = "user"
		}
		return "No messages yet", fmt.Sprintf("This is the beginning of your conversation with @%s", name)
	case model.KindRoom:
		return fmt.Sprintf("Welcome to #%s!", name), "Start the conversation by sending a message."
	default:
		return "No messages yet", "Be the first to send a message in this channel!"
	}
}

// FormatTimestamp 头部时间：当天只显示时分，否则带日期
func FormatTimestamp(t, now time.Time) string {
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Today at " + t.Format("15:04")
	}
	if y := now.AddDate(0, 0, -1); y.Year() == y1 && y.Month() == m1 && y.Day() == d1 {
		return "Yesterday at " + t.Format("15:04")
	}
	return t.Format("2006-01-02 15:04")
}
