package model

import "time"

// 通知设置默认值
const (
	DefaultSoundEnabled = true
	DefaultVolume       = 0.7
)

// UserSettings 用户通知设置

type UserSettings struct {
	UserID                   int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id,string"`
	NotificationSoundEnabled bool      `gorm:"not null;comment:是否开启提示音" json:"notification_sound_enabled"`
	NotificationSoundVolume  float64   `gorm:"not null;comment:提示音音量(0-1)" json:"notification_sound_volume"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func (UserSettings) TableName() string { return "user_settings" }

// DefaultSettings 用户尚未保存设置时使用的默认值
func DefaultSettings(userID int64) UserSettings {
	return UserSettings{
		UserID:                   userID,
		NotificationSoundEnabled: DefaultSoundEnabled,
		NotificationSoundVolume:  DefaultVolume,
	}
}

// Normalize 把音量限制在 [0,1]
func (s *UserSettings) Normalize() {
	switch {
	case s.NotificationSoundVolume < 0:
		s.NotificationSoundVolume = 0
	case s.NotificationSoundVolume > 1:
		s.NotificationSoundVolume = 1
	}
}

// ConversationSummary 私聊会话列表项：对方资料 + 最后一条消息

type ConversationSummary struct {
	Partner         *Profile  `json:"partner"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	LastMessageID   int64     `json:"last_message_id,string"`
}
