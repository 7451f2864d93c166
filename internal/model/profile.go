package model

import (
	"time"
)

// Profile 用户资料
// 说明：密码仅存储哈希（PasswordHash），不会序列化到响应中
// ID 由 snowflake 生成，与消息ID同一时间序
type Profile struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex;comment:用户名" json:"username"`
	Email        string    `gorm:"type:varchar(128);uniqueIndex;comment:邮箱" json:"email,omitempty"`
	PasswordHash string    `gorm:"type:varchar(255);not null;comment:密码哈希" json:"-"`
	DisplayName  string    `gorm:"type:varchar(64);comment:显示名称" json:"display_name,omitempty"`
	AvatarURL    string    `gorm:"type:varchar(512);comment:头像URL" json:"avatar_url,omitempty"`
	Bio          string    `gorm:"type:text;comment:简介" json:"bio,omitempty"`
	CreatedAt    time.Time `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt    time.Time `gorm:"comment:更新时间" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// Name 返回展示用名称：优先显示名，其次用户名
func (p *Profile) Name() string {
	if p == nil {
		return UnknownUser
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Username != "" {
		return p.Username
	}
	return UnknownUser
}

// ProfileUpdate 修改自己的资料，nil 字段保持不变
type ProfileUpdate struct {
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// UnknownUser 关联资料缺失时的占位名称
const UnknownUser = "Unknown User"
