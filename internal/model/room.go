package model

import "time"

// Room 房间（服务器）

type Room struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Name        string    `gorm:"type:varchar(100);not null;comment:房间名称" json:"name"`
	Description string    `gorm:"type:text;comment:房间描述" json:"description,omitempty"`
	IconURL     string    `gorm:"type:varchar(1024);comment:图标URL" json:"icon_url,omitempty"`
	OwnerID     int64     `gorm:"not null;index;comment:创建者ID" json:"owner_id,string"`
	CreatedAt   time.Time `gorm:"comment:创建时间" json:"created_at"`
}

func (Room) TableName() string { return "rooms" }

// ChannelType 频道类型
type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
)

// Channel 房间下的频道，按 Position 排序

type Channel struct {
	ID        int64       `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	RoomID    int64       `gorm:"not null;index;comment:所属房间" json:"room_id,string"`
	Name      string      `gorm:"type:varchar(100);not null;comment:频道名称" json:"name"`
	Type      ChannelType `gorm:"type:varchar(16);not null;default:text;comment:频道类型" json:"type"`
	Position  int         `gorm:"not null;default:0;comment:排序位置" json:"position"`
	CreatedAt time.Time   `json:"created_at"`
}

func (Channel) TableName() string { return "channels" }

// MemberRole 成员角色
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// Rank 角色排序权重，越小越靠前
func (r MemberRole) Rank() int {
	switch r {
	case RoleOwner:
		return 0
	case RoleAdmin:
		return 1
	default:
		return 2
	}
}

// RoomMember 房间成员

type RoomMember struct {
	RoomID   int64      `gorm:"primaryKey;autoIncrement:false" json:"room_id,string"`
	UserID   int64      `gorm:"primaryKey;autoIncrement:false" json:"user_id,string"`
	Role     MemberRole `gorm:"type:varchar(16);not null;default:member;comment:角色" json:"role"`
	JoinedAt time.Time  `gorm:"comment:加入时间" json:"joined_at"`

	Profile *Profile `gorm:"foreignKey:UserID;references:ID" json:"profile,omitempty"`
}

func (RoomMember) TableName() string { return "room_members" }
