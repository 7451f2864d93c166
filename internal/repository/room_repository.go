package repository

import (
	"context"
	"errors"
	"time"

	"textenger/internal/model"
	"textenger/pkg/idgen"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrRoomNotFound 房间不存在
	ErrRoomNotFound = errors.New("room not found")
	// ErrChannelNotFound 频道不存在
	ErrChannelNotFound = errors.New("channel not found")
)

// RoomRepository 房间、频道与成员
type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create 在一个事务里创建房间，房主记为 owner，其余成员记为 member
func (r *RoomRepository) Create(ctx context.Context, room *model.Room, memberIDs []int64) error {
	room.ID = idgen.New()
	now := time.Now().UTC()
	room.CreatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		members := []model.RoomMember{{RoomID: room.ID, UserID: room.OwnerID, Role: model.RoleOwner, JoinedAt: now}}
		for _, id := range memberIDs {
			if id == room.OwnerID {
				continue
			}
			members = append(members, model.RoomMember{RoomID: room.ID, UserID: id, Role: model.RoleMember, JoinedAt: now})
		}
		// 重复成员忽略
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
}

// ListForUser 用户加入的房间，按创建时间升序
func (r *RoomRepository) ListForUser(ctx context.Context, userID int64) ([]*model.Room, error) {
	var rooms []*model.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.created_at ASC").
		Find(&rooms).Error
	return rooms, err
}

func (r *RoomRepository) Get(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, notFound(err, ErrRoomNotFound)
	}
	return &room, nil
}

// CreateChannel 新频道默认排在最后
func (r *RoomRepository) CreateChannel(ctx context.Context, ch *model.Channel) error {
	if _, err := r.Get(ctx, ch.RoomID); err != nil {
		return err
	}
	ch.ID = idgen.New()
	ch.CreatedAt = time.Now().UTC()
	if ch.Type == "" {
		ch.Type = model.ChannelText
	}
	if ch.Position == 0 {
		var maxPos *int
		err := r.db.WithContext(ctx).Model(&model.Channel{}).
			Where("room_id = ?", ch.RoomID).
			Select("MAX(position)").
			Scan(&maxPos).Error
		if err != nil {
			return err
		}
		if maxPos != nil {
			ch.Position = *maxPos + 1
		}
	}
	return r.db.WithContext(ctx).Create(ch).Error
}

// Channels 房间下的频道，按 position 排序
func (r *RoomRepository) Channels(ctx context.Context, roomID int64) ([]*model.Channel, error) {
	var channels []*model.Channel
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("position ASC, id ASC").
		Find(&channels).Error
	return channels, err
}

func (r *RoomRepository) GetChannel(ctx context.Context, id int64) (*model.Channel, error) {
	var ch model.Channel
	if err := r.db.WithContext(ctx).First(&ch, id).Error; err != nil {
		return nil, notFound(err, ErrChannelNotFound)
	}
	return &ch, nil
}

// Members 成员列表：owner、admin、member 依次排列，同角色按加入时间
func (r *RoomRepository) Members(ctx context.Context, roomID int64) ([]*model.RoomMember, error) {
	var members []*model.RoomMember
	err := r.db.WithContext(ctx).
		Preload("Profile").
		Where("room_id = ?", roomID).
		Order("CASE role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END").
		Order("joined_at ASC").
		Find(&members).Error
	return members, err
}

// IsMember 用户是否在房间内
func (r *RoomRepository) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error
	return n > 0, err
}
