package service

import (
	"context"
	"errors"
	"strings"

	"textenger/internal/model"
	"textenger/internal/repository"
)

var (
	// ErrRoomNameRequired 房间名为空
	ErrRoomNameRequired = errors.New("room name is required")
	// ErrRoomMembersRequired 至少选择一名成员
	ErrRoomMembersRequired = errors.New("select at least one member")
	// ErrNotRoomMember 不是房间成员
	ErrNotRoomMember = errors.New("not a member of this room")
	// ErrNotRoomAdmin 只有房主或管理员可以管理频道
	ErrNotRoomAdmin = errors.New("only owners and admins can manage channels")
)

// RoomService 房间、频道与成员
type RoomService struct {
	repo *repository.RoomRepository
}

func NewRoomService(repo *repository.RoomRepository) *RoomService {
	return &RoomService{repo: repo}
}

// Create 创建房间，创建者为房主
func (s *RoomService) Create(ctx context.Context, self int64, name, description, iconURL string, memberIDs []int64) (*model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrRoomNameRequired
	}
	var others []int64
	for _, id := range memberIDs {
		if id > 0 && id != self {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return nil, ErrRoomMembersRequired
	}
	room := &model.Room{
		Name:        name,
		Description: strings.TrimSpace(description),
		IconURL:     iconURL,
		OwnerID:     self,
	}
	if err := s.repo.Create(ctx, room, others); err != nil {
		return nil, err
	}
	return room, nil
}

// Rooms 当前用户加入的房间
func (s *RoomService) Rooms(ctx context.Context, self int64) ([]*model.Room, error) {
	return s.repo.ListForUser(ctx, self)
}

// Channels 房间频道列表，需为成员
func (s *RoomService) Channels(ctx context.Context, self, roomID int64) ([]*model.Channel, error) {
	if err := s.requireMember(ctx, self, roomID); err != nil {
		return nil, err
	}
	return s.repo.Channels(ctx, roomID)
}

// CreateChannel 新建频道，需为房主或管理员
func (s *RoomService) CreateChannel(ctx context.Context, self, roomID int64, name string, typ model.ChannelType) (*model.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("channel name is required")
	}
	if typ != "" && typ != model.ChannelText && typ != model.ChannelVoice {
		return nil, errors.New("channel type must be text or voice")
	}
	members, err := s.repo.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, m := range members {
		if m.UserID == self && m.Role.Rank() <= model.RoleAdmin.Rank() {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrNotRoomAdmin
	}
	ch := &model.Channel{RoomID: roomID, Name: name, Type: typ}
	if err := s.repo.CreateChannel(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Members 成员列表，需为成员
func (s *RoomService) Members(ctx context.Context, self, roomID int64) ([]*model.RoomMember, error) {
	if err := s.requireMember(ctx, self, roomID); err != nil {
		return nil, err
	}
	return s.repo.Members(ctx, roomID)
}

func (s *RoomService) requireMember(ctx context.Context, self, roomID int64) error {
	if _, err := s.repo.Get(ctx, roomID); err != nil {
		return err
	}
	ok, err := s.repo.IsMember(ctx, roomID, self)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotRoomMember
	}
	return nil
}
