package handler

import (
	"strconv"

	"textenger/internal/model"
	"textenger/internal/service"
	"textenger/pkg/jwt"
	"textenger/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	service *service.RoomService
}

func NewRoomHandler(s *service.RoomService) *RoomHandler {
	return &RoomHandler{service: s}
}

// ListRooms 当前用户的房间
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.service.Rooms(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		respondError(c, err, "获取房间失败")
		return
	}
	response.Success(c, rooms)
}

// CreateRoom 创建房间；图标需先上传，这里只接收URL
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" binding:"required"`
		Description string   `json:"description"`
		IconURL     string   `json:"icon_url"`
		MemberIDs   []string `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ids := make([]int64, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid member id "+raw)
			return
		}
		ids = append(ids, id)
	}
	room, err := h.service.Create(c.Request.Context(), jwt.GetUserID(c), req.Name, req.Description, req.IconURL, ids)
	if err != nil {
		respondError(c, err, "创建房间失败")
		return
	}
	response.SuccessWithMessage(c, "房间创建成功", room)
}

// ListChannels 房间频道
func (h *RoomHandler) ListChannels(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	channels, err := h.service.Channels(c.Request.Context(), jwt.GetUserID(c), roomID)
	if err != nil {
		respondError(c, err, "获取频道失败")
		return
	}
	response.Success(c, channels)
}

// CreateChannel 新建频道
func (h *RoomHandler) CreateChannel(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name string            `json:"name" binding:"required"`
		Type model.ChannelType `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ch, err := h.service.CreateChannel(c.Request.Context(), jwt.GetUserID(c), roomID, req.Name, req.Type)
	if err != nil {
		respondError(c, err, "创建频道失败")
		return
	}
	response.Success(c, ch)
}

// ListMembers 房间成员
func (h *RoomHandler) ListMembers(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	members, err := h.service.Members(c.Request.Context(), jwt.GetUserID(c), roomID)
	if err != nil {
		respondError(c, err, "获取成员失败")
		return
	}
	response.Success(c, members)
}
