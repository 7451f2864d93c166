package handler

import (
	"strconv"

	"textenger/internal/model"
	"textenger/internal/service"
	"textenger/pkg/jwt"
	"textenger/pkg/response"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息接口，所有路由都以 :scope 区分会话
// scope 形如 channel:1、room:2、dm:3（对方ID）或 dm:1:3
type MessageHandler struct {
	service *service.MessageService
}

// NewMessageHandler 创建MessageHandler实例
func NewMessageHandler(s *service.MessageService) *MessageHandler {
	return &MessageHandler{service: s}
}

func (h *MessageHandler) scope(c *gin.Context) (model.Scope, bool) {
	scope, err := model.ParseScope(c.Param("scope"), jwt.GetUserID(c))
	if err != nil {
		response.BadRequest(c, err.Error())
		return model.Scope{}, false
	}
	return scope, true
}

// ListMessages 分页获取历史消息
// GET /scopes/:scope/messages?before=&after=&limit=
func (h *MessageHandler) ListMessages(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	before, err := model.DecodeCursor(c.Query("before"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	after, err := model.DecodeCursor(c.Query("after"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = scope.PageSize()
	}
	// 与服务层一致的上限，否则 has_more 会误判
	limit = min(limit, model.MaxPageSize)

	messages, err := h.service.List(c.Request.Context(), jwt.GetUserID(c), model.MessageQuery{
		Scope:  scope,
		Before: before,
		After:  after,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err, "获取消息历史失败")
		return
	}

	page := &response.MessagePage{Messages: messages, HasMore: len(messages) >= limit}
	if n := len(messages); n > 0 {
		page.NextCursor = messages[n-1].Cursor().Encode()
	}
	response.Success(c, page)
}

// GetMessage 获取单条消息（带作者）
func (h *MessageHandler) GetMessage(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	msg, err := h.service.Get(c.Request.Context(), jwt.GetUserID(c), scope, id)
	if err != nil {
		respondError(c, err, "获取消息失败")
		return
	}
	response.Success(c, msg)
}

type sendRequest struct {
	Content        string `json:"content"`
	AttachmentURL  string `json:"attachment_url"`
	AttachmentType string `json:"attachment_type"`
	AttachmentName string `json:"attachment_name"`
	AttachmentSize int64  `json:"attachment_size"`
}

// SendMessage 发送消息
func (h *MessageHandler) SendMessage(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.service.Send(c.Request.Context(), jwt.GetUserID(c), scope, &model.Message{
		Content:        req.Content,
		AttachmentURL:  req.AttachmentURL,
		AttachmentType: req.AttachmentType,
		AttachmentName: req.AttachmentName,
		AttachmentSize: req.AttachmentSize,
	})
	if err != nil {
		respondError(c, err, "发送消息失败")
		return
	}
	response.SuccessWithMessage(c, "消息发送成功", msg)
}

// EditMessage 编辑消息
func (h *MessageHandler) EditMessage(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	msg, err := h.service.Edit(c.Request.Context(), jwt.GetUserID(c), scope, id, req.Content)
	if err != nil {
		respondError(c, err, "编辑消息失败")
		return
	}
	response.Success(c, msg)
}

// DeleteMessage 删除消息
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), jwt.GetUserID(c), scope, id); err != nil {
		respondError(c, err, "删除消息失败")
		return
	}
	response.SuccessWithMessage(c, "消息删除成功", nil)
}

// GetConversations 私聊会话列表
func (h *MessageHandler) GetConversations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.service.Conversations(c.Request.Context(), jwt.GetUserID(c), limit)
	if err != nil {
		respondError(c, err, "获取会话列表失败")
		return
	}
	response.Success(c, list)
}
