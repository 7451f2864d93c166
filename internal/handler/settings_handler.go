package handler

import (
	"textenger/internal/service"
	"textenger/pkg/jwt"
	"textenger/pkg/response"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	service *service.SettingsService
}

func NewSettingsHandler(s *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: s}
}

// GetSettings 读取通知设置
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	s, err := h.service.Get(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		respondError(c, err, "获取设置失败")
		return
	}
	response.Success(c, s)
}

// UpdateSettings 保存通知设置，未给出的字段保持不变
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req struct {
		NotificationSoundEnabled *bool    `json:"notification_sound_enabled"`
		NotificationSoundVolume  *float64 `json:"notification_sound_volume"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	s, err := h.service.Update(c.Request.Context(), jwt.GetUserID(c), req.NotificationSoundEnabled, req.NotificationSoundVolume)
	if err != nil {
		respondError(c, err, "保存设置失败")
		return
	}
	response.SuccessWithMessage(c, "设置已保存", s)
}
