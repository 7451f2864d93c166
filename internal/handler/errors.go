package handler

import (
	"errors"
	"strconv"

	"textenger/internal/model"
	"textenger/internal/repository"
	"textenger/internal/service"
	"textenger/pkg/logger"
	"textenger/pkg/password"
	"textenger/pkg/response"
	"textenger/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError 把业务错误映射为统一响应码
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, model.ErrInvalidScope),
		errors.Is(err, model.ErrInvalidCursor),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrUsernameRequired),
		errors.Is(err, service.ErrUnsupportedAvatar),
		errors.Is(err, repository.ErrMessageDeleted),
		errors.Is(err, service.ErrRoomNameRequired),
		errors.Is(err, service.ErrRoomMembersRequired),
		errors.Is(err, password.ErrTooShort),
		errors.Is(err, password.ErrTooLong),
		errors.Is(err, storage.ErrInvalidPath):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotRoomMember),
		errors.Is(err, service.ErrNotRoomAdmin),
		errors.Is(err, repository.ErrNotAuthor):
		response.Forbidden(c, err.Error())
	case errors.Is(err, repository.ErrMessageNotFound),
		errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrRoomNotFound),
		errors.Is(err, repository.ErrChannelNotFound),
		errors.Is(err, service.ErrReceiverNotFound),
		errors.Is(err, storage.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrUserExists):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		response.TooManyRequests(c, err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		response.Error(c, 413, err.Error())
	case errors.Is(err, service.ErrAvatarsDisabled):
		response.Error(c, 503, err.Error())
	default:
		logger.Error(fallback,
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("request_id", logger.RequestID(c)),
		)
		response.ErrorWithDetails(c, 500, fallback, err)
	}
}

// paramID 解析路径中的数字ID
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
