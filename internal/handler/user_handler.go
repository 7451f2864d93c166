package handler

import (
	"strconv"

	"textenger/internal/model"
	"textenger/internal/service"
	"textenger/pkg/jwt"
	"textenger/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service *service.UserService
}

func NewUserHandler(s *service.UserService) *UserHandler {
	return &UserHandler{service: s}
}

// Register 用户注册
func (h *UserHandler) Register(c *gin.Context) {
	type req struct {
		Username    string `json:"username" binding:"required"`
		Email       string `json:"email" binding:"required"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, token, err := h.service.Register(c.Request.Context(), r.Username, r.Email, r.DisplayName, r.Password)
	if err != nil {
		respondError(c, err, "注册失败")
		return
	}

	response.SuccessWithMessage(c, "注册成功", &response.AuthResponse{User: user, AccessToken: token})
}

// Login 用户登录
func (h *UserHandler) Login(c *gin.Context) {
	type req struct {
		UsernameOrEmail string `json:"usernameOrEmail" binding:"required"`
		Password        string `json:"password" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, token, err := h.service.Login(c.Request.Context(), r.UsernameOrEmail, r.Password)
	if err != nil {
		respondError(c, err, "登录失败")
		return
	}

	response.SuccessWithMessage(c, "登录成功", &response.AuthResponse{User: user, AccessToken: token})
}

// GetProfile 当前登录用户的资料
func (h *UserHandler) GetProfile(c *gin.Context) {
	p, err := h.service.Profile(c.Request.Context(), jwt.GetUserID(c))
	if err != nil {
		respondError(c, err, "获取用户资料失败")
		return
	}
	response.Success(c, p)
}

// UpdateProfile 修改自己的资料，只更新请求里出现的字段
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var u model.ProfileUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.service.UpdateProfile(c.Request.Context(), jwt.GetUserID(c), u)
	if err != nil {
		respondError(c, err, "修改资料失败")
		return
	}
	response.SuccessWithMessage(c, "资料已更新", p)
}

// UploadAvatar 上传头像 POST /users/profile/avatar，表单字段 file
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "缺少文件: "+err.Error())
		return
	}
	src, err := file.Open()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	defer src.Close()

	p, err := h.service.SetAvatar(c.Request.Context(), jwt.GetUserID(c), file.Filename, src)
	if err != nil {
		respondError(c, err, "上传头像失败")
		return
	}
	response.SuccessWithMessage(c, "头像已更新", p)
}

// ListProfiles 除自己外的用户列表
func (h *UserHandler) ListProfiles(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	profiles, err := h.service.Others(c.Request.Context(), jwt.GetUserID(c), limit)
	if err != nil {
		respondError(c, err, "获取用户列表失败")
		return
	}
	response.Success(c, profiles)
}

// GetProfileByID 按ID获取资料
func (h *UserHandler) GetProfileByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "获取用户资料失败")
		return
	}
	response.Success(c, p)
}
