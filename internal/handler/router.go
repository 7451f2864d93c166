package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers 全部业务处理器
type Handlers struct {
	User     *UserHandler
	Message  *MessageHandler
	Room     *RoomHandler
	Settings *SettingsHandler
	Storage  *StorageHandler
}

// RegisterRoutes 绑定业务路由
// auth 为 JWT 认证中间件
func (h *Handlers) RegisterRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	v1 := router.Group("/api/v1")
	{
		users := v1.Group("/users")
		{
			// 公开接口（无需认证）
			users.POST("/register", h.User.Register)
			users.POST("/login", h.User.Login)
			users.GET("/profile", auth, h.User.GetProfile)
			users.PATCH("/profile", auth, h.User.UpdateProfile)
			users.POST("/profile/avatar", auth, h.User.UploadAvatar)
		}

		authed := v1.Group("")
		authed.Use(auth)
		{
			authed.GET("/profiles", h.User.ListProfiles)
			authed.GET("/profiles/:id", h.User.GetProfileByID)

			authed.GET("/settings", h.Settings.GetSettings)
			authed.PUT("/settings", h.Settings.UpdateSettings)

			scopes := authed.Group("/scopes/:scope/messages")
			{
				scopes.GET("", h.Message.ListMessages)
				scopes.POST("", h.Message.SendMessage)
				scopes.GET("/:id", h.Message.GetMessage)
				scopes.PATCH("/:id", h.Message.EditMessage)
				scopes.DELETE("/:id", h.Message.DeleteMessage)
			}
			authed.GET("/conversations", h.Message.GetConversations)

			rooms := authed.Group("/rooms")
			{
				rooms.GET("", h.Room.ListRooms)
				rooms.POST("", h.Room.CreateRoom)
				rooms.GET("/:id/channels", h.Room.ListChannels)
				rooms.POST("/:id/channels", h.Room.CreateChannel)
				rooms.GET("/:id/members", h.Room.ListMembers)
			}

			if h.Storage != nil {
				authed.POST("/storage/sign", h.Storage.Sign)
				authed.POST("/storage/object/:bucket/*path", h.Storage.Upload)
			}
		}
	}

	if h.Storage != nil {
		router.GET("/files/:bucket/*path", h.Storage.ServePublic)
		router.GET("/signed/:token", h.Storage.ServeSigned)
	}
}
