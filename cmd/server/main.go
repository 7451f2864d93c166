package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"textenger/config"
	"textenger/internal/handler"
	"textenger/internal/repository"
	"textenger/internal/service"
	dbPkg "textenger/pkg/db"
	"textenger/pkg/idgen"
	"textenger/pkg/jwt"
	"textenger/pkg/logger"
	"textenger/pkg/redis"
	"textenger/pkg/response"
	"textenger/pkg/storage"
	"textenger/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化日志系统
	log, err := logger.InitLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("=== Textenger 服务启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Database),
		zap.String("redis_addr", cfg.Redis.Addr()),
		zap.String("storage_root", cfg.Storage.Root),
		zap.Int64("node_id", cfg.Node.ID),
		zap.String("log_level", cfg.Log.Level),
	)

	if err := idgen.Init(cfg.Node.ID); err != nil {
		log.Fatal("ID生成器初始化失败", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化数据库连接
	db, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("数据库连接成功，自动迁移完成")

	// 4. Redis：实时广播与缓存
	if err := redis.InitRedis(ctx, cfg.Redis); err != nil {
		log.Fatal("Redis连接失败", zap.Error(err))
	}
	defer redis.Close()

	// 5. 业务服务
	jwtSvc := jwt.NewJWTService(cfg.JWT)
	store, err := storage.NewLocal(cfg.Storage, jwtSvc)
	if err != nil {
		log.Fatal("存储初始化失败", zap.Error(err))
	}
	profileRepo := repository.NewProfileRepository(db)
	handlers := &handler.Handlers{
		User: handler.NewUserHandler(
			service.NewUserService(profileRepo, jwtSvc).WithAvatarStore(store, cfg.Storage.AvatarsBucket),
		),
		Message: handler.NewMessageHandler(service.NewMessageService(
			repository.NewMessageRepository(db),
			profileRepo,
			service.NewSendLimiter(cfg.Server.SendRate, cfg.Server.SendBurst),
		)),
		Room:     handler.NewRoomHandler(service.NewRoomService(repository.NewRoomRepository(db))),
		Settings: handler.NewSettingsHandler(service.NewSettingsService(repository.NewSettingsRepository(db))),
		Storage:  handler.NewStorageHandler(store, 7*24*time.Hour),
	}
	wsManager := websocket.GetManager()

	// 6. Gin路由
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logger.RequestIDMiddleware())
	router.Use(logger.LoggerMiddleware())
	router.Use(logger.ErrorLoggerMiddleware())

	setupBasicRoutes(router)
	handlers.RegisterRoutes(router, jwtSvc.AuthMiddleware())
	router.GET("/ws", websocket.NewHandler(jwtSvc, cfg.WebSocket, wsManager).ServeWS)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 7. HTTP服务、实时网关与优雅关闭
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return wsManager.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("正在关闭服务器...")
		wsManager.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("服务器异常退出", zap.Error(err))
		return
	}
	log.Info("服务器已安全关闭")
}

// setupBasicRoutes 设置基础路由
func setupBasicRoutes(router *gin.Engine) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		if err := dbPkg.HealthCheck(); err != nil {
			status = "db-down"
		} else if err := redis.HealthCheck(c.Request.Context()); err != nil {
			status = "redis-down"
		}
		response.Success(c, gin.H{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "Textenger",
			"version": "1.0.0",
		})
	})
}
