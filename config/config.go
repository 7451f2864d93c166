package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath 默认配置文件路径
const DefaultPath = "config/config.yaml"

// Config 应用配置结构体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Storage   StorageConfig   `yaml:"storage"`
	Sync      SyncConfig      `yaml:"sync"`
	Client    ClientConfig    `yaml:"client"`
	Node      NodeConfig      `yaml:"node"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         string        `yaml:"port"`         // 服务器监听端口
	ReadTimeout  time.Duration `yaml:"readTimeout"`  // 读取超时时间
	WriteTimeout time.Duration `yaml:"writeTimeout"` // 写入超时时间
	IdleTimeout  time.Duration `yaml:"idleTimeout"`  // 空闲超时时间
	SendRate     float64       `yaml:"sendRate"`     // 每个用户每秒允许发送的消息数
	SendBurst    int           `yaml:"sendBurst"`    // 发送突发上限
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`   // mysql | postgres
	Host     string `yaml:"host"`     // 数据库主机地址
	Port     int    `yaml:"port"`     // 数据库端口
	Username string `yaml:"username"` // 数据库用户名
	Password string `yaml:"password"` // 数据库密码
	Database string `yaml:"database"` // 数据库名称
	Charset  string `yaml:"charset"`  // 字符集（仅mysql）
	SSLMode  string `yaml:"sslMode"`  // 仅postgres
	MaxIdle  int    `yaml:"maxIdle"`  // 最大空闲连接数
	MaxOpen  int    `yaml:"maxOpen"`  // 最大打开连接数
	LogLevel string `yaml:"logLevel"` // gorm日志级别 silent|error|warn|info
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret     string        `yaml:"secret"`     // JWT密钥
	ExpireTime time.Duration `yaml:"expireTime"` // JWT过期时间
	Issuer     string        `yaml:"issuer"`     // JWT签发者
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`      // 日志级别
	Filename   string `yaml:"filename"`   // 日志文件名
	MaxSize    int    `yaml:"maxSize"`    // 单个日志文件最大大小(MB)
	MaxBackups int    `yaml:"maxBackups"` // 最大备份文件数
	MaxAge     int    `yaml:"maxAge"`     // 最大保存天数
	Compress   bool   `yaml:"compress"`   // 是否压缩
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host        string        `yaml:"host"`        // Redis主机地址
	Port        int           `yaml:"port"`        // Redis端口
	Password    string        `yaml:"password"`    // Redis密码
	DB          int           `yaml:"db"`          // Redis数据库编号
	RecentTTL   time.Duration `yaml:"recentTTL"`   // 最新一页消息缓存时间
	RecentLimit int           `yaml:"recentLimit"` // 每个会话缓存的消息条数
}

// Addr Redis地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// WebSocketConfig WebSocket 心跳配置
type WebSocketConfig struct {
	PingInterval time.Duration `yaml:"pingInterval"` // 发送ping的间隔
	ReadTimeout  time.Duration `yaml:"readTimeout"`  // 读超时时间（未收到任何数据则断开）
	WriteTimeout time.Duration `yaml:"writeTimeout"` // 单次写超时
}

// StorageConfig 附件存储配置
type StorageConfig struct {
	Root              string        `yaml:"root"`              // 本地存储根目录
	BaseURL           string        `yaml:"baseURL"`           // 对外访问地址，用于拼接公开URL
	AttachmentsBucket string        `yaml:"attachmentsBucket"` // 附件桶名
	AvatarsBucket     string        `yaml:"avatarsBucket"`     // 头像桶名，头像走公开URL
	URLMode           string        `yaml:"urlMode"`           // public | signed
	SignedURLTTL      time.Duration `yaml:"signedURLTTL"`      // 签名URL有效期
	MaxUploadSize     int64         `yaml:"maxUploadSize"`     // 单个附件大小上限(字节)
}

// SyncConfig 客户端消息同步配置
type SyncConfig struct {
	ChannelPageSize int           `yaml:"channelPageSize"`
	DirectPageSize  int           `yaml:"directPageSize"`
	RoomPageSize    int           `yaml:"roomPageSize"`
	GroupWindow     time.Duration `yaml:"groupWindow"`  // 连续消息合并窗口
	ReconnectMin    time.Duration `yaml:"reconnectMin"` // 重连初始间隔
	ReconnectMax    time.Duration `yaml:"reconnectMax"` // 重连最大间隔
}

// ClientConfig 终端客户端配置
type ClientConfig struct {
	BaseURL string        `yaml:"baseURL"` // 服务端地址
	Timeout time.Duration `yaml:"timeout"` // HTTP请求超时
}

// NodeConfig 节点配置，用于snowflake ID
type NodeConfig struct {
	ID int64 `yaml:"id"`
}

// LoadConfig 加载配置（默认值 -> YAML文件 -> .env -> 环境变量）
// 文件不存在或解析失败时退回默认配置
func LoadConfig() *Config {
	config, err := Load(DefaultPath)
	if err != nil {
		config = Default()
		overrideWithEnvVars(config)
	}
	return config
}

// Load 从指定路径加载配置
// 文件不存在不算错误；YAML格式错误会返回错误
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// .env 只补充未设置的环境变量，缺失时忽略
	_ = godotenv.Load()

	overrideWithEnvVars(config)
	return config, nil
}

// overrideWithEnvVars 用环境变量覆盖配置
func overrideWithEnvVars(config *Config) {
	// 服务器配置
	setString(&config.Server.Port, "SERVER_PORT")
	setDuration(&config.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	setDuration(&config.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	setDuration(&config.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT")
	if rate := getEnvFloat("SERVER_SEND_RATE", 0); rate > 0 {
		config.Server.SendRate = rate
	}
	setInt(&config.Server.SendBurst, "SERVER_SEND_BURST")

	// 数据库配置
	setString(&config.Database.Driver, "DB_DRIVER")
	setString(&config.Database.Host, "DB_HOST")
	setInt(&config.Database.Port, "DB_PORT")
	setString(&config.Database.Username, "DB_USERNAME")
	setString(&config.Database.Password, "DB_PASSWORD")
	setString(&config.Database.Database, "DB_DATABASE")
	setString(&config.Database.Charset, "DB_CHARSET")
	setString(&config.Database.SSLMode, "DB_SSLMODE")
	setInt(&config.Database.MaxIdle, "DB_MAX_IDLE")
	setInt(&config.Database.MaxOpen, "DB_MAX_OPEN")
	setString(&config.Database.LogLevel, "DB_LOG_LEVEL")

	// JWT配置
	setString(&config.JWT.Secret, "JWT_SECRET")
	setDuration(&config.JWT.ExpireTime, "JWT_EXPIRE_TIME")
	setString(&config.JWT.Issuer, "JWT_ISSUER")

	// 日志配置
	setString(&config.Log.Level, "LOG_LEVEL")
	setString(&config.Log.Filename, "LOG_FILENAME")
	setInt(&config.Log.MaxSize, "LOG_MAX_SIZE")
	setInt(&config.Log.MaxBackups, "LOG_MAX_BACKUPS")
	setInt(&config.Log.MaxAge, "LOG_MAX_AGE")
	config.Log.Compress = getEnvBool("LOG_COMPRESS", config.Log.Compress)

	// Redis配置
	setString(&config.Redis.Host, "REDIS_HOST")
	setInt(&config.Redis.Port, "REDIS_PORT")
	setString(&config.Redis.Password, "REDIS_PASSWORD")
	if db := getEnvInt("REDIS_DB", -1); db >= 0 {
		config.Redis.DB = db
	}
	setDuration(&config.Redis.RecentTTL, "REDIS_RECENT_TTL")
	setInt(&config.Redis.RecentLimit, "REDIS_RECENT_LIMIT")

	// WebSocket配置
	setDuration(&config.WebSocket.PingInterval, "WS_PING_INTERVAL")
	setDuration(&config.WebSocket.ReadTimeout, "WS_READ_TIMEOUT")
	setDuration(&config.WebSocket.WriteTimeout, "WS_WRITE_TIMEOUT")

	// 存储配置
	setString(&config.Storage.Root, "STORAGE_ROOT")
	setString(&config.Storage.BaseURL, "STORAGE_BASE_URL")
	setString(&config.Storage.AttachmentsBucket, "STORAGE_BUCKET")
	setString(&config.Storage.AvatarsBucket, "STORAGE_AVATARS_BUCKET")
	setString(&config.Storage.URLMode, "STORAGE_URL_MODE")
	setDuration(&config.Storage.SignedURLTTL, "STORAGE_SIGNED_TTL")
	if size := getEnvInt("STORAGE_MAX_UPLOAD", 0); size > 0 {
		config.Storage.MaxUploadSize = int64(size)
	}

	// 同步配置
	setInt(&config.Sync.ChannelPageSize, "SYNC_CHANNEL_PAGE_SIZE")
	setInt(&config.Sync.DirectPageSize, "SYNC_DM_PAGE_SIZE")
	setInt(&config.Sync.RoomPageSize, "SYNC_ROOM_PAGE_SIZE")
	setDuration(&config.Sync.GroupWindow, "SYNC_GROUP_WINDOW")
	setDuration(&config.Sync.ReconnectMin, "SYNC_RECONNECT_MIN")
	setDuration(&config.Sync.ReconnectMax, "SYNC_RECONNECT_MAX")

	// 客户端配置
	setString(&config.Client.BaseURL, "TEXTENGER_URL")
	setDuration(&config.Client.Timeout, "TEXTENGER_TIMEOUT")

	if id := getEnvInt("NODE_ID", -1); id >= 0 {
		config.Node.ID = int64(id)
	}
}

// Default 获取默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			SendRate:     5,
			SendBurst:    10,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			Username: "textenger",
			Password: "",
			Database: "textenger",
			Charset:  "utf8mb4",
			SSLMode:  "disable",
			MaxIdle:  10,
			MaxOpen:  100,
			LogLevel: "warn",
		},
		JWT: JWTConfig{
			Secret:     "change-me",
			ExpireTime: 24 * time.Hour,
			Issuer:     "textenger",
		},
		Log: LogConfig{
			Level:      "info",
			Filename:   "logs/app.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        6379,
			DB:          0,
			RecentTTL:   10 * time.Minute,
			RecentLimit: 50,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  90 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Root:              "data/storage",
			BaseURL:           "http://localhost:8080",
			AttachmentsBucket: "attachments",
			AvatarsBucket:     "avatars",
			URLMode:           "signed",
			SignedURLTTL:      24 * time.Hour,
			MaxUploadSize:     10 << 20,
		},
		Sync: SyncConfig{
			ChannelPageSize: 50,
			DirectPageSize:  20,
			RoomPageSize:    50,
			GroupWindow:     5 * time.Minute,
			ReconnectMin:    500 * time.Millisecond,
			ReconnectMax:    30 * time.Second,
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 15 * time.Second,
		},
		Node: NodeConfig{ID: 1},
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := getEnvInt(key, 0); v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := getEnvDuration(key, 0); v > 0 {
		*dst = v
	}
}

// 辅助函数：获取整数环境变量
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// 辅助函数：获取布尔环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// 辅助函数：获取时间环境变量
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
