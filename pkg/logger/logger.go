package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"textenger/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 未初始化前使用空日志，避免测试和工具中出现空指针
var log = zap.NewNop()

// InitLogger 初始化日志系统
// Filename 为空时只输出到标准错误
func InitLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level := getLogLevel(cfg.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var sink zapcore.WriteSyncer
	if cfg.Filename == "" {
		sink = zapcore.Lock(os.Stderr)
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
			return nil, fmt.Errorf("无法创建日志目录: %w", err)
		}
		// 日志轮转
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, level)

	base := zap.New(core, zap.AddCaller())
	log = base.WithOptions(zap.AddCallerSkip(1))

	// 库代码通过 zap.L() 获取，不需要跳过封装层
	zap.ReplaceGlobals(base)

	return base, nil
}

// getLogLevel 获取日志级别
func getLogLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// L 返回当前的日志记录器
func L() *zap.Logger {
	return log
}

// Named 返回带模块名的子日志记录器
func Named(name string) *zap.Logger {
	return zap.L().Named(name)
}

// Debug 调试日志
func Debug(msg string, fields ...zap.Field) {
	log.Debug(msg, fields...)
}

// Info 信息日志
func Info(msg string, fields ...zap.Field) {
	log.Info(msg, fields...)
}

// Warn 警告日志
func Warn(msg string, fields ...zap.Field) {
	log.Warn(msg, fields...)
}

// Error 错误日志
func Error(msg string, fields ...zap.Field) {
	log.Error(msg, fields...)
}

// Fatal 致命错误日志
func Fatal(msg string, fields ...zap.Field) {
	log.Fatal(msg, fields...)
}

// Infof 格式化信息日志
func Infof(template string, args ...any) {
	log.Sugar().Infof(template, args...)
}

// Errorf 格式化错误日志
func Errorf(template string, args ...any) {
	log.Sugar().Errorf(template, args...)
}

// Sync 同步日志到磁盘
func Sync() error {
	return log.Sync()
}
