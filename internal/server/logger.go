package server

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger 构建全服务共用的结构化日志器，级别由 LOG_LEVEL 控制，
// 无法识别的取值回退到 info。
func NewLogger(levelStr string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "droplink")
}
