package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"droplink/internal/config"
)

type BucketPlatform string

const (
	PlatformLocal BucketPlatform = "local"
	PlatformS3    BucketPlatform = "s3"
)

// Storage 是对象存储网关：写入/删除 blob，按 key 签发限时下载链接。
type Storage interface {
	Platform() BucketPlatform
	Write(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error
	SignedURL(ctx context.Context, objectKey string, expires time.Duration, downloadName string) (string, error)
	Delete(ctx context.Context, objectKey string) error
}

type Registry struct {
	DefaultDriver BucketPlatform
	Storages      map[BucketPlatform]Storage
	Logger        *slog.Logger
}

func NormalizeDriver(driver string) (BucketPlatform, error) {
	switch strings.ToLower(driver) {
	case "local", "":
		return PlatformLocal, nil
	case "s3", "cloudflare":
		return PlatformS3, nil
	default:
		return "", fmt.Errorf("无效的存储驱动: %s", driver)
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// SanitizeFilename 把文件名里的空白统一替换为下划线。
func SanitizeFilename(name string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(name), "_")
}

// BuildObjectKey 由清洗后的原始文件名加唯一后缀生成存储 key，
// 后缀插在扩展名之前，保证同名文件互不覆盖。
func BuildObjectKey(filename string, now time.Time) string {
	sanitized := SanitizeFilename(filename)
	ext := path.Ext(sanitized)
	base := strings.TrimSuffix(sanitized, ext)
	if base == "" {
		base = "file"
	}
	if len([]rune(base)) > 40 {
		// 按 rune 截断，避免破坏 UTF-8
		base = string([]rune(base)[:40])
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%02d/%s-%s%s", now.Year(), int(now.Month()), base, suffix, ext)
}

func NormalizeObjectKey(key string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	clean = strings.TrimLeft(clean, "/")
	if strings.Contains(clean, "..") {
		return "", errors.New("存储 key 非法")
	}
	return clean, nil
}

// BuildContentDisposition 生成兼容非 ASCII 文件名的 Content-Disposition。
func BuildContentDisposition(filename string) string {
	safe := regexp.MustCompile(`[^\x20-\x7E]`).ReplaceAllString(filename, "_")
	encoded := url.QueryEscape(filename)
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", safe, encoded)
}

func SetupRegistry(cfg config.Config, logger *slog.Logger) (*Registry, error) {
	platform, err := NormalizeDriver(cfg.AppConfig.StorageDriver)
	if err != nil {
		return nil, err
	}
	reg := &Registry{DefaultDriver: platform, Storages: make(map[BucketPlatform]Storage), Logger: logger}

	local, err := NewLocal(cfg.LocalRoot, cfg.AppConfig.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	reg.Storages[PlatformLocal] = local

	if platform == PlatformS3 || (cfg.AppConfig.S3Bucket != "" && cfg.AppConfig.S3AccessKey != "" && cfg.AppConfig.S3SecretKey != "" && cfg.AppConfig.S3Endpoint != "") {
		s3, err := NewS3(cfg, logger)
		if err != nil {
			return nil, err
		}
		reg.Storages[PlatformS3] = s3
	}
	if platform == PlatformS3 {
		if _, ok := reg.Storages[PlatformS3]; !ok {
			return nil, fmt.Errorf("已选择 S3 存储驱动，但缺少必要配置")
		}
	}
	logger.Info(fmt.Sprintf("初始化 Storage 成功，%s", platform))
	return reg, nil
}

func (r *Registry) Active() Storage {
	return r.Storages[r.DefaultDriver]
}

// 基于扩展名推断 MIME
func GuessMime(filename string) string {
	lower := strings.ToLower(path.Ext(filename))
	switch lower {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".md", ".json", ".log", ".xml", ".csv", ".html", ".css", ".js", ".ts":
		return "text/plain"
	}
	return "application/octet-stream"
}
