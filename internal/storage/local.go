package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage 把 blob 落在本地磁盘，主要服务开发与测试环境。
// 下载链接指向 /d/{key} 直传路由，不做真正的签名。
type LocalStorage struct {
	root    string
	baseURL string
}

func NewLocal(root, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *LocalStorage) Platform() BucketPlatform {
	return PlatformLocal
}

func (l *LocalStorage) Write(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	normalized, err := NormalizeObjectKey(objectKey)
	if err != nil {
		return err
	}
	target := filepath.Join(l.root, filepath.FromSlash(normalized))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	return nil
}

func (l *LocalStorage) SignedURL(ctx context.Context, objectKey string, expires time.Duration, downloadName string) (string, error) {
	key, err := NormalizeObjectKey(objectKey)
	if err != nil {
		return "", err
	}
	u := fmt.Sprintf("%s/d/%s", l.baseURL, key)
	if downloadName != "" {
		u += "?name=" + url.QueryEscape(downloadName)
	}
	return u, nil
}

// FilePath 返回 key 对应的磁盘路径，供 /d/ 直传路由使用。
func (l *LocalStorage) FilePath(objectKey string) (string, error) {
	key, err := NormalizeObjectKey(objectKey)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

func (l *LocalStorage) Delete(ctx context.Context, objectKey string) error {
	key, err := NormalizeObjectKey(objectKey)
	if err != nil {
		return err
	}
	target := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
