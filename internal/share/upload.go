package share

import (
	"context"
	"io"
	"strings"

	"droplink/internal/db/model"
	"droplink/internal/storage"
)

type UploadFile struct {
	Name     string
	MimeType string
	Size     int64
	Reader   io.Reader
}

type UploadOptions struct {
	Password    string
	HasExpiry   bool
	ExpiryHours int
}

// UploadBatch 逐个处理批次中的文件：清洗文件名、生成唯一存储 key、
// 写入对象存储、落分享记录。批次没有原子性：中途失败直接返回错误，
// 之前已提交的文件不回滚。
func (e *Engine) UploadBatch(ctx context.Context, kind model.ShareKind, userID int64, guestOwner string, files []UploadFile, opts UploadOptions) ([]*model.ShareRecord, error) {
	if kind == model.KindGuest && guestOwner == "" {
		guestOwner = NewGuestOwner()
	}

	var records []*model.ShareRecord
	var images, videos, documents int64
	for _, f := range files {
		mimeType := f.MimeType
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = storage.GuessMime(f.Name)
		}
		key := storage.BuildObjectKey(f.Name, e.now())
		if err := e.storage.Write(ctx, key, f.Reader, f.Size, mimeType); err != nil {
			return nil, err
		}
		rec, err := e.CreateShare(ctx, CreateParams{
			Kind:        kind,
			UserID:      userID,
			GuestOwner:  guestOwner,
			DisplayName: storage.SanitizeFilename(f.Name),
			MimeType:    mimeType,
			SizeBytes:   f.Size,
			StorageKey:  key,
			Password:    opts.Password,
			HasExpiry:   opts.HasExpiry,
			ExpiryHours: opts.ExpiryHours,
		})
		if err != nil {
			return nil, err
		}
		records = append(records, rec)

		switch {
		case strings.HasPrefix(mimeType, "image/"):
			images++
		case strings.HasPrefix(mimeType, "video/"):
			videos++
		default:
			documents++
		}
	}

	if kind == model.KindUser && len(records) > 0 {
		// 批次结束统一累计，失败不影响上传结果
		if err := e.store.User.ApplyUploadCounters(ctx, userID, int64(len(records)), images, videos, documents); err != nil {
			e.logger.Warn("累计用户上传统计失败", "err", err, "user_id", userID)
		}
	}
	return records, nil
}
