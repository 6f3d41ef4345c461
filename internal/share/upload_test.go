package share

import (
	"context"
	"strings"
	"testing"

	"droplink/internal/db/model"
)

func TestUploadBatch_批量上传并累计用户统计(t *testing.T) {
	engine, store, fs, adminID := newTestEngine(t)
	ctx := context.Background()

	files := []UploadFile{
		{Name: "photo.png", MimeType: "image/png", Size: 3, Reader: strings.NewReader("png")},
		{Name: "clip.mp4", MimeType: "video/mp4", Size: 3, Reader: strings.NewReader("mp4")},
		{Name: "report v1.pdf", MimeType: "", Size: 3, Reader: strings.NewReader("pdf")},
	}
	records, err := engine.UploadBatch(ctx, model.KindUser, adminID, "", files, UploadOptions{})
	if err != nil {
		t.Fatalf("UploadBatch 失败: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("期望 3 条记录，实际=%d", len(records))
	}

	// 文件名空白清洗 + MIME 兜底推断
	if records[2].DisplayName != "report_v1.pdf" {
		t.Fatalf("文件名未清洗: %q", records[2].DisplayName)
	}
	if records[2].MimeType != "application/pdf" {
		t.Fatalf("MIME 兜底推断不正确: %q", records[2].MimeType)
	}

	seen := make(map[string]bool)
	for _, rec := range records {
		if seen[rec.StorageKey] {
			t.Fatalf("存储 key 重复: %q", rec.StorageKey)
		}
		seen[rec.StorageKey] = true
		if _, ok := fs.objects[rec.StorageKey]; !ok {
			t.Fatalf("blob 未写入存储: %q", rec.StorageKey)
		}
	}

	admin, err := store.User.GetByID(ctx, adminID)
	if err != nil || admin == nil {
		t.Fatalf("读取用户失败: %v", err)
	}
	if admin.TotalUploads != 3 || admin.ImageCount != 1 || admin.VideoCount != 1 || admin.DocumentCount != 1 {
		t.Fatalf("上传统计不正确: uploads=%d image=%d video=%d doc=%d",
			admin.TotalUploads, admin.ImageCount, admin.VideoCount, admin.DocumentCount)
	}
}

func TestUploadBatch_访客批次共用同一归属标签(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	files := []UploadFile{
		{Name: "a.txt", MimeType: "text/plain", Size: 1, Reader: strings.NewReader("a")},
		{Name: "b.txt", MimeType: "text/plain", Size: 1, Reader: strings.NewReader("b")},
	}
	records, err := engine.UploadBatch(ctx, model.KindGuest, 0, "", files, UploadOptions{})
	if err != nil {
		t.Fatalf("UploadBatch 失败: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("期望 2 条记录，实际=%d", len(records))
	}
	if !strings.HasPrefix(records[0].GuestOwner, "guest-") {
		t.Fatalf("访客归属标签格式不正确: %q", records[0].GuestOwner)
	}
	if records[0].GuestOwner != records[1].GuestOwner {
		t.Fatalf("同批次访客文件应共用归属标签: %q != %q", records[0].GuestOwner, records[1].GuestOwner)
	}
}

func TestUploadBatch_中途失败不回滚已提交文件(t *testing.T) {
	engine, store, fs, adminID := newTestEngine(t)
	ctx := context.Background()
	fs.failWrite = 2

	files := []UploadFile{
		{Name: "ok.txt", MimeType: "text/plain", Size: 2, Reader: strings.NewReader("ok")},
		{Name: "bad.txt", MimeType: "text/plain", Size: 3, Reader: strings.NewReader("bad")},
	}
	if _, err := engine.UploadBatch(ctx, model.KindUser, adminID, "", files, UploadOptions{}); err == nil {
		t.Fatalf("第二个文件写入失败时应返回错误")
	}

	records, err := store.Share.ListNotDeleted(ctx, model.KindUser)
	if err != nil {
		t.Fatalf("读取记录失败: %v", err)
	}
	if len(records) != 1 || records[0].DisplayName != "ok.txt" {
		t.Fatalf("已提交的文件应保留: %+v", records)
	}
}
