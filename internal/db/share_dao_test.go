package db

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"droplink/internal/config"
	"droplink/internal/db/model"
)

func newTestStore(t *testing.T) *DB {
	t.Helper()
	t.Setenv("DATABASE_PATH", ":memory:")
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	store, err := NewStore(cfg, logger, true)
	if err != nil {
		t.Fatalf("NewStore 失败: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insertShare(t *testing.T, store *DB, kind model.ShareKind, name string) *model.ShareRecord {
	t.Helper()
	rec := &model.ShareRecord{
		Kind:        kind,
		UserID:      1,
		GuestOwner:  "guest-test01",
		DisplayName: name,
		MimeType:    "text/plain",
		SizeBytes:   3,
		StorageKey:  "2026-03/" + name,
		Status:      model.StatusActive,
	}
	if err := store.Share.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert 失败: %v", err)
	}
	return rec
}

func TestShareDAO_Insert_分配短链码并回读(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := insertShare(t, store, model.KindUser, "a.txt")
	if rec.ID == 0 || len(rec.ShortCode) != 8 {
		t.Fatalf("Insert 未回填 id/短链码: id=%d code=%q", rec.ID, rec.ShortCode)
	}

	got, err := store.Share.GetByCode(ctx, model.KindUser, rec.ShortCode)
	if err != nil {
		t.Fatalf("GetByCode 失败: %v", err)
	}
	if got == nil || got.ID != rec.ID {
		t.Fatalf("按短链码未找到记录: %+v", got)
	}
	if got.Kind != model.KindUser {
		t.Fatalf("记录归类不正确: %q", got.Kind)
	}

	// 两张表的短链码命名空间互相独立
	if other, err := store.Share.GetByCode(ctx, model.KindGuest, rec.ShortCode); err != nil || other != nil {
		t.Fatalf("用户短链不应出现在访客表: rec=%+v err=%v", other, err)
	}
}

func TestShareDAO_GetByID_不存在返回nil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Share.GetByID(context.Background(), model.KindUser, 9999)
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if got != nil {
		t.Fatalf("不存在的记录应返回 nil，实际=%+v", got)
	}
}

func TestShareDAO_IncrementDownloadCount_原子自增(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := insertShare(t, store, model.KindGuest, "c.txt")

	for i := 0; i < 3; i++ {
		if err := store.Share.IncrementDownloadCount(ctx, model.KindGuest, rec.ID); err != nil {
			t.Fatalf("自增失败: %v", err)
		}
	}
	got, err := store.Share.GetByID(ctx, model.KindGuest, rec.ID)
	if err != nil || got == nil {
		t.Fatalf("读取记录失败: %v", err)
	}
	if got.DownloadCount != 3 {
		t.Fatalf("下载计数应为 3，实际=%d", got.DownloadCount)
	}
}

func TestShareDAO_ListByUser_分页且排除已删除(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		insertShare(t, store, model.KindUser, fmt.Sprintf("f%d.txt", i))
	}
	deleted := insertShare(t, store, model.KindUser, "gone.txt")
	if err := store.Share.UpdateStatus(ctx, model.KindUser, deleted.ID, model.StatusDeleted); err != nil {
		t.Fatalf("标记删除失败: %v", err)
	}

	items, total, err := store.Share.ListByUser(ctx, 1, 1, 3)
	if err != nil {
		t.Fatalf("ListByUser 失败: %v", err)
	}
	if total != 4 {
		t.Fatalf("总数应排除已删除记录，期望 4 实际=%d", total)
	}
	if len(items) != 3 {
		t.Fatalf("第一页应有 3 条，实际=%d", len(items))
	}

	items2, _, err := store.Share.ListByUser(ctx, 1, 2, 3)
	if err != nil {
		t.Fatalf("ListByUser 第二页失败: %v", err)
	}
	if len(items2) != 1 {
		t.Fatalf("第二页应有 1 条，实际=%d", len(items2))
	}
}

func TestShareDAO_GetDashboardStats_汇总两张表(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := insertShare(t, store, model.KindUser, "u.txt")
	insertShare(t, store, model.KindGuest, "g.txt")
	if err := store.Share.IncrementDownloadCount(ctx, model.KindUser, u.ID); err != nil {
		t.Fatalf("自增失败: %v", err)
	}

	files, size, downloads, err := store.Share.GetDashboardStats(ctx)
	if err != nil {
		t.Fatalf("GetDashboardStats 失败: %v", err)
	}
	if files != 2 || size != 6 || downloads != 1 {
		t.Fatalf("统计不正确: files=%d size=%d downloads=%d", files, size, downloads)
	}
}
