package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"droplink/internal/db/model"
)

// ShareDao 同时服务用户分享（file 表）和访客分享（guest_file 表），
// 两张表除归属列外结构一致，短链码在各自表内唯一。
type ShareDao struct {
	store *DB
}

func tableFor(kind model.ShareKind) string {
	if kind == model.KindGuest {
		return "guest_file"
	}
	return "file"
}

func ownerColumn(kind model.ShareKind) string {
	if kind == model.KindGuest {
		return "guest_owner"
	}
	return "user_id"
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	for i := range buf {
		buf[i] = letters[int(buf[i])%len(letters)]
	}
	return string(buf), nil
}

const shareColumns = `id, %s, display_name, mime_type, size_bytes, storage_key, status, has_expiry, expires_at, password, short_code, download_count, created_at, updated_at`

func selectShare(kind model.ShareKind) string {
	return fmt.Sprintf(shareColumns, ownerColumn(kind))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShare(row rowScanner, kind model.ShareKind) (*model.ShareRecord, error) {
	var rec model.ShareRecord
	rec.Kind = kind
	var owner any
	if kind == model.KindGuest {
		owner = &rec.GuestOwner
	} else {
		owner = &rec.UserID
	}
	var password sql.NullString
	var expiresAt sql.NullTime
	if err := row.Scan(&rec.ID, owner, &rec.DisplayName, &rec.MimeType, &rec.SizeBytes, &rec.StorageKey, &rec.Status, &rec.HasExpiry, &expiresAt, &password, &rec.ShortCode, &rec.DownloadCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if password.Valid {
		rec.Password = password.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		rec.ExpiresAt = &t
	}
	return &rec, nil
}

func ownerValue(rec *model.ShareRecord) any {
	if rec.Kind == model.KindGuest {
		return rec.GuestOwner
	}
	return rec.UserID
}

// Insert 写入一条分享记录并分配短链码；撞码时换码重试。
func (s *ShareDao) Insert(ctx context.Context, rec *model.ShareRecord) error {
	table := tableFor(rec.Kind)
	var passwordValue sql.NullString
	if rec.Password != "" {
		passwordValue = sql.NullString{String: rec.Password, Valid: true}
	}
	var expireValue sql.NullTime
	if rec.ExpiresAt != nil {
		expireValue = sql.NullTime{Time: *rec.ExpiresAt, Valid: true}
	}
	for i := 0; i < 5; i++ {
		code, err := randomCode(8)
		if err != nil {
			return err
		}
		row := s.store.Client.QueryRowContext(ctx, fmt.Sprintf(`
INSERT INTO "%s"(%s, display_name, mime_type, size_bytes, storage_key, status, has_expiry, expires_at, password, short_code, created_at, updated_at)
VALUES(?,?,?,?,?,?,?,?,?,?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
RETURNING id, short_code, download_count, created_at, updated_at`, table, ownerColumn(rec.Kind)),
			ownerValue(rec), rec.DisplayName, rec.MimeType, rec.SizeBytes, rec.StorageKey, rec.Status, rec.HasExpiry, expireValue, passwordValue, code)
		if err := row.Scan(&rec.ID, &rec.ShortCode, &rec.DownloadCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			if strings.Contains(err.Error(), "UNIQUE") && strings.Contains(err.Error(), "short_code") {
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("生成短链失败")
}

func (s *ShareDao) GetByID(ctx context.Context, kind model.ShareKind, id int64) (*model.ShareRecord, error) {
	row := s.store.Client.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM "%s" WHERE id = ? LIMIT 1`, selectShare(kind), tableFor(kind)), id)
	rec, err := scanShare(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *ShareDao) GetByCode(ctx context.Context, kind model.ShareKind, code string) (*model.ShareRecord, error) {
	row := s.store.Client.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM "%s" WHERE short_code = ? LIMIT 1`, selectShare(kind), tableFor(kind)), code)
	rec, err := scanShare(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *ShareDao) UpdateStatus(ctx context.Context, kind model.ShareKind, id int64, status model.ShareStatus) error {
	_, err := s.store.Client.ExecContext(ctx, fmt.Sprintf(`UPDATE "%s" SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, tableFor(kind)), status, id)
	return err
}

func (s *ShareDao) UpdateExpiry(ctx context.Context, kind model.ShareKind, id int64, expiresAt time.Time, hasExpiry bool) error {
	_, err := s.store.Client.ExecContext(ctx, fmt.Sprintf(`UPDATE "%s" SET expires_at = ?, has_expiry = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, tableFor(kind)), expiresAt, hasExpiry, id)
	return err
}

func (s *ShareDao) UpdatePassword(ctx context.Context, kind model.ShareKind, id int64, hash string) error {
	_, err := s.store.Client.ExecContext(ctx, fmt.Sprintf(`UPDATE "%s" SET password = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, tableFor(kind)), hash, id)
	return err
}

// RotateShortCode 为记录换一个新的短链码，旧码立即失效。
func (s *ShareDao) RotateShortCode(ctx context.Context, kind model.ShareKind, id int64) (string, error) {
	for i := 0; i < 5; i++ {
		code, err := randomCode(8)
		if err != nil {
			return "", err
		}
		_, err = s.store.Client.ExecContext(ctx, fmt.Sprintf(`UPDATE "%s" SET short_code = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, tableFor(kind)), code, id)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				continue
			}
			return "", err
		}
		return code, nil
	}
	return "", fmt.Errorf("生成短链失败")
}

// IncrementDownloadCount 按行原子自增，避免读改写竞争导致计数回退。
func (s *ShareDao) IncrementDownloadCount(ctx context.Context, kind model.ShareKind, id int64) error {
	_, err := s.store.Client.ExecContext(ctx, fmt.Sprintf(`UPDATE "%s" SET download_count = download_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, tableFor(kind)), id)
	return err
}

// ListNotDeleted 按 id 升序返回所有未删除的记录，供批量过期维护使用。
func (s *ShareDao) ListNotDeleted(ctx context.Context, kind model.ShareKind) ([]*model.ShareRecord, error) {
	rows, err := s.store.Client.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM "%s" WHERE status != ? ORDER BY id`, selectShare(kind), tableFor(kind)), model.StatusDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.ShareRecord
	for rows.Next() {
		rec, err := scanShare(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ShareDao) HardDelete(ctx context.Context, kind model.ShareKind, id int64) error {
	_, err := s.store.Client.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s" WHERE id = ?`, tableFor(kind)), id)
	return err
}

func (s *ShareDao) ListByUser(ctx context.Context, userID int64, page, size int) ([]model.UserFileItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 15
	}
	if size > 100 {
		size = 100
	}
	offset := (page - 1) * size

	rows, err := s.store.Client.QueryContext(ctx, `
SELECT id, display_name, mime_type, size_bytes, status, short_code, download_count, expires_at, created_at
FROM file
WHERE user_id = ? AND status != ?
ORDER BY created_at DESC
LIMIT ? OFFSET ?;
`, userID, model.StatusDeleted, size, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]model.UserFileItem, 0)
	for rows.Next() {
		var item model.UserFileItem
		var expiresAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.DisplayName, &item.MimeType, &item.SizeBytes, &item.Status, &item.ShortCode, &item.DownloadCount, &expiresAt, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			item.ExpiresAt = &t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.store.Client.QueryRowContext(ctx, `SELECT COUNT(1) FROM file WHERE user_id = ? AND status != ?`, userID, model.StatusDeleted).Scan(&total); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetDashboardStats 汇总两张分享表的文件数、总字节数和总下载次数。
func (s *ShareDao) GetDashboardStats(ctx context.Context) (int64, int64, int64, error) {
	var totalFiles, totalSize, totalDownloads int64
	err := s.store.Client.QueryRowContext(ctx, `
SELECT COUNT(1), COALESCE(SUM(size_bytes), 0), COALESCE(SUM(download_count), 0)
FROM (
  SELECT size_bytes, download_count FROM file
  UNION ALL
  SELECT size_bytes, download_count FROM guest_file
)`).Scan(&totalFiles, &totalSize, &totalDownloads)
	if err != nil {
		return 0, 0, 0, err
	}
	return totalFiles, totalSize, totalDownloads, nil
}
