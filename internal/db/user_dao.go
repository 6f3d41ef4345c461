package db

import (
	"context"
	"database/sql"
	"errors"

	"droplink/internal/db/model"
)

type UserDao struct {
	store *DB
}

const userColumns = `id, username, password, email, nickname, token, total_uploads, total_downloads, image_count, video_count, document_count, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var user model.User
	if err := row.Scan(&user.ID, &user.Username, &user.Password, &user.Email, &user.Nickname, &user.Token, &user.TotalUploads, &user.TotalDownloads, &user.ImageCount, &user.VideoCount, &user.DocumentCount, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (u *UserDao) FindByCredential(ctx context.Context, credential string) (*model.User, error) {
	row := u.store.Client.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user WHERE username = ? OR email = ? LIMIT 1`, credential, credential)
	return scanUser(row)
}

func (u *UserDao) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	row := u.store.Client.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user WHERE id = ? LIMIT 1`, userID)
	return scanUser(row)
}

func (u *UserDao) GetByToken(ctx context.Context, token string) (*model.User, error) {
	row := u.store.Client.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user WHERE token = ? LIMIT 1`, token)
	return scanUser(row)
}

func (u *UserDao) UpdateToken(ctx context.Context, userID int64, token *string) error {
	_, err := u.store.Client.ExecContext(ctx, `UPDATE user SET token = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, token, userID)
	return err
}

func (u *UserDao) UpdatePassword(ctx context.Context, userID int64, newHash string) error {
	_, err := u.store.Client.ExecContext(ctx, `UPDATE user SET password = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, newHash, userID)
	return err
}

// ApplyUploadCounters 按上传批次累计用量计数，单条语句自增。
// 与分享记录不在同一事务里，属于尽力而为的统计。
func (u *UserDao) ApplyUploadCounters(ctx context.Context, userID, uploads, images, videos, documents int64) error {
	_, err := u.store.Client.ExecContext(ctx, `
UPDATE user SET
  total_uploads = total_uploads + ?,
  image_count = image_count + ?,
  video_count = video_count + ?,
  document_count = document_count + ?,
  updated_at = CURRENT_TIMESTAMP
WHERE id = ?`, uploads, images, videos, documents, userID)
	return err
}

func (u *UserDao) IncrementDownloadTotal(ctx context.Context, userID int64) error {
	_, err := u.store.Client.ExecContext(ctx, `UPDATE user SET total_downloads = total_downloads + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, userID)
	return err
}
