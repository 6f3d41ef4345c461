package share

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"droplink/internal/db"
	"droplink/internal/db/model"
	"droplink/internal/storage"
)

const (
	// 未指定有效期的分享也会带上 10 天的兜底过期时间
	DefaultExpiry = 240 * time.Hour
	// 所有下载链接统一签 24 小时
	SignedURLTTL = 24 * time.Hour
)

// Engine 负责分享记录的完整生命周期：创建、状态切换、过期判定、
// 密码门禁、下载计数和短链换发。过期是惰性的：只在记录被访问时落库，
// 没有后台定时器，批量维护靠外部调用 SweepAllExpiries。
type Engine struct {
	store   *db.DB
	storage storage.Storage
	logger  *slog.Logger
	now     func() time.Time
}

func NewEngine(store *db.DB, stg storage.Storage, logger *slog.Logger) *Engine {
	return &Engine{store: store, storage: stg, logger: logger, now: time.Now}
}

type CreateParams struct {
	Kind        model.ShareKind
	UserID      int64
	GuestOwner  string
	DisplayName string
	MimeType    string
	SizeBytes   int64
	StorageKey  string
	Password    string
	HasExpiry   bool
	ExpiryHours int
}

// NewGuestOwner 生成访客分享的归属标签。只是一个不透明字符串，
// 不对应任何账户。
func NewGuestOwner() string {
	return "guest-" + uuid.NewString()[:8]
}

// CreateShare 落一条分享记录。blob 已由调用方写入对象存储。
func (e *Engine) CreateShare(ctx context.Context, p CreateParams) (*model.ShareRecord, error) {
	if p.Kind == model.KindUser {
		owner, err := e.store.User.GetByID(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			return nil, ErrOwnerNotFound
		}
	}

	now := e.now()
	expiresAt := now.Add(DefaultExpiry)
	if p.HasExpiry && p.ExpiryHours > 0 {
		expiresAt = now.Add(time.Duration(p.ExpiryHours) * time.Hour)
	}

	rec := &model.ShareRecord{
		Kind:        p.Kind,
		UserID:      p.UserID,
		GuestOwner:  p.GuestOwner,
		DisplayName: p.DisplayName,
		MimeType:    p.MimeType,
		SizeBytes:   p.SizeBytes,
		StorageKey:  p.StorageKey,
		Status:      model.StatusActive,
		HasExpiry:   p.HasExpiry,
		ExpiresAt:   &expiresAt,
	}
	if p.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		rec.Password = string(hash)
	}
	if err := e.store.Share.Insert(ctx, rec); err != nil {
		return nil, err
	}
	e.logger.Info("创建分享", "kind", rec.Kind, "id", rec.ID, "file", rec.DisplayName, "short_url", rec.ShortURL())
	return rec, nil
}

// Get 按 id 取记录快照，供 handler 做归属校验。
func (e *Engine) Get(ctx context.Context, kind model.ShareKind, id int64) (*model.ShareRecord, error) {
	rec, err := e.store.Share.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// checkAvailable 校验记录是否可下载，过期的记录在此处惰性落库。
func (e *Engine) checkAvailable(ctx context.Context, rec *model.ShareRecord) error {
	if rec.Status == model.StatusExpired {
		return ErrExpired
	}
	if rec.Status != model.StatusActive {
		return ErrUnavailable
	}
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(e.now()) {
		if err := e.store.Share.UpdateStatus(ctx, rec.Kind, rec.ID, model.StatusExpired); err != nil {
			return err
		}
		rec.Status = model.StatusExpired
		e.logger.Info("分享惰性过期", "kind", rec.Kind, "id", rec.ID)
		return ErrExpired
	}
	return nil
}

// IssueURL 为一条可用的记录签发 24 小时下载链接，不计入下载次数。
func (e *Engine) IssueURL(ctx context.Context, rec *model.ShareRecord) (string, error) {
	if err := e.checkAvailable(ctx, rec); err != nil {
		return "", err
	}
	return e.storage.SignedURL(ctx, rec.StorageKey, SignedURLTTL, rec.DisplayName)
}

// resolve 完成一次成功的下载解析：签发链接、自增下载计数、
// 尽力而为地累计归属用户的下载总数。
func (e *Engine) resolve(ctx context.Context, rec *model.ShareRecord) (string, error) {
	if err := e.checkAvailable(ctx, rec); err != nil {
		return "", err
	}
	url, err := e.storage.SignedURL(ctx, rec.StorageKey, SignedURLTTL, rec.DisplayName)
	if err != nil {
		return "", err
	}
	if err := e.store.Share.IncrementDownloadCount(ctx, rec.Kind, rec.ID); err != nil {
		return "", err
	}
	rec.DownloadCount++
	if rec.Kind == model.KindUser {
		// 用户维度的统计不参与本次事务，失败仅记日志
		if err := e.store.User.IncrementDownloadTotal(ctx, rec.UserID); err != nil {
			e.logger.Warn("累计用户下载次数失败", "err", err, "user_id", rec.UserID)
		}
	}
	return url, nil
}

// ResolveByCode 按短链码解析下载信息。
// 注意：此路径沿用上游行为，不校验提取密码；带密码的分享走到这里
// 只记一条告警，访问控制差异见 DownloadByID。
func (e *Engine) ResolveByCode(ctx context.Context, kind model.ShareKind, code string) (*model.ShareRecord, string, error) {
	rec, err := e.store.Share.GetByCode(ctx, kind, code)
	if err != nil {
		return nil, "", err
	}
	if rec == nil {
		return nil, "", ErrNotFound
	}
	if rec.IsPasswordProtected() {
		e.logger.Warn("带密码的分享经短链路径解析，未校验密码", "kind", kind, "id", rec.ID)
	}
	url, err := e.resolve(ctx, rec)
	if err != nil {
		return nil, "", err
	}
	return rec, url, nil
}

// DownloadByID 按记录 id 解析下载信息，带密码的分享在此路径强制校验。
// 可用性在密码之前判定：过期/停用的分享直接报对应错误，不会泄露
// 是否设有密码，过期状态也照常惰性落库。
func (e *Engine) DownloadByID(ctx context.Context, kind model.ShareKind, id int64, password string) (*model.ShareRecord, string, error) {
	rec, err := e.store.Share.GetByID(ctx, kind, id)
	if err != nil {
		return nil, "", err
	}
	if rec == nil {
		return nil, "", ErrNotFound
	}
	if err := e.checkAvailable(ctx, rec); err != nil {
		return nil, "", err
	}
	if rec.IsPasswordProtected() {
		if password == "" {
			return nil, "", ErrPasswordRequired
		}
		if bcrypt.CompareHashAndPassword([]byte(rec.Password), []byte(password)) != nil {
			return nil, "", ErrIncorrectPassword
		}
	}
	url, err := e.resolve(ctx, rec)
	if err != nil {
		return nil, "", err
	}
	return rec, url, nil
}

// SetStatus 只允许在 active / inactive 之间切换；目标状态与当前一致时
// 显式报错而非静默成功。
func (e *Engine) SetStatus(ctx context.Context, kind model.ShareKind, id int64, status model.ShareStatus) error {
	if status != model.StatusActive && status != model.StatusInactive {
		return ErrInvalidStatus
	}
	rec, err := e.store.Share.GetByID(ctx, kind, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	if rec.Status == status {
		return ErrNoChange
	}
	return e.store.Share.UpdateStatus(ctx, kind, id, status)
}

// SetExpiry 重算过期时间为 now + hours，不改变状态。
func (e *Engine) SetExpiry(ctx context.Context, kind model.ShareKind, id int64, hours int) error {
	rec, err := e.store.Share.GetByID(ctx, kind, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	return e.store.Share.UpdateExpiry(ctx, kind, id, e.now().Add(time.Duration(hours)*time.Hour), true)
}

// SetPassword 设置或更换提取密码。只能加保护，不能用它解除保护。
func (e *Engine) SetPassword(ctx context.Context, kind model.ShareKind, id int64, password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	rec, err := e.store.Share.GetByID(ctx, kind, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return e.store.Share.UpdatePassword(ctx, kind, id, string(hash))
}

// VerifyPassword 校验提取密码，不产生任何状态变化，也不计下载。
func (e *Engine) VerifyPassword(ctx context.Context, kind model.ShareKind, code, password string) (bool, error) {
	rec, err := e.store.Share.GetByCode(ctx, kind, code)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, ErrNotFound
	}
	if !rec.IsPasswordProtected() {
		return false, ErrNotProtected
	}
	return bcrypt.CompareHashAndPassword([]byte(rec.Password), []byte(password)) == nil, nil
}

// DeleteShare 是唯一的硬删除路径：先删 blob 再删记录。
// blob 删除失败时记录保留，错误原样上抛。
func (e *Engine) DeleteShare(ctx context.Context, kind model.ShareKind, id int64) error {
	rec, err := e.store.Share.GetByID(ctx, kind, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	if rec.Status == model.StatusDeleted {
		return ErrAlreadyDeleted
	}
	if err := e.storage.Delete(ctx, rec.StorageKey); err != nil {
		return err
	}
	if err := e.store.Share.HardDelete(ctx, kind, id); err != nil {
		return err
	}
	e.logger.Info("删除分享", "kind", kind, "id", id, "file", rec.DisplayName)
	return nil
}

// RotateShortLink 换发短链码，旧链接立即失效。
func (e *Engine) RotateShortLink(ctx context.Context, kind model.ShareKind, id int64) (string, error) {
	rec, err := e.store.Share.GetByID(ctx, kind, id)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrNotFound
	}
	code, err := e.store.Share.RotateShortCode(ctx, kind, id)
	if err != nil {
		return "", err
	}
	rec.ShortCode = code
	return rec.ShortURL(), nil
}

// SweepAllExpiries 遍历所有未删除的记录：已过期的标记 expired，
// 未过期的把过期时间重置为 now + 10 天。注意这是维护/重置语义，
// 会无条件延长所有存活记录的有效期，并统一置 hasExpiry=true。
func (e *Engine) SweepAllExpiries(ctx context.Context) ([]*model.ShareRecord, error) {
	now := e.now()
	var touched []*model.ShareRecord
	for _, kind := range []model.ShareKind{model.KindUser, model.KindGuest} {
		records, err := e.store.Share.ListNotDeleted(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if rec.ExpiresAt != nil && rec.ExpiresAt.Before(now) {
				if rec.Status != model.StatusExpired {
					if err := e.store.Share.UpdateStatus(ctx, kind, rec.ID, model.StatusExpired); err != nil {
						return nil, err
					}
					rec.Status = model.StatusExpired
				}
				if err := e.store.Share.UpdateExpiry(ctx, kind, rec.ID, *rec.ExpiresAt, true); err != nil {
					return nil, err
				}
			} else {
				next := now.Add(DefaultExpiry)
				if err := e.store.Share.UpdateExpiry(ctx, kind, rec.ID, next, true); err != nil {
					return nil, err
				}
				rec.ExpiresAt = &next
			}
			rec.HasExpiry = true
			touched = append(touched, rec)
		}
	}
	e.logger.Info("批量过期维护完成", "touched", len(touched))
	return touched, nil
}
