package server

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"droplink/internal/config"
	"droplink/internal/db"
	"droplink/internal/db/model"
	"droplink/internal/share"
)

const uploadField = "files"

type uploadedFileItem struct {
	ID          int64      `json:"id"`
	DisplayName string     `json:"displayName"`
	ShortURL    string     `json:"shortUrl"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// parseUploadOptions 把表单里的字符串参数收敛成类型化的上传选项。
func parseUploadOptions(form map[string][]string) share.UploadOptions {
	opts := share.UploadOptions{}
	opts.Password = firstValue(form["password"], "")
	opts.HasExpiry = firstValue(form["hasExpiry"], "false") == "true"
	if n, err := strconv.Atoi(firstValue(form["expiryHours"], "")); err == nil && n > 0 {
		opts.ExpiryHours = n
	}
	return opts
}

func collectFiles(c *gin.Context, cfg *config.Config) ([]share.UploadFile, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		fail(c, http.StatusBadRequest, "上传数据格式错误")
		return nil, false
	}
	headers := form.File[uploadField]
	if len(headers) == 0 {
		fail(c, http.StatusBadRequest, "没有上传文件")
		return nil, false
	}
	if len(headers) > cfg.MaxBatchFiles {
		fail(c, http.StatusBadRequest, "单批文件数量超过限制")
		return nil, false
	}
	files := make([]share.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > cfg.MaxFileSize {
			fail(c, http.StatusBadRequest, "文件大小超过限制")
			return nil, false
		}
		f, err := fh.Open()
		if err != nil {
			fail(c, http.StatusInternalServerError, "读取上传文件失败")
			return nil, false
		}
		// gin 在请求结束后关闭 multipart 临时文件
		files = append(files, share.UploadFile{
			Name:     filepath.Base(fh.Filename),
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Reader:   f,
		})
	}
	return files, true
}

// UploadHandler 处理登录用户的批量上传，每个文件独立成一条分享。
func UploadHandler(store *db.DB, cfg *config.Config, engine *share.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewareGetUser(c)
		if user == nil {
			fail(c, http.StatusUnauthorized, "未登录")
			return
		}
		files, ok := collectFiles(c, cfg)
		if !ok {
			return
		}
		form, _ := c.MultipartForm()
		opts := parseUploadOptions(form.Value)

		ctx, cancel := store.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()
		records, err := engine.UploadBatch(ctx, model.KindUser, user.ID, "", files, opts)
		if err != nil {
			store.Logger.Error("批量上传失败", "err", err, "user", user.Username)
			failShareError(c, err)
			return
		}
		ids := make([]int64, 0, len(records))
		for _, rec := range records {
			ids = append(ids, rec.ID)
		}
		store.Logger.Info("批量上传完成", "user", user.Username, "count", len(ids))
		c.JSON(http.StatusCreated, gin.H{"message": "上传成功", "fileIds": ids})
	}
}

// GuestUploadHandler 处理访客上传，受白名单策略约束。
func GuestUploadHandler(store *db.DB, cfg *config.Config, engine *share.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy := newGuestUploadPolicy(cfg)
		if policy == nil {
			fail(c, http.StatusForbidden, "不允许访客上传")
			return
		}
		files, ok := collectFiles(c, cfg)
		if !ok {
			return
		}
		for _, f := range files {
			if ok, msg := policy.allow(f.Name, f.Size); !ok {
				fail(c, http.StatusBadRequest, msg)
				return
			}
		}
		form, _ := c.MultipartForm()
		opts := parseUploadOptions(form.Value)

		ctx, cancel := store.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()
		records, err := engine.UploadBatch(ctx, model.KindGuest, 0, "", files, opts)
		if err != nil {
			store.Logger.Error("访客上传失败", "err", err)
			failShareError(c, err)
			return
		}
		items := make([]uploadedFileItem, 0, len(records))
		for _, rec := range records {
			items = append(items, uploadedFileItem{ID: rec.ID, DisplayName: rec.DisplayName, ShortURL: rec.ShortURL(), ExpiresAt: rec.ExpiresAt})
		}
		c.JSON(http.StatusCreated, gin.H{"message": "上传成功", "files": items})
	}
}

type guestUploadPolicy struct {
	maxBytes int64
	extSet   map[string]struct{}
}

func newGuestUploadPolicy(cfg *config.Config) *guestUploadPolicy {
	if !cfg.AppConfig.GuestUploadEnable {
		return nil
	}
	maxMb := cfg.AppConfig.GuestUploadMaxMbSize
	extSet := parseExtWhitelist(cfg.AppConfig.GuestUploadExtWhitelist)
	if maxMb <= 0 || len(extSet) == 0 {
		return nil
	}
	return &guestUploadPolicy{maxBytes: int64(maxMb) * 1024 * 1024, extSet: extSet}
}

func parseExtWhitelist(raw string) map[string]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', '|', ' ', '\n', '\t', '\r':
			return true
		default:
			return false
		}
	})
	extSet := make(map[string]struct{})
	for _, item := range items {
		ext := normalizeExt(item)
		if ext == "" {
			continue
		}
		extSet[ext] = struct{}{}
	}
	if len(extSet) == 0 {
		return nil
	}
	return extSet
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(strings.ToLower(ext))
	ext = strings.TrimPrefix(ext, ".")
	return ext
}

func (p *guestUploadPolicy) allow(fileName string, fileSize int64) (bool, string) {
	if p == nil {
		return false, "不允许访客上传"
	}
	ext := normalizeExt(filepath.Ext(fileName))
	if ext == "" {
		return false, "不支持的文件类型"
	}
	if _, ok := p.extSet["*"]; !ok {
		if _, ok := p.extSet[ext]; !ok {
			return false, "不支持的文件类型"
		}
	}
	if fileSize > p.maxBytes {
		return false, "文件大小超过限制"
	}
	return true, ""
}

func firstValue(values []string, fallback string) string {
	if len(values) > 0 && values[0] != "" {
		return values[0]
	}
	return fallback
}
