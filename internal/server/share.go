package server

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"droplink/internal/db"
	"droplink/internal/db/model"
	"droplink/internal/notify"
	"droplink/internal/share"
)

var codeRegex = regexp.MustCompile(`^[a-zA-Z0-9]{6,12}$`)

type shareDescriptor struct {
	ID                  int64             `json:"id"`
	DisplayName         string            `json:"displayName"`
	MimeType            string            `json:"mimeType"`
	SizeBytes           int64             `json:"sizeBytes"`
	Status              model.ShareStatus `json:"status"`
	ShortURL            string            `json:"shortUrl"`
	DownloadCount       int64             `json:"downloadCount"`
	IsPasswordProtected bool              `json:"isPasswordProtected"`
	ExpiresAt           *time.Time        `json:"expiresAt,omitempty"`
	DownloadURL         string            `json:"downloadUrl"`
	CreatedAt           time.Time         `json:"createdAt"`
}

func toDescriptor(rec *model.ShareRecord, downloadURL string) shareDescriptor {
	return shareDescriptor{
		ID:                  rec.ID,
		DisplayName:         rec.DisplayName,
		MimeType:            rec.MimeType,
		SizeBytes:           rec.SizeBytes,
		Status:              rec.Status,
		ShortURL:            rec.ShortURL(),
		DownloadCount:       rec.DownloadCount,
		IsPasswordProtected: rec.IsPasswordProtected(),
		ExpiresAt:           rec.ExpiresAt,
		DownloadURL:         downloadURL,
		CreatedAt:           rec.CreatedAt,
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusNotFound, "分享不存在")
		return 0, false
	}
	return id, true
}

// requireOwned 取记录并校验归属；非本人的记录按不存在处理。
func requireOwned(c *gin.Context, store *db.DB, engine *share.Engine, id int64) (*model.ShareRecord, bool) {
	user := middlewareGetUser(c)
	if user == nil {
		fail(c, http.StatusUnauthorized, "未登录")
		return nil, false
	}
	ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	rec, err := engine.Get(ctx, model.KindUser, id)
	if err != nil {
		failShareError(c, err)
		return nil, false
	}
	if rec.UserID != user.ID {
		fail(c, http.StatusNotFound, "分享不存在")
		return nil, false
	}
	return rec, true
}

// ShareInfoHandler 按短链码返回完整描述，含签好的下载链接。
// 该路径不校验提取密码，行为与上游保持一致。
func ShareInfoHandler(store *db.DB, engine *share.Engine, kind model.ShareKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		if !codeRegex.MatchString(code) {
			fail(c, http.StatusNotFound, "短链无效")
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		rec, url, err := engine.ResolveByCode(ctx, kind, code)
		if err != nil {
			failShareError(c, err)
			return
		}
		c.JSON(http.StatusOK, toDescriptor(rec, url))
	}
}

type verifyPasswordRequest struct {
	Password string `json:"password"`
}

func VerifyPasswordHandler(store *db.DB, engine *share.Engine, kind model.ShareKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		if !codeRegex.MatchString(code) {
			fail(c, http.StatusNotFound, "短链无效")
			return
		}
		var req verifyPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "参数错误")
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		ok, err := engine.VerifyPassword(ctx, kind, code, req.Password)
		if err != nil {
			failShareError(c, err)
			return
		}
		if !ok {
			fail(c, http.StatusUnauthorized, "提取密码错误")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type downloadRequest struct {
	Password string `json:"password"`
}

// DownloadByIDHandler 按 id 解析下载链接，带密码的分享在此强制校验。
func DownloadByIDHandler(store *db.DB, engine *share.Engine, kind model.ShareKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req downloadRequest
		// body 可以省略（无密码分享）
		_ = c.ShouldBindJSON(&req)
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		_, url, err := engine.DownloadByID(ctx, kind, id, req.Password)
		if err != nil {
			failShareError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"downloadUrl": url})
	}
}

func DeleteShareHandler(store *db.DB, engine *share.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if _, ok := requireOwned(c, store, engine, id); !ok {
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		if err := engine.DeleteShare(ctx, model.KindUser, id); err != nil {
			failShareError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func SetStatusHandler(store *db.DB, engine *share.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req setStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "参数错误")
			return
		}
		if _, ok := requireOwned(c, store, engine, id); !ok {
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := engine.SetStatus(ctx, model.KindUser, id, model.ShareStatus(req.Status)); err != nil {
			failShareError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type setExpiryRequest struct {
	Hours int `json:"hours"`
}

func SetExpiryHandler(store *db.DB, engine *share.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req setExpiryRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Hours <= 0 {
			fail(c, http.StatusBadRequest, "参数错误")
			return
		}
		if _, ok := requireOwned(c, store, engine, id); !ok {
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := engine.SetExpiry(ctx, model.KindUser, id, req.Hours); err != nil {
			failShareError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

func SetPasswordHandler(store *db.DB, engine *share.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req setPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "参数错误")
			return
		}
		if _, ok := requireOwned(c, store, engine, id); !ok {
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := engine.SetPassword(ctx, model.KindUser, id, req.Password); err != nil {
			failShareError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// RotateLinkHandler 换发短链，旧链接立即失效。
func RotateLinkHandler(store *db.DB, engine *share.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if _, ok := requireOwned(c, store, engine, id); !ok {
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		shortURL, err := engine.RotateShortLink(ctx, model.KindUser, id)
		if err != nil {
			failShareError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"shortUrl": shortURL})
	}
}

// SweepExpiriesHandler 批量过期维护：过期的标 expired，
// 存活的有效期统一延长到 now+10 天。
func SweepExpiriesHandler(store *db.DB, engine *share.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := store.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		touched, err := engine.SweepAllExpiries(ctx)
		if err != nil {
			fail(c, http.StatusInternalServerError, "过期维护失败")
			return
		}
		if len(touched) == 0 {
			fail(c, http.StatusNotFound, "没有可维护的分享")
			return
		}
		items := make([]shareDescriptor, 0, len(touched))
		for _, rec := range touched {
			items = append(items, toDescriptor(rec, ""))
		}
		c.JSON(http.StatusOK, gin.H{"files": items})
	}
}

type emailRequest struct {
	To string `json:"to"`
}

func EmailShareHandler(store *db.DB, engine *share.Engine, mailer *notify.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req emailRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.To == "" {
			fail(c, http.StatusBadRequest, "缺少收件人")
			return
		}
		rec, ok := requireOwned(c, store, engine, id)
		if !ok {
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		url, err := engine.IssueURL(ctx, rec)
		if err != nil {
			failShareError(c, err)
			return
		}
		if err := mailer.SendShareEmail(rec, url, req.To); err != nil {
			failShareError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func QRShareHandler(store *db.DB, engine *share.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		rec, ok := requireOwned(c, store, engine, id)
		if !ok {
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		url, err := engine.IssueURL(ctx, rec)
		if err != nil {
			failShareError(c, err)
			return
		}
		png, err := notify.RenderShareQR(url)
		if err != nil {
			fail(c, http.StatusInternalServerError, "二维码生成失败")
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	}
}
