package server

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"droplink/internal/config"
	"droplink/internal/db"
)

type adminConfigItem struct {
	Key    string  `json:"key"`
	Value  string  `json:"value"`
	Source string  `json:"source"` // db/env/default
	DB     *string `json:"dbValue,omitempty"`
}

type adminUpsertConfigPayload struct {
	AppConfig map[string]*string `json:"appConfig"`
}

type adminDashboardStats struct {
	TotalFiles     int64 `json:"totalFiles"`
	TotalFileSize  int64 `json:"totalFileSize"`
	TotalDownloads int64 `json:"totalDownloads"`
}

func AdminGetConfigHandler(store *db.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbItems, err := store.AppConfig.GetConfigs(ctx)
		if err != nil {
			fail(c, http.StatusInternalServerError, "读取配置失败")
			return
		}

		keys := config.AppConfigKeys()
		items := make([]adminConfigItem, 0, len(keys))
		for _, key := range keys {
			val, _ := cfg.GetAppConfigValue(key)

			item := adminConfigItem{Key: key, Value: val, Source: "default"}
			if dbv, ok := dbItems[key]; ok {
				item.Source = "db"
				item.DB = &dbv
			} else if os.Getenv(key) != "" {
				item.Source = "env"
			}
			items = append(items, item)
		}

		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func AdminUpsertConfigHandler(store *db.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req adminUpsertConfigPayload
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "参数错误")
			return
		}
		if len(req.AppConfig) == 0 {
			fail(c, http.StatusBadRequest, "缺少配置项")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 8*time.Second)
		defer cancel()

		for key, value := range req.AppConfig {
			if value == nil {
				continue
			}
			key = strings.ToUpper(strings.TrimSpace(key))
			if key == "" {
				fail(c, http.StatusBadRequest, "配置 key 不能为空")
				return
			}
			if !config.IsAppConfigKey(key) {
				fail(c, http.StatusBadRequest, "配置项不在白名单中")
				return
			}
			if err := store.AppConfig.SetConfig(ctx, cfg, key, *value); err != nil {
				fail(c, http.StatusInternalServerError, "保存配置失败")
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func AdminDashboardStatsHandler(store *db.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		totalFiles, totalSize, totalDownloads, err := store.Share.GetDashboardStats(ctx)
		if err != nil {
			fail(c, http.StatusInternalServerError, "读取统计失败")
			return
		}

		c.JSON(http.StatusOK, adminDashboardStats{
			TotalFiles:     totalFiles,
			TotalFileSize:  totalSize,
			TotalDownloads: totalDownloads,
		})
	}
}

type adminChangePasswordRequest struct {
	OldPassword  string `json:"oldPassword"`
	NewPassword1 string `json:"newPassword"`
	NewPassword2 string `json:"newPassword2"`
}

func AdminChangePasswordHandler(store *db.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req adminChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "参数错误")
			return
		}
		req.OldPassword = strings.TrimSpace(req.OldPassword)
		req.NewPassword1 = strings.TrimSpace(req.NewPassword1)
		req.NewPassword2 = strings.TrimSpace(req.NewPassword2)
		if req.OldPassword == "" || req.NewPassword1 == "" || req.NewPassword2 == "" {
			fail(c, http.StatusBadRequest, "缺少密码参数")
			return
		}
		if req.NewPassword1 != req.NewPassword2 {
			fail(c, http.StatusBadRequest, "两次新密码不一致")
			return
		}

		u := middlewareGetUser(c)
		if u == nil {
			fail(c, http.StatusUnauthorized, "未登录")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.OldPassword)); err != nil {
			fail(c, http.StatusBadRequest, "原密码错误")
			return
		}
		pwHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword1), bcrypt.DefaultCost)
		if err != nil {
			fail(c, http.StatusInternalServerError, "修改失败")
			return
		}

		ctx, cancel := store.WithTimeout(c.Request.Context(), 8*time.Second)
		defer cancel()

		if err := store.User.UpdatePassword(ctx, u.ID, string(pwHash)); err != nil {
			fail(c, http.StatusInternalServerError, "修改失败")
			return
		}

		// 刷新 token，避免旧会话继续复用
		token, err := generateSessionToken()
		if err != nil {
			fail(c, http.StatusInternalServerError, "修改失败")
			return
		}
		if err := store.User.UpdateToken(ctx, u.ID, &token); err != nil {
			fail(c, http.StatusInternalServerError, "修改失败")
			return
		}
		setSessionCookie(c, cfg, token)

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
