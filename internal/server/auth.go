package server

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"droplink/internal/config"
	"droplink/internal/db"
	"droplink/internal/db/model"
)

func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func setSessionCookie(c *gin.Context, cfg config.Config, token string) {
	c.SetCookie(cfg.SessionCookie, token, int(cfg.CookieMaxAge.Seconds()), "/", "", cfg.CookieSecure, true)
}

func clearSessionCookie(c *gin.Context, cfg config.Config) {
	c.SetCookie(cfg.SessionCookie, "", -1, "/", "", cfg.CookieSecure, true)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userPayload struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Nickname       string `json:"nickname"`
	Email          string `json:"email"`
	TotalUploads   int64  `json:"totalUploads"`
	TotalDownloads int64  `json:"totalDownloads"`
}

func toUserPayload(u *model.User) userPayload {
	return userPayload{ID: u.ID, Username: u.Username, Nickname: u.Nickname, Email: u.Email, TotalUploads: u.TotalUploads, TotalDownloads: u.TotalDownloads}
}

func LoginHandler(store *db.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "缺少用户名或密码")
			return
		}
		if req.Username == "" || req.Password == "" {
			fail(c, http.StatusBadRequest, "缺少用户名或密码")
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		user, err := store.User.FindByCredential(ctx, req.Username)
		if err != nil {
			fail(c, http.StatusInternalServerError, "登录失败")
			return
		}
		if user == nil {
			fail(c, http.StatusUnauthorized, "用户不存在或凭证错误")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			fail(c, http.StatusUnauthorized, "用户不存在或凭证错误")
			return
		}
		token, err := generateSessionToken()
		if err != nil {
			fail(c, http.StatusInternalServerError, "登录失败")
			return
		}
		if err := store.User.UpdateToken(ctx, user.ID, &token); err != nil {
			fail(c, http.StatusInternalServerError, "登录失败")
			return
		}
		setSessionCookie(c, cfg, token)
		store.Logger.Info("用户登录成功", "user", user.Username)
		c.JSON(http.StatusOK, toUserPayload(user))
	}
}

func LogoutHandler(store *db.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewareGetUser(c)
		if user != nil {
			ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			_ = store.User.UpdateToken(ctx, user.ID, nil)
			store.Logger.Info("用户退出登录", "user", user.Username)
		}
		clearSessionCookie(c, cfg)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewareGetUser(c)
		if user == nil {
			fail(c, http.StatusUnauthorized, "未登录")
			return
		}
		c.JSON(http.StatusOK, toUserPayload(user))
	}
}

func RefreshHandler(store *db.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewareGetUser(c)
		if user == nil {
			clearSessionCookie(c, cfg)
			fail(c, http.StatusUnauthorized, "未登录")
			return
		}
		token, err := generateSessionToken()
		if err != nil {
			fail(c, http.StatusInternalServerError, "刷新失败")
			return
		}
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := store.User.UpdateToken(ctx, user.ID, &token); err != nil {
			fail(c, http.StatusInternalServerError, "刷新失败")
			return
		}
		setSessionCookie(c, cfg, token)
		store.Logger.Debug("刷新会话", "user", user.Username)
		c.JSON(http.StatusOK, gin.H{"user": toUserPayload(user), "refreshed": true})
	}
}

func middlewareGetUser(c *gin.Context) *model.User {
	if v, ok := c.Get("user"); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}
