package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"droplink/internal/config"
	"droplink/internal/db"
	"droplink/internal/db/model"
)

const userContextKey = "user"

func AuthOptional(store *db.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cfg.SessionCookie)
		if err != nil || token == "" {
			c.Next()
			return
		}
		user, err := store.User.GetByToken(c.Request.Context(), token)
		if err != nil || user == nil {
			c.Next()
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

func AuthRequired(store *db.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUserFromContext(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "未登录"})
			return
		}
		c.Next()
	}
}

func AdminRequired(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUserFromContext(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "未登录"})
			return
		}
		if user.Username != cfg.AdminUsername {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "无权限"})
			return
		}
		c.Next()
	}
}

func GetUserFromContext(c *gin.Context) *model.User {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}
