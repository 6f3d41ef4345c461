package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"droplink/internal/db"
)

func parsePositiveInt(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// GalleryHandler 返回当前用户的文件列表（分页），带分享码和下载计数。
func GalleryHandler(store *db.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewareGetUser(c)
		if user == nil {
			fail(c, http.StatusUnauthorized, "未登录")
			return
		}
		page := parsePositiveInt(c.Query("page"), 1)
		size := parsePositiveInt(c.Query("size"), 10)
		ctx, cancel := store.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		items, total, err := store.Share.ListByUser(ctx, user.ID, page, size)
		if err != nil {
			fail(c, http.StatusInternalServerError, "获取文件列表失败")
			return
		}
		store.Logger.Debug("获取文件列表", "user", user.Username, "page", page, "size", size, "total", total)
		c.JSON(http.StatusOK, gin.H{"data": items, "total": total, "page": page})
	}
}
