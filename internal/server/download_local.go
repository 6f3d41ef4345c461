package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"droplink/internal/storage"
)

// LocalDownloadHandler 直传本地存储的 blob，仅在 local 驱动下注册。
// S3 驱动下下载一律走签名链接，不经过本服务。
func LocalDownloadHandler(reg *storage.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		local, ok := reg.Storages[storage.PlatformLocal].(*storage.LocalStorage)
		if !ok {
			fail(c, http.StatusNotFound, "本地存储未启用")
			return
		}
		key := strings.TrimPrefix(c.Param("key"), "/")
		path, err := local.FilePath(key)
		if err != nil {
			fail(c, http.StatusNotFound, "存储 key 非法")
			return
		}
		name := c.Query("name")
		if name != "" {
			c.Header("Content-Disposition", storage.BuildContentDisposition(name))
		}
		c.File(path)
	}
}
