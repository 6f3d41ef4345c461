package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"droplink/internal/config"
	"droplink/internal/db"
	"droplink/internal/db/model"
	"droplink/internal/middleware"
	"droplink/internal/notify"
	"droplink/internal/server"
	"droplink/internal/share"
	"droplink/internal/storage"
	"droplink/internal/task"
)

func main() {
	cfg := config.Load()
	logger := server.NewLogger(cfg.LogLevel)
	shouldRunServer, err := handleCLI(cfg, logger, os.Args[1:])
	if err != nil {
		logger.Error("CLI 执行失败", "err", err)
		os.Exit(1)
	}
	if !shouldRunServer {
		return
	}
	logger.Info("当前项目配置：", "config", cfg)
	gin.SetMode(gin.ReleaseMode)
	store, err := db.NewStore(cfg, logger, true)
	if err != nil {
		logger.Error("初始化数据库失败", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	// 同步数据库配置到内存
	if err := cfg.Sync(context.Background(), store.AppConfig); err != nil {
		logger.Error("同步配置失败", "err", err)
		os.Exit(1)
	}
	logger.Info("当前项目APP配置：", "config", cfg.AppConfig)
	storageReg, err := storage.SetupRegistry(cfg, logger)
	if err != nil {
		logger.Error("初始化存储失败", "err", err)
		os.Exit(1)
	}

	engine := share.NewEngine(store, storageReg.Active(), logger)
	mailer := notify.NewMailer(cfg.AppConfig, logger)

	Init(cfg, storageReg)

	r := gin.New()
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.Use(middleware.RequestLogger(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.AuthOptional(store, cfg))

	// 短链入口，无需登录
	r.GET("/f/:code", server.ShareInfoHandler(store, engine, model.KindUser))
	r.GET("/g/:code", server.ShareInfoHandler(store, engine, model.KindGuest))
	r.POST("/f/:code/verify", server.VerifyPasswordHandler(store, engine, model.KindUser))
	r.POST("/g/:code/verify", server.VerifyPasswordHandler(store, engine, model.KindGuest))

	if storageReg.DefaultDriver == storage.PlatformLocal {
		r.GET("/d/*key", server.LocalDownloadHandler(storageReg))
	}

	api := r.Group("/api")
	{
		api.POST("/login", server.LoginHandler(store, cfg))
		api.POST("/guest/upload", server.GuestUploadHandler(store, &cfg, engine))
		api.POST("/files/:id/download", server.DownloadByIDHandler(store, engine, model.KindUser))
		api.POST("/guest/files/:id/download", server.DownloadByIDHandler(store, engine, model.KindGuest))

		apiAuth := api.Group("")
		apiAuth.Use(middleware.AuthRequired(store, cfg))
		apiAuth.GET("/me", server.MeHandler())
		apiAuth.POST("/refresh", server.RefreshHandler(store, cfg))
		apiAuth.POST("/logout", server.LogoutHandler(store, cfg))

		apiAuth.POST("/upload", server.UploadHandler(store, &cfg, engine))
		apiAuth.GET("/files", server.GalleryHandler(store))
		apiAuth.DELETE("/files/:id", server.DeleteShareHandler(store, engine))
		apiAuth.PATCH("/files/:id/status", server.SetStatusHandler(store, engine))
		apiAuth.PATCH("/files/:id/expiry", server.SetExpiryHandler(store, engine))
		apiAuth.PATCH("/files/:id/password", server.SetPasswordHandler(store, engine))
		apiAuth.POST("/files/:id/link", server.RotateLinkHandler(store, engine))
		apiAuth.POST("/files/:id/email", server.EmailShareHandler(store, engine, mailer))
		apiAuth.GET("/files/:id/qr", server.QRShareHandler(store, engine))

		apiAdmin := apiAuth.Group("/admin")
		apiAdmin.Use(middleware.AdminRequired(cfg))
		apiAdmin.POST("/files/sweep", server.SweepExpiriesHandler(store, engine))
		apiAdmin.GET("/stats", server.AdminDashboardStatsHandler(store))
		apiAdmin.GET("/config", server.AdminGetConfigHandler(store, &cfg))
		apiAdmin.POST("/config", server.AdminUpsertConfigHandler(store, &cfg))
		apiAdmin.POST("/password", server.AdminChangePasswordHandler(store, cfg))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "404"})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("服务器启动", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("服务器启动失败", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info("服务器已退出")
}

func Init(cfg config.Config, storageReg *storage.Registry) {
	// 启动 S3 备份任务
	task.StartS3DBBackup(cfg, storageReg)
}
