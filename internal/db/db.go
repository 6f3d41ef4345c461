package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"droplink/internal/config"
)

const (
	createUserTable = `
CREATE TABLE IF NOT EXISTS "user" (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  password TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  nickname TEXT NOT NULL,
  token TEXT,
  total_uploads INTEGER NOT NULL DEFAULT 0,
  total_downloads INTEGER NOT NULL DEFAULT 0,
  image_count INTEGER NOT NULL DEFAULT 0,
  video_count INTEGER NOT NULL DEFAULT 0,
  document_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
	createAppConfigTable = `
CREATE TABLE IF NOT EXISTS "app_config" (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  "key" TEXT NOT NULL UNIQUE,
  "value" TEXT
);
`
	createFileTable = `
CREATE TABLE IF NOT EXISTS "file" (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  display_name TEXT NOT NULL,
  mime_type TEXT NOT NULL,
  size_bytes INTEGER NOT NULL DEFAULT 0,
  storage_key TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'active',
  has_expiry INTEGER NOT NULL DEFAULT 0,
  expires_at DATETIME,
  password TEXT,
  short_code TEXT NOT NULL UNIQUE,
  download_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
	createGuestFileTable = `
CREATE TABLE IF NOT EXISTS "guest_file" (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  guest_owner TEXT NOT NULL,
  display_name TEXT NOT NULL,
  mime_type TEXT NOT NULL,
  size_bytes INTEGER NOT NULL DEFAULT 0,
  storage_key TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'active',
  has_expiry INTEGER NOT NULL DEFAULT 0,
  expires_at DATETIME,
  password TEXT,
  short_code TEXT NOT NULL UNIQUE,
  download_count INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
)

type DB struct {
	Client    *sql.DB
	Logger    *slog.Logger
	Cfg       config.Config
	AppConfig *AppConfigDao
	User      *UserDao
	Share     *ShareDao
}

func NewStore(cfg config.Config, logger *slog.Logger, init bool) (*DB, error) {
	if err := ensureDir(cfg.DatabasePath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	// sqlite 写串行化；:memory: 下多连接会各自拿到独立的库
	db.SetMaxOpenConns(1)
	store := &DB{Client: db, Logger: logger, Cfg: cfg}
	store.Share = &ShareDao{store: store}
	store.User = &UserDao{store: store}
	store.AppConfig = &AppConfigDao{store: store}
	if init {
		if err := store.upgradeSchema(context.Background()); err != nil {
			return nil, err
		}
		if err := store.ensureAdmin(context.Background()); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func ensureDir(dbPath string) error {
	if strings.HasPrefix(dbPath, ":memory:") {
		return nil
	}
	path := dbPath
	if strings.HasPrefix(dbPath, "file:") {
		path = strings.TrimPrefix(dbPath, "file:")
	}
	clean := filepath.Clean(path)
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *DB) Close() error {
	return s.Client.Close()
}

func (s *DB) upgradeSchema(ctx context.Context) error {
	stmts := []string{createUserTable, createAppConfigTable, createFileTable, createGuestFileTable}
	for _, stmt := range stmts {
		if _, err := s.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	// 旧库补齐用量统计列
	for _, col := range []struct{ table, column, def string }{
		{"user", "total_uploads", "total_uploads INTEGER NOT NULL DEFAULT 0"},
		{"user", "total_downloads", "total_downloads INTEGER NOT NULL DEFAULT 0"},
		{"user", "image_count", "image_count INTEGER NOT NULL DEFAULT 0"},
		{"user", "video_count", "video_count INTEGER NOT NULL DEFAULT 0"},
		{"user", "document_count", "document_count INTEGER NOT NULL DEFAULT 0"},
	} {
		if err := s.ensureColumn(ctx, col.table, col.column, col.def); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) ensureColumn(ctx context.Context, table, column, columnDef string) error {
	exists, err := s.columnExists(ctx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.Client.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE "%s" ADD COLUMN %s`, table, columnDef))
	return err
}

func (s *DB) columnExists(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.Client.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s");`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name string
		var ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return false, nil
}

func (s *DB) ensureAdmin(ctx context.Context) error {
	var count int
	err := s.Client.QueryRowContext(ctx, "SELECT COUNT(1) FROM user WHERE email = ?", s.Cfg.AdminEmail).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		s.Logger.Info("管理员账户已存在", "email", s.Cfg.AdminEmail)
		return nil
	}
	pwHash, err := bcrypt.GenerateFromPassword([]byte(s.Cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.Client.ExecContext(ctx, `INSERT INTO user(username, password, email, nickname) VALUES(?,?,?,?)`, s.Cfg.AdminUsername, string(pwHash), s.Cfg.AdminEmail, s.Cfg.AdminUsername)
	if err == nil {
		s.Logger.Info("创建默认管理员账户", "email", s.Cfg.AdminEmail)
	}
	return err
}

func (s *DB) WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
