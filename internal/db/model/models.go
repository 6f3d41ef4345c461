package model

import "time"

// 分享状态。expired / deleted 为终态，active / inactive 可互相切换。
type ShareStatus string

const (
	StatusActive   ShareStatus = "active"
	StatusInactive ShareStatus = "inactive"
	StatusExpired  ShareStatus = "expired"
	StatusDeleted  ShareStatus = "deleted"
)

func (s ShareStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusExpired, StatusDeleted:
		return true
	}
	return false
}

// ShareKind 区分登录用户分享和访客分享，两者存放在不同的表里，
// 短链前缀也不同（/f/ 与 /g/）。
type ShareKind string

const (
	KindUser  ShareKind = "user"
	KindGuest ShareKind = "guest"
)

type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Password       string    `db:"password" json:"-"`
	Email          string    `db:"email" json:"email"`
	Nickname       string    `db:"nickname" json:"nickname"`
	Token          *string   `db:"token" json:"token"`
	TotalUploads   int64     `db:"total_uploads" json:"totalUploads"`
	TotalDownloads int64     `db:"total_downloads" json:"totalDownloads"`
	ImageCount     int64     `db:"image_count" json:"imageCount"`
	VideoCount     int64     `db:"video_count" json:"videoCount"`
	DocumentCount  int64     `db:"document_count" json:"documentCount"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ShareRecord 是一条分享记录。用户分享和访客分享字段相同，
// 区别只在归属：用户分享带 UserID，访客分享带一个随机生成的 GuestOwner 标签。
type ShareRecord struct {
	ID            int64       `json:"id"`
	Kind          ShareKind   `json:"kind"`
	UserID        int64       `json:"userId,omitempty"`
	GuestOwner    string      `json:"guestOwner,omitempty"`
	DisplayName   string      `json:"displayName"`
	MimeType      string      `json:"mimeType"`
	SizeBytes     int64       `json:"sizeBytes"`
	StorageKey    string      `json:"-"`
	Status        ShareStatus `json:"status"`
	HasExpiry     bool        `json:"hasExpiry"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
	Password      string      `json:"-"`
	ShortCode     string      `json:"shortCode"`
	DownloadCount int64       `json:"downloadCount"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func (r *ShareRecord) IsPasswordProtected() bool {
	return r.Password != ""
}

// ShortURL 返回带命名空间前缀的短链路径：用户分享 /f/{code}，访客分享 /g/{code}。
func (r *ShareRecord) ShortURL() string {
	if r.Kind == KindGuest {
		return "/g/" + r.ShortCode
	}
	return "/f/" + r.ShortCode
}

// 用于"我的文件"列表返回
type UserFileItem struct {
	ID            int64       `json:"id"`
	DisplayName   string      `json:"displayName"`
	MimeType      string      `json:"mimeType"`
	SizeBytes     int64       `json:"sizeBytes"`
	Status        ShareStatus `json:"status"`
	ShortCode     string      `json:"shortCode"`
	DownloadCount int64       `json:"downloadCount"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}
