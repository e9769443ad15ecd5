package model

import "time"

const (
	PlatformWeb = "web"
	PlatformApp = "app"
)

// UserSession 一个活跃会话一行。
// 持久层只是可枚举索引（会话列表/撤销界面用）；会话是否存活以
// 缓存条目 app:sess:<session_id> 为准，没有活缓存条目的记录在
// 逻辑上已经死了。
type UserSession struct {
	// —— 基础标识 ——
	SessionID string `bson:"session_id" json:"session_id"` // 会话ID（雪花，整体不透明）
	UserID    string `bson:"user_id" json:"user_id"`

	// —— 设备与来源 ——
	Platform   string `bson:"platform" json:"platform"`       // web / app，驱动TTL与单平台单会话
	DeviceName string `bson:"device_name" json:"device_name"` // "Chrome on Windows" 之类的展示名
	DeviceType string `bson:"device_type" json:"device_type"` // mobile / tablet / desktop

	// —— 时间 ——
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	LastActivityAt time.Time `bson:"last_activity_at" json:"last_activity_at"` // 尽力而为更新
	ExpiresAt      time.Time `bson:"expires_at" json:"expires_at"`             // 业务过期；TTL索引仅作兜底清理
}
