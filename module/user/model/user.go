package model

import "time"

// User 账号主档。口令散列的生成/校验细节由注册侧的密码库负责，
// 这里只存最终散列。
type User struct {
	UserID       string    `bson:"user_id" json:"user_id"`
	Username     string    `bson:"username" json:"username"` // 登录名（邮箱）
	Nickname     string    `bson:"nickname" json:"nickname"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}
