package global

// UserSession 全局的接口请求 需要处理的session
type UserSession struct {
	SessionId string `json:"session_id"`
	UserId    string `json:"user_id"`
	Platform  string `json:"platform"` // web / app
}
