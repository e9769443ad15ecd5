package service

import (
	"context"
	"time"

	"SProject/logger"
	usermodel "SProject/module/user/model"
	redisstore "SProject/service/storage/redis"
	"SProject/tools"
	"SProject/tools/errs"
	"SProject/tools/ids"
)

// 会话缓存键（兼容性约束）：app:sess:<session_id>，值为 user_id，
// TTL = expires_at - now。缓存条目是存活权威。
const sessCachePrefix = "app:sess:"

func SessionCacheKey(sessionID string) string {
	return sessCachePrefix + sessionID
}

// DeviceInfo 登录请求携带的设备信号
type DeviceInfo struct {
	Platform  string // 请求头 platform: web|app；空默认 web
	UserAgent string
}

// CreateResult 新会话 + 被驱逐会话的展示名。
// 驱逐不会推送通知到被踢设备（已知限制，不要悄悄"修复"），
// 展示名只用于提示当前登录方。
type CreateResult struct {
	Record  usermodel.UserSession
	Evicted []string
}

// SessionView 会话列表条目
type SessionView struct {
	usermodel.UserSession
	IsCurrent bool `json:"is_current"`
}

// SessionManager 多设备会话生命周期：创建/驱逐/枚举/撤销。
// 创建跨两个存储不是原子的：驱逐旧会话到写入新会话之间存在
// 毫秒级窗口（被踢设备可能还能过一次认证、并发同平台登录可能
// 各自驱逐）。代价是短暂多出一个有效会话，缓存TTL仍是最终权威，
// 所以不上分布式锁。
type SessionManager struct {
	repo   SessionRepo
	cache  *redisstore.Manager
	webTTL time.Duration
	appTTL time.Duration
}

func NewSessionManager(repo SessionRepo, cache *redisstore.Manager, webTTL, appTTL time.Duration) *SessionManager {
	if webTTL <= 0 {
		webTTL = 24 * time.Hour
	}
	if appTTL <= 0 {
		appTTL = 30 * 24 * time.Hour
	}
	return &SessionManager{repo: repo, cache: cache, webTTL: webTTL, appTTL: appTTL}
}

// derivePlatform 头部值 -> 平台；空串默认 web。
// 返回 derived=false 表示头部给了个不认识的值，TTL 走旧版设备类型兜底表。
func derivePlatform(raw string) (platform string, derived bool) {
	switch raw {
	case "", usermodel.PlatformWeb:
		return usermodel.PlatformWeb, true
	case usermodel.PlatformApp:
		return usermodel.PlatformApp, true
	default:
		return usermodel.PlatformWeb, false
	}
}

// sessionTTL 平台TTL；平台不可推导时用旧版设备类型表：
// mobile/tablet 30天，desktop/web 1天，兜底 1天
func (m *SessionManager) sessionTTL(platform string, derived bool, deviceType string) time.Duration {
	if derived {
		if platform == usermodel.PlatformApp {
			return m.appTTL
		}
		return m.webTTL
	}
	switch deviceType {
	case "mobile", "tablet":
		return m.appTTL
	case "desktop", "web":
		return m.webTTL
	default:
		return m.webTTL
	}
}

// CreateSession 登录/OAuth回调成功后调用。
// 同 (user_id, platform) 的旧记录先删（单平台单会话，靠驱逐保证），
// 旧缓存条目尽力而为删除，删不掉就记日志等它自然过期。
func (m *SessionManager) CreateSession(ctx context.Context, userID string, dev DeviceInfo) (*CreateResult, error) {
	platform, derived := derivePlatform(dev.Platform)
	deviceType := tools.DeriveDeviceType(dev.UserAgent)
	ttl := m.sessionTTL(platform, derived, deviceType)

	// 驱逐：不变量成立时最多一条，但按多条防御处理，顺序无保证
	prior, err := m.repo.FindByUserPlatform(ctx, userID, platform)
	if err != nil {
		return nil, errs.ErrInternalServer.WrapMsg("query prior sessions", "user_id", userID)
	}
	evicted := make([]string, 0, len(prior))
	for _, old := range prior {
		if err := m.repo.Delete(ctx, old.SessionID); err != nil {
			return nil, errs.ErrInternalServer.WrapMsg("evict prior session", "session_id", old.SessionID)
		}
		if err := m.cache.Del(ctx, SessionCacheKey(old.SessionID)); err != nil {
			// 尽力而为：条目自己会过期
			logger.Warnf("evicted session cache delete failed (entry self-expires): session_id=%s err=%v",
				old.SessionID, err)
		}
		evicted = append(evicted, old.DeviceName)
	}

	now := time.Now()
	rec := usermodel.UserSession{
		SessionID:      ids.GenerateString(),
		UserID:         userID,
		Platform:       platform,
		DeviceName:     tools.DeriveDeviceName(dev.UserAgent),
		DeviceType:     deviceType,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(ttl),
	}

	if err := m.repo.Insert(ctx, &rec); err != nil {
		return nil, errs.ErrInternalServer.WrapMsg("insert session", "user_id", userID)
	}
	// 缓存条目写不进去会话就不存在（缓存是权威），这里必须失败
	if err := m.cache.SetEX(ctx, SessionCacheKey(rec.SessionID), userID, ttl); err != nil {
		logger.Errorf("session cache write failed: session_id=%s err=%v", rec.SessionID, err)
		return nil, errs.ErrStoreUnavailable.WrapMsg("session cache write")
	}

	return &CreateResult{Record: rec, Evicted: evicted}, nil
}

// ListSessions 枚举 + 标注当前会话
func (m *SessionManager) ListSessions(ctx context.Context, userID, currentSessionID string) ([]SessionView, error) {
	recs, err := m.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, errs.ErrInternalServer.WrapMsg("list sessions", "user_id", userID)
	}
	views := make([]SessionView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, SessionView{
			UserSession: rec,
			IsCurrent:   rec.SessionID == currentSessionID,
		})
	}
	return views, nil
}

// DeleteSession 撤销指定会话。
// 归属不符 -> NoPermission；撤销自己当前会话 -> Args（正确路径是 logout）。
// 先删缓存（权威），再删持久索引。
func (m *SessionManager) DeleteSession(ctx context.Context, sessionID, requesterUserID, currentSessionID string) error {
	if sessionID == currentSessionID {
		return errs.ErrArgs.WrapMsg("use logout for the current session")
	}
	rec, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec.UserID != requesterUserID {
		return errs.ErrNoPermission.WrapMsg("session owned by another user")
	}
	return m.destroy(ctx, sessionID)
}

// Logout 结束当前会话
func (m *SessionManager) Logout(ctx context.Context, sessionID string) error {
	return m.destroy(ctx, sessionID)
}

func (m *SessionManager) destroy(ctx context.Context, sessionID string) error {
	if err := m.cache.Del(ctx, SessionCacheKey(sessionID)); err != nil {
		// 撤销必须是真的：缓存条目还活着就不能宣布成功
		return errs.ErrStoreUnavailable.WrapMsg("session cache delete", "session_id", sessionID)
	}
	if err := m.repo.Delete(ctx, sessionID); err != nil {
		return errs.ErrInternalServer.WrapMsg("session record delete", "session_id", sessionID)
	}
	return nil
}

// DeleteAllOtherSessions 除当前会话外全部撤销，返回删除条数
func (m *SessionManager) DeleteAllOtherSessions(ctx context.Context, userID, currentSessionID string) (int64, error) {
	recs, err := m.repo.FindByUser(ctx, userID)
	if err != nil {
		return 0, errs.ErrInternalServer.WrapMsg("list sessions", "user_id", userID)
	}
	for _, rec := range recs {
		if rec.SessionID == currentSessionID {
			continue
		}
		if err := m.cache.Del(ctx, SessionCacheKey(rec.SessionID)); err != nil {
			logger.Warnf("revoked session cache delete failed (entry self-expires): session_id=%s err=%v",
				rec.SessionID, err)
		}
	}
	count, err := m.repo.DeleteAllExcept(ctx, userID, currentSessionID)
	if err != nil {
		return 0, errs.ErrInternalServer.WrapMsg("delete other sessions", "user_id", userID)
	}
	return count, nil
}

// LiveUserID 缓存条目存在即会话存活；返回其归属用户
func (m *SessionManager) LiveUserID(ctx context.Context, sessionID string) (string, bool, error) {
	val, ok, err := m.cache.Get(ctx, SessionCacheKey(sessionID))
	if err != nil {
		return "", false, err
	}
	return val, ok, nil
}

// Touch 尽力而为更新 last_activity_at，失败只记日志
func (m *SessionManager) Touch(ctx context.Context, sessionID string) {
	if err := m.repo.UpdateLastActivity(ctx, sessionID, time.Now()); err != nil {
		logger.Debug("session touch failed: " + err.Error())
	}
}

// RemainingTTL 会话缓存剩余存活时间（签发令牌时对齐用）
func (m *SessionManager) RemainingTTL(ctx context.Context, sessionID string) (time.Duration, bool, error) {
	return m.cache.TTL(ctx, SessionCacheKey(sessionID))
}
