package user

import (
	"strconv"
	"strings"

	mid "SProject/middleware"
	midsec "SProject/middleware/security"
	usersrv "SProject/module/user/service"
	"SProject/service/bruteforce"
	"SProject/tools/errs"
	jwtlib "SProject/tools/security"

	"github.com/gin-gonic/gin"
)

// Handler 登录与会话管理的 HTTP 面。
// 登录外圈还有 login 档限流（按IP，见路由注册），这里管按身份的
// 暴力破解防护（按登录名）。
type Handler struct {
	Auth     *usersrv.Authenticator
	Sessions *usersrv.SessionManager
	Guard    *bruteforce.Guard
	JwtOpts  jwtlib.Options
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) HandlerLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		mid.Fail(c, errs.ErrArgs.WrapMsg("bind login request"))
		return
	}
	ctx := c.Request.Context()
	guardKey := strings.ToLower(strings.TrimSpace(req.Username))

	if h.Guard.IsBlocked(ctx, guardKey) {
		retry := h.Guard.RemainingBlockSeconds(ctx, guardKey)
		c.Header("Retry-After", strconv.Itoa(retry))
		mid.Fail(c, errs.ErrRateLimited.WrapMsg("too many failed logins", "retry_after_sec", retry))
		return
	}

	userID, err := h.Auth.Authenticate(ctx, guardKey, req.Password)
	if err != nil {
		if errs.CodeOf(err) == errs.UnauthorizedError {
			attempts := h.Guard.RecordFailure(ctx, guardKey)
			left := h.Guard.MaxAttempts() - attempts
			if left < 0 {
				left = 0
			}
			mid.Fail(c, errs.ErrUnauthorized.WrapMsg("bad credentials", "attempts_left", left))
			return
		}
		mid.Fail(c, err)
		return
	}

	// 认证成功：显式清计数（这是计数唯一的主动清除路径）
	h.Guard.Reset(ctx, guardKey)

	res, err := h.Sessions.CreateSession(ctx, userID, usersrv.DeviceInfo{
		Platform:  c.GetHeader("platform"),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		mid.Fail(c, err)
		return
	}

	rec := res.Record
	token, _, err := jwtlib.Generate(h.JwtOpts, userID, rec.SessionID, rec.ExpiresAt.Sub(rec.CreatedAt))
	if err != nil {
		mid.Fail(c, errs.ErrInternalServer.WrapMsg("sign token"))
		return
	}

	mid.Ok(c, gin.H{
		"token":           token,
		"session_id":      rec.SessionID,
		"platform":        rec.Platform,
		"expires_at":      rec.ExpiresAt,
		"evicted":         len(res.Evicted) > 0,
		"evicted_devices": res.Evicted, // 提示"已把 xx 上的登录挤掉"；不向被踢设备推送
	})
}

func (h *Handler) HandlerLogout(c *gin.Context) {
	us, ok := midsec.Session(c)
	if !ok {
		mid.Fail(c, errs.ErrTokenExpired.Wrap())
		return
	}
	if err := h.Sessions.Logout(c.Request.Context(), us.SessionId); err != nil {
		mid.Fail(c, err)
		return
	}
	mid.Ok(c, nil)
}

func (h *Handler) HandlerListSessions(c *gin.Context) {
	us, ok := midsec.Session(c)
	if !ok {
		mid.Fail(c, errs.ErrTokenExpired.Wrap())
		return
	}
	views, err := h.Sessions.ListSessions(c.Request.Context(), us.UserId, us.SessionId)
	if err != nil {
		mid.Fail(c, err)
		return
	}
	mid.Ok(c, gin.H{"sessions": views})
}

func (h *Handler) HandlerDeleteSession(c *gin.Context) {
	us, ok := midsec.Session(c)
	if !ok {
		mid.Fail(c, errs.ErrTokenExpired.Wrap())
		return
	}
	sessionID := c.Param("id")
	if sessionID == "" {
		mid.Fail(c, errs.ErrArgs.WrapMsg("missing session id"))
		return
	}
	err := h.Sessions.DeleteSession(c.Request.Context(), sessionID, us.UserId, us.SessionId)
	if err != nil {
		mid.Fail(c, err)
		return
	}
	mid.Ok(c, nil)
}

func (h *Handler) HandlerDeleteOtherSessions(c *gin.Context) {
	us, ok := midsec.Session(c)
	if !ok {
		mid.Fail(c, errs.ErrTokenExpired.Wrap())
		return
	}
	count, err := h.Sessions.DeleteAllOtherSessions(c.Request.Context(), us.UserId, us.SessionId)
	if err != nil {
		mid.Fail(c, err)
		return
	}
	mid.Ok(c, gin.H{"deleted": count})
}
