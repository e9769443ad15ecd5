package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mid "SProject/middleware"
	usermodel "SProject/module/user/model"
	usersrv "SProject/module/user/service"
	redisstore "SProject/service/storage/redis"
	jwtlib "SProject/tools/security"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopRepo 认证中间件只摸缓存，持久层给个空实现即可
type noopRepo struct{}

func (noopRepo) Insert(context.Context, *usermodel.UserSession) error { return nil }
func (noopRepo) FindByID(context.Context, string) (*usermodel.UserSession, error) {
	return nil, nil
}
func (noopRepo) FindByUserPlatform(context.Context, string, string) ([]usermodel.UserSession, error) {
	return nil, nil
}
func (noopRepo) FindByUser(context.Context, string) ([]usermodel.UserSession, error) {
	return nil, nil
}
func (noopRepo) Delete(context.Context, string) error { return nil }
func (noopRepo) DeleteAllExcept(context.Context, string, string) (int64, error) {
	return 0, nil
}
func (noopRepo) UpdateLastActivity(context.Context, string, time.Time) error { return nil }

func newAuthRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis, jwtlib.Options) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	jwtOpts := jwtlib.DefaultOptions([]byte("test-secret"))
	sessions := usersrv.NewSessionManager(noopRepo{}, redisstore.NewWithClient(rdb), time.Hour, time.Hour)

	r := gin.New()
	r.GET("/me", Middleware(DefaultOptions(), jwtOpts, sessions), func(c *gin.Context) {
		us, ok := Session(c)
		require.True(t, ok)
		mid.Ok(c, gin.H{"user_id": us.UserId, "session_id": us.SessionId})
	})
	return r, mr, jwtOpts
}

func doAuthed(r *gin.Engine, header, value string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if value != "" {
		req.Header.Set(header, value)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAcceptsLiveSession(t *testing.T) {
	r, mr, jwtOpts := newAuthRouter(t)

	// 缓存条目在 = 会话活着
	require.NoError(t, mr.Set(usersrv.SessionCacheKey("s1"), "u1"))
	mr.SetTTL(usersrv.SessionCacheKey("s1"), time.Hour)

	token, _, err := jwtlib.Generate(jwtOpts, "u1", "s1", time.Hour)
	require.NoError(t, err)

	w := doAuthed(r, "authorization", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
}

func TestAuthAcceptsBearerHeader(t *testing.T) {
	r, mr, jwtOpts := newAuthRouter(t)

	require.NoError(t, mr.Set(usersrv.SessionCacheKey("s1"), "u1"))
	token, _, err := jwtlib.Generate(jwtOpts, "u1", "s1", time.Hour)
	require.NoError(t, err)

	w := doAuthed(r, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := doAuthed(r, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsBadSignature(t *testing.T) {
	r, mr, _ := newAuthRouter(t)

	require.NoError(t, mr.Set(usersrv.SessionCacheKey("s1"), "u1"))
	token, _, err := jwtlib.Generate(jwtlib.DefaultOptions([]byte("other-secret")), "u1", "s1", time.Hour)
	require.NoError(t, err)

	w := doAuthed(r, "authorization", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	r, _, jwtOpts := newAuthRouter(t)

	// 令牌本身没过期，但缓存条目不存在（被踢/被撤销）
	token, _, err := jwtlib.Generate(jwtOpts, "u1", "gone", time.Hour)
	require.NoError(t, err)

	w := doAuthed(r, "authorization", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TokenExpiredError")
}

func TestAuthRejectsUserMismatch(t *testing.T) {
	r, mr, jwtOpts := newAuthRouter(t)

	require.NoError(t, mr.Set(usersrv.SessionCacheKey("s1"), "someone-else"))
	token, _, err := jwtlib.Generate(jwtOpts, "u1", "s1", time.Hour)
	require.NoError(t, err)

	w := doAuthed(r, "authorization", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
