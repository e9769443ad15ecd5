package service

import (
	"context"
	"sync"
	"testing"
	"time"

	usermodel "SProject/module/user/model"
	redisstore "SProject/service/storage/redis"
	"SProject/tools/errs"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo 内存版持久层，替代 Mongo
type fakeRepo struct {
	mu   sync.Mutex
	recs map[string]usermodel.UserSession
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{recs: make(map[string]usermodel.UserSession)}
}

func (r *fakeRepo) Insert(_ context.Context, rec *usermodel.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.SessionID] = *rec
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, sessionID string) (*usermodel.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[sessionID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("session not found")
	}
	return &rec, nil
}

func (r *fakeRepo) FindByUserPlatform(_ context.Context, userID, platform string) ([]usermodel.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []usermodel.UserSession
	for _, rec := range r.recs {
		if rec.UserID == userID && rec.Platform == platform {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindByUser(_ context.Context, userID string) ([]usermodel.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []usermodel.UserSession
	for _, rec := range r.recs {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recs, sessionID)
	return nil
}

func (r *fakeRepo) DeleteAllExcept(_ context.Context, userID, keepSessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.recs {
		if rec.UserID == userID && id != keepSessionID {
			delete(r.recs, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) UpdateLastActivity(_ context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.recs[sessionID]; ok {
		rec.LastActivityAt = at
		r.recs[sessionID] = rec
	}
	return nil
}

const chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0 Safari/537.36"
const firefoxMacUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15) Gecko/20100101 Firefox/121.0"
const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148"

func newTestManager(t *testing.T) (*SessionManager, *fakeRepo, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	repo := newFakeRepo()
	m := NewSessionManager(repo, redisstore.NewWithClient(rdb), 24*time.Hour, 30*24*time.Hour)
	return m, repo, mr
}

func TestCreateSessionEvictsSamePlatform(t *testing.T) {
	m, repo, mr := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "web", UserAgent: chromeWindowsUA})
	require.NoError(t, err)
	assert.Empty(t, first.Evicted)
	assert.True(t, mr.Exists(SessionCacheKey(first.Record.SessionID)))

	second, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "web", UserAgent: firefoxMacUA})
	require.NoError(t, err)
	// 驱逐报告点名第一台设备
	require.Len(t, second.Evicted, 1)
	assert.Equal(t, "Chrome on Windows", second.Evicted[0])

	// 单平台单会话：持久层恰好剩一条 web 记录
	webRecs, err := repo.FindByUserPlatform(ctx, "u1", usermodel.PlatformWeb)
	require.NoError(t, err)
	require.Len(t, webRecs, 1)
	assert.Equal(t, second.Record.SessionID, webRecs[0].SessionID)

	// 旧缓存条目已删，新条目存活
	assert.False(t, mr.Exists(SessionCacheKey(first.Record.SessionID)))
	assert.True(t, mr.Exists(SessionCacheKey(second.Record.SessionID)))
}

func TestCreateSessionPlatformsIndependent(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "web", UserAgent: chromeWindowsUA})
	require.NoError(t, err)
	res, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "app", UserAgent: iphoneUA})
	require.NoError(t, err)
	assert.Empty(t, res.Evicted, "app login must not evict the web session")

	all, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSessionTTLPerPlatform(t *testing.T) {
	m, _, mr := newTestManager(t)
	ctx := context.Background()

	web, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "web", UserAgent: chromeWindowsUA})
	require.NoError(t, err)
	assert.InDelta(t, (24 * time.Hour).Seconds(),
		mr.TTL(SessionCacheKey(web.Record.SessionID)).Seconds(), 2)

	app, err := m.CreateSession(ctx, "u2", DeviceInfo{Platform: "app", UserAgent: iphoneUA})
	require.NoError(t, err)
	assert.InDelta(t, (30 * 24 * time.Hour).Seconds(),
		mr.TTL(SessionCacheKey(app.Record.SessionID)).Seconds(), 2)
}

func TestLegacyDeviceTypeTable(t *testing.T) {
	m, _, mr := newTestManager(t)
	ctx := context.Background()

	// 平台头给了不认识的值：TTL 走设备类型兜底表（mobile -> 30天）
	res, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "ios", UserAgent: iphoneUA})
	require.NoError(t, err)
	assert.InDelta(t, (30 * 24 * time.Hour).Seconds(),
		mr.TTL(SessionCacheKey(res.Record.SessionID)).Seconds(), 2)

	// desktop UA -> 1天
	res2, err := m.CreateSession(ctx, "u2", DeviceInfo{Platform: "tv", UserAgent: chromeWindowsUA})
	require.NoError(t, err)
	assert.InDelta(t, (24 * time.Hour).Seconds(),
		mr.TTL(SessionCacheKey(res2.Record.SessionID)).Seconds(), 2)
}

func TestListSessionsMarksCurrent(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	web, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "web", UserAgent: chromeWindowsUA})
	require.NoError(t, err)
	app, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "app", UserAgent: iphoneUA})
	require.NoError(t, err)

	views, err := m.ListSessions(ctx, "u1", web.Record.SessionID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		if v.SessionID == web.Record.SessionID {
			assert.True(t, v.IsCurrent)
		} else {
			assert.Equal(t, app.Record.SessionID, v.SessionID)
			assert.False(t, v.IsCurrent)
		}
	}
}

func TestDeleteSessionOwnershipAndCurrent(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	victim, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "web", UserAgent: chromeWindowsUA})
	require.NoError(t, err)
	mine, err := m.CreateSession(ctx, "u2", DeviceInfo{Platform: "web", UserAgent: firefoxMacUA})
	require.NoError(t, err)

	// 别人的会话：Forbidden
	err = m.DeleteSession(ctx, victim.Record.SessionID, "u2", mine.Record.SessionID)
	require.Error(t, err)
	assert.Equal(t, errs.NoPermissionError, errs.CodeOf(err))

	// 自己的当前会话：BadRequest，正确路径是 logout
	err = m.DeleteSession(ctx, mine.Record.SessionID, "u2", mine.Record.SessionID)
	require.Error(t, err)
	assert.Equal(t, errs.ArgsError, errs.CodeOf(err))

	// 不存在的会话：NotFound
	err = m.DeleteSession(ctx, "nope", "u2", mine.Record.SessionID)
	require.Error(t, err)
	assert.Equal(t, errs.RecordNotFoundError, errs.CodeOf(err))
}

func TestDeleteSessionRemovesBothStores(t *testing.T) {
	m, repo, mr := newTestManager(t)
	ctx := context.Background()

	web, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "web", UserAgent: chromeWindowsUA})
	require.NoError(t, err)
	app, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "app", UserAgent: iphoneUA})
	require.NoError(t, err)

	require.NoError(t, m.DeleteSession(ctx, app.Record.SessionID, "u1", web.Record.SessionID))
	assert.False(t, mr.Exists(SessionCacheKey(app.Record.SessionID)))
	_, err = repo.FindByID(ctx, app.Record.SessionID)
	assert.Equal(t, errs.RecordNotFoundError, errs.CodeOf(err))
}

func TestDeleteAllOtherSessions(t *testing.T) {
	m, repo, mr := newTestManager(t)
	ctx := context.Background()

	web, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "web", UserAgent: chromeWindowsUA})
	require.NoError(t, err)
	app, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "app", UserAgent: iphoneUA})
	require.NoError(t, err)

	count, err := m.DeleteAllOtherSessions(ctx, "u1", web.Record.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.True(t, mr.Exists(SessionCacheKey(web.Record.SessionID)))
	assert.False(t, mr.Exists(SessionCacheKey(app.Record.SessionID)))

	all, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, web.Record.SessionID, all[0].SessionID)
}

func TestLiveUserID(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	res, err := m.CreateSession(ctx, "u1", DeviceInfo{Platform: "web", UserAgent: chromeWindowsUA})
	require.NoError(t, err)

	uid, alive, err := m.LiveUserID(ctx, res.Record.SessionID)
	require.NoError(t, err)
	assert.True(t, alive)
	assert.Equal(t, "u1", uid)

	require.NoError(t, m.Logout(ctx, res.Record.SessionID))
	_, alive, err = m.LiveUserID(ctx, res.Record.SessionID)
	require.NoError(t, err)
	assert.False(t, alive)
}
