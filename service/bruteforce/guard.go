package bruteforce

import (
	"context"
	"time"

	"SProject/logger"
	redisstore "SProject/service/storage/redis"
)

// 键名约定（兼容性约束）：
//   计数器 login-attempts:<key>
//   阻断旗标 login-block:<key>
// key 是认证身份（email 或 IP），不是客户端地址。
const (
	attemptsPrefix = "login-attempts:"
	blockPrefix    = "login-block:"
)

// Guard 登录失败计数与临时阻断。
// 与限流器相反，缓存存储不可达时所有调用退化为"未阻断/第一次尝试"
// （fail-open）：防护层自身的故障不能把正常用户锁在门外。
// 这个不对称是有意为之，改它之前先看设计文档。
type Guard struct {
	cache         *redisstore.Manager
	maxAttempts   int
	blockDuration time.Duration
}

func New(cache *redisstore.Manager, maxAttempts int, blockDuration time.Duration) *Guard {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if blockDuration <= 0 {
		blockDuration = 30 * time.Minute
	}
	return &Guard{cache: cache, maxAttempts: maxAttempts, blockDuration: blockDuration}
}

func (g *Guard) MaxAttempts() int { return g.maxAttempts }

// RecordFailure 记一次认证失败；窗口 = 阻断时长，窗口内达到上限就落阻断旗标。
// 返回当前累计次数；存储异常时返回 1（fail-open），不向调用方抛错。
func (g *Guard) RecordFailure(ctx context.Context, key string) int {
	count, err := g.cache.IncrWindow(ctx, attemptsPrefix+key, g.blockDuration)
	if err != nil {
		logger.Warnf("brute-force guard degraded (fail-open), incr: %v", err)
		return 1
	}

	if count >= int64(g.maxAttempts) {
		if err := g.cache.SetEX(ctx, blockPrefix+key, "1", g.blockDuration); err != nil {
			logger.Warnf("brute-force guard degraded (fail-open), set block: %v", err)
		}
	}
	return int(count)
}

// IsBlocked 存储异常时回答"未阻断"
func (g *Guard) IsBlocked(ctx context.Context, key string) bool {
	ok, err := g.cache.Exists(ctx, blockPrefix+key)
	if err != nil {
		logger.Warnf("brute-force guard degraded (fail-open), exists: %v", err)
		return false
	}
	return ok
}

// RemainingBlockSeconds 阻断剩余秒数；未阻断或存储异常返回 0
func (g *Guard) RemainingBlockSeconds(ctx context.Context, key string) int {
	d, active, err := g.cache.TTL(ctx, blockPrefix+key)
	if err != nil {
		logger.Warnf("brute-force guard degraded (fail-open), ttl: %v", err)
		return 0
	}
	if !active {
		return 0
	}
	return int(d / time.Second)
}

// Reset 认证成功后清掉计数器和阻断旗标；下一次失败从 1 重新开始
func (g *Guard) Reset(ctx context.Context, key string) {
	if err := g.cache.Del(ctx, attemptsPrefix+key, blockPrefix+key); err != nil {
		logger.Warnf("brute-force guard reset failed: %v", err)
	}
}
