package ratelimit

import (
	"context"
	"time"

	"SProject/global/config"
	"SProject/logger"
	"SProject/service/health"
	redisstore "SProject/service/storage/redis"
	"SProject/tools/errs"
)

// Tier 限流档位：封闭集合，新增档位必须同时补全内置表
type Tier string

const (
	TierDefault Tier = "default"
	TierStrict  Tier = "strict"
	TierRelaxed Tier = "relaxed"
	TierLogin   Tier = "login"
	TierSignup  Tier = "signup"
)

// TierDef (配额, 窗口, 惩罚时长)
type TierDef struct {
	Points        int
	Duration      time.Duration
	BlockDuration time.Duration
}

func builtinTiers() map[Tier]TierDef {
	return map[Tier]TierDef{
		TierDefault: {Points: 100, Duration: 60 * time.Second, BlockDuration: 60 * time.Second},
		TierStrict:  {Points: 10, Duration: 60 * time.Second, BlockDuration: 300 * time.Second},
		TierRelaxed: {Points: 300, Duration: 60 * time.Second, BlockDuration: 60 * time.Second},
		TierLogin:   {Points: 5, Duration: 60 * time.Second, BlockDuration: 300 * time.Second},
		TierSignup:  {Points: 3, Duration: 3600 * time.Second, BlockDuration: 3600 * time.Second},
	}
}

// Result 一次配额判定的结果
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // 拒绝时：来自计数器或惩罚标记中仍在生效的那个
	ResetAt    time.Time
}

// Limiter 固定窗口计数 + 惩罚锁定延长，不是平滑令牌桶。
// 缓存存储不可达时一律拒绝（fail-closed）：基础设施吃紧的时候
// 把限流关掉等于没有限流。
type Limiter struct {
	cache *redisstore.Manager
	check health.Checker
	tiers map[Tier]TierDef
}

func New(cache *redisstore.Manager, check health.Checker, overrides map[string]config.TierConfig) *Limiter {
	tiers := builtinTiers()
	for name, o := range overrides {
		t := Tier(name)
		def, ok := tiers[t]
		if !ok {
			logger.Warnf("rate_limit override for unknown tier %q ignored", name)
			continue
		}
		if o.Points > 0 {
			def.Points = o.Points
		}
		if o.Duration > 0 {
			def.Duration = time.Duration(o.Duration) * time.Second
		}
		if o.Block > 0 {
			def.BlockDuration = time.Duration(o.Block) * time.Second
		}
		tiers[t] = def
	}
	return &Limiter{cache: cache, check: check, tiers: tiers}
}

// 键名约定（兼容性约束，别改）：计数器 rl_<tier>:<key>
func counterKey(tier Tier, clientKey string) string {
	return "rl_" + string(tier) + ":" + clientKey
}

func blockKey(tier Tier, clientKey string) string {
	return "rl_" + string(tier) + ":block:" + clientKey
}

// Consume 消耗一次配额。拒绝不是 error：Allowed=false + RetryAfter。
// error 只表示基础设施问题，统一翻译成 ErrStoreUnavailable。
func (l *Limiter) Consume(ctx context.Context, tier Tier, clientKey string) (Result, error) {
	def, ok := l.tiers[tier]
	if !ok {
		return Result{}, errs.ErrArgs.WrapMsg("unknown rate limit tier", "tier", tier)
	}

	if !l.check.Healthy() {
		return Result{}, errs.ErrStoreUnavailable.Wrap()
	}

	now := time.Now()

	// 惩罚标记仍在生效：直接拒绝，不再计数
	if d, active, err := l.cache.TTL(ctx, blockKey(tier, clientKey)); err != nil {
		return Result{}, l.unavailable("ttl block marker", err)
	} else if active {
		return Result{Allowed: false, Remaining: 0, RetryAfter: d, ResetAt: now.Add(d)}, nil
	}

	count, err := l.cache.IncrWindow(ctx, counterKey(tier, clientKey), def.Duration)
	if err != nil {
		return Result{}, l.unavailable("incr counter", err)
	}

	if count > int64(def.Points) {
		// 超额：设置惩罚标记，突发场景下惩罚可以比自然窗口活得久
		if err := l.cache.SetEX(ctx, blockKey(tier, clientKey), "1", def.BlockDuration); err != nil {
			return Result{}, l.unavailable("set block marker", err)
		}
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: def.BlockDuration,
			ResetAt:    now.Add(def.BlockDuration),
		}, nil
	}

	remaining := def.Points - int(count)
	resetAt := now.Add(def.Duration)
	if d, okTTL, err := l.cache.TTL(ctx, counterKey(tier, clientKey)); err == nil && okTTL {
		resetAt = now.Add(d)
	}

	return Result{Allowed: true, Remaining: remaining, ResetAt: resetAt}, nil
}

func (l *Limiter) unavailable(op string, err error) error {
	logger.Warnf("rate limiter degraded (fail-closed), %s: %v", op, err)
	return errs.ErrStoreUnavailable.Wrap()
}
