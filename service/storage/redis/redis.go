package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Config 用于初始化 Redis
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Manager 缓存存储适配器。显式构造、显式注入，不走进程级单例，
// 方便多实例与测试替身。所有调用都有固定超时上限，超时即快速失败。
type Manager struct {
	client *redis.Client
}

const opTimeout = 10 * time.Second

// New 建立连接并 Ping 一次确认可达
func New(c Config) (*Manager, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Manager{client: rdb}, nil
}

// NewWithClient 测试用：直接包一个现成 client（miniredis 等）
func NewWithClient(client *redis.Client) *Manager {
	return &Manager{client: client}
}

func (m *Manager) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return m.client.Ping(ctx).Err()
}

func (m *Manager) Close() error {
	return m.client.Close()
}

// IncrWindow 原子自增；窗口内第一跳设置过期。
// 固定窗口计数的关键保证：INCR 原子 + 首跳 EXPIRE。
func (m *Manager) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	count, err := m.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := m.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// SetEX SET key val EX ttl
func (m *Manager) SetEX(ctx context.Context, key, val string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return m.client.Set(ctx, key, val, ttl).Err()
}

// Get 返回 (值, 是否存在, 错误)；key 不存在不算错误
func (m *Manager) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := m.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (m *Manager) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *Manager) Del(ctx context.Context, keys ...string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return m.client.Del(ctx, keys...).Err()
}

// TTL 返回剩余存活时间；key 不存在返回 (0, false, nil)
func (m *Manager) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	d, err := m.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	// go-redis: -2 key不存在 / -1 无过期
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}
