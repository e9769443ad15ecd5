package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"SProject/logger"
)

// Checker 各组件消费的只读视图：缓存存储当前是否可达。
// 答案来自定时探活的缓存结果，不是每次调用都打一次 PING。
type Checker interface {
	Healthy() bool
}

// Pinger 被探活的对象（缓存存储适配器）
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor 降级决策的探活器：固定周期 PING，结果缓存在原子位里。
// 掉线后继续探测，恢复能被发现，而不是启动时查一次就完事。
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration

	healthy  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMonitor(p Pinger, interval, timeout time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	m := &Monitor{
		pinger:   p,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
	// 启动即探一次，别让首个请求拿到空状态
	m.Refresh(context.Background())
	return m
}

// Start 后台探活循环
func (m *Monitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.Refresh(context.Background())
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) Healthy() bool {
	return m.healthy.Load()
}

// Refresh 立刻探一次并更新缓存状态
func (m *Monitor) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(ctx)
	ok := err == nil

	prev := m.healthy.Swap(ok)
	if prev != ok {
		if ok {
			logger.Info("cache store recovered")
		} else {
			logger.Warnf("cache store unreachable: %v", err)
		}
	}
	return ok
}

// Static 测试用：固定健康状态
type Static bool

func (s Static) Healthy() bool { return bool(s) }
