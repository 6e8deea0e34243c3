package ratelimit

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"investex.com/pkg/xerr"
)

// BreakerRule 熔断规则
type BreakerRule struct {
	// Half-Open 状态允许通过的探测请求数（0 时库会当作 1）
	MaxRequests uint32
	// Closed 状态计数窗口
	Interval time.Duration
	// Open 状态持续时间，到期进入 Half-Open
	Timeout time.Duration
	// 触发熔断条件（两种之一即可）
	TripConsecutiveFailures uint32  // 连续失败阈值
	TripFailureRate         float64 // 失败率阈值（0~1）
	TripMinRequests         uint32  // 失败率计算的最小样本数
}

// BreakerManager 按方法名管理一组熔断器。
// 链上数据节点是充值同步唯一的外部依赖，节点抖动时快速失败，
// 避免每个同步请求都等到 RPC 超时。
type BreakerManager struct {
	mu sync.RWMutex
	m  map[string]*gobreaker.CircuitBreaker[any]

	defaultRule BreakerRule
	rules       map[string]BreakerRule
}

func NewBreakerManager(defaultRule BreakerRule, perMethod map[string]BreakerRule) *BreakerManager {
	if defaultRule.MaxRequests == 0 {
		defaultRule.MaxRequests = 5
	}
	if defaultRule.Timeout <= 0 {
		defaultRule.Timeout = 3 * time.Second
	}
	if defaultRule.Interval <= 0 {
		defaultRule.Interval = 10 * time.Second
	}
	if defaultRule.TripConsecutiveFailures == 0 && defaultRule.TripFailureRate == 0 {
		defaultRule.TripConsecutiveFailures = 10
	}
	if defaultRule.TripMinRequests == 0 {
		defaultRule.TripMinRequests = 20
	}

	return &BreakerManager{
		m:           make(map[string]*gobreaker.CircuitBreaker[any], 8),
		defaultRule: defaultRule,
		rules:       perMethod,
	}
}

func (m *BreakerManager) Get(method string) *gobreaker.CircuitBreaker[any] {
	// 快路径：读锁
	m.mu.RLock()
	cb := m.m[method]
	m.mu.RUnlock()
	if cb != nil {
		return cb
	}

	// 慢路径：创建
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb = m.m[method]; cb != nil {
		return cb
	}

	rule, ok := m.rules[method]
	if !ok {
		rule = m.defaultRule
	}
	st := gobreaker.Settings{
		Name:        method,
		MaxRequests: rule.MaxRequests,
		Interval:    rule.Interval,
		Timeout:     rule.Timeout,

		ReadyToTrip: func(c gobreaker.Counts) bool {
			// 1) 连续失败阈值优先（最直观）
			if rule.TripConsecutiveFailures > 0 && c.ConsecutiveFailures >= rule.TripConsecutiveFailures {
				return true
			}
			// 2) 失败率阈值（适合波动流量）
			if rule.TripFailureRate > 0 && c.Requests >= rule.TripMinRequests {
				failRate := float64(c.TotalFailures) / float64(c.Requests)
				return failRate >= rule.TripFailureRate
			}
			return false
		},

		// 哪些错误计入熔断失败：业务可预期的错误不算依赖不健康
		IsSuccessful: func(err error) bool {
			return isSuccessfulForBreaker(err)
		},
	}

	cb = gobreaker.NewCircuitBreaker[any](st)
	m.m[method] = cb
	return cb
}

func isSuccessfulForBreaker(err error) bool {
	if err == nil {
		return true
	}

	switch xerr.Code(err) {
	// 业务可预期 -> 不计入熔断失败
	case xerr.RequestParamsError,
		xerr.Unauthorized,
		xerr.RecordNotFound,
		xerr.WalletNotProvisioned:
		return true
	// 依赖不健康/网络/超时 -> 计入熔断失败
	default:
		return false
	}
}
