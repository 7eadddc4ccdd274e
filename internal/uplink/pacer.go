package uplink

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Pacer 基于令牌桶的发送节拍器。LoRaWAN 公网有公平使用约束，
// 上行按每分钟配额放行，突发容量决定允许连发的条数。
type Pacer struct {
	limiter      *rate.Limiter
	perMinute    float64
	burst        int
	allowedCount atomic.Int64
	waitedCount  atomic.Int64
}

// NewPacer 创建节拍器，非法参数回落缺省值
func NewPacer(perMinute float64, burst int) *Pacer {
	if perMinute <= 0 {
		perMinute = DefaultRatePerMinute
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Pacer{
		limiter:   rate.NewLimiter(rate.Limit(perMinute/60), burst),
		perMinute: perMinute,
		burst:     burst,
	}
}

// Admit 放行一次发送，没有令牌时阻塞到拿到令牌或 ctx 取消。
// waited 指示这次放行是否经历了等待。
func (p *Pacer) Admit(ctx context.Context) (waited bool, err error) {
	if p.limiter.Allow() {
		p.allowedCount.Add(1)
		return false, nil
	}
	p.waitedCount.Add(1)
	if err := p.limiter.Wait(ctx); err != nil {
		return true, err
	}
	p.allowedCount.Add(1)
	return true, nil
}

// Stats 累计计数快照
func (p *Pacer) Stats() PacerStats {
	return PacerStats{
		PerMinute:    p.perMinute,
		Burst:        p.burst,
		AllowedTotal: p.allowedCount.Load(),
		WaitedTotal:  p.waitedCount.Load(),
	}
}

// PacerStats 节拍器统计
type PacerStats struct {
	PerMinute    float64 `json:"per_minute"`
	Burst        int     `json:"burst"`
	AllowedTotal int64   `json:"allowed_total"`
	WaitedTotal  int64   `json:"waited_total"`
}
