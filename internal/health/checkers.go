package health

import (
	"context"
	"time"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/uplink"
)

// ModemChecker 模组健康检查：状态探测失败为 unhealthy，在位但未入网
// 为 degraded，已入网为 healthy。每次检查经一次真实串口交换。
type ModemChecker struct {
	modem *modem.Modem
}

// NewModemChecker 创建模组检查器
func NewModemChecker(m *modem.Modem) *ModemChecker {
	return &ModemChecker{modem: m}
}

func (c *ModemChecker) Name() string { return "modem" }

func (c *ModemChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	code, desc, err := c.modem.Status()
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: err.Error(),
			Latency: time.Since(start),
		}
	}
	result := CheckResult{
		Message: desc,
		Details: map[string]interface{}{"status_code": code},
		Latency: time.Since(start),
	}
	if atcmd.JoinedStatus(code) {
		result.Status = StatusHealthy
	} else {
		result.Status = StatusDegraded
	}
	return result
}

// UplinkChecker 上行工作器检查：停转为 unhealthy，队列打满为 degraded
type UplinkChecker struct {
	worker *uplink.Worker
}

// NewUplinkChecker 创建上行检查器
func NewUplinkChecker(w *uplink.Worker) *UplinkChecker {
	return &UplinkChecker{worker: w}
}

func (c *UplinkChecker) Name() string { return "uplink" }

func (c *UplinkChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	stats := c.worker.Stats()
	details := map[string]interface{}{
		"queue_depth": stats.QueueDepth,
		"capacity":    c.worker.Capacity(),
	}
	result := CheckResult{Details: details, Latency: time.Since(start)}
	switch {
	case !stats.Running:
		result.Status = StatusUnhealthy
		result.Message = "delivery worker not running"
	case stats.QueueDepth >= c.worker.Capacity():
		result.Status = StatusDegraded
		result.Message = "uplink queue full"
	default:
		result.Status = StatusHealthy
		result.Message = "ok"
	}
	return result
}
