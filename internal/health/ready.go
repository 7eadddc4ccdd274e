package health

import "sync/atomic"

// Readiness 就绪状态聚合（串口驱动、上行工作器）。
// readyz 探针走这里的廉价标志，真实的设备探测留给 /health 路由。
type Readiness struct {
	modemReady  atomic.Bool
	uplinkReady atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetModemReady(v bool)  { r.modemReady.Store(v) }
func (r *Readiness) SetUplinkReady(v bool) { r.uplinkReady.Store(v) }

// Ready 总体就绪：各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.modemReady.Load() && r.uplinkReady.Load()
}
