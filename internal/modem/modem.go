package modem

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/metrics"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/transport"
)

// Config 引擎时序参数
type Config struct {
	ResponseTimeout    time.Duration // 常规指令应答窗口
	CommandDelay       time.Duration // 写帧之后、首次读取之前的静默间隔
	PollInterval       time.Duration // 应答轮询间隔
	MaxAttempts        int           // 单条指令总尝试次数
	RetryBackoff       time.Duration // 退避基数，第 n 次重试前等待 n×基数
	StatusPollInterval time.Duration // 入网监视轮询间隔
}

// DefaultConfig 模组手册口径的默认时序
func DefaultConfig() Config {
	return Config{
		ResponseTimeout:    5 * time.Second,
		CommandDelay:       100 * time.Millisecond,
		PollInterval:       50 * time.Millisecond,
		MaxAttempts:        3,
		RetryBackoff:       500 * time.Millisecond,
		StatusPollInterval: time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = d.ResponseTimeout
	}
	if c.CommandDelay <= 0 {
		c.CommandDelay = d.CommandDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.StatusPollInterval <= 0 {
		c.StatusPollInterval = d.StatusPollInterval
	}
	return c
}

// 入网与发送走更长的应答窗口，模组可能要等完整的空中往返
const (
	joinExchangeTimeout = 30 * time.Second
	sendExchangeTimeout = 30 * time.Second
	rebootSettleDelay   = 2 * time.Second
)

// Modem ASR6501 模组驱动。线协议没有请求应答关联字段，
// 应答只能归属于最近一次写入，因此所有交换经单一互斥锁串行化；
// 多步序列用 Batch 占住同一临界区。
type Modem struct {
	mu      sync.Mutex
	tr      transport.Transport
	cfg     Config
	log     *zap.Logger
	metrics *metrics.AppMetrics
	reasons *atcmd.ReasonMap

	// 最近一次确认的数据速率，发送路径先于任何写串口动作做载荷校验
	dataRate      uint8
	dataRateKnown bool
}

// New 创建驱动实例。log 为 nil 时静默。
func New(tr transport.Transport, cfg Config, log *zap.Logger) *Modem {
	if log == nil {
		log = zap.NewNop()
	}
	return &Modem{
		tr:      tr,
		cfg:     cfg.withDefaults(),
		log:     log,
		reasons: atcmd.DefaultReasonMap(),
	}
}

// SetMetrics 挂接业务指标，仅在启动装配期调用
func (m *Modem) SetMetrics(am *metrics.AppMetrics) { m.metrics = am }

// SetReasonMap 替换设备错误码表，仅在启动装配期调用
func (m *Modem) SetReasonMap(rm *atcmd.ReasonMap) {
	if rm != nil {
		m.reasons = rm
	}
}

// Execute 执行单条指令交换
func (m *Modem) Execute(cmd atcmd.Command, timeout time.Duration) (atcmd.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exchange(cmd, timeout)
}

// Session 批量临界区内的操作句柄，只在 Batch 回调存续期内有效
type Session struct {
	m *Modem
}

// Batch 在同一临界区内执行多条指令序列。序列期间其他调用方
// 无法插入交换，应答归属不会被打乱。
func (m *Modem) Batch(fn func(s *Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&Session{m: m})
}

// Execute 临界区内执行单条指令
func (s *Session) Execute(cmd atcmd.Command, timeout time.Duration) (atcmd.Response, error) {
	return s.m.exchange(cmd, timeout)
}

// ResponseTimeout 驱动配置的常规应答窗口，供脚本步骤复用
func (s *Session) ResponseTimeout() time.Duration {
	return s.m.cfg.ResponseTimeout
}

// Connected 临界区内查询入网状态
func (s *Session) Connected() (bool, error) {
	code, err := s.m.statusLocked()
	if err != nil {
		return false, err
	}
	return atcmd.JoinedStatus(code), nil
}

// Attached 临界区内探测模组在位
func (s *Session) Attached() (bool, error) {
	ok, _, err := s.m.attachedLocked()
	return ok, err
}

// Join 临界区内发起入网
func (s *Session) Join() error { return s.m.joinLocked() }

// Save 临界区内落盘配置
func (s *Session) Save() error { return s.m.saveLocked() }

// Reboot 临界区内重启模组
func (s *Session) Reboot() error { return s.m.rebootLocked() }

// SetLogLevel 临界区内设置模组日志级别
func (s *Session) SetLogLevel(level uint8) error { return s.m.setLogLevelLocked(level) }

// SetDataRate 临界区内设置数据速率
func (s *Session) SetDataRate(dataRate uint8) error { return s.m.setDataRateLocked(dataRate) }

// SetADR 临界区内开关自适应数据速率
func (s *Session) SetADR(enabled bool) error { return s.m.setADRLocked(enabled) }
