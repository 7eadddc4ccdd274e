package uplink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/metrics"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
)

// Sender 上行发送器
type Sender interface {
	Send(payload []byte) error
}

var _ Sender = (*modem.Modem)(nil)

// 工作器缺省参数。速率缺省 6 条/分钟，贴合公网公平使用口径。
const (
	DefaultQueueCapacity  = 32
	DefaultTerminalRetain = 256
	DefaultScanInterval   = 500 * time.Millisecond
	DefaultMaxRetries     = 3
	DefaultRetryBackoff   = 5 * time.Second
	DefaultRatePerMinute  = 6
	DefaultBurst          = 2
)

// Config 工作器配置
type Config struct {
	QueueCapacity  int           // 非终态消息上限
	TerminalRetain int           // 终态消息保留条数
	ScanInterval   time.Duration // 队列扫描间隔
	MaxRetries     int           // 单条消息总尝试次数
	RetryBackoff   time.Duration // 退避基数，第 n 次重试前等待 n×基数
	RatePerMinute  float64       // 发送节拍
	Burst          int           // 突发容量
}

// DefaultConfig 缺省工作器配置
func DefaultConfig() Config {
	return Config{
		QueueCapacity:  DefaultQueueCapacity,
		TerminalRetain: DefaultTerminalRetain,
		ScanInterval:   DefaultScanInterval,
		MaxRetries:     DefaultMaxRetries,
		RetryBackoff:   DefaultRetryBackoff,
		RatePerMinute:  DefaultRatePerMinute,
		Burst:          DefaultBurst,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.TerminalRetain <= 0 {
		c.TerminalRetain = d.TerminalRetain
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = d.ScanInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = d.RatePerMinute
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	return c
}

// Worker 上行投递工作器。入队与投递解耦，投递按节拍串行，
// 失败按退避重试，永久性错误直接判终。
type Worker struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup

	queue   *queue
	sender  Sender
	pacer   *Pacer
	cfg     Config
	log     *zap.Logger
	metrics *metrics.AppMetrics
}

// NewWorker 创建工作器。log 为 nil 时静默。
func NewWorker(sender Sender, cfg Config, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Worker{
		queue:  newQueue(cfg.QueueCapacity, cfg.TerminalRetain),
		sender: sender,
		pacer:  NewPacer(cfg.RatePerMinute, cfg.Burst),
		cfg:    cfg,
		log:    log,
	}
}

// SetMetrics 挂接业务指标，仅在启动装配期调用
func (w *Worker) SetMetrics(am *metrics.AppMetrics) { w.metrics = am }

// Enqueue 入队一条上行消息，立即返回可查询的消息状态
func (w *Worker) Enqueue(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return Message{}, fmt.Errorf("%w: empty payload", modem.ErrInvalidArgument)
	}
	msg, err := w.queue.enqueue(payload)
	if err != nil {
		return Message{}, err
	}
	w.setQueueDepth()
	w.log.Info("uplink enqueued",
		zap.String("id", msg.ID), zap.Int("size_bytes", msg.SizeBytes))
	return msg, nil
}

// Lookup 查询消息状态
func (w *Worker) Lookup(id string) (Message, error) {
	msg, ok := w.queue.lookup(id)
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	return msg, nil
}

// Depth 当前非终态消息数
func (w *Worker) Depth() int { return w.queue.depth() }

// Capacity 队列容量
func (w *Worker) Capacity() int { return w.cfg.QueueCapacity }

// Stats 工作器快照
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	return Stats{
		Running:    running,
		QueueDepth: w.queue.depth(),
		Pacer:      w.pacer.Stats(),
	}
}

// Stats 工作器运行快照
type Stats struct {
	Running    bool       `json:"running"`
	QueueDepth int        `json:"queue_depth"`
	Pacer      PacerStats `json:"pacer"`
}

// Start 启动投递循环
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("uplink worker already running")
	}
	w.running = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop 停止投递循环并等待其退出，未投递的消息留在队列里
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	close(w.done)
	w.mu.Unlock()
	w.wg.Wait()
}

// IsRunning 投递循环是否在运行
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.ScanInterval)
	defer ticker.Stop()
	w.log.Info("uplink worker started",
		zap.Duration("scan_interval", w.cfg.ScanInterval),
		zap.Float64("rate_per_minute", w.cfg.RatePerMinute),
		zap.Int("burst", w.cfg.Burst))
	for {
		select {
		case <-w.done:
			w.log.Info("uplink worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain 处理当前所有到期消息，停止信号随时打断
func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-w.done:
			return
		default:
		}
		id, payload, attempt, ok := w.queue.next(time.Now())
		if !ok {
			return
		}
		w.deliver(ctx, id, payload, attempt)
	}
}

func (w *Worker) deliver(ctx context.Context, id string, payload []byte, attempt int) {
	waited, err := w.pacer.Admit(ctx)
	if waited {
		w.countThrottled()
	}
	if err != nil {
		// 停机打断了节拍等待，这条消息没有真正尝试过
		w.queue.requeue(id)
		return
	}
	if err := w.sender.Send(payload); err != nil {
		w.handleSendFailure(id, attempt, err)
		return
	}
	w.queue.delivered(id)
	w.setQueueDepth()
	w.countUplink("delivered")
	w.log.Info("uplink delivered", zap.String("id", id), zap.Int("attempt", attempt))
}

func (w *Worker) handleSendFailure(id string, attempt int, err error) {
	// 载荷本身不合法时重试毫无意义
	permanent := errors.Is(err, modem.ErrTooLarge) || errors.Is(err, modem.ErrInvalidArgument)
	if permanent || attempt >= w.cfg.MaxRetries {
		w.queue.failed(id, err.Error())
		w.setQueueDepth()
		w.countUplink("failed")
		w.log.Warn("uplink failed",
			zap.String("id", id), zap.Int("attempt", attempt),
			zap.Bool("permanent", permanent), zap.Error(err))
		return
	}
	notBefore := time.Now().Add(time.Duration(attempt) * w.cfg.RetryBackoff)
	w.queue.retryLater(id, err.Error(), notBefore)
	w.log.Warn("uplink send failed, will retry",
		zap.String("id", id), zap.Int("attempt", attempt),
		zap.Time("not_before", notBefore), zap.Error(err))
}

func (w *Worker) countUplink(result string) {
	if w.metrics == nil {
		return
	}
	w.metrics.UplinkTotal.WithLabelValues(result).Inc()
}

func (w *Worker) countThrottled() {
	if w.metrics == nil {
		return
	}
	w.metrics.ThrottledTotal.Inc()
}

func (w *Worker) setQueueDepth() {
	if w.metrics == nil {
		return
	}
	w.metrics.UplinkQueueDepth.Set(float64(w.queue.depth()))
}
