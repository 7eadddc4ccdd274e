package modem

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultJoinTimeout 入网监视缺省超时
const DefaultJoinTimeout = 60 * time.Second

// joinProgressEvery 每隔多少次轮询输出一次等待日志
const joinProgressEvery = 10

// JoinCallback 入网监视结束时的一次性通知。入网成功为 (true, 0)，
// 超时为 (false, 1)。回调在监视器自身的 goroutine 中执行。
type JoinCallback func(joined bool, code int)

// JoinMonitor 后台轮询入网状态直至入网或超时。
// 每个实例恰好回调一次；Stop 提前终止并抑制尚未发出的回调。
type JoinMonitor struct {
	modem   *Modem
	timeout time.Duration
	cb      JoinCallback

	mu      sync.Mutex
	settled bool // 回调已发出，或已被 Stop 抑制
	stop    chan struct{}
	done    chan struct{}
}

// StartJoinMonitor 启动一个入网监视任务。timeout<=0 时取 DefaultJoinTimeout。
// 监视器与同步调用共用调制解调器互斥锁，状态查询按序进行。
func (m *Modem) StartJoinMonitor(timeout time.Duration, cb JoinCallback) (*JoinMonitor, error) {
	if cb == nil {
		return nil, fmt.Errorf("%w: nil join callback", ErrInvalidArgument)
	}
	if timeout <= 0 {
		timeout = DefaultJoinTimeout
	}
	jm := &JoinMonitor{
		modem:   m,
		timeout: timeout,
		cb:      cb,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go jm.run()
	return jm, nil
}

// Stop 终止监视任务、抑制未发出的回调，并等待任务退出。
// 回调已发出时仅等待退出。
func (jm *JoinMonitor) Stop() {
	jm.mu.Lock()
	if !jm.settled {
		jm.settled = true
		close(jm.stop)
	}
	jm.mu.Unlock()
	<-jm.done
}

// settle 首次调用发出回调，之后的调用（含 Stop 之后）全部忽略
func (jm *JoinMonitor) settle(joined bool, code int) {
	jm.mu.Lock()
	if jm.settled {
		jm.mu.Unlock()
		return
	}
	jm.settled = true
	jm.mu.Unlock()
	jm.cb(joined, code)
}

func (jm *JoinMonitor) run() {
	defer close(jm.done)

	start := time.Now()
	deadline := start.Add(jm.timeout)
	ticker := time.NewTicker(jm.modem.cfg.StatusPollInterval)
	defer ticker.Stop()

	jm.modem.log.Info("join monitor started",
		zap.Duration("timeout", jm.timeout),
		zap.Duration("poll_interval", jm.modem.cfg.StatusPollInterval))

	polls := 0
	for {
		select {
		case <-jm.stop:
			jm.modem.log.Info("join monitor stopped")
			return
		case <-ticker.C:
		}

		polls++
		joined, err := jm.modem.Connected()
		if err != nil {
			jm.modem.log.Warn("join monitor status query failed", zap.Error(err))
		} else if joined {
			elapsed := time.Since(start)
			jm.modem.log.Info("network joined", zap.Duration("elapsed", elapsed))
			jm.observeJoin(elapsed)
			jm.settle(true, 0)
			return
		}

		if polls%joinProgressEvery == 0 {
			jm.modem.log.Info("waiting for network join",
				zap.Duration("elapsed", time.Since(start).Round(time.Second)),
				zap.Duration("timeout", jm.timeout))
		}

		if !time.Now().Before(deadline) {
			jm.modem.log.Warn("join monitor timed out", zap.Duration("timeout", jm.timeout))
			jm.settle(false, 1)
			return
		}
	}
}

func (jm *JoinMonitor) observeJoin(elapsed time.Duration) {
	if jm.modem.metrics == nil {
		return
	}
	jm.modem.metrics.JoinDuration.Observe(elapsed.Seconds())
}
