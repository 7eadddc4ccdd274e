package modem

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
)

// responseBufferSize 单次交换的应答缓冲，与模组单次吐出的最大行量对齐
const responseBufferSize = 512

// exchange 持锁执行一次完整交换：清残留 → 写帧 → 静默 → 轮询读 → 分类。
// 写失败、超时、ERROR 应答、无法识别的应答一视同仁重试；重试前再次清残留，
// 避免把上一次交换的剩余字节归属到本次。次数耗尽后返回单个终态错误，
// 包着最后一次的失败原因。
func (m *Modem) exchange(cmd atcmd.Command, timeout time.Duration) (atcmd.Response, error) {
	frame, err := cmd.Frame()
	if err != nil {
		return atcmd.Response{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if timeout <= 0 {
		return atcmd.Response{}, fmt.Errorf("%w: timeout must be positive", ErrInvalidArgument)
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			m.log.Warn("retrying command",
				zap.String("command", cmd.Name),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", m.cfg.MaxAttempts),
				zap.Error(lastErr))
			m.countRetry()
			time.Sleep(time.Duration(attempt-1) * m.cfg.RetryBackoff)
		}

		if err := m.tr.FlushInput(); err != nil {
			lastErr = fmt.Errorf("flush input: %w", err)
			continue
		}
		if _, err := m.tr.Write(frame); err != nil {
			lastErr = fmt.Errorf("write frame: %w", err)
			continue
		}
		time.Sleep(m.cfg.CommandDelay)

		raw, err := m.awaitResponse(timeout)
		if err != nil {
			lastErr = err
			continue
		}

		resp := atcmd.Parse(raw)
		switch resp.Outcome {
		case atcmd.OutcomeSuccess:
			m.observeCommand(cmd.Name, "ok", time.Since(start))
			return resp, nil
		case atcmd.OutcomeError:
			lastErr = fmt.Errorf("%w: %s (code %q)",
				ErrProtocol, m.reasons.Describe(resp.Code), resp.Code)
		default:
			lastErr = fmt.Errorf("%w: %q", ErrMalformedReply, truncateForLog(raw))
		}
	}

	m.observeCommand(cmd.Name, "error", time.Since(start))
	m.log.Error("command failed after all attempts",
		zap.String("command", cmd.Name),
		zap.Int("attempts", m.cfg.MaxAttempts),
		zap.Error(lastErr))
	return atcmd.Response{}, fmt.Errorf("command %s failed after %d attempts: %w",
		cmd.Name, m.cfg.MaxAttempts, lastErr)
}

// awaitResponse 以固定间隔轮询，第一次读到数据就原样返回。
// 应答可能被读取粒度切开或与邻近回显粘连，由分类器兜底。
func (m *Modem) awaitResponse(timeout time.Duration) ([]byte, error) {
	buf := make([]byte, responseBufferSize)
	deadline := time.Now().Add(timeout)
	for {
		n, err := m.tr.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if n > 0 {
			out := make([]byte, n)
			copy(out, buf[:n])
			m.log.Debug("received response", zap.Int("bytes", n), zap.ByteString("data", out))
			return out, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		time.Sleep(m.cfg.PollInterval)
	}
}

func (m *Modem) observeCommand(name, result string, elapsed time.Duration) {
	if m.metrics == nil {
		return
	}
	m.metrics.ATCommandTotal.WithLabelValues(name, result).Inc()
	m.metrics.ExchangeDuration.Observe(elapsed.Seconds())
}

func (m *Modem) countRetry() {
	if m.metrics != nil {
		m.metrics.ATRetryTotal.Inc()
	}
}

func truncateForLog(raw []byte) string {
	const max = 64
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
