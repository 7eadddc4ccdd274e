package modem

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
)

// Save 把当前配置写入模组非易失存储
func (m *Modem) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Modem) saveLocked() error {
	if _, err := m.exchange(atcmd.New("CSAVE"), m.cfg.ResponseTimeout); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	m.log.Info("configuration saved to module")
	return nil
}

// RestoreDefaults 恢复出厂配置，生效通常需要随后重启
func (m *Modem) RestoreDefaults() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.exchange(atcmd.New("CRESTORE"), m.cfg.ResponseTimeout); err != nil {
		return fmt.Errorf("restore defaults: %w", err)
	}
	m.log.Info("factory defaults restored, reboot recommended")
	return nil
}

// Reboot 重启模组并等待其重新就绪
func (m *Modem) Reboot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebootLocked()
}

func (m *Modem) rebootLocked() error {
	if _, err := m.exchange(atcmd.New("IREBOOT", "0"), m.cfg.ResponseTimeout); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	m.log.Info("module rebooting", zap.Duration("settle", rebootSettleDelay))
	time.Sleep(rebootSettleDelay)
	return nil
}

// Raw 透传一条指令体（"AT+" 之后的部分），返回捕获到的应答文本。
// 纯 OK 应答没有可捕获文本，返回空串。
func (m *Modem) Raw(body string, timeout time.Duration) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: empty command", ErrInvalidArgument)
	}
	if timeout <= 0 {
		timeout = m.cfg.ResponseTimeout
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, err := m.exchange(atcmd.New(body), timeout)
	if err != nil {
		return "", err
	}
	return resp.Payload, nil
}

// TTN US915 的 RX2 参数，由协议栈按区域参数自动配置
const (
	TTNUS915RX2Frequency = 923300000
	TTNUS915RX2DataRate  = 8
)

// SetRX2Frequency 本模组不支持手动 RX2 调谐，恒返回 ErrUnsupported
func (m *Modem) SetRX2Frequency(frequencyHz uint32) error {
	m.log.Warn("manual rx2 frequency not supported, stack configures it per region",
		zap.Uint32("requested_hz", frequencyHz),
		zap.Int("regional_hz", TTNUS915RX2Frequency))
	return fmt.Errorf("%w: rx2 frequency is fixed by regional parameters", ErrUnsupported)
}

// SetRX2DataRate 本模组不支持手动 RX2 调谐，恒返回 ErrUnsupported
func (m *Modem) SetRX2DataRate(dataRate uint8) error {
	m.log.Warn("manual rx2 data rate not supported, stack configures it per region",
		zap.Uint8("requested", dataRate),
		zap.Int("regional", TTNUS915RX2DataRate))
	return fmt.Errorf("%w: rx2 data rate is fixed by regional parameters", ErrUnsupported)
}
