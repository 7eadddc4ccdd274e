package modem

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
)

// manufacturer 在位探测期望的厂商标识
const manufacturer = "ASR"

// Status 查询连接状态，返回两位状态码及可读描述
func (m *Modem) Status() (code string, description string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, err = m.statusLocked()
	if err != nil {
		return "", "", err
	}
	return code, atcmd.StatusDescription(code), nil
}

// Connected 是否已入网（状态码 04/08）
func (m *Modem) Connected() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, err := m.statusLocked()
	if err != nil {
		return false, err
	}
	return atcmd.JoinedStatus(code), nil
}

func (m *Modem) statusLocked() (string, error) {
	resp, err := m.exchange(atcmd.New("CSTATUS?"), m.cfg.ResponseTimeout)
	if err != nil {
		return "", err
	}
	pos := strings.Index(resp.Payload, atcmd.MarkerCSTATUS)
	if pos < 0 {
		return "", fmt.Errorf("%w: connection status missing in reply", ErrMalformedReply)
	}
	var code string
	if _, err := fmt.Sscanf(resp.Payload[pos:], "+CSTATUS:%7s", &code); err != nil {
		return "", fmt.Errorf("%w: connection status unreadable", ErrMalformedReply)
	}
	joined := atcmd.JoinedStatus(code)
	m.setJoinedGauge(joined)
	m.log.Debug("connection status",
		zap.String("code", code),
		zap.String("description", atcmd.StatusDescription(code)))
	return code, nil
}

// Attached 探测模组是否在位并应答（厂商标识含 ASR）
func (m *Modem) Attached() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, _, err := m.attachedLocked()
	return ok, err
}

func (m *Modem) attachedLocked() (bool, string, error) {
	resp, err := m.exchange(atcmd.New("CGMI?"), m.cfg.ResponseTimeout)
	if err != nil {
		return false, "", err
	}
	pos := strings.Index(resp.Payload, atcmd.MarkerCGMI)
	if pos < 0 {
		return false, "", fmt.Errorf("%w: manufacturer missing in reply", ErrMalformedReply)
	}
	var mfg string
	if _, err := fmt.Sscanf(resp.Payload[pos:], "+CGMI=%15s", &mfg); err != nil {
		return false, "", fmt.Errorf("%w: manufacturer unreadable", ErrMalformedReply)
	}
	if !strings.Contains(mfg, manufacturer) {
		m.log.Warn("unexpected module manufacturer",
			zap.String("expected", manufacturer),
			zap.String("got", mfg))
		return false, mfg, nil
	}
	return true, mfg, nil
}

// Join 发起入网。指令被接受不代表已入网，结果用 Connected
// 轮询或 StartJoinMonitor 异步等待。
func (m *Modem) Join() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joinLocked()
}

func (m *Modem) joinLocked() error {
	m.log.Info("initiating network join")
	_, err := m.exchange(atcmd.New("CJOIN", "1", "1", "10", "8"), joinExchangeTimeout)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	m.log.Info("join command accepted, check status for completion")
	return nil
}

func (m *Modem) setJoinedGauge(joined bool) {
	if m.metrics == nil {
		return
	}
	if joined {
		m.metrics.JoinedGauge.Set(1)
	} else {
		m.metrics.JoinedGauge.Set(0)
	}
}
