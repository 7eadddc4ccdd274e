package modem

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
)

// Send 发送一条确认型上行（重发 2 次交由模组执行）。
// 载荷先过两道彼此独立的校验：当前数据速率的载荷表、
// 编码长度上限；任何一道不过，发送帧不会触碰串口。
func (m *Modem) Send(payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendLocked(payload)
}

func (m *Modem) sendLocked(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidArgument)
	}

	dataRate := uint8(DataRateMin)
	if m.dataRateKnown {
		dataRate = m.dataRate
	} else if dr, _, err := m.dataRateInfoLocked(); err == nil {
		dataRate = dr
	} else {
		m.log.Warn("data rate unknown, validating against most conservative limit",
			zap.Error(err))
	}

	if err := ValidatePayloadSize(len(payload), dataRate); err != nil {
		return err
	}
	encoded, err := EncodeHex(payload)
	if err != nil {
		return err
	}

	m.log.Info("sending uplink",
		zap.Int("bytes", len(payload)),
		zap.Uint8("data_rate", dataRate))

	resp, err := m.exchange(
		atcmd.New("DTRX", "1", "2", strconv.Itoa(len(payload)), encoded),
		sendExchangeTimeout)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	m.logSendEchoes(resp.Payload)
	return nil
}

// logSendEchoes 模组用回显行陈述发送进度，这里只记录，不改变结果；
// 回显与 +DTRX: 下行通知混在同一窗口时才会带回 Payload。
func (m *Modem) logSendEchoes(payload string) {
	if payload == "" {
		return
	}
	if strings.Contains(payload, "OK+SEND:") {
		m.log.Debug("uplink queued for transmission")
	}
	if strings.Contains(payload, "OK+SENT:") {
		m.log.Debug("uplink transmitted to network")
	}
	if strings.Contains(payload, "OK+RECV:") {
		m.log.Debug("network acknowledgement received")
	}
	if strings.Contains(payload, "ERR+SEND:") {
		m.log.Warn("module reported send error echo")
	}
}
