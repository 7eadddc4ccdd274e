package modem

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
)

// rssiChannelCount 每个频段固定 8 个信道
const rssiChannelCount = 8

// ChannelRSSI 扫描一个频段内 8 个信道的 RSSI（dBm）。
// 应答是 "+CRSSI:" 后跟 8 行 "<信道>:<值>"；行缺失或序号错乱时
// 返回已解析到的部分并留下告警。
func (m *Modem) ChannelRSSI(freqBandIndex uint8) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp, err := m.exchange(atcmd.New(fmt.Sprintf("CRSSI %d?", freqBandIndex)), m.cfg.ResponseTimeout)
	if err != nil {
		return nil, fmt.Errorf("rssi scan: %w", err)
	}

	pos := strings.Index(resp.Payload, atcmd.MarkerCRSSI)
	if pos < 0 {
		return nil, fmt.Errorf("%w: rssi table missing in reply", ErrMalformedReply)
	}

	values := make([]int, 0, rssiChannelCount)
	lines := strings.Split(resp.Payload[pos:], "\n")
	for _, line := range lines[1:] {
		if len(values) == rssiChannelCount {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var channel, rssi int
		if _, err := fmt.Sscanf(line, "%d:%d", &channel, &rssi); err != nil {
			if line == "OK" {
				break
			}
			m.log.Warn("unreadable rssi line", zap.String("line", line))
			continue
		}
		if channel != len(values) {
			m.log.Warn("unexpected rssi channel order",
				zap.Int("channel", channel), zap.Int("position", len(values)))
			continue
		}
		values = append(values, rssi)
	}

	if len(values) != rssiChannelCount {
		m.log.Warn("incomplete rssi table",
			zap.Uint8("band", freqBandIndex),
			zap.Int("channels", len(values)))
	}
	return values, nil
}
