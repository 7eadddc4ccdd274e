package modem

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
)

// SetDataRate 设置数据速率（US915 允许 0..4）
func (m *Modem) SetDataRate(dataRate uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setDataRateLocked(dataRate)
}

func (m *Modem) setDataRateLocked(dataRate uint8) error {
	if dataRate > DataRateMax {
		return fmt.Errorf("%w: data rate %d out of range %d..%d",
			ErrInvalidArgument, dataRate, DataRateMin, DataRateMax)
	}
	_, err := m.exchange(atcmd.New("CDATARATE", strconv.Itoa(int(dataRate))), m.cfg.ResponseTimeout)
	if err != nil {
		return fmt.Errorf("set data rate: %w", err)
	}
	m.dataRate = dataRate
	m.dataRateKnown = true
	m.log.Info("data rate set",
		zap.Uint8("data_rate", dataRate),
		zap.Int("max_payload", MaxPayloadForDataRate(dataRate)))
	return nil
}

// DataRateInfo 查询当前数据速率与对应载荷上限。
// 查询失败但模组仍应答状态时退回文档默认 DR2，不做无依据的猜测。
func (m *Modem) DataRateInfo() (dataRate uint8, maxPayload int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dataRateInfoLocked()
}

func (m *Modem) dataRateInfoLocked() (uint8, int, error) {
	resp, err := m.exchange(atcmd.New("CDATARATE?"), m.cfg.ResponseTimeout)
	if err != nil {
		// 模组可能处于不吐 CDATARATE 的固件状态，先确认它还活着
		if _, serr := m.exchange(atcmd.New("CSTATUS?"), m.cfg.ResponseTimeout); serr == nil {
			m.log.Warn("data rate query failed, using documented default",
				zap.Uint8("data_rate", defaultDataRate))
			return defaultDataRate, MaxPayloadForDataRate(defaultDataRate), nil
		}
		return 0, 0, fmt.Errorf("data rate query: %w", err)
	}

	pos := strings.Index(resp.Payload, atcmd.MarkerCDATARATE)
	if pos < 0 {
		return 0, 0, fmt.Errorf("%w: data rate missing in reply", ErrMalformedReply)
	}
	var value int
	if _, err := fmt.Sscanf(resp.Payload[pos:], "+CDATARATE:%d", &value); err != nil {
		return 0, 0, fmt.Errorf("%w: data rate unreadable", ErrMalformedReply)
	}

	dataRate := uint8(value)
	if value < DataRateMin || value > DataRateMax {
		m.log.Warn("module reports out-of-table data rate, using conservative limit",
			zap.Int("data_rate", value))
		return dataRate, us915MaxPayload[0], nil
	}
	m.dataRate = dataRate
	m.dataRateKnown = true
	return dataRate, MaxPayloadForDataRate(dataRate), nil
}

// defaultDataRate TTN US915 的推荐初始数据速率
const defaultDataRate = 2

// SetTxPower 设置发射功率档位（0..7）
func (m *Modem) SetTxPower(powerIndex uint8) error {
	if powerIndex > 7 {
		return fmt.Errorf("%w: tx power index %d out of range 0..7",
			ErrInvalidArgument, powerIndex)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.exchange(atcmd.New("CTXP", strconv.Itoa(int(powerIndex))), m.cfg.ResponseTimeout)
	if err != nil {
		return fmt.Errorf("set tx power: %w", err)
	}
	m.log.Info("tx power set", zap.Uint8("index", powerIndex))
	return nil
}

// TxPower 查询当前发射功率档位
func (m *Modem) TxPower() (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, err := m.exchange(atcmd.New("CTXP?"), m.cfg.ResponseTimeout)
	if err != nil {
		return 0, fmt.Errorf("tx power query: %w", err)
	}
	pos := strings.Index(resp.Payload, atcmd.MarkerCTXP)
	if pos < 0 {
		return 0, fmt.Errorf("%w: tx power missing in reply", ErrMalformedReply)
	}
	var value int
	if _, err := fmt.Sscanf(resp.Payload[pos:], "+CTXP:%d", &value); err != nil {
		return 0, fmt.Errorf("%w: tx power unreadable", ErrMalformedReply)
	}
	return uint8(value), nil
}

// SetRetries 设置消息重发次数。confirmed 区分确认帧/非确认帧，
// 次数允许 1..15。
func (m *Modem) SetRetries(confirmed bool, retries uint8) error {
	if retries < 1 || retries > 15 {
		return fmt.Errorf("%w: retry count %d out of range 1..15",
			ErrInvalidArgument, retries)
	}
	msgType := "0"
	if confirmed {
		msgType = "1"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.exchange(atcmd.New("CNBTRIALS", msgType, strconv.Itoa(int(retries))), m.cfg.ResponseTimeout)
	if err != nil {
		return fmt.Errorf("set retries: %w", err)
	}
	return nil
}

// SetADR 开关自适应数据速率
func (m *Modem) SetADR(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setADRLocked(enabled)
}

func (m *Modem) setADRLocked(enabled bool) error {
	arg := "0"
	if enabled {
		arg = "1"
	}
	_, err := m.exchange(atcmd.New("CADR", arg), m.cfg.ResponseTimeout)
	if err != nil {
		return fmt.Errorf("set adr: %w", err)
	}
	m.log.Info("adaptive data rate", zap.Bool("enabled", enabled))
	return nil
}

// SetLogLevel 设置模组自身的日志级别，超界收编到 0..5
func (m *Modem) SetLogLevel(level uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLogLevelLocked(level)
}

func (m *Modem) setLogLevelLocked(level uint8) error {
	const maxLevel = 5
	if level > maxLevel {
		m.log.Warn("module log level out of range, clamping",
			zap.Uint8("requested", level), zap.Uint8("clamped", maxLevel))
		level = maxLevel
	}
	_, err := m.exchange(atcmd.New("ILOGLVL", strconv.Itoa(int(level))), m.cfg.ResponseTimeout)
	if err != nil {
		return fmt.Errorf("set module log level: %w", err)
	}
	return nil
}

// LinkCheckResult MAC 层链路检查结果
type LinkCheckResult struct {
	Result   int `json:"result"` // 0 为成功
	Margin   int `json:"margin"`
	Gateways int `json:"gateways"`
	RSSI     int `json:"rssi"`
	SNR      int `json:"snr"`
}

// LinkCheck 配置链路检查模式：0 关闭，1 立即检查一次，2 每次上行后检查。
// 模式 1 等待空中往返；结果行通常伴随下行通知出现在同一窗口，
// 拿不到结果行只记录告警，指令本身仍算成功。
func (m *Modem) LinkCheck(mode uint8) (*LinkCheckResult, error) {
	if mode > 2 {
		return nil, fmt.Errorf("%w: link check mode %d out of range 0..2",
			ErrInvalidArgument, mode)
	}
	timeout := m.cfg.ResponseTimeout
	if mode == 1 {
		timeout = joinExchangeTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	resp, err := m.exchange(atcmd.New("CLINKCHECK", strconv.Itoa(int(mode))), timeout)
	if err != nil {
		return nil, fmt.Errorf("link check: %w", err)
	}
	if mode != 1 {
		return nil, nil
	}

	pos := strings.Index(resp.Payload, "+CLINKCHECK:")
	if pos < 0 {
		m.log.Warn("link check accepted but reply carried no result line")
		return nil, nil
	}
	var r LinkCheckResult
	if _, err := fmt.Sscanf(resp.Payload[pos:], "+CLINKCHECK:%d,%d,%d,%d,%d",
		&r.Result, &r.Margin, &r.Gateways, &r.RSSI, &r.SNR); err != nil {
		m.log.Warn("link check result unreadable",
			zap.String("line", truncateForLog([]byte(resp.Payload[pos:]))))
		return nil, nil
	}
	if r.Result != 0 {
		m.log.Warn("link check failed", zap.Int("result", r.Result))
	} else {
		m.log.Info("link check ok",
			zap.Int("margin", r.Margin),
			zap.Int("gateways", r.Gateways),
			zap.Int("rssi", r.RSSI),
			zap.Int("snr", r.SNR))
	}
	return &r, nil
}
