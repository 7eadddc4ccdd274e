package provision

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
)

// TTN US915 推荐缺省值
const (
	// DefaultAppEUI TTN v3 的标准 AppEUI
	DefaultAppEUI = "0000000000000000"
	// DefaultTTNSubBand TTN US915 公网网关所在子带
	DefaultTTNSubBand = 2
	// DefaultTTNDataRate 初始速率 DR2，53 字节载荷与传输距离的折中
	DefaultTTNDataRate = 2
)

// TTNConfig TTN US915 置备参数
type TTNConfig struct {
	DevEUI     string
	AppEUI     string
	AppKey     string
	SubBand    uint8 // 1..8
	DataRate   uint8 // 0..4
	ADREnabled bool

	// RX2 窗口参数由协议栈按区域参数自动配置，这里仅作校验与记录
	RX2Frequency uint32
	RX2DataRate  uint8

	// JoinTimeout 入网监视超时，<=0 时取驱动缺省
	JoinTimeout time.Duration
}

// DefaultTTNConfig TTN US915 缺省置备参数，凭据留空由调用方填充
func DefaultTTNConfig() TTNConfig {
	return TTNConfig{
		AppEUI:       DefaultAppEUI,
		SubBand:      DefaultTTNSubBand,
		DataRate:     DefaultTTNDataRate,
		ADREnabled:   true,
		RX2Frequency: modem.TTNUS915RX2Frequency,
		RX2DataRate:  modem.TTNUS915RX2DataRate,
		JoinTimeout:  modem.DefaultJoinTimeout,
	}
}

func (c TTNConfig) validate() error {
	if err := checkHexField("dev eui", c.DevEUI, euiHexLen); err != nil {
		return err
	}
	if err := checkHexField("app eui", c.AppEUI, euiHexLen); err != nil {
		return err
	}
	if err := checkHexField("app key", c.AppKey, appKeyHexLen); err != nil {
		return err
	}
	if c.SubBand < 1 || c.SubBand > 8 {
		return fmt.Errorf("%w: sub-band %d out of range 1..8", modem.ErrInvalidArgument, c.SubBand)
	}
	if c.DataRate > modem.DataRateMax {
		return fmt.Errorf("%w: data rate %d out of range %d..%d",
			modem.ErrInvalidArgument, c.DataRate, modem.DataRateMin, modem.DataRateMax)
	}
	if c.RX2DataRate > 15 {
		return fmt.Errorf("%w: rx2 data rate %d out of range 0..15",
			modem.ErrInvalidArgument, c.RX2DataRate)
	}
	return nil
}

// TTNUS915 按 TTN US915 频率计划完成整机置备并发起入网。
// 凭据校验、频率计划、OTAA 脚本、ADR 与初始速率、落盘、入网
// 在同一临界区内完成。cb 非 nil 时随后启动入网监视，结果经回调
// 异步通知，返回监视器句柄供调用方提前停止；cb 为 nil 时只发起
// 入网，由调用方自行轮询 Connected。
func (p *Provisioner) TTNUS915(cfg TTNConfig, cb modem.JoinCallback) (*modem.JoinMonitor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p.log.Info("provisioning for ttn us915",
		zap.String("dev_eui", cfg.DevEUI),
		zap.String("app_eui", cfg.AppEUI),
		zap.Uint8("sub_band", cfg.SubBand),
		zap.Uint8("data_rate", cfg.DataRate),
		zap.Bool("adr", cfg.ADREnabled))

	err := p.modem.Batch(func(s *modem.Session) error {
		attached, err := s.Attached()
		if err != nil {
			return fmt.Errorf("attach probe: %w", err)
		}
		if !attached {
			return modem.ErrNotAttached
		}

		if err := p.frequencyPlan(s, cfg.SubBand); err != nil {
			return err
		}
		otaa := OTAAConfig{
			DevEUI: cfg.DevEUI,
			AppEUI: cfg.AppEUI,
			AppKey: cfg.AppKey,
			Mode:   DifferentFreq,
		}
		if err := p.otaaScript(s, otaa); err != nil {
			return err
		}
		p.log.Info("rx2 window handled by module stack",
			zap.Uint32("frequency_hz", cfg.RX2Frequency),
			zap.Uint8("data_rate", cfg.RX2DataRate))

		if err := s.SetADR(cfg.ADREnabled); err != nil {
			return fmt.Errorf("adr: %w", err)
		}
		if err := s.SetDataRate(cfg.DataRate); err != nil {
			// 初始速率设不上不拦置备，网络指令或 ADR 会接管
			p.log.Warn("initial data rate not accepted, relying on network",
				zap.Uint8("data_rate", cfg.DataRate), zap.Error(err))
		}
		if err := s.Save(); err != nil {
			p.log.Warn("saving ttn configuration failed, continuing", zap.Error(err))
		}
		if err := s.Join(); err != nil {
			return fmt.Errorf("initiate join: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cb == nil {
		p.log.Info("ttn us915 provisioning complete, join initiated")
		return nil, nil
	}
	jm, err := p.modem.StartJoinMonitor(cfg.JoinTimeout, cb)
	if err != nil {
		return nil, err
	}
	p.log.Info("ttn us915 provisioning complete, join monitor running",
		zap.Duration("timeout", cfg.JoinTimeout))
	return jm, nil
}

// frequencyPlan 先整体选 US915 频段，再按子带掩码收窄到 8 个信道
func (p *Provisioner) frequencyPlan(s *modem.Session, subBand uint8) error {
	if _, err := s.Execute(atcmd.New("CFREQBANDMASK", "0001"), s.ResponseTimeout()); err != nil {
		return fmt.Errorf("us915 band: %w", err)
	}
	mask := subBandMask(subBand)
	if _, err := s.Execute(atcmd.New("CFREQBANDMASK", mask), s.ResponseTimeout()); err != nil {
		return fmt.Errorf("us915 sub-band %d: %w", subBand, err)
	}
	first := (int(subBand) - 1) * 8
	p.log.Info("us915 sub-band configured",
		zap.Uint8("sub_band", subBand),
		zap.String("mask", mask),
		zap.Int("first_channel", first),
		zap.Int("last_channel", first+7))
	return nil
}

// subBandMask 子带对应的信道掩码，未知子带回落 TTN 默认子带 2
func subBandMask(subBand uint8) string {
	if subBand < 1 || subBand > 8 {
		return "0002"
	}
	return fmt.Sprintf("%04X", 1<<(subBand-1))
}
