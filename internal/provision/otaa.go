package provision

import (
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
)

// 凭据长度，十六进制字符数
const (
	euiHexLen    = 16
	appKeyHexLen = 32
)

// OTAAConfig OTAA 入网凭据
type OTAAConfig struct {
	DevEUI string // 16 个十六进制字符
	AppEUI string // 16 个十六进制字符，TTN v3 通常为全零
	AppKey string // 32 个十六进制字符
	Mode   ULDLMode
}

func (c OTAAConfig) validate() error {
	if err := checkHexField("dev eui", c.DevEUI, euiHexLen); err != nil {
		return err
	}
	if err := checkHexField("app eui", c.AppEUI, euiHexLen); err != nil {
		return err
	}
	if err := checkHexField("app key", c.AppKey, appKeyHexLen); err != nil {
		return err
	}
	_, err := c.Mode.wireArg()
	return err
}

// checkHexField 凭据必须整段可解码，仅查长度会放过非十六进制的脏字符
func checkHexField(name, value string, wantLen int) error {
	if len(value) != wantLen {
		return fmt.Errorf("%w: %s must be %d hex chars, got %d",
			modem.ErrInvalidArgument, name, wantLen, len(value))
	}
	if _, err := hex.DecodeString(value); err != nil {
		return fmt.Errorf("%w: %s is not valid hex", modem.ErrInvalidArgument, name)
	}
	return nil
}

// OTAA 写入 OTAA 凭据并把模组设为 LoRaWAN Class A 工作模式。
// 七步在同一临界区内顺序执行。
func (p *Provisioner) OTAA(cfg OTAAConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	p.log.Info("configuring otaa credentials",
		zap.String("dev_eui", cfg.DevEUI),
		zap.String("app_eui", cfg.AppEUI),
		zap.Stringer("uldl_mode", cfg.Mode))

	return p.modem.Batch(func(s *modem.Session) error {
		return p.otaaScript(s, cfg)
	})
}

// otaaScript 假定已在临界区内。步骤顺序即模组手册的置备顺序，
// 工作模式必须最后写，否则前面的凭据不生效。
func (p *Provisioner) otaaScript(s *modem.Session, cfg OTAAConfig) error {
	uldl, err := cfg.Mode.wireArg()
	if err != nil {
		return err
	}
	steps := []struct {
		what string
		cmd  atcmd.Command
	}{
		{"join mode otaa", atcmd.New("CJOINMODE", "0")},
		{"device eui", atcmd.New("CDEVEUI", cfg.DevEUI)},
		{"application eui", atcmd.New("CAPPEUI", cfg.AppEUI)},
		{"application key", atcmd.New("CAPPKEY", cfg.AppKey)},
		{"uplink/downlink mode", atcmd.New("CULDLMODE", uldl)},
		{"device class a", atcmd.New("CCLASS", "0")},
		{"lorawan work mode", atcmd.New("CWORKMODE", "2")},
	}
	for _, step := range steps {
		if _, err := s.Execute(step.cmd, s.ResponseTimeout()); err != nil {
			return fmt.Errorf("otaa step %s: %w", step.what, err)
		}
	}
	p.log.Info("otaa credentials configured")
	return nil
}
