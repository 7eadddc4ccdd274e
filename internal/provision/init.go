package provision

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
)

// moduleLogLevelQuiet 只保留模组自身的错误级日志，串口留给指令流
const moduleLogLevelQuiet = 1

// Init 上电初始化：确认模组在位，压低模组自身日志，落盘后重启一次，
// 让后续置备从干净状态开始。模组不在位是硬错误，其余步骤失败只告警。
func (p *Provisioner) Init() error {
	p.log.Info("initializing lorawan module")
	err := p.modem.Batch(func(s *modem.Session) error {
		attached, err := s.Attached()
		if err != nil {
			return fmt.Errorf("attach probe: %w", err)
		}
		if !attached {
			return fmt.Errorf("%w: check wiring and power on port c", modem.ErrNotAttached)
		}
		if err := s.SetLogLevel(moduleLogLevelQuiet); err != nil {
			p.log.Warn("setting module log level failed, continuing", zap.Error(err))
		}
		if err := s.Save(); err != nil {
			p.log.Warn("saving configuration failed, continuing", zap.Error(err))
		}
		if err := s.Reboot(); err != nil {
			p.log.Warn("module reboot failed, continuing", zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.log.Info("lorawan module initialized, ready for provisioning")
	return nil
}
