// Package provision 把驱动指令串成模组置备脚本：上电初始化、
// OTAA 凭据写入、TTN US915 频率计划与入网。每个脚本在一个批量
// 临界区内顺序执行，第一条失败的指令终止整个脚本。
package provision

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
)

// ULDLMode 上下行频率模式
type ULDLMode int

const (
	// DifferentFreq 上下行使用不同频率，TTN 等公网的标准模式
	DifferentFreq ULDLMode = iota
	// SameFreq 上下行同频，部分私有网关用
	SameFreq
)

// wireArg 模组固件的线上取值与枚举顺序相反：异频发 "2"，同频发 "1"
func (m ULDLMode) wireArg() (string, error) {
	switch m {
	case DifferentFreq:
		return "2", nil
	case SameFreq:
		return "1", nil
	default:
		return "", fmt.Errorf("%w: unknown uplink/downlink mode %d", modem.ErrInvalidArgument, int(m))
	}
}

func (m ULDLMode) String() string {
	switch m {
	case DifferentFreq:
		return "different frequency"
	case SameFreq:
		return "same frequency"
	default:
		return fmt.Sprintf("uldl mode %d", int(m))
	}
}

// Provisioner 置备脚本执行器
type Provisioner struct {
	modem *modem.Modem
	log   *zap.Logger
}

// New 创建置备执行器。log 为 nil 时静默。
func New(m *modem.Modem, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{modem: m, log: log}
}
