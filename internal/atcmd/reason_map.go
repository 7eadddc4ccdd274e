package atcmd

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReasonMap 设备错误码映射：ERROR:<code> -> 可读原因
type ReasonMap struct {
	Map map[string]string `yaml:"map"`
}

// DefaultReasonMap 返回内置的 ASR650x 错误码表
func DefaultReasonMap() *ReasonMap {
	return &ReasonMap{
		Map: map[string]string{
			"1":  "command error",
			"2":  "invalid parameter",
			"3":  "busy, previous command still running",
			"4":  "command too long",
			"5":  "not joined to network",
			"6":  "receive error",
			"7":  "duty cycle restricted",
			"8":  "channel busy",
			"9":  "tx timeout",
			"10": "internal stack error",
			"11": "storage access error",
			"12": "low battery, tx suppressed",
		},
	}
}

// LoadReasonMap 从 YAML 文件加载覆盖表
func LoadReasonMap(path string) (*ReasonMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reason map: %w", err)
	}
	var m ReasonMap
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal reason map: %w", err)
	}
	if m.Map == nil {
		m.Map = make(map[string]string)
	}
	return &m, nil
}

// Describe 解释一个设备错误码。设备上报常带前导零（"07"），
// 查表前归一化；查不到返回带原码的占位描述。
func (m *ReasonMap) Describe(code string) string {
	if m != nil && m.Map != nil {
		if desc, ok := m.Map[normalizeCode(code)]; ok {
			return desc
		}
		if desc, ok := m.Map[code]; ok {
			return desc
		}
	}
	if code == "" {
		return "device error"
	}
	return fmt.Sprintf("device error %s", code)
}

// Merge 合并另一个表的映射规则，同码覆盖
func (m *ReasonMap) Merge(other *ReasonMap) {
	if m == nil || m.Map == nil || other == nil || other.Map == nil {
		return
	}
	for k, v := range other.Map {
		m.Map[k] = v
	}
}

func normalizeCode(code string) string {
	trimmed := strings.TrimLeft(code, "0")
	if trimmed == "" && code != "" {
		return "0"
	}
	return trimmed
}
